// Package ingest materializes Telegram updates as Notion pages: schema
// resolution, duplicate detection, page assembly, attachment processing
// and ledger bookkeeping. One linear pass per update, no internal
// retries; redelivery by Telegram (or a re-run of the poll) is the retry
// mechanism.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/notigram/notigram/internal/attachment"
	"github.com/notigram/notigram/internal/notion"
	"github.com/notigram/notigram/internal/telegram"
	"go.uber.org/zap"
)

// ErrNoMessage is returned when the update carries no extractable
// message payload. Callers treat it as "silently ignore", not a failure.
var ErrNoMessage = errors.New("update carries no message payload")

// ErrNoUpdateID is returned when the update lacks a numeric update_id.
var ErrNoUpdateID = errors.New("update carries no update_id")

// NotionAPI is the slice of the Notion client the pipeline depends on.
type NotionAPI interface {
	ResolveSchema(ctx context.Context, databaseID string) (*notion.Schema, error)
	QueryPageID(ctx context.Context, dataSourceID string, filter map[string]any) (string, error)
	CreatePage(ctx context.Context, dataSourceID string, properties map[string]any, children []notion.Block) (string, error)
	AppendBlocks(ctx context.Context, blockID string, blocks []notion.Block) error
}

// AttachmentProcessor runs the per-file upload pipeline.
// Satisfied by *attachment.Uploader.
type AttachmentProcessor interface {
	ProcessAll(ctx context.Context, files []telegram.FileInfo) []attachment.Result
}

// Reactor acknowledges processed messages back to Telegram.
// Satisfied by *telegram.Client; may be nil to disable acknowledgments.
type Reactor interface {
	SetReaction(chatID, messageID int64, emoji string) error
}

// Outcome reports what an ingestion run did.
type Outcome struct {
	// Duplicate is set when an existing page matched the dedupe query
	// and no new page was created.
	Duplicate bool
	PageID    string
	States    []attachment.UploadState
}

// Pipeline is the per-update ingestion state machine.
type Pipeline struct {
	notion     NotionAPI
	processor  AttachmentProcessor
	reactor    Reactor
	databaseID string
	maxBytes   int64
	logger     *zap.Logger

	now func() time.Time
}

// NewPipeline creates an ingestion pipeline targeting one database.
func NewPipeline(notionAPI NotionAPI, processor AttachmentProcessor, reactor Reactor, databaseID string, maxBytes int64, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		notion:     notionAPI,
		processor:  processor,
		reactor:    reactor,
		databaseID: databaseID,
		maxBytes:   maxBytes,
		logger:     logger,
		now:        time.Now,
	}
}

// Ingest processes one inbound update end to end. Errors returned here
// occurred before or during page creation and abort the request; every
// failure after the page exists is swallowed into ledger and log data,
// because the page is the durable trigger for downstream automation and
// must not be lost to a secondary attachment problem.
func (p *Pipeline) Ingest(ctx context.Context, upd *telegram.Update) (*Outcome, error) {
	if upd.UpdateID == nil {
		return nil, ErrNoUpdateID
	}
	updateID := *upd.UpdateID

	msg := upd.ExtractMessage()
	if msg == nil {
		return nil, ErrNoMessage
	}

	schema, err := p.notion.ResolveSchema(ctx, p.databaseID)
	if err != nil {
		p.logger.Error("Schema resolution failed",
			zap.Int64("update_id", updateID),
			zap.String("failure_class", notion.ClassifyFailure(err)),
			zap.Error(err))
		return nil, err
	}

	files := telegram.ExtractFiles(msg)

	pageID, err := p.findExisting(ctx, schema, msg, updateID)
	if err != nil {
		return nil, err
	}
	if pageID != "" {
		p.logger.Info("Duplicate update, page already exists",
			zap.Int64("update_id", updateID),
			zap.String("page_id", pageID))
		return &Outcome{Duplicate: true, PageID: pageID}, nil
	}

	// The check-then-create sequence is not transactional: two
	// near-simultaneous deliveries of the same update can both pass the
	// query above and create duplicate pages. Accepted; the Notion API
	// exposes no unique-constraint-bearing upsert to close it.
	pageID, err = p.notion.CreatePage(ctx, schema.DataSourceID,
		p.pageProperties(schema, msg, updateID, files),
		[]notion.Block{
			notion.ParagraphBlock(contentText(msg, updateID, files)),
			auditBlock(msg, updateID, files, p.maxBytes),
		})
	if err != nil {
		p.logger.Error("Page creation failed",
			zap.Int64("update_id", updateID),
			zap.String("failure_class", notion.ClassifyFailure(err)),
			zap.Error(err))
		return nil, err
	}

	outcome := &Outcome{PageID: pageID}

	if len(files) > 0 {
		results := p.processor.ProcessAll(ctx, files)
		var blocks []notion.Block
		for _, r := range results {
			outcome.States = append(outcome.States, r.State)
			if r.Block != nil {
				blocks = append(blocks, r.Block)
			}
		}
		p.appendLedger(ctx, pageID, outcome.States)
		p.appendAttachmentBlocks(ctx, pageID, blocks)
	}

	p.acknowledge(msg)

	p.logger.Info("Update ingested",
		zap.Int64("update_id", updateID),
		zap.String("page_id", pageID),
		zap.Int("attachments", len(files)))
	return outcome, nil
}

// findExisting runs the dedupe query: by update id when the schema has
// that property, else by the (chat id, message id) pair, else not at all
// (duplicates are then possible; documented limitation).
func (p *Pipeline) findExisting(ctx context.Context, schema *notion.Schema, msg *telegram.Message, updateID int64) (string, error) {
	var filter map[string]any
	switch {
	case schema.UpdateIDProp != "":
		filter = notion.NumberEquals(schema.UpdateIDProp, updateID)
	case schema.ChatIDProp != "" && schema.MessageIDProp != "":
		filter = notion.And(
			notion.NumberEquals(schema.ChatIDProp, msg.Chat.ID),
			notion.NumberEquals(schema.MessageIDProp, msg.MessageID),
		)
	default:
		return "", nil
	}

	pageID, err := p.notion.QueryPageID(ctx, schema.DataSourceID, filter)
	if err != nil {
		p.logger.Error("Dedupe query failed",
			zap.Int64("update_id", updateID),
			zap.String("failure_class", notion.ClassifyFailure(err)),
			zap.Error(err))
		return "", fmt.Errorf("dedupe query failed: %w", err)
	}
	return pageID, nil
}

// pageProperties builds the property payload, setting only properties
// the schema actually resolved.
func (p *Pipeline) pageProperties(schema *notion.Schema, msg *telegram.Message, updateID int64, files []telegram.FileInfo) map[string]any {
	props := map[string]any{}
	if schema.TitleProp != "" {
		props[schema.TitleProp] = notion.TitleProperty(pageTitle(msg, files))
	}
	if schema.ChatIDProp != "" {
		props[schema.ChatIDProp] = notion.NumberProperty(msg.Chat.ID)
	}
	if schema.TopicIDProp != "" && msg.MessageThreadID != 0 {
		props[schema.TopicIDProp] = notion.NumberProperty(msg.MessageThreadID)
	}
	if schema.MessageIDProp != "" {
		props[schema.MessageIDProp] = notion.NumberProperty(msg.MessageID)
	}
	if schema.UpdateIDProp != "" {
		props[schema.UpdateIDProp] = notion.NumberProperty(updateID)
	}
	if schema.StatusProp != "" && schema.StatusNotStarted != "" {
		props[schema.StatusProp] = notion.StatusProperty(schema.StatusNotStarted)
	}
	return props
}

// appendLedger writes the upload-state ledger block. Always called once
// there are attachments, regardless of their outcomes. Append failures
// are swallowed: the page already exists and must survive.
func (p *Pipeline) appendLedger(ctx context.Context, pageID string, states []attachment.UploadState) {
	err := p.notion.AppendBlocks(ctx, pageID, []notion.Block{ledgerBlock(states, p.now())})
	if err != nil {
		p.logger.Error("Ledger append failed",
			zap.String("page_id", pageID),
			zap.String("failure_class", notion.ClassifyFailure(err)),
			zap.Error(err))
	}
}

// appendAttachmentBlocks appends the successful attachment content
// blocks in a second, separate call. On failure a fallback error note is
// appended instead of propagating; partial attachment success never
// unwinds page creation.
func (p *Pipeline) appendAttachmentBlocks(ctx context.Context, pageID string, blocks []notion.Block) {
	if len(blocks) == 0 {
		return
	}
	err := p.notion.AppendBlocks(ctx, pageID, blocks)
	if err == nil {
		return
	}
	p.logger.Error("Attachment block append failed",
		zap.String("page_id", pageID),
		zap.String("failure_class", notion.ClassifyFailure(err)),
		zap.Error(err))

	note := notion.ParagraphBlock(fmt.Sprintf(
		"⚠️ Failed to attach %d uploaded file(s) to this page: %v", len(blocks), err))
	if fallbackErr := p.notion.AppendBlocks(ctx, pageID, []notion.Block{note}); fallbackErr != nil {
		p.logger.Error("Fallback note append failed",
			zap.String("page_id", pageID),
			zap.Error(fallbackErr))
	}
}

// acknowledge reacts to the source message as a read receipt.
// Best-effort; failures are logged and dropped.
func (p *Pipeline) acknowledge(msg *telegram.Message) {
	if p.reactor == nil {
		return
	}
	if err := p.reactor.SetReaction(msg.Chat.ID, msg.MessageID, "👍"); err != nil {
		p.logger.Warn("Read acknowledgment failed",
			zap.Int64("chat_id", msg.Chat.ID),
			zap.Int64("message_id", msg.MessageID),
			zap.Error(err))
	}
}
