package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/notigram/notigram/internal/attachment"
	"github.com/notigram/notigram/internal/notion"
	"github.com/notigram/notigram/internal/telegram"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// mockNotion records pipeline traffic against the Notion API surface.
type mockNotion struct {
	schema    *notion.Schema
	schemaErr error

	queryPageID string
	queryErr    error
	queryCalls  int
	lastFilter  map[string]any

	pageID      string
	createErr   error
	createCalls int
	lastProps   map[string]any
	lastChilds  []notion.Block

	appendErrs  []error
	appendCalls [][]notion.Block
}

func (m *mockNotion) ResolveSchema(ctx context.Context, databaseID string) (*notion.Schema, error) {
	if m.schemaErr != nil {
		return nil, m.schemaErr
	}
	return m.schema, nil
}

func (m *mockNotion) QueryPageID(ctx context.Context, dataSourceID string, filter map[string]any) (string, error) {
	m.queryCalls++
	m.lastFilter = filter
	return m.queryPageID, m.queryErr
}

func (m *mockNotion) CreatePage(ctx context.Context, dataSourceID string, properties map[string]any, children []notion.Block) (string, error) {
	m.createCalls++
	m.lastProps = properties
	m.lastChilds = children
	if m.createErr != nil {
		return "", m.createErr
	}
	return m.pageID, nil
}

func (m *mockNotion) AppendBlocks(ctx context.Context, blockID string, blocks []notion.Block) error {
	m.appendCalls = append(m.appendCalls, blocks)
	if len(m.appendErrs) > 0 {
		err := m.appendErrs[0]
		m.appendErrs = m.appendErrs[1:]
		return err
	}
	return nil
}

// mockProcessor returns canned attachment results.
type mockProcessor struct {
	results []attachment.Result
	calls   int
}

func (m *mockProcessor) ProcessAll(ctx context.Context, files []telegram.FileInfo) []attachment.Result {
	m.calls++
	if m.results != nil {
		return m.results
	}
	out := make([]attachment.Result, 0, len(files))
	for _, f := range files {
		out = append(out, attachment.Result{State: attachment.UploadState{
			FileID:       f.FileID,
			FileUniqueID: f.FileUniqueID,
			Type:         f.Type,
			Status:       attachment.StatusUploaded,
		}})
	}
	return out
}

// mockReactor records acknowledgments.
type mockReactor struct {
	calls int
	err   error
}

func (m *mockReactor) SetReaction(chatID, messageID int64, emoji string) error {
	m.calls++
	return m.err
}

func fullSchema() *notion.Schema {
	return &notion.Schema{
		DataSourceID:     "ds_1",
		TitleProp:        "Name",
		ChatIDProp:       "Chat ID",
		TopicIDProp:      "Topic ID",
		MessageIDProp:    "Message ID",
		UpdateIDProp:     "Update ID",
		StatusProp:       "Status",
		StatusNotStarted: "Not started",
	}
}

func textUpdate(updateID, chatID, messageID int64, text string) *telegram.Update {
	return &telegram.Update{
		UpdateID: &updateID,
		Message: &telegram.Message{
			MessageID: messageID,
			Chat:      telegram.Chat{ID: chatID, Type: "group"},
			From:      &telegram.User{FirstName: "Ada"},
			Text:      text,
		},
	}
}

func documentUpdate(updateID int64) *telegram.Update {
	upd := textUpdate(updateID, 100, 5, "hello")
	upd.Message.Document = &telegram.Document{
		FileID:       "f1",
		FileUniqueID: "u1",
		FileSize:     26214400,
	}
	return upd
}

func newTestPipeline(n *mockNotion, proc *mockProcessor, reactor *mockReactor) *Pipeline {
	var r Reactor
	if reactor != nil {
		r = reactor
	}
	p := NewPipeline(n, proc, r, "db_1", 104857600, zap.NewNop())
	p.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return p
}

func TestIngestCreatesPage(t *testing.T) {
	n := &mockNotion{schema: fullSchema(), pageID: "page_1"}
	proc := &mockProcessor{}
	reactor := &mockReactor{}
	p := newTestPipeline(n, proc, reactor)

	outcome, err := p.Ingest(context.Background(), textUpdate(1, 100, 5, "hello"))
	require.NoError(t, err)

	assert.False(t, outcome.Duplicate)
	assert.Equal(t, "page_1", outcome.PageID)
	assert.Equal(t, 1, n.createCalls)
	assert.Equal(t, 1, reactor.calls)

	// Properties set only for resolved names; topic omitted when zero.
	assert.Contains(t, n.lastProps, "Name")
	assert.Contains(t, n.lastProps, "Chat ID")
	assert.Contains(t, n.lastProps, "Message ID")
	assert.Contains(t, n.lastProps, "Update ID")
	assert.Contains(t, n.lastProps, "Status")
	assert.NotContains(t, n.lastProps, "Topic ID")

	// Paragraph plus JSON audit block at creation time.
	require.Len(t, n.lastChilds, 2)
	assert.Equal(t, "paragraph", n.lastChilds[0]["type"])
	assert.Equal(t, "code", n.lastChilds[1]["type"])

	// No attachments: no ledger append.
	assert.Empty(t, n.appendCalls)
}

func TestIngestDuplicateByUpdateID(t *testing.T) {
	n := &mockNotion{schema: fullSchema(), queryPageID: "existing"}
	p := newTestPipeline(n, &mockProcessor{}, nil)

	outcome, err := p.Ingest(context.Background(), textUpdate(1, 100, 5, "hello"))
	require.NoError(t, err)

	assert.True(t, outcome.Duplicate)
	assert.Equal(t, "existing", outcome.PageID)
	assert.Equal(t, 1, n.queryCalls)
	assert.Equal(t, 0, n.createCalls)
	assert.Equal(t, "Update ID", n.lastFilter["property"])
}

func TestIngestDedupeByChatAndMessage(t *testing.T) {
	schema := fullSchema()
	schema.UpdateIDProp = ""
	n := &mockNotion{schema: schema, pageID: "page_1"}
	p := newTestPipeline(n, &mockProcessor{}, nil)

	_, err := p.Ingest(context.Background(), textUpdate(1, 100, 5, "hello"))
	require.NoError(t, err)

	require.Equal(t, 1, n.queryCalls)
	and, ok := n.lastFilter["and"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, and, 2)
	assert.Equal(t, "Chat ID", and[0]["property"])
	assert.Equal(t, "Message ID", and[1]["property"])
}

func TestIngestDedupeSkippedWithoutProperties(t *testing.T) {
	schema := fullSchema()
	schema.UpdateIDProp = ""
	schema.ChatIDProp = ""
	n := &mockNotion{schema: schema, pageID: "page_1"}
	p := newTestPipeline(n, &mockProcessor{}, nil)

	_, err := p.Ingest(context.Background(), textUpdate(1, 100, 5, "hello"))
	require.NoError(t, err)

	assert.Equal(t, 0, n.queryCalls)
	assert.Equal(t, 1, n.createCalls)
}

func TestIngestSkippedAttachmentLedgerOnly(t *testing.T) {
	n := &mockNotion{schema: fullSchema(), pageID: "page_1"}
	proc := &mockProcessor{results: []attachment.Result{{
		State: attachment.UploadState{
			FileID:       "f1",
			FileUniqueID: "u1",
			Type:         telegram.TypeDocument,
			Status:       attachment.StatusSkipped,
			Reason:       "file size 26214400 bytes exceeds configured maximum of 20971520 bytes",
		},
	}}}
	p := newTestPipeline(n, proc, nil)

	outcome, err := p.Ingest(context.Background(), documentUpdate(1))
	require.NoError(t, err)

	require.Len(t, outcome.States, 1)
	assert.Equal(t, attachment.StatusSkipped, outcome.States[0].Status)
	assert.Contains(t, outcome.States[0].Reason, "20971520")

	// Exactly one append: the ledger. No attachment block call.
	require.Len(t, n.appendCalls, 1)
	require.Len(t, n.appendCalls[0], 1)
	assert.Equal(t, "code", n.appendCalls[0][0]["type"])
}

func TestIngestLedgerAppendedWhenAllFailed(t *testing.T) {
	n := &mockNotion{schema: fullSchema(), pageID: "page_1"}
	proc := &mockProcessor{results: []attachment.Result{{
		State: attachment.UploadState{
			FileID: "f1", FileUniqueID: "u1", Type: telegram.TypeDocument,
			Status: attachment.StatusFailed, Reason: "download failed with status 404",
		},
	}}}
	p := newTestPipeline(n, proc, nil)

	_, err := p.Ingest(context.Background(), documentUpdate(1))
	require.NoError(t, err)
	require.Len(t, n.appendCalls, 1)
}

func TestIngestUploadedAttachmentAppendsBlocks(t *testing.T) {
	n := &mockNotion{schema: fullSchema(), pageID: "page_1"}
	proc := &mockProcessor{results: []attachment.Result{{
		State: attachment.UploadState{
			FileID: "f1", FileUniqueID: "u1", Type: telegram.TypeDocument,
			Status: attachment.StatusUploaded, NotionFileUploadID: "fu_1", NotionBlockType: "file",
		},
		Block: notion.FileBlock("file", "fu_1", "doc.bin (document, 10 bytes)"),
	}}}
	p := newTestPipeline(n, proc, nil)

	_, err := p.Ingest(context.Background(), documentUpdate(1))
	require.NoError(t, err)

	// Ledger first, attachment blocks second.
	require.Len(t, n.appendCalls, 2)
	assert.Equal(t, "code", n.appendCalls[0][0]["type"])
	assert.Equal(t, "file", n.appendCalls[1][0]["type"])
}

func TestIngestBlockAppendFailureWritesFallbackNote(t *testing.T) {
	n := &mockNotion{
		schema: fullSchema(),
		pageID: "page_1",
		// Ledger append succeeds, attachment append fails, note succeeds.
		appendErrs: []error{nil, errors.New("PATCH /v1/blocks/page_1/children returned status 400: bad block")},
	}
	proc := &mockProcessor{results: []attachment.Result{{
		State: attachment.UploadState{
			FileID: "f1", FileUniqueID: "u1", Type: telegram.TypeDocument,
			Status: attachment.StatusUploaded, NotionFileUploadID: "fu_1", NotionBlockType: "file",
		},
		Block: notion.FileBlock("file", "fu_1", ""),
	}}}
	p := newTestPipeline(n, proc, nil)

	// The request still succeeds.
	_, err := p.Ingest(context.Background(), documentUpdate(1))
	require.NoError(t, err)

	require.Len(t, n.appendCalls, 3)
	note := n.appendCalls[2][0]
	assert.Equal(t, "paragraph", note["type"])
	text := note["paragraph"].(map[string]any)["rich_text"].([]map[string]any)[0]["text"].(map[string]any)["content"].(string)
	assert.Contains(t, text, "Failed to attach")
}

func TestIngestSchemaFailureIsTerminal(t *testing.T) {
	n := &mockNotion{schemaErr: notion.ErrSchemaUnavailable}
	p := newTestPipeline(n, &mockProcessor{}, nil)

	_, err := p.Ingest(context.Background(), textUpdate(1, 100, 5, "hello"))
	require.Error(t, err)
	assert.ErrorIs(t, err, notion.ErrSchemaUnavailable)
	assert.Equal(t, 0, n.createCalls)
}

func TestIngestCreateFailureIsTerminal(t *testing.T) {
	n := &mockNotion{
		schema:    fullSchema(),
		createErr: &notion.APIError{Method: "POST", Path: "/v1/pages", StatusCode: 400, Code: "validation_error", Message: "bad"},
	}
	proc := &mockProcessor{}
	p := newTestPipeline(n, proc, nil)

	_, err := p.Ingest(context.Background(), documentUpdate(1))
	require.Error(t, err)
	// Nothing after page creation runs.
	assert.Equal(t, 0, proc.calls)
	assert.Empty(t, n.appendCalls)
}

func TestIngestNoMessage(t *testing.T) {
	updateID := int64(7)
	p := newTestPipeline(&mockNotion{schema: fullSchema()}, &mockProcessor{}, nil)

	_, err := p.Ingest(context.Background(), &telegram.Update{UpdateID: &updateID})
	assert.ErrorIs(t, err, ErrNoMessage)
}

func TestIngestReactionFailureSwallowed(t *testing.T) {
	n := &mockNotion{schema: fullSchema(), pageID: "page_1"}
	reactor := &mockReactor{err: errors.New("setMessageReaction failed: reaction unavailable")}
	p := newTestPipeline(n, &mockProcessor{}, reactor)

	_, err := p.Ingest(context.Background(), textUpdate(1, 100, 5, "hello"))
	require.NoError(t, err)
	assert.Equal(t, 1, reactor.calls)
}

func TestContentTextDeterministic(t *testing.T) {
	upd := documentUpdate(1)
	files := telegram.ExtractFiles(upd.Message)
	text := contentText(upd.Message, 1, files)

	for _, line := range []string{"From: Ada", "Chat type: group", "Chat ID: 100", "Update ID: 1", "Message ID: 5", "Text: hello", "Attachments: document"} {
		assert.True(t, strings.Contains(text, line), "content text missing %q:\n%s", line, text)
	}
}
