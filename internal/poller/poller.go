// Package poller is the scheduled getUpdates variant of the bridge: the
// same per-update ingestion as the webhook, driven by a cron schedule
// with the offset persisted across runs.
package poller

import (
	"context"
	"errors"
	"fmt"

	"github.com/notigram/notigram/internal/ingest"
	"github.com/notigram/notigram/internal/telegram"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// allowedUpdates limits getUpdates to the payload kinds the bridge
// ingests.
var allowedUpdates = []string{"message", "edited_message", "channel_post"}

// UpdateSource fetches pending updates. Satisfied by *telegram.Client.
type UpdateSource interface {
	GetUpdates(offset int64, limit int, allowedUpdates []string) ([]telegram.Update, error)
}

// Ingestor processes one update. Satisfied by *ingest.Pipeline.
type Ingestor interface {
	Ingest(ctx context.Context, upd *telegram.Update) (*ingest.Outcome, error)
}

// Cursor persists the poll offset and the processed-update journal.
// Satisfied by *store.Journal.
type Cursor interface {
	Offset() (int64, error)
	SetOffset(offset int64) error
	Seen(updateID int64) (bool, error)
	MarkProcessed(updateID int64) error
}

// Poller drains pending updates on each scheduled run.
type Poller struct {
	source   UpdateSource
	ingestor Ingestor
	cursor   Cursor
	limit    int
	logger   *zap.Logger
}

// New creates a poller fetching at most limit updates per run.
func New(source UpdateSource, ingestor Ingestor, cursor Cursor, limit int, logger *zap.Logger) *Poller {
	return &Poller{
		source:   source,
		ingestor: ingestor,
		cursor:   cursor,
		limit:    limit,
		logger:   logger,
	}
}

// Schedule registers the poller on the given cron instance.
func (p *Poller) Schedule(c *cron.Cron, spec string) error {
	_, err := c.AddFunc(spec, func() {
		if err := p.RunOnce(context.Background()); err != nil {
			p.logger.Error("Poll run failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule poller: %w", err)
	}
	return nil
}

// RunOnce fetches one batch of updates and ingests them in order. The
// offset advances past an update only after it was ingested (or
// journaled as already processed), so a failing update is retried on the
// next run with the same offset.
func (p *Poller) RunOnce(ctx context.Context) error {
	offset, err := p.cursor.Offset()
	if err != nil {
		return err
	}

	updates, err := p.source.GetUpdates(offset, p.limit, allowedUpdates)
	if err != nil {
		return fmt.Errorf("failed to fetch updates: %w", err)
	}
	if len(updates) == 0 {
		return nil
	}
	p.logger.Info("Fetched updates",
		zap.Int64("offset", offset),
		zap.Int("count", len(updates)))

	for i := range updates {
		upd := &updates[i]
		if upd.UpdateID == nil {
			continue
		}
		updateID := *upd.UpdateID

		seen, err := p.cursor.Seen(updateID)
		if err != nil {
			return err
		}
		if seen {
			p.logger.Info("Skipping journaled update", zap.Int64("update_id", updateID))
		} else {
			if _, err := p.ingestor.Ingest(ctx, upd); err != nil && !errors.Is(err, ingest.ErrNoMessage) {
				// Leave the offset at this update; the next run retries it.
				return fmt.Errorf("failed to ingest update %d: %w", updateID, err)
			}
			if err := p.cursor.MarkProcessed(updateID); err != nil {
				return err
			}
		}

		if err := p.cursor.SetOffset(updateID + 1); err != nil {
			return err
		}
	}
	return nil
}
