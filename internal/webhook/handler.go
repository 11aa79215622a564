// Package webhook exposes the inbound Telegram webhook endpoint.
package webhook

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/notigram/notigram/internal/ingest"
	"github.com/notigram/notigram/internal/telegram"
	"go.uber.org/zap"
)

// SecretTokenHeader is the header Telegram echoes back when a webhook
// was registered with a secret_token.
const SecretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// Ingestor processes one parsed update. Satisfied by *ingest.Pipeline.
type Ingestor interface {
	Ingest(ctx context.Context, upd *telegram.Update) (*ingest.Outcome, error)
}

// Handler handles Telegram webhook deliveries.
type Handler struct {
	ingestor      Ingestor
	secretToken   string
	requireSecret bool
	logger        *zap.Logger
}

// NewHandler creates a webhook handler. When requireSecret is set,
// deliveries must carry the matching secret token header.
func NewHandler(ingestor Ingestor, secretToken string, requireSecret bool, logger *zap.Logger) *Handler {
	return &Handler{
		ingestor:      ingestor,
		secretToken:   secretToken,
		requireSecret: requireSecret,
		logger:        logger,
	}
}

// response is the webhook's fixed reply shape.
type response struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Handle processes one webhook POST. Only the POST route is registered,
// so other methods fall through to gin's 404.
func (h *Handler) Handle(c *gin.Context) {
	if h.requireSecret {
		if h.secretToken == "" {
			h.logger.Error("Secret enforcement enabled but no secret token configured")
			c.JSON(http.StatusInternalServerError, response{OK: false, Error: "webhook secret not configured"})
			return
		}
		header := c.GetHeader(SecretTokenHeader)
		if subtle.ConstantTimeCompare([]byte(header), []byte(h.secretToken)) != 1 {
			h.logger.Warn("Webhook secret token mismatch", zap.String("ip", c.ClientIP()))
			c.JSON(http.StatusUnauthorized, response{OK: false, Error: "invalid secret token"})
			return
		}
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, response{OK: false, Error: "failed to read request body"})
		return
	}

	var upd telegram.Update
	if err := json.Unmarshal(body, &upd); err != nil {
		h.logger.Warn("Malformed webhook payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, response{OK: false, Error: "malformed update payload"})
		return
	}
	if upd.UpdateID == nil {
		h.logger.Warn("Webhook payload missing update_id")
		c.JSON(http.StatusBadRequest, response{OK: false, Error: "update_id missing or not a number"})
		return
	}

	// Ingestion must run to completion even when Telegram times out the
	// delivery and closes the connection mid-upload; a canceled request
	// context would abort the upload and the ledger append with it.
	outcome, err := h.ingestor.Ingest(context.WithoutCancel(c.Request.Context()), &upd)
	if err != nil {
		// Updates without an extractable message are acknowledged, not
		// errored: Telegram would otherwise redeliver them forever.
		if errors.Is(err, ingest.ErrNoMessage) {
			c.JSON(http.StatusOK, response{OK: true})
			return
		}
		h.logger.Error("Ingestion failed",
			zap.Int64("update_id", *upd.UpdateID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, response{OK: false, Error: err.Error()})
		return
	}

	if outcome.Duplicate {
		h.logger.Info("Acknowledged duplicate delivery", zap.Int64("update_id", *upd.UpdateID))
	}
	c.JSON(http.StatusOK, response{OK: true})
}
