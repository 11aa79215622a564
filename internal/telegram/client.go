package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// ErrNoFilePath is returned when getFile succeeds but Telegram reports
// no file_path, so the attachment cannot be downloaded.
var ErrNoFilePath = errors.New("telegram returned no file_path for file")

// BotAPI is the slice of the Bot API transport the client depends on.
// Satisfied by *tgbotapi.BotAPI; replaced by a stub in tests.
type BotAPI interface {
	MakeRequest(endpoint string, params tgbotapi.Params) (*tgbotapi.APIResponse, error)
}

// HTTPClient interface for testability
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the Telegram Bot API: file metadata resolution, raw
// file download, update polling and best-effort reactions.
type Client struct {
	api        BotAPI
	httpClient HTTPClient
	token      string
	logger     *zap.Logger
}

// NewClient creates a Client backed by the live Bot API. The download
// client gets a generous timeout since media files can be large.
func NewClient(token string, logger *zap.Logger) (*Client, error) {
	httpClient := &http.Client{Timeout: 5 * time.Minute}
	bot, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, httpClient)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to telegram: %w", err)
	}
	logger.Info("Connected to Telegram", zap.String("bot", bot.Self.UserName))

	return &Client{
		api:        bot,
		httpClient: httpClient,
		token:      token,
		logger:     logger,
	}, nil
}

// NewClientWithAPI creates a Client over an injected transport.
func NewClientWithAPI(api BotAPI, httpClient HTTPClient, token string, logger *zap.Logger) *Client {
	return &Client{api: api, httpClient: httpClient, token: token, logger: logger}
}

// GetFile resolves a file_id to download metadata via getFile. The
// returned File carries a file_path; its absence is ErrNoFilePath.
func (c *Client) GetFile(fileID string) (*File, error) {
	params := tgbotapi.Params{}
	params.AddNonEmpty("file_id", fileID)

	resp, err := c.api.MakeRequest("getFile", params)
	if err != nil {
		return nil, fmt.Errorf("getFile failed: %w", err)
	}

	var file File
	if err := json.Unmarshal(resp.Result, &file); err != nil {
		return nil, fmt.Errorf("failed to decode getFile response: %w", err)
	}
	if file.FilePath == "" {
		return nil, ErrNoFilePath
	}
	return &file, nil
}

// FileURL builds the download URL for a resolved file_path.
func (c *Client) FileURL(filePath string) string {
	return fmt.Sprintf(tgbotapi.FileEndpoint, c.token, filePath)
}

// Download fetches the raw bytes behind a resolved file_path. The whole
// payload is buffered in memory; the caller enforces the size cap on the
// returned length. Returns the response Content-Type alongside the data.
func (c *Client) Download(ctx context.Context, filePath string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.FileURL(filePath), nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create download request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("Telegram file download returned non-2xx status",
			zap.Int("status", resp.StatusCode),
			zap.String("file_path", filePath))
		return nil, "", fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read file body: %w", err)
	}

	c.logger.Debug("Downloaded telegram file",
		zap.String("file_path", filePath),
		zap.Int("size", len(data)))
	return data, resp.Header.Get("Content-Type"), nil
}

// GetUpdates fetches pending updates starting at offset. Used by the
// polling variant only; the webhook variant receives pushes.
func (c *Client) GetUpdates(offset int64, limit int, allowedUpdates []string) ([]Update, error) {
	params := tgbotapi.Params{}
	params.AddNonZero64("offset", offset)
	params.AddNonZero("limit", limit)
	if len(allowedUpdates) > 0 {
		if err := params.AddInterface("allowed_updates", allowedUpdates); err != nil {
			return nil, fmt.Errorf("failed to encode allowed_updates: %w", err)
		}
	}

	resp, err := c.api.MakeRequest("getUpdates", params)
	if err != nil {
		return nil, fmt.Errorf("getUpdates failed: %w", err)
	}

	var updates []Update
	if err := json.Unmarshal(resp.Result, &updates); err != nil {
		return nil, fmt.Errorf("failed to decode getUpdates response: %w", err)
	}
	return updates, nil
}

// SetReaction sets an emoji reaction on a message as a read
// acknowledgment. Best-effort: callers log and drop the error.
func (c *Client) SetReaction(chatID, messageID int64, emoji string) error {
	params := tgbotapi.Params{}
	params.AddNonZero64("chat_id", chatID)
	params.AddNonZero64("message_id", messageID)
	reaction := []map[string]string{{"type": "emoji", "emoji": emoji}}
	if err := params.AddInterface("reaction", reaction); err != nil {
		return fmt.Errorf("failed to encode reaction: %w", err)
	}

	if _, err := c.api.MakeRequest("setMessageReaction", params); err != nil {
		return fmt.Errorf("setMessageReaction failed: %w", err)
	}
	return nil
}
