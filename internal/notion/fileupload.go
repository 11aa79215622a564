package notion

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"
)

// PartSize is Notion's fixed single-part limit (20 MiB). Files above it
// must go through a multi-part upload session. Not configurable.
const PartSize = 20 * 1024 * 1024

// NumberOfParts returns how many send calls a payload of the given size
// needs. Never less than one; empty files still issue a single send.
func NumberOfParts(size int) int {
	n := (size + PartSize - 1) / PartSize
	if n < 1 {
		return 1
	}
	return n
}

// UploadFile moves a byte buffer into a Notion-addressable file handle
// and returns the file upload id. Single-part sessions are implicitly
// complete after the one send; multi-part sessions declare their part
// count up front, send 20 MiB-aligned slices sequentially with 1-based
// part numbers, and finish with an explicit complete call. A session
// that fails mid-stream is abandoned, never resumed.
func (c *Client) UploadFile(ctx context.Context, data []byte, fileName, contentType string) (string, error) {
	parts := NumberOfParts(len(data))

	createBody := map[string]any{
		"filename":     fileName,
		"content_type": contentType,
	}
	if parts == 1 {
		createBody["mode"] = "single_part"
	} else {
		createBody["mode"] = "multi_part"
		createBody["number_of_parts"] = parts
	}

	raw, err := c.doJSON(ctx, http.MethodPost, "/v1/file_uploads", createBody)
	if err != nil {
		return "", fmt.Errorf("failed to create file upload: %w", err)
	}
	var upload struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &upload); err != nil {
		return "", fmt.Errorf("failed to decode file upload response: %w", err)
	}

	c.logger.Debug("Created file upload session",
		zap.String("upload_id", upload.ID),
		zap.String("filename", fileName),
		zap.Int("parts", parts))

	sendPath := "/v1/file_uploads/" + upload.ID + "/send"
	for i := 0; i < parts; i++ {
		start := i * PartSize
		end := start + PartSize
		if end > len(data) {
			end = len(data)
		}

		fields := map[string]string{}
		if parts > 1 {
			fields["part_number"] = strconv.Itoa(i + 1)
		}
		if _, err := c.doMultipart(ctx, sendPath, fields, fileName, contentType, data[start:end]); err != nil {
			return "", fmt.Errorf("failed to send part %d of %d: %w", i+1, parts, err)
		}
	}

	if parts > 1 {
		completePath := "/v1/file_uploads/" + upload.ID + "/complete"
		if _, err := c.doJSON(ctx, http.MethodPost, completePath, struct{}{}); err != nil {
			return "", fmt.Errorf("failed to complete file upload: %w", err)
		}
	}

	c.logger.Info("File upload finished",
		zap.String("upload_id", upload.ID),
		zap.String("filename", fileName),
		zap.Int("size", len(data)),
		zap.Int("parts", parts))
	return upload.ID, nil
}
