package notion

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// appendBatchSize is the Notion API's per-request block limit.
const appendBatchSize = 100

// NumberEquals builds a query filter matching a number property exactly.
func NumberEquals(prop string, value int64) map[string]any {
	return map[string]any{
		"property": prop,
		"number":   map[string]any{"equals": value},
	}
}

// And combines query filters conjunctively.
func And(filters ...map[string]any) map[string]any {
	return map[string]any{"and": filters}
}

// TitleProperty builds a title property value.
func TitleProperty(text string) map[string]any {
	return map[string]any{"title": richText(text)}
}

// NumberProperty builds a number property value.
func NumberProperty(value int64) map[string]any {
	return map[string]any{"number": value}
}

// StatusProperty builds a status property value by option name.
func StatusProperty(option string) map[string]any {
	return map[string]any{"status": map[string]any{"name": option}}
}

// QueryPageID runs a data source query and returns the id of the first
// matching page, or "" when none matches.
func (c *Client) QueryPageID(ctx context.Context, dataSourceID string, filter map[string]any) (string, error) {
	body := map[string]any{
		"filter":    filter,
		"page_size": 1,
	}
	raw, err := c.doJSON(ctx, http.MethodPost, "/v1/data_sources/"+dataSourceID+"/query", body)
	if err != nil {
		return "", fmt.Errorf("failed to query data source: %w", err)
	}

	var result struct {
		Results []struct {
			ID string `json:"id"`
		} `json:"results"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", fmt.Errorf("failed to decode query response: %w", err)
	}
	if len(result.Results) == 0 {
		return "", nil
	}
	return result.Results[0].ID, nil
}

// CreatePage creates a database row with the given property values and
// initial children blocks.
func (c *Client) CreatePage(ctx context.Context, dataSourceID string, properties map[string]any, children []Block) (string, error) {
	body := map[string]any{
		"parent": map[string]any{
			"type":           "data_source_id",
			"data_source_id": dataSourceID,
		},
		"properties": properties,
	}
	if len(children) > 0 {
		body["children"] = children
	}

	raw, err := c.doJSON(ctx, http.MethodPost, "/v1/pages", body)
	if err != nil {
		return "", fmt.Errorf("failed to create page: %w", err)
	}

	var page struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &page); err != nil {
		return "", fmt.Errorf("failed to decode page response: %w", err)
	}

	c.logger.Info("Created Notion page", zap.String("page_id", page.ID))
	return page.ID, nil
}

// AppendBlocks appends children to a block (or page), batching at the
// API's 100-block-per-request limit.
func (c *Client) AppendBlocks(ctx context.Context, blockID string, blocks []Block) error {
	for start := 0; start < len(blocks); start += appendBatchSize {
		end := start + appendBatchSize
		if end > len(blocks) {
			end = len(blocks)
		}
		body := map[string]any{"children": blocks[start:end]}
		if _, err := c.doJSON(ctx, http.MethodPatch, "/v1/blocks/"+blockID+"/children", body); err != nil {
			return fmt.Errorf("failed to append blocks: %w", err)
		}
	}
	return nil
}
