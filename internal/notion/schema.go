package notion

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Schema is the resolved property-name configuration for one target
// database, computed once per ingestion and threaded explicitly through
// dedupe and page creation. Empty fields mean the database exposes no
// matching property; that property is simply omitted from created pages.
type Schema struct {
	DataSourceID string

	TitleProp     string
	ChatIDProp    string
	TopicIDProp   string
	MessageIDProp string
	UpdateIDProp  string
	StatusProp    string

	// StatusNotStarted is the name of the "not started"-like option of
	// the status property, when one exists.
	StatusNotStarted string
}

// Candidate property names, matched case- and punctuation-insensitively
// against the live schema. Only title, number and status typed
// properties are considered.
var (
	titleCandidates     = []string{"Name", "Title", "Task", "Message"}
	chatIDCandidates    = []string{"Chat ID", "ChatID", "Telegram Chat ID", "Chat"}
	topicIDCandidates   = []string{"Topic ID", "Thread ID", "Message Thread ID", "Topic"}
	messageIDCandidates = []string{"Message ID", "MessageID", "Telegram Message ID"}
	updateIDCandidates  = []string{"Update ID", "UpdateID", "Telegram Update ID"}
	statusCandidates    = []string{"Status", "State"}
)

type property struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	Status *struct {
		Options []statusOption `json:"options"`
		Groups  []statusGroup  `json:"groups"`
	} `json:"status,omitempty"`
}

type statusOption struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type statusGroup struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	OptionIDs []string `json:"option_ids"`
}

// ResolveSchema fetches the live property map of the target database and
// matches the bridge's optional properties against it. Since API version
// 2025-09-03 properties live on a data source object reached through the
// database, not on the database resource itself.
func (c *Client) ResolveSchema(ctx context.Context, databaseID string) (*Schema, error) {
	raw, err := c.doJSON(ctx, http.MethodGet, "/v1/databases/"+databaseID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve database: %w", err)
	}

	var database struct {
		DataSources []struct {
			ID string `json:"id"`
		} `json:"data_sources"`
	}
	if err := json.Unmarshal(raw, &database); err != nil {
		return nil, fmt.Errorf("failed to decode database response: %w", err)
	}
	if len(database.DataSources) == 0 {
		return nil, fmt.Errorf("database %s has no data sources: %w", databaseID, ErrSchemaUnavailable)
	}
	dataSourceID := database.DataSources[0].ID

	raw, err = c.doJSON(ctx, http.MethodGet, "/v1/data_sources/"+dataSourceID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve data source: %w", err)
	}

	var dataSource struct {
		Properties map[string]property `json:"properties"`
	}
	if err := json.Unmarshal(raw, &dataSource); err != nil {
		return nil, fmt.Errorf("failed to decode data source response: %w", err)
	}
	if len(dataSource.Properties) == 0 {
		return nil, fmt.Errorf("data source %s has empty property map: %w", dataSourceID, ErrSchemaUnavailable)
	}

	schema := &Schema{
		DataSourceID:  dataSourceID,
		TitleProp:     matchProperty(dataSource.Properties, "title", titleCandidates),
		ChatIDProp:    matchProperty(dataSource.Properties, "number", chatIDCandidates),
		TopicIDProp:   matchProperty(dataSource.Properties, "number", topicIDCandidates),
		MessageIDProp: matchProperty(dataSource.Properties, "number", messageIDCandidates),
		UpdateIDProp:  matchProperty(dataSource.Properties, "number", updateIDCandidates),
		StatusProp:    matchProperty(dataSource.Properties, "status", statusCandidates),
	}
	if schema.StatusProp != "" {
		schema.StatusNotStarted = notStartedOption(dataSource.Properties[keyOf(dataSource.Properties, schema.StatusProp)])
	}

	c.logger.Debug("Resolved database schema",
		zap.String("data_source_id", dataSourceID),
		zap.String("title", schema.TitleProp),
		zap.String("chat_id", schema.ChatIDProp),
		zap.String("message_id", schema.MessageIDProp),
		zap.String("update_id", schema.UpdateIDProp),
		zap.String("status", schema.StatusProp))
	return schema, nil
}

// matchProperty returns the live property name matching the first
// candidate of the required type, or "" when none matches.
func matchProperty(props map[string]property, propType string, candidates []string) string {
	for _, candidate := range candidates {
		want := normalizeName(candidate)
		for _, p := range props {
			if p.Type == propType && normalizeName(p.Name) == want {
				return p.Name
			}
		}
	}
	return ""
}

// keyOf finds the map key of a property by its display name.
func keyOf(props map[string]property, name string) string {
	for k, p := range props {
		if p.Name == name {
			return k
		}
	}
	return ""
}

// notStartedOption picks the status option used for freshly created
// pages: an option named like "Not started" or "To do", else the first
// option of the "To-do" group, else nothing.
func notStartedOption(p property) string {
	if p.Status == nil {
		return ""
	}
	for _, opt := range p.Status.Options {
		switch normalizeName(opt.Name) {
		case "notstarted", "todo":
			return opt.Name
		}
	}
	for _, g := range p.Status.Groups {
		if normalizeName(g.Name) != "todo" || len(g.OptionIDs) == 0 {
			continue
		}
		for _, opt := range p.Status.Options {
			if opt.ID == g.OptionIDs[0] {
				return opt.Name
			}
		}
	}
	return ""
}

// normalizeName lowers and strips everything outside [a-z0-9] so that
// "Chat ID", "chat_id" and "Chat-Id" all compare equal.
func normalizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
