package notion

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const dataSourceResponse = `{
	"object": "data_source",
	"id": "ds_1",
	"properties": {
		"title": {"id": "title", "name": "Name", "type": "title"},
		"chat": {"id": "c1", "name": "chat_id", "type": "number"},
		"msg": {"id": "m1", "name": "Message-ID", "type": "number"},
		"upd": {"id": "u1", "name": "Update ID", "type": "number"},
		"topic": {"id": "t1", "name": "Topic ID", "type": "rich_text"},
		"status": {"id": "s1", "name": "Status", "type": "status", "status": {
			"options": [
				{"id": "o1", "name": "Not started"},
				{"id": "o2", "name": "In progress"},
				{"id": "o3", "name": "Done"}
			],
			"groups": [
				{"id": "g1", "name": "To-do", "option_ids": ["o1"]}
			]
		}}
	}
}`

func schemaServer(t *testing.T, dataSource string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/databases/db_1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "2025-09-03", r.Header.Get("Notion-Version"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Write([]byte(`{"object":"database","id":"db_1","data_sources":[{"id":"ds_1","name":"Inbox"}]}`))
	})
	mux.HandleFunc("/v1/data_sources/ds_1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.Write([]byte(dataSource))
	})
	return httptest.NewServer(mux)
}

func TestResolveSchema(t *testing.T) {
	ts := schemaServer(t, dataSourceResponse)
	defer ts.Close()

	c := NewClientWithHTTP(ts.Client(), ts.URL, "secret", "2025-09-03", zap.NewNop())

	schema, err := c.ResolveSchema(context.Background(), "db_1")
	require.NoError(t, err)

	assert.Equal(t, "ds_1", schema.DataSourceID)
	assert.Equal(t, "Name", schema.TitleProp)
	// Case- and punctuation-insensitive matching.
	assert.Equal(t, "chat_id", schema.ChatIDProp)
	assert.Equal(t, "Message-ID", schema.MessageIDProp)
	assert.Equal(t, "Update ID", schema.UpdateIDProp)
	// "Topic ID" exists but is rich_text, not number: ignored.
	assert.Empty(t, schema.TopicIDProp)
	assert.Equal(t, "Status", schema.StatusProp)
	assert.Equal(t, "Not started", schema.StatusNotStarted)
}

func TestResolveSchemaEmptyProperties(t *testing.T) {
	ts := schemaServer(t, `{"object":"data_source","id":"ds_1","properties":{}}`)
	defer ts.Close()

	c := NewClientWithHTTP(ts.Client(), ts.URL, "secret", "2025-09-03", zap.NewNop())

	_, err := c.ResolveSchema(context.Background(), "db_1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSchemaUnavailable)
	assert.Equal(t, "schema_unavailable", ClassifyFailure(err))
}

func TestResolveSchemaNoDataSources(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"object":"database","id":"db_1","data_sources":[]}`))
	}))
	defer ts.Close()

	c := NewClientWithHTTP(ts.Client(), ts.URL, "secret", "2025-09-03", zap.NewNop())

	_, err := c.ResolveSchema(context.Background(), "db_1")
	assert.ErrorIs(t, err, ErrSchemaUnavailable)
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "chatid", normalizeName("Chat ID"))
	assert.Equal(t, "chatid", normalizeName("chat_id"))
	assert.Equal(t, "chatid", normalizeName("Chat-Id"))
	assert.Equal(t, "updateid", normalizeName("UPDATE id!"))
}

func TestNotStartedOptionUnmatchedNames(t *testing.T) {
	// Option names outside "Not started"/"To do" are not picked up by
	// name, and without a to-do group nothing is selected.
	ts := schemaServer(t, `{
		"object": "data_source", "id": "ds_1",
		"properties": {
			"title": {"id": "title", "name": "Name", "type": "title"},
			"status": {"id": "s1", "name": "Status", "type": "status", "status": {
				"options": [
					{"id": "o1", "name": "New"},
					{"id": "o2", "name": "Doing"}
				],
				"groups": [
					{"id": "g1", "name": "In progress", "option_ids": ["o1", "o2"]}
				]
			}}
		}
	}`)
	defer ts.Close()

	c := NewClientWithHTTP(ts.Client(), ts.URL, "secret", "2025-09-03", zap.NewNop())

	schema, err := c.ResolveSchema(context.Background(), "db_1")
	require.NoError(t, err)
	assert.Equal(t, "Status", schema.StatusProp)
	assert.Empty(t, schema.StatusNotStarted)
}

func TestNotStartedOptionFromGroup(t *testing.T) {
	ts := schemaServer(t, `{
		"object": "data_source", "id": "ds_1",
		"properties": {
			"title": {"id": "title", "name": "Name", "type": "title"},
			"status": {"id": "s1", "name": "Status", "type": "status", "status": {
				"options": [
					{"id": "o1", "name": "Backlog"},
					{"id": "o2", "name": "Shipped"}
				],
				"groups": [
					{"id": "g1", "name": "To-do", "option_ids": ["o1"]},
					{"id": "g2", "name": "Complete", "option_ids": ["o2"]}
				]
			}}
		}
	}`)
	defer ts.Close()

	c := NewClientWithHTTP(ts.Client(), ts.URL, "secret", "2025-09-03", zap.NewNop())

	schema, err := c.ResolveSchema(context.Background(), "db_1")
	require.NoError(t, err)
	assert.Equal(t, "Backlog", schema.StatusNotStarted)
}
