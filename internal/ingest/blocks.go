package ingest

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/notigram/notigram/internal/attachment"
	"github.com/notigram/notigram/internal/notion"
	"github.com/notigram/notigram/internal/telegram"
)

// pageTitle derives the page title: the message body trimmed to 100
// runes, or a placeholder naming the attachment kinds when there is no
// text.
func pageTitle(msg *telegram.Message, files []telegram.FileInfo) string {
	if body := strings.TrimSpace(msg.Body()); body != "" {
		runes := []rune(body)
		if len(runes) > 100 {
			return string(runes[:100])
		}
		return body
	}
	if len(files) > 0 {
		kinds := make([]string, 0, len(files))
		for _, f := range files {
			kinds = append(kinds, f.Type)
		}
		return fmt.Sprintf("Telegram %s from %s", strings.Join(kinds, ", "), msg.SenderName())
	}
	return "Telegram message from " + msg.SenderName()
}

// contentText renders the deterministic human-readable summary placed in
// the page's paragraph block.
func contentText(msg *telegram.Message, updateID int64, files []telegram.FileInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\n", msg.SenderName())
	fmt.Fprintf(&b, "Chat type: %s\n", msg.Chat.Type)
	if msg.MessageThreadID != 0 {
		fmt.Fprintf(&b, "Topic: %d\n", msg.MessageThreadID)
	}
	fmt.Fprintf(&b, "Chat ID: %d\n", msg.Chat.ID)
	fmt.Fprintf(&b, "Update ID: %d\n", updateID)
	fmt.Fprintf(&b, "Message ID: %d\n", msg.MessageID)
	if body := msg.Body(); body != "" {
		fmt.Fprintf(&b, "Text: %s\n", body)
	}
	if len(files) > 0 {
		kinds := make([]string, 0, len(files))
		for _, f := range files {
			kinds = append(kinds, f.Type)
		}
		fmt.Fprintf(&b, "Attachments: %s", strings.Join(kinds, ", "))
	}
	return strings.TrimRight(b.String(), "\n")
}

// auditRecord is the machine-readable snapshot of the update written as
// a JSON code block at page creation time.
type auditRecord struct {
	UpdateID     int64               `json:"update_id"`
	Chat         telegram.Chat       `json:"chat"`
	MessageID    int64               `json:"message_id"`
	TopicID      int64               `json:"topic_id,omitempty"`
	Sender       string              `json:"sender"`
	Text         string              `json:"text,omitempty"`
	Attachments  []telegram.FileInfo `json:"attachments"`
	UploadConfig uploadConfig        `json:"upload_config"`
}

type uploadConfig struct {
	MaxUploadBytes int64 `json:"max_upload_bytes"`
}

func auditBlock(msg *telegram.Message, updateID int64, files []telegram.FileInfo, maxBytes int64) notion.Block {
	record := auditRecord{
		UpdateID:     updateID,
		Chat:         msg.Chat,
		MessageID:    msg.MessageID,
		TopicID:      msg.MessageThreadID,
		Sender:       msg.SenderName(),
		Text:         msg.Body(),
		Attachments:  files,
		UploadConfig: uploadConfig{MaxUploadBytes: maxBytes},
	}
	if record.Attachments == nil {
		record.Attachments = []telegram.FileInfo{}
	}
	payload, _ := json.MarshalIndent(record, "", "  ")
	return notion.CodeBlock(string(payload), "json")
}

// ledgerRecord wraps the upload-state list with the sync timestamp.
type ledgerRecord struct {
	SyncedAt     string                   `json:"synced_at"`
	UploadStates []attachment.UploadState `json:"upload_states"`
}

func ledgerBlock(states []attachment.UploadState, now time.Time) notion.Block {
	payload, _ := json.MarshalIndent(ledgerRecord{
		SyncedAt:     now.UTC().Format(time.RFC3339),
		UploadStates: states,
	}, "", "  ")
	return notion.CodeBlock(string(payload), "json")
}
