package attachment

import "github.com/notigram/notigram/internal/telegram"

// Status is the terminal outcome of one attachment's upload pipeline.
type Status string

const (
	StatusUploaded Status = "uploaded"
	StatusSkipped  Status = "skipped"
	StatusFailed   Status = "failed"
)

// UploadState is the durable outcome record for one attachment, written
// into the Notion ledger as audit JSON. Append-only: a retry of the same
// attachment produces a new record, never an edit of an old one.
type UploadState struct {
	FileID       string `json:"file_id"`
	FileUniqueID string `json:"file_unique_id"`
	Type         string `json:"type"`

	// Resolved post-download values; authoritative over the pre-download
	// guesses carried on FileInfo.
	FileName  string `json:"file_name,omitempty"`
	MimeType  string `json:"mime_type,omitempty"`
	SizeBytes int64  `json:"size_bytes,omitempty"`

	Status             Status `json:"status"`
	NotionFileUploadID string `json:"notion_file_upload_id,omitempty"`
	NotionBlockType    string `json:"notion_block_type,omitempty"`
	Reason             string `json:"reason,omitempty"`
}

func newState(info telegram.FileInfo) UploadState {
	return UploadState{
		FileID:       info.FileID,
		FileUniqueID: info.FileUniqueID,
		Type:         info.Type,
		FileName:     info.FileName,
		MimeType:     info.MimeType,
		SizeBytes:    info.FileSize,
	}
}
