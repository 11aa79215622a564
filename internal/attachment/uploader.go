package attachment

import (
	"context"
	"fmt"

	"github.com/notigram/notigram/internal/notion"
	"github.com/notigram/notigram/internal/telegram"
	"go.uber.org/zap"
)

// FileFetcher resolves and downloads Telegram attachments.
// Satisfied by *telegram.Client.
type FileFetcher interface {
	GetFile(fileID string) (*telegram.File, error)
	Download(ctx context.Context, filePath string) ([]byte, string, error)
}

// FileUploader moves a byte buffer into a Notion-addressable file
// handle. Satisfied by *notion.Client.
type FileUploader interface {
	UploadFile(ctx context.Context, data []byte, fileName, contentType string) (string, error)
}

// Result pairs the ledger record for one attachment with the content
// block to append when the upload succeeded. Block is nil otherwise.
type Result struct {
	State UploadState
	Block notion.Block
}

// Uploader runs the per-attachment pipeline: fetch, infer, size-check,
// upload, build block. Each attachment resolves to a tagged UploadState;
// no failure crosses the per-file boundary, so one bad file cannot abort
// its siblings or the surrounding page creation.
type Uploader struct {
	fetcher  FileFetcher
	uploader FileUploader
	maxBytes int64
	logger   *zap.Logger
}

// NewUploader creates an attachment uploader with the given size cap.
func NewUploader(fetcher FileFetcher, uploader FileUploader, maxBytes int64, logger *zap.Logger) *Uploader {
	return &Uploader{
		fetcher:  fetcher,
		uploader: uploader,
		maxBytes: maxBytes,
		logger:   logger,
	}
}

// ProcessAll handles every attachment strictly sequentially, in message
// order. The returned slice always has exactly one Result per input.
func (u *Uploader) ProcessAll(ctx context.Context, files []telegram.FileInfo) []Result {
	results := make([]Result, 0, len(files))
	for _, f := range files {
		results = append(results, u.Process(ctx, f))
	}
	return results
}

// Process runs the pipeline for a single attachment.
func (u *Uploader) Process(ctx context.Context, info telegram.FileInfo) Result {
	state := newState(info)

	file, err := u.fetcher.GetFile(info.FileID)
	if err != nil {
		state.Status = StatusFailed
		state.Reason = fmt.Sprintf("failed to resolve download metadata: %v", err)
		u.logger.Warn("Attachment metadata resolution failed",
			zap.String("file_unique_id", info.FileUniqueID),
			zap.Error(err))
		return Result{State: state}
	}

	data, contentType, err := u.fetcher.Download(ctx, file.FilePath)
	if err != nil {
		state.Status = StatusFailed
		state.Reason = fmt.Sprintf("failed to download file: %v", err)
		u.logger.Warn("Attachment download failed",
			zap.String("file_unique_id", info.FileUniqueID),
			zap.Error(err))
		return Result{State: state}
	}

	// The downloaded response is authoritative over pre-download guesses.
	inferred := Infer(info, contentType, file.FilePath)
	state.FileName = inferred.FileName
	state.MimeType = inferred.MimeType
	state.SizeBytes = int64(len(data))

	if state.SizeBytes > u.maxBytes {
		state.Status = StatusSkipped
		state.Reason = fmt.Sprintf("file size %d bytes exceeds configured maximum of %d bytes", state.SizeBytes, u.maxBytes)
		u.logger.Info("Attachment skipped, exceeds size cap",
			zap.String("file_unique_id", info.FileUniqueID),
			zap.Int64("size", state.SizeBytes),
			zap.Int64("max", u.maxBytes))
		return Result{State: state}
	}

	uploadID, err := u.uploader.UploadFile(ctx, data, inferred.FileName, inferred.MimeType)
	if err != nil {
		state.Status = StatusFailed
		state.Reason = err.Error()
		u.logger.Warn("Attachment upload failed",
			zap.String("file_unique_id", info.FileUniqueID),
			zap.Error(err))
		return Result{State: state}
	}

	state.Status = StatusUploaded
	state.NotionFileUploadID = uploadID
	state.NotionBlockType = string(inferred.Block)

	caption := fmt.Sprintf("%s (%s, %d bytes)", inferred.FileName, info.Type, state.SizeBytes)
	block := notion.FileBlock(string(inferred.Block), uploadID, caption)

	u.logger.Info("Attachment uploaded",
		zap.String("file_unique_id", info.FileUniqueID),
		zap.String("upload_id", uploadID),
		zap.String("block_type", state.NotionBlockType),
		zap.Int64("size", state.SizeBytes))
	return Result{State: state, Block: block}
}
