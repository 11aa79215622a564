package attachment

import (
	"mime"
	"path"
	"regexp"
	"strings"

	"github.com/notigram/notigram/internal/telegram"
)

// BlockType is the Notion block category an attachment is rendered as.
type BlockType string

const (
	BlockImage BlockType = "image"
	BlockVideo BlockType = "video"
	BlockAudio BlockType = "audio"
	BlockPDF   BlockType = "pdf"
	BlockFile  BlockType = "file"
)

const (
	defaultMimeType = "application/octet-stream"
	maxFilenameLen  = 180
	fallbackName    = "file"
)

var (
	unsafeRuns     = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
	underscoreRuns = regexp.MustCompile(`_+`)
)

// Telegram attachment kinds carry an implied content type when all
// declared metadata is missing.
var typeDefaultMime = map[string]string{
	telegram.TypePhoto:     "image/jpeg",
	telegram.TypeVideo:     "video/mp4",
	telegram.TypeVideoNote: "video/mp4",
	telegram.TypeAnimation: "video/mp4",
	telegram.TypeAudio:     "audio/ogg",
	telegram.TypeVoice:     "audio/ogg",
	telegram.TypeSticker:   "image/webp",
}

// Preferred extensions for the content types the bridge commonly sees.
// mime.ExtensionsByType covers the long tail but picks oddities like
// ".jpe" for image/jpeg.
var mimeExtensions = map[string]string{
	"image/jpeg":      "jpg",
	"image/png":       "png",
	"image/gif":       "gif",
	"image/webp":      "webp",
	"video/mp4":       "mp4",
	"video/quicktime": "mov",
	"audio/ogg":       "ogg",
	"audio/mpeg":      "mp3",
	"application/pdf": "pdf",
	"text/plain":      "txt",
}

// Inferred is the resolved (mimeType, filename, blockType) triple for an
// attachment. Inference never fails; every field is always usable.
type Inferred struct {
	MimeType string
	FileName string
	Block    BlockType
}

// Infer derives a concrete content type, filename and Notion block
// category from the partial metadata Telegram provides, the downloaded
// response's Content-Type header, and the remote file path.
func Infer(info telegram.FileInfo, responseContentType, remotePath string) Inferred {
	mimeType := inferMime(info, responseContentType, remotePath)
	fileName := inferFileName(info, remotePath, mimeType)
	return Inferred{
		MimeType: mimeType,
		FileName: fileName,
		Block:    classifyBlock(mimeType, fileName, info.Type),
	}
}

func inferMime(info telegram.FileInfo, responseContentType, remotePath string) string {
	if info.MimeType != "" {
		return normalizeMime(info.MimeType)
	}
	if responseContentType != "" {
		if m := normalizeMime(responseContentType); m != "" {
			return m
		}
	}
	if info.FileName != "" {
		if m := mimeFromExtension(info.FileName); m != "" {
			return m
		}
	}
	if remotePath != "" {
		if m := mimeFromExtension(remotePath); m != "" {
			return m
		}
	}
	if m, ok := typeDefaultMime[info.Type]; ok {
		return m
	}
	return defaultMimeType
}

// normalizeMime strips parameters ("; charset=...") and lower-cases.
func normalizeMime(raw string) string {
	m, _, _ := strings.Cut(raw, ";")
	return strings.ToLower(strings.TrimSpace(m))
}

func mimeFromExtension(name string) string {
	ext := path.Ext(name)
	if ext == "" {
		return ""
	}
	return normalizeMime(mime.TypeByExtension(ext))
}

func inferFileName(info telegram.FileInfo, remotePath, mimeType string) string {
	if info.FileName != "" {
		if name := sanitizeFileName(info.FileName); name != "" {
			return name
		}
	}
	if remotePath != "" {
		if base := path.Base(remotePath); base != "." && base != "/" {
			if name := sanitizeFileName(base); name != "" {
				return name
			}
		}
	}
	return info.Type + "_" + info.FileUniqueID + "." + extensionForMime(mimeType)
}

func extensionForMime(mimeType string) string {
	if ext, ok := mimeExtensions[mimeType]; ok {
		return ext
	}
	if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
		return strings.TrimPrefix(exts[0], ".")
	}
	return "bin"
}

// SanitizeFileName makes a filename safe for upload metadata: runs of
// characters outside [A-Za-z0-9._-] become a single underscore, repeated
// underscores collapse, and the result is bluntly truncated to 180
// characters (head preserved, extension not). An input with no usable
// characters yields the literal "file".
func SanitizeFileName(name string) string {
	if s := sanitizeFileName(name); s != "" {
		return s
	}
	return fallbackName
}

// sanitizeFileName returns "" when sanitization leaves nothing usable,
// letting callers distinguish "nothing survived" from a file genuinely
// named like the fallback literal.
func sanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	name = unsafeRuns.ReplaceAllString(name, "_")
	name = underscoreRuns.ReplaceAllString(name, "_")
	if name == "_" {
		return ""
	}
	if len(name) > maxFilenameLen {
		name = name[:maxFilenameLen]
	}
	return name
}

func classifyBlock(mimeType, fileName, telegramType string) BlockType {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return BlockImage
	case strings.HasPrefix(mimeType, "video/"):
		return BlockVideo
	case strings.HasPrefix(mimeType, "audio/"):
		return BlockAudio
	case mimeType == "application/pdf" || strings.HasSuffix(strings.ToLower(fileName), ".pdf"):
		return BlockPDF
	}
	switch telegramType {
	case telegram.TypePhoto:
		return BlockImage
	case telegram.TypeVideo, telegram.TypeVideoNote:
		return BlockVideo
	case telegram.TypeAudio, telegram.TypeVoice:
		return BlockAudio
	}
	return BlockFile
}
