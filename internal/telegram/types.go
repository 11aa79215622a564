package telegram

// Wire types for the subset of the Telegram Bot API consumed by the
// bridge. Hand-rolled rather than taken from a bot framework: the update
// model needs fields (message_thread_id, forum topics) that predate most
// published Go bindings, and only a handful of objects are read.

// Update is one entry of a webhook delivery or a getUpdates batch.
type Update struct {
	UpdateID      *int64   `json:"update_id"`
	Message       *Message `json:"message,omitempty"`
	EditedMessage *Message `json:"edited_message,omitempty"`
	ChannelPost   *Message `json:"channel_post,omitempty"`
}

// ExtractMessage returns the message payload carried by the update, in
// the precedence order message, channel_post, edited_message. Nil when
// the update carries none of them.
func (u *Update) ExtractMessage() *Message {
	switch {
	case u.Message != nil:
		return u.Message
	case u.ChannelPost != nil:
		return u.ChannelPost
	case u.EditedMessage != nil:
		return u.EditedMessage
	}
	return nil
}

// Message is a Telegram message in any chat type.
type Message struct {
	MessageID       int64       `json:"message_id"`
	MessageThreadID int64       `json:"message_thread_id,omitempty"`
	From            *User       `json:"from,omitempty"`
	SenderChat      *Chat       `json:"sender_chat,omitempty"`
	Chat            Chat        `json:"chat"`
	Date            int64       `json:"date"`
	Text            string      `json:"text,omitempty"`
	Caption         string      `json:"caption,omitempty"`
	Document        *Document   `json:"document,omitempty"`
	Photo           []PhotoSize `json:"photo,omitempty"`
	Video           *Video      `json:"video,omitempty"`
	Audio           *Audio      `json:"audio,omitempty"`
	Voice           *Voice      `json:"voice,omitempty"`
	VideoNote       *VideoNote  `json:"video_note,omitempty"`
	Animation       *Animation  `json:"animation,omitempty"`
	Sticker         *Sticker    `json:"sticker,omitempty"`
}

// Body returns the human-readable text of the message, preferring the
// text over a media caption.
func (m *Message) Body() string {
	if m.Text != "" {
		return m.Text
	}
	return m.Caption
}

// SenderName returns a display name for the message origin.
func (m *Message) SenderName() string {
	if m.From != nil {
		name := m.From.FirstName
		if m.From.LastName != "" {
			name += " " + m.From.LastName
		}
		if m.From.Username != "" {
			name += " (@" + m.From.Username + ")"
		}
		return name
	}
	if m.SenderChat != nil && m.SenderChat.Title != "" {
		return m.SenderChat.Title
	}
	if m.Chat.Title != "" {
		return m.Chat.Title
	}
	return "unknown"
}

// User is a Telegram account.
type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
}

// Chat is a private, group, supergroup or channel chat.
type Chat struct {
	ID    int64  `json:"id"`
	Type  string `json:"type"`
	Title string `json:"title,omitempty"`
}

// Document is a general file attachment.
type Document struct {
	FileID       string `json:"file_id"`
	FileUniqueID string `json:"file_unique_id"`
	FileName     string `json:"file_name,omitempty"`
	MimeType     string `json:"mime_type,omitempty"`
	FileSize     int64  `json:"file_size,omitempty"`
}

// PhotoSize is one resolution variant of a photo.
type PhotoSize struct {
	FileID       string `json:"file_id"`
	FileUniqueID string `json:"file_unique_id"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	FileSize     int64  `json:"file_size,omitempty"`
}

// Video is a video attachment.
type Video struct {
	FileID       string `json:"file_id"`
	FileUniqueID string `json:"file_unique_id"`
	FileName     string `json:"file_name,omitempty"`
	MimeType     string `json:"mime_type,omitempty"`
	FileSize     int64  `json:"file_size,omitempty"`
}

// Audio is a music file attachment.
type Audio struct {
	FileID       string `json:"file_id"`
	FileUniqueID string `json:"file_unique_id"`
	FileName     string `json:"file_name,omitempty"`
	MimeType     string `json:"mime_type,omitempty"`
	FileSize     int64  `json:"file_size,omitempty"`
}

// Voice is a voice note.
type Voice struct {
	FileID       string `json:"file_id"`
	FileUniqueID string `json:"file_unique_id"`
	MimeType     string `json:"mime_type,omitempty"`
	FileSize     int64  `json:"file_size,omitempty"`
}

// VideoNote is a round video message.
type VideoNote struct {
	FileID       string `json:"file_id"`
	FileUniqueID string `json:"file_unique_id"`
	FileSize     int64  `json:"file_size,omitempty"`
}

// Animation is a GIF or soundless H.264 clip.
type Animation struct {
	FileID       string `json:"file_id"`
	FileUniqueID string `json:"file_unique_id"`
	FileName     string `json:"file_name,omitempty"`
	MimeType     string `json:"mime_type,omitempty"`
	FileSize     int64  `json:"file_size,omitempty"`
}

// Sticker is a sticker attachment.
type Sticker struct {
	FileID       string `json:"file_id"`
	FileUniqueID string `json:"file_unique_id"`
	FileSize     int64  `json:"file_size,omitempty"`
}

// File is the getFile response: the handle needed to download bytes.
type File struct {
	FileID       string `json:"file_id"`
	FileUniqueID string `json:"file_unique_id"`
	FileSize     int64  `json:"file_size,omitempty"`
	FilePath     string `json:"file_path,omitempty"`
}

// FileInfo describes one attachment of a message prior to download.
// Immutable after extraction; the post-download authoritative values live
// on the upload state record instead.
type FileInfo struct {
	FileID       string `json:"file_id"`
	FileUniqueID string `json:"file_unique_id"`
	FileSize     int64  `json:"file_size,omitempty"`
	FileName     string `json:"file_name,omitempty"`
	MimeType     string `json:"mime_type,omitempty"`
	Type         string `json:"type"`
}

// Attachment kind names as they appear in ledger records and captions.
const (
	TypeDocument  = "document"
	TypePhoto     = "photo"
	TypeVideo     = "video"
	TypeAudio     = "audio"
	TypeVoice     = "voice"
	TypeVideoNote = "video_note"
	TypeAnimation = "animation"
	TypeSticker   = "sticker"
)

// ExtractFiles collects at most one FileInfo per attachment kind from
// the message, in a fixed kind order. For photos only the largest
// resolution variant is kept. Telegram mirrors animations as documents;
// when both are present the document entry is dropped.
func ExtractFiles(m *Message) []FileInfo {
	if m == nil {
		return nil
	}

	var files []FileInfo

	if m.Document != nil && m.Animation == nil {
		files = append(files, FileInfo{
			FileID:       m.Document.FileID,
			FileUniqueID: m.Document.FileUniqueID,
			FileSize:     m.Document.FileSize,
			FileName:     m.Document.FileName,
			MimeType:     m.Document.MimeType,
			Type:         TypeDocument,
		})
	}
	if len(m.Photo) > 0 {
		best := m.Photo[0]
		for _, p := range m.Photo[1:] {
			if p.Width*p.Height > best.Width*best.Height {
				best = p
			}
		}
		files = append(files, FileInfo{
			FileID:       best.FileID,
			FileUniqueID: best.FileUniqueID,
			FileSize:     best.FileSize,
			Type:         TypePhoto,
		})
	}
	if m.Video != nil {
		files = append(files, FileInfo{
			FileID:       m.Video.FileID,
			FileUniqueID: m.Video.FileUniqueID,
			FileSize:     m.Video.FileSize,
			FileName:     m.Video.FileName,
			MimeType:     m.Video.MimeType,
			Type:         TypeVideo,
		})
	}
	if m.Audio != nil {
		files = append(files, FileInfo{
			FileID:       m.Audio.FileID,
			FileUniqueID: m.Audio.FileUniqueID,
			FileSize:     m.Audio.FileSize,
			FileName:     m.Audio.FileName,
			MimeType:     m.Audio.MimeType,
			Type:         TypeAudio,
		})
	}
	if m.Voice != nil {
		files = append(files, FileInfo{
			FileID:       m.Voice.FileID,
			FileUniqueID: m.Voice.FileUniqueID,
			FileSize:     m.Voice.FileSize,
			MimeType:     m.Voice.MimeType,
			Type:         TypeVoice,
		})
	}
	if m.VideoNote != nil {
		files = append(files, FileInfo{
			FileID:       m.VideoNote.FileID,
			FileUniqueID: m.VideoNote.FileUniqueID,
			FileSize:     m.VideoNote.FileSize,
			Type:         TypeVideoNote,
		})
	}
	if m.Animation != nil {
		files = append(files, FileInfo{
			FileID:       m.Animation.FileID,
			FileUniqueID: m.Animation.FileUniqueID,
			FileSize:     m.Animation.FileSize,
			FileName:     m.Animation.FileName,
			MimeType:     m.Animation.MimeType,
			Type:         TypeAnimation,
		})
	}
	if m.Sticker != nil {
		files = append(files, FileInfo{
			FileID:       m.Sticker.FileID,
			FileUniqueID: m.Sticker.FileUniqueID,
			FileSize:     m.Sticker.FileSize,
			Type:         TypeSticker,
		})
	}

	return files
}
