package telegram

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractMessagePrecedence(t *testing.T) {
	msg := &Message{MessageID: 1}
	post := &Message{MessageID: 2}
	edited := &Message{MessageID: 3}

	tests := []struct {
		name     string
		upd      Update
		expected *Message
	}{
		{"message first", Update{Message: msg, ChannelPost: post, EditedMessage: edited}, msg},
		{"channel post second", Update{ChannelPost: post, EditedMessage: edited}, post},
		{"edited message last", Update{EditedMessage: edited}, edited},
		{"nothing extractable", Update{}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.upd.ExtractMessage())
		})
	}
}

func TestExtractFilesLargestPhotoOnly(t *testing.T) {
	msg := &Message{
		Photo: []PhotoSize{
			{FileID: "small", FileUniqueID: "us", Width: 90, Height: 60, FileSize: 1000},
			{FileID: "large", FileUniqueID: "ul", Width: 1280, Height: 853, FileSize: 90000},
			{FileID: "medium", FileUniqueID: "um", Width: 320, Height: 213, FileSize: 12000},
		},
	}

	files := ExtractFiles(msg)
	require.Len(t, files, 1)
	assert.Equal(t, "large", files[0].FileID)
	assert.Equal(t, TypePhoto, files[0].Type)
}

func TestExtractFilesAnimationSuppressesDocument(t *testing.T) {
	msg := &Message{
		Document:  &Document{FileID: "doc", FileUniqueID: "ud"},
		Animation: &Animation{FileID: "anim", FileUniqueID: "ua", MimeType: "video/mp4"},
	}

	files := ExtractFiles(msg)
	require.Len(t, files, 1)
	assert.Equal(t, TypeAnimation, files[0].Type)
	assert.Equal(t, "anim", files[0].FileID)
}

func TestExtractFilesAllKinds(t *testing.T) {
	msg := &Message{
		Document:  &Document{FileID: "d", FileUniqueID: "ud", FileName: "a.zip", MimeType: "application/zip", FileSize: 10},
		Photo:     []PhotoSize{{FileID: "p", FileUniqueID: "up", Width: 1, Height: 1}},
		Video:     &Video{FileID: "v", FileUniqueID: "uv"},
		Audio:     &Audio{FileID: "a", FileUniqueID: "ua"},
		Voice:     &Voice{FileID: "vo", FileUniqueID: "uvo"},
		VideoNote: &VideoNote{FileID: "vn", FileUniqueID: "uvn"},
		Sticker:   &Sticker{FileID: "s", FileUniqueID: "us"},
	}

	files := ExtractFiles(msg)
	require.Len(t, files, 7)

	kinds := make([]string, 0, len(files))
	for _, f := range files {
		kinds = append(kinds, f.Type)
	}
	assert.Equal(t, []string{
		TypeDocument, TypePhoto, TypeVideo, TypeAudio,
		TypeVoice, TypeVideoNote, TypeSticker,
	}, kinds)

	// Declared metadata is carried through.
	assert.Equal(t, "a.zip", files[0].FileName)
	assert.Equal(t, "application/zip", files[0].MimeType)
	assert.Equal(t, int64(10), files[0].FileSize)
}

func TestExtractFilesNoAttachments(t *testing.T) {
	assert.Empty(t, ExtractFiles(&Message{Text: "hello"}))
	assert.Empty(t, ExtractFiles(nil))
}

func TestUpdateIDAbsentVersusZero(t *testing.T) {
	var withID, withoutID Update
	require.NoError(t, json.Unmarshal([]byte(`{"update_id":0}`), &withID))
	require.NoError(t, json.Unmarshal([]byte(`{}`), &withoutID))

	require.NotNil(t, withID.UpdateID)
	assert.Equal(t, int64(0), *withID.UpdateID)
	assert.Nil(t, withoutID.UpdateID)
}

func TestSenderName(t *testing.T) {
	tests := []struct {
		name     string
		msg      Message
		expected string
	}{
		{
			"full user",
			Message{From: &User{FirstName: "Ada", LastName: "Lovelace", Username: "ada"}},
			"Ada Lovelace (@ada)",
		},
		{
			"sender chat title",
			Message{SenderChat: &Chat{Title: "Announcements"}},
			"Announcements",
		},
		{
			"channel falls back to chat title",
			Message{Chat: Chat{Title: "News", Type: "channel"}},
			"News",
		},
		{
			"nothing known",
			Message{},
			"unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.msg.SenderName())
		})
	}
}
