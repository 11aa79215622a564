package notion

// Block is one Notion block object in API wire shape.
type Block map[string]any

// Notion caps a rich text element at 2000 characters; longer content is
// split across consecutive elements.
const richTextLimit = 2000

func richText(content string) []map[string]any {
	runes := []rune(content)
	if len(runes) == 0 {
		runes = []rune{' '}
	}
	var parts []map[string]any
	for len(runes) > 0 {
		n := len(runes)
		if n > richTextLimit {
			n = richTextLimit
		}
		parts = append(parts, map[string]any{
			"type": "text",
			"text": map[string]any{"content": string(runes[:n])},
		})
		runes = runes[n:]
	}
	return parts
}

// ParagraphBlock builds a paragraph block from plain text.
func ParagraphBlock(text string) Block {
	return Block{
		"object": "block",
		"type":   "paragraph",
		"paragraph": map[string]any{
			"rich_text": richText(text),
		},
	}
}

// CodeBlock builds a code block, used for the JSON audit and ledger
// payloads consumed by downstream automation.
func CodeBlock(content, language string) Block {
	return Block{
		"object": "block",
		"type":   "code",
		"code": map[string]any{
			"rich_text": richText(content),
			"language":  language,
		},
	}
}

// FileBlock builds a media or file block referencing a completed file
// upload. blockType is one of image, video, audio, pdf, file; all share
// the same file_upload payload shape.
func FileBlock(blockType, fileUploadID, caption string) Block {
	payload := map[string]any{
		"type":        "file_upload",
		"file_upload": map[string]any{"id": fileUploadID},
	}
	if caption != "" {
		payload["caption"] = richText(caption)
	}
	return Block{
		"object":  "block",
		"type":    blockType,
		blockType: payload,
	}
}
