package onebot

import (
	"encoding/base64"
	"strconv"
	"strings"
)

// Segment is one element of an OneBot v11 message array.
type Segment struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

func Text(s string) Segment {
	return Segment{Type: "text", Data: map[string]any{"text": s}}
}

func At(userID int64) Segment {
	return Segment{Type: "at", Data: map[string]any{"qq": strconv.FormatInt(userID, 10)}}
}

// ImageBytes embeds raw image data as a base64 segment.
func ImageBytes(b []byte) Segment {
	return Segment{Type: "image", Data: map[string]any{
		"file": "base64://" + base64.StdEncoding.EncodeToString(b),
	}}
}

// ForwardNode is a single entry of a forwarded multi-item message.
type ForwardNode struct {
	UserID   int64
	Nickname string
	Content  []Segment
}

func (n ForwardNode) toSegment() Segment {
	content := make([]map[string]any, 0, len(n.Content))
	for _, seg := range n.Content {
		content = append(content, map[string]any{"type": seg.Type, "data": seg.Data})
	}
	return Segment{Type: "node", Data: map[string]any{
		"user_id":  n.UserID,
		"nickname": n.Nickname,
		"content":  content,
	}}
}

func segmentsToPayload(segs []Segment) []map[string]any {
	out := make([]map[string]any, 0, len(segs))
	for _, seg := range segs {
		out = append(out, map[string]any{"type": seg.Type, "data": seg.Data})
	}
	return out
}

// PlainText concatenates the text segments of a message.
func PlainText(segs []Segment) string {
	var b strings.Builder
	for _, seg := range segs {
		if seg.Type != "text" {
			continue
		}
		if s, ok := seg.Data["text"].(string); ok {
			b.WriteString(s)
		}
	}
	return b.String()
}
