package onebot

import (
	"encoding/json"
	"strconv"
)

// Event is a parsed OneBot v11 message event.
type Event struct {
	PostType    string
	MessageType string // "group" or "private"
	MessageID   int64
	GroupID     int64
	UserID      int64
	RawMessage  string
	Segments    []Segment
	SenderRole  string // "owner" / "admin" / "member", groups only
	SenderName  string
}

type rawEvent struct {
	PostType    string          `json:"post_type"`
	MessageType string          `json:"message_type"`
	MessageID   json.Number     `json:"message_id"`
	GroupID     json.Number     `json:"group_id"`
	UserID      json.Number     `json:"user_id"`
	RawMessage  string          `json:"raw_message"`
	Message     json.RawMessage `json:"message"`
	Sender      struct {
		Role     string `json:"role"`
		Nickname string `json:"nickname"`
	} `json:"sender"`
}

// ParseEvent decodes an event payload. Non-message events come back
// with PostType set and everything else zero.
func ParseEvent(b []byte) (*Event, error) {
	var raw rawEvent
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, err
	}
	ev := &Event{
		PostType:    raw.PostType,
		MessageType: raw.MessageType,
		MessageID:   toInt64(raw.MessageID),
		GroupID:     toInt64(raw.GroupID),
		UserID:      toInt64(raw.UserID),
		RawMessage:  raw.RawMessage,
		SenderRole:  raw.Sender.Role,
		SenderName:  raw.Sender.Nickname,
	}
	if len(raw.Message) > 0 {
		// The message field is an array in array format and a CQ string
		// in string format; only the former carries typed segments.
		var segs []Segment
		if err := json.Unmarshal(raw.Message, &segs); err == nil {
			ev.Segments = segs
		}
	}
	return ev, nil
}

func toInt64(n json.Number) int64 {
	v, err := strconv.ParseInt(n.String(), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func (e *Event) IsGroup() bool   { return e.MessageType == "group" }
func (e *Event) IsPrivate() bool { return e.MessageType == "private" }

// PlainText returns the concatenated text segments, falling back to the
// raw message when no segment array was delivered.
func (e *Event) PlainText() string {
	if len(e.Segments) == 0 {
		return e.RawMessage
	}
	return PlainText(e.Segments)
}

// FirstAt returns the first at-mention target in the message.
func (e *Event) FirstAt() (int64, bool) {
	for _, seg := range e.Segments {
		if seg.Type != "at" {
			continue
		}
		switch v := seg.Data["qq"].(type) {
		case string:
			id, err := strconv.ParseInt(v, 10, 64)
			if err == nil {
				return id, true
			}
		case float64:
			return int64(v), true
		}
	}
	return 0, false
}
