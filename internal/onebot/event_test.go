package onebot

import (
	"testing"
)

func TestParseGroupEvent(t *testing.T) {
	raw := []byte(`{
		"post_type": "message",
		"message_type": "group",
		"message_id": 12,
		"group_id": 100,
		"user_id": 42,
		"raw_message": "jm下载 123",
		"message": [
			{"type": "text", "data": {"text": "jm下载 123"}}
		],
		"sender": {"role": "admin", "nickname": "tester"}
	}`)
	ev, err := ParseEvent(raw)
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	if !ev.IsGroup() || ev.IsPrivate() {
		t.Fatal("event should be a group message")
	}
	if ev.GroupID != 100 || ev.UserID != 42 || ev.MessageID != 12 {
		t.Fatalf("ids = %d/%d/%d", ev.GroupID, ev.UserID, ev.MessageID)
	}
	if ev.SenderRole != "admin" {
		t.Fatalf("role = %q", ev.SenderRole)
	}
	if got := ev.PlainText(); got != "jm下载 123" {
		t.Fatalf("plain text = %q", got)
	}
}

func TestParsePrivateEventStringFormat(t *testing.T) {
	// String-format events deliver the message as a CQ string; the
	// plain text then falls back to raw_message.
	raw := []byte(`{
		"post_type": "message",
		"message_type": "private",
		"message_id": 7,
		"user_id": 42,
		"raw_message": "jm查询 100",
		"message": "jm查询 100"
	}`)
	ev, err := ParseEvent(raw)
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	if !ev.IsPrivate() {
		t.Fatal("event should be private")
	}
	if got := ev.PlainText(); got != "jm查询 100" {
		t.Fatalf("plain text = %q", got)
	}
}

func TestFirstAt(t *testing.T) {
	ev := &Event{Segments: []Segment{
		{Type: "text", Data: map[string]any{"text": "jm拉黑 "}},
		{Type: "at", Data: map[string]any{"qq": "123"}},
		{Type: "at", Data: map[string]any{"qq": "456"}},
	}}
	id, ok := ev.FirstAt()
	if !ok || id != 123 {
		t.Fatalf("FirstAt = (%d, %v), want (123, true)", id, ok)
	}

	none := &Event{Segments: []Segment{{Type: "text", Data: map[string]any{"text": "hi"}}}}
	if _, ok := none.FirstAt(); ok {
		t.Fatal("FirstAt without mention should report false")
	}
}

func TestForwardNodeSegment(t *testing.T) {
	node := ForwardNode{UserID: 999, Nickname: "jm助手", Content: []Segment{Text("hello")}}
	seg := node.toSegment()
	if seg.Type != "node" {
		t.Fatalf("type = %q", seg.Type)
	}
	if got := seg.Data["nickname"]; got != "jm助手" {
		t.Fatalf("nickname = %v", got)
	}
}

func TestPlainTextJoinsTextSegments(t *testing.T) {
	segs := []Segment{
		Text("a"),
		At(42),
		Text("b"),
	}
	if got := PlainText(segs); got != "ab" {
		t.Fatalf("PlainText = %q", got)
	}
}
