package chat

import (
	"testing"

	"kenivoire-client/internal/model"
)

func msg(id string, createdAt int64, senderID string, read bool) model.Message {
	return model.Message{
		ID:        id,
		Sender:    model.User{ID: senderID},
		Content:   "m-" + id,
		CreatedAt: createdAt,
		Read:      read,
	}
}

func ids(messages []model.Message) []string {
	out := make([]string, len(messages))
	for i, m := range messages {
		out[i] = m.ID
	}
	return out
}

func assertOrder(t *testing.T, l *Log, want ...string) {
	t.Helper()
	got := ids(l.Messages())
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestLog_HistoryThenPushOverlap(t *testing.T) {
	l := NewLog()

	// History fetch delivers 1 and 2; the push socket then replays 2
	// (in flight during the fetch) followed by a genuinely new 3.
	if !l.Insert(msg("1", 10, "a", false)) {
		t.Fatalf("insert 1")
	}
	if !l.Insert(msg("2", 20, "a", false)) {
		t.Fatalf("insert 2")
	}
	if l.Insert(msg("2", 20, "a", false)) {
		t.Fatalf("duplicate 2 must not insert")
	}
	if !l.Insert(msg("3", 30, "a", false)) {
		t.Fatalf("insert 3")
	}

	assertOrder(t, l, "1", "2", "3")
}

func TestLog_OutOfOrderInsert(t *testing.T) {
	l := NewLog()
	l.Insert(msg("c", 30, "a", false))
	l.Insert(msg("a", 10, "a", false))
	l.Insert(msg("b", 20, "a", false))

	assertOrder(t, l, "a", "b", "c")
}

func TestLog_TimestampTieBreaksOnID(t *testing.T) {
	l := NewLog()
	l.Insert(msg("z", 10, "a", false))
	l.Insert(msg("a", 10, "a", false))
	l.Insert(msg("m", 10, "a", false))

	assertOrder(t, l, "a", "m", "z")
}

func TestLog_MessagesReturnsCopy(t *testing.T) {
	l := NewLog()
	l.Insert(msg("1", 10, "a", false))

	snapshot := l.Messages()
	snapshot[0].Content = "mutated"
	if l.Messages()[0].Content != "m-1" {
		t.Fatalf("snapshot mutation leaked into the log")
	}
}

func TestLog_MarkReadFromOthers(t *testing.T) {
	l := NewLog()
	l.Insert(msg("1", 10, "them", false))
	l.Insert(msg("2", 20, "me", false))
	l.Insert(msg("3", 30, "them", false))
	l.Insert(msg("4", 40, "them", true))

	if n := l.UnreadFromOthers("me"); n != 2 {
		t.Fatalf("unread = %d, want 2", n)
	}
	if n := l.MarkReadFromOthers("me"); n != 2 {
		t.Fatalf("flipped = %d, want 2", n)
	}
	if n := l.UnreadFromOthers("me"); n != 0 {
		t.Fatalf("unread after mark = %d, want 0", n)
	}

	// Own message stays untouched.
	for _, m := range l.Messages() {
		if m.Sender.ID == "me" && m.Read {
			t.Fatalf("own message was flipped")
		}
	}

	// Idempotent.
	if n := l.MarkReadFromOthers("me"); n != 0 {
		t.Fatalf("second mark flipped %d", n)
	}
}
