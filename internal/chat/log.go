package chat

import (
	"sort"

	"kenivoire-client/internal/model"
)

// Log is the ordered, de-duplicated message sequence for one
// conversation. History fetches and push frames both merge through
// Insert, so a message arriving on both channels collapses to one entry.
// Not safe for concurrent use; the engine serializes access.
type Log struct {
	messages []model.Message
	seen     map[string]struct{}
}

func NewLog() *Log {
	return &Log{seen: make(map[string]struct{})}
}

// Insert merges one message, keeping (createdAt, id) order. Returns
// false when the id is already present.
func (l *Log) Insert(m model.Message) bool {
	if _, dup := l.seen[m.ID]; dup {
		return false
	}
	l.seen[m.ID] = struct{}{}

	i := sort.Search(len(l.messages), func(i int) bool {
		a := l.messages[i]
		if a.CreatedAt != m.CreatedAt {
			return a.CreatedAt > m.CreatedAt
		}
		return a.ID > m.ID
	})
	l.messages = append(l.messages, model.Message{})
	copy(l.messages[i+1:], l.messages[i:])
	l.messages[i] = m
	return true
}

func (l *Log) Len() int { return len(l.messages) }

func (l *Log) Messages() []model.Message {
	out := make([]model.Message, len(l.messages))
	copy(out, l.messages)
	return out
}

// MarkReadFromOthers flips read on every message not sent by selfID and
// returns how many were previously unread.
func (l *Log) MarkReadFromOthers(selfID string) int {
	flipped := 0
	for i := range l.messages {
		m := &l.messages[i]
		if m.Sender.ID == selfID || m.Read {
			continue
		}
		m.Read = true
		flipped++
	}
	return flipped
}

// UnreadFromOthers counts messages from other participants still unread.
func (l *Log) UnreadFromOthers(selfID string) int {
	n := 0
	for i := range l.messages {
		if !l.messages[i].Read && l.messages[i].Sender.ID != selfID {
			n++
		}
	}
	return n
}
