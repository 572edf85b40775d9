package chat

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
	"kenivoire-client/internal/api"
	"kenivoire-client/internal/model"
	"kenivoire-client/internal/session"
)

// ErrClosed is returned by operations on a conversation that is not
// live, including results of fetches that completed after a close.
var ErrClosed = errors.New("conversation closed")

type State int

const (
	StateClosed State = iota
	StateLoading
	StateLive
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateLive:
		return "live"
	default:
		return "closed"
	}
}

// UnreadSink receives unread-count deltas as the engine observes new
// incoming messages or mark-read flips.
type UnreadSink interface {
	Adjust(delta int)
}

type Config struct {
	API       *api.Client
	Tokens    *session.Store
	WSBaseURL string
	Unread    UnreadSink           // optional
	OnMessage func(model.Message)  // optional, called for each merged push message
	Logger    zerolog.Logger
}

// Engine synchronizes one open conversation: the durable history comes
// over REST, live updates over the push socket, and both merge into a
// single ordered log. Sends always go over REST.
type Engine struct {
	api       *api.Client
	tokens    *session.Store
	wsBase    string
	unread    UnreadSink
	onMessage func(model.Message)
	log       zerolog.Logger

	mu             sync.Mutex
	state          State
	conversationID string
	gen            int
	conversation   model.Conversation
	msgs           *Log
	sub            *Subscription
}

func NewEngine(cfg Config) *Engine {
	return &Engine{
		api:       cfg.API,
		tokens:    cfg.Tokens,
		wsBase:    cfg.WSBaseURL,
		unread:    cfg.Unread,
		onMessage: cfg.OnMessage,
		log:       cfg.Logger,
		msgs:      NewLog(),
	}
}

// Open loads the conversation history and attaches the push
// subscription. Reopening while another conversation is active closes
// it first. A dial failure on the push socket leaves the engine live
// but degraded; Resubscribe recovers without losing the log.
func (e *Engine) Open(ctx context.Context, conversationID string) error {
	e.mu.Lock()
	e.closeLocked()
	e.state = StateLoading
	e.conversationID = conversationID
	e.msgs = NewLog()
	e.gen++
	gen := e.gen
	e.mu.Unlock()

	conv, err := e.api.GetConversation(ctx, conversationID)

	e.mu.Lock()
	if e.gen != gen {
		// Closed or reopened while the fetch was in flight.
		e.mu.Unlock()
		return ErrClosed
	}
	if err != nil {
		e.state = StateClosed
		e.mu.Unlock()
		return err
	}
	e.conversation = conv
	for _, m := range conv.Messages {
		e.msgs.Insert(m)
	}
	e.state = StateLive
	e.mu.Unlock()

	if err := e.Resubscribe(ctx); err != nil {
		e.log.Warn().Err(err).Str("conversation", conversationID).Msg("push subscription unavailable, history still valid")
	}
	return nil
}

// Resubscribe opens a fresh push subscription for the live
// conversation, replacing any existing one. The log is untouched; any
// overlap between the old and new streams collapses on message id.
func (e *Engine) Resubscribe(ctx context.Context) error {
	sess, ok := e.tokens.Current()
	if !ok {
		return session.ErrNoSession
	}

	e.mu.Lock()
	if e.state != StateLive {
		e.mu.Unlock()
		return ErrClosed
	}
	conversationID := e.conversationID
	gen := e.gen
	old := e.sub
	e.sub = nil
	e.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}

	sub, err := Subscribe(ctx, e.wsBase, conversationID, sess.AccessToken)
	if err != nil {
		return err
	}

	e.mu.Lock()
	if e.gen != gen {
		e.mu.Unlock()
		_ = sub.Close()
		return ErrClosed
	}
	e.sub = sub
	e.mu.Unlock()

	go e.consume(sub, gen)
	return nil
}

func (e *Engine) consume(sub *Subscription, gen int) {
	for m := range sub.Messages() {
		e.deliver(m, gen)
	}

	err := sub.Err()
	e.mu.Lock()
	live := e.gen == gen && e.state == StateLive
	// Resubscribe may already have installed a replacement; only detach
	// if the field still holds the subscription this loop was reading.
	if live && e.sub == sub {
		e.sub = nil
	}
	conversationID := e.conversationID
	e.mu.Unlock()
	if live && err != nil {
		e.log.Warn().Err(err).Str("conversation", conversationID).Msg("push subscription dropped")
	}
}

func (e *Engine) deliver(m model.Message, gen int) {
	e.mu.Lock()
	if e.gen != gen || e.state != StateLive || m.ConversationID != e.conversationID {
		e.mu.Unlock()
		return
	}
	inserted := e.msgs.Insert(m)
	e.mu.Unlock()
	if !inserted {
		return
	}

	self, _ := e.tokens.Current()
	if !m.Read && m.Sender.ID != self.SubjectID && e.unread != nil {
		e.unread.Adjust(1)
	}
	if e.onMessage != nil {
		e.onMessage(m)
	}
}

// Send writes the message durably over REST and merges the
// server-assigned result into the log. If the push socket echoes it
// back, the duplicate collapses on id.
func (e *Engine) Send(ctx context.Context, content string) (model.Message, error) {
	e.mu.Lock()
	if e.state != StateLive {
		e.mu.Unlock()
		return model.Message{}, ErrClosed
	}
	conversationID := e.conversationID
	gen := e.gen
	e.mu.Unlock()

	msg, err := e.api.SendMessage(ctx, conversationID, content)
	if err != nil {
		return model.Message{}, err
	}

	e.mu.Lock()
	if e.gen == gen && e.state == StateLive {
		e.msgs.Insert(msg)
	}
	e.mu.Unlock()
	return msg, nil
}

// MarkRead flips every known message from other participants to read,
// pushes the delta to the unread sink immediately, then performs the
// durable mark-read call so server state matches.
func (e *Engine) MarkRead(ctx context.Context) error {
	self, _ := e.tokens.Current()

	e.mu.Lock()
	if e.state != StateLive {
		e.mu.Unlock()
		return ErrClosed
	}
	conversationID := e.conversationID
	flipped := e.msgs.MarkReadFromOthers(self.SubjectID)
	e.mu.Unlock()

	if flipped > 0 && e.unread != nil {
		e.unread.Adjust(-flipped)
	}
	return e.api.MarkRead(ctx, conversationID)
}

// Close releases the push subscription and stops accepting mutations
// from either channel. The engine may be reopened afterwards.
func (e *Engine) Close() {
	e.mu.Lock()
	e.closeLocked()
	e.mu.Unlock()
}

func (e *Engine) closeLocked() {
	e.gen++
	e.state = StateClosed
	if e.sub != nil {
		_ = e.sub.Close()
		e.sub = nil
	}
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) Messages() []model.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.msgs.Messages()
}

// Conversation returns the metadata loaded with the history (ad,
// participants).
func (e *Engine) Conversation() model.Conversation {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conversation
}
