package unread

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"kenivoire-client/internal/api"
	"kenivoire-client/internal/session"
)

// Counter maintains the global unread-message count from two sources:
// local events (applied immediately, before any network round-trip) and
// a periodic poll of the backend's authoritative count, which overwrites
// the local estimate on receipt and corrects any drift.
type Counter struct {
	api      *api.Client
	tokens   *session.Store
	interval time.Duration
	log      zerolog.Logger

	mu      sync.Mutex
	count   int
	subs    map[int]func(int)
	nextSub int
	stop    chan struct{}
}

func NewCounter(client *api.Client, tokens *session.Store, interval time.Duration, log zerolog.Logger) *Counter {
	return &Counter{
		api:      client,
		tokens:   tokens,
		interval: interval,
		log:      log,
		subs:     make(map[int]func(int)),
	}
}

func (c *Counter) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// Adjust applies a local delta (new incoming message, mark-read flip).
// The estimate never goes negative; the next poll settles any drift.
func (c *Counter) Adjust(delta int) {
	c.mu.Lock()
	c.count += delta
	if c.count < 0 {
		c.count = 0
	}
	c.notifyLocked()
	c.mu.Unlock()
}

// Set overwrites the estimate with an authoritative value.
func (c *Counter) Set(count int) {
	if count < 0 {
		count = 0
	}
	c.mu.Lock()
	c.count = count
	c.notifyLocked()
	c.mu.Unlock()
}

// Subscribe registers a callback invoked with the count after every
// change. The returned function cancels the subscription.
func (c *Counter) Subscribe(fn func(count int)) (cancel func()) {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

func (c *Counter) notifyLocked() {
	for _, fn := range c.subs {
		go fn(c.count)
	}
}

// Start arms the poll loop; a tick without a session does nothing.
func (c *Counter) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stop != nil {
		return
	}
	stop := make(chan struct{})
	c.stop = stop
	go c.run(stop)
}

func (c *Counter) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stop == nil {
		return
	}
	close(c.stop)
	c.stop = nil
}

func (c *Counter) run(stop chan struct{}) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if _, ok := c.tokens.Current(); !ok {
				continue
			}
			count, err := c.api.UnreadCount(context.Background())
			if err != nil {
				c.log.Warn().Err(err).Msg("unread poll failed")
				continue
			}
			c.Set(count)
		}
	}
}
