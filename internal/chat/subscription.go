package chat

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"kenivoire-client/internal/model"
)

// Subscription is the live push channel for one conversation. It is
// inbound-only: messages are written over REST, the socket just
// notifies. The frames channel closes when the transport drops.
type Subscription struct {
	conn   *websocket.Conn
	frames chan model.Message

	closeOnce sync.Once

	mu  sync.Mutex
	err error
}

func Subscribe(ctx context.Context, wsBase, conversationID, accessToken string) (*Subscription, error) {
	target := strings.TrimSuffix(wsBase, "/") + "/ws/chat/" + conversationID + "/?token=" + url.QueryEscape(accessToken)
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		if resp != nil {
			_ = resp.Body.Close()
		}
		return nil, err
	}

	s := &Subscription{conn: conn, frames: make(chan model.Message, 16)}
	go s.readLoop()
	return s, nil
}

func (s *Subscription) readLoop() {
	defer close(s.frames)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			if s.err == nil {
				s.err = err
			}
			s.mu.Unlock()
			return
		}

		var frame model.PushFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			continue
		}
		if frame.ID == "" {
			continue
		}
		s.frames <- frame.AsMessage()
	}
}

// Messages yields pushed messages until the subscription closes.
func (s *Subscription) Messages() <-chan model.Message { return s.frames }

// Err reports why the read loop stopped, nil while it is running.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Subscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.conn.Close()
	})
	return err
}
