package api

import (
	"context"
	"net/http"

	"kenivoire-client/internal/model"
)

func (c *Client) ListConversations(ctx context.Context) ([]model.Conversation, error) {
	var out struct {
		Results []model.Conversation `json:"results"`
	}
	err := c.do(ctx, http.MethodGet, "messaging/conversations/", nil, nil, &out)
	return out.Results, err
}

func (c *Client) GetConversation(ctx context.Context, id string) (model.Conversation, error) {
	var conv model.Conversation
	err := c.do(ctx, http.MethodGet, "messaging/conversations/"+id+"/", nil, nil, &conv)
	return conv, err
}

// CreateConversation opens (or returns) the conversation with an ad's
// seller, sending the first message in the same call.
func (c *Client) CreateConversation(ctx context.Context, adID, content string) (model.Conversation, error) {
	var conv model.Conversation
	err := c.do(ctx, http.MethodPost, "messaging/conversations/", nil,
		map[string]string{"ad": adID, "content": content}, &conv)
	return conv, err
}

func (c *Client) DeleteConversation(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "messaging/conversations/"+id+"/", nil, nil, nil)
}

// SendMessage is the durable write path for outgoing messages. The push
// socket only ever notifies; it is never the path of record.
func (c *Client) SendMessage(ctx context.Context, conversationID, content string) (model.Message, error) {
	var msg model.Message
	err := c.do(ctx, http.MethodPost, "messaging/messages/", nil,
		map[string]string{"conversation": conversationID, "content": content}, &msg)
	return msg, err
}

func (c *Client) MarkRead(ctx context.Context, conversationID string) error {
	return c.do(ctx, http.MethodPost, "messaging/mark-read/"+conversationID+"/", nil, nil, nil)
}

func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	var out model.UnreadResponse
	err := c.do(ctx, http.MethodGet, "messaging/unread/", nil, nil, &out)
	return out.UnreadCount, err
}
