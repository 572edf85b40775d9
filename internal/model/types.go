package model

// TokenPair is what the token and refresh endpoints return.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Location string `json:"location,omitempty"`
}

type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Ad struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Price       int64  `json:"price"`
	Location    string `json:"location"`
	Category    string `json:"category"`
	Image       string `json:"image,omitempty"`
	SellerID    string `json:"seller"`
	CreatedAt   int64  `json:"created_at"`
}

// Message is immutable once created except for Read, which only ever
// flips false -> true.
type Message struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation"`
	Sender         User   `json:"sender"`
	Content        string `json:"content"`
	CreatedAt      int64  `json:"created_at"`
	Read           bool   `json:"read"`
}

type Conversation struct {
	ID           string    `json:"id"`
	Ad           *Ad       `json:"ad,omitempty"`
	Participants []User    `json:"participants"`
	Messages     []Message `json:"messages"`
}

// PushFrame is one inbound frame on a conversation's push socket.
type PushFrame struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation"`
	Message        string `json:"message"`
	Sender         User   `json:"sender"`
	Timestamp      int64  `json:"timestamp"`
}

// AsMessage converts a push frame to the message it notifies about.
func (f PushFrame) AsMessage() Message {
	return Message{
		ID:             f.ID,
		ConversationID: f.ConversationID,
		Sender:         f.Sender,
		Content:        f.Message,
		CreatedAt:      f.Timestamp,
	}
}

type UnreadResponse struct {
	UnreadCount int `json:"unread_count"`
}
