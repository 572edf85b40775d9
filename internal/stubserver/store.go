package stubserver

import (
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"kenivoire-client/internal/model"
)

var (
	errNotFound       = errors.New("not found")
	errNotParticipant = errors.New("not a participant")
)

// Store is the stub backend's in-memory state. Refresh tokens are
// single-use: rotating one invalidates it, which is exactly the hazard
// the client's single-flight refresh exists for.
type Store struct {
	mu sync.RWMutex

	usersByID    map[string]model.User
	userIDByName map[string]string
	passwords    map[string]string

	refreshOwner map[string]string

	adsByID    map[string]model.Ad
	categories []model.Category

	conversationsByID map[string]*model.Conversation
}

func NewStore() *Store {
	return &Store{
		usersByID:         make(map[string]model.User),
		userIDByName:      make(map[string]string),
		passwords:         make(map[string]string),
		refreshOwner:      make(map[string]string),
		adsByID:           make(map[string]model.Ad),
		conversationsByID: make(map[string]*model.Conversation),
	}
}

func (s *Store) CreateUser(username, password, email, phone, location string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if username == "" || password == "" {
		return model.User{}, errors.New("username and password required")
	}
	if _, exists := s.userIDByName[username]; exists {
		return model.User{}, errors.New("username taken")
	}

	user := model.User{
		ID:       uuid.NewString(),
		Username: username,
		Email:    email,
		Phone:    phone,
		Location: location,
	}
	s.usersByID[user.ID] = user
	s.userIDByName[username] = user.ID
	s.passwords[user.ID] = password
	return user, nil
}

func (s *Store) Authenticate(username, password string) (model.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.userIDByName[username]
	if !ok || s.passwords[id] != password {
		return model.User{}, false
	}
	return s.usersByID[id], true
}

func (s *Store) GetUser(id string) (model.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.usersByID[id]
	return user, ok
}

func (s *Store) UpdateUser(id string, patch map[string]any) (model.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.usersByID[id]
	if !ok {
		return model.User{}, false
	}
	if v, ok := patch["email"].(string); ok {
		user.Email = v
	}
	if v, ok := patch["phone"].(string); ok {
		user.Phone = v
	}
	if v, ok := patch["location"].(string); ok {
		user.Location = v
	}
	s.usersByID[id] = user
	return user, true
}

func (s *Store) ChangePassword(id, oldPassword, newPassword string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.passwords[id] != oldPassword || newPassword == "" {
		return false
	}
	s.passwords[id] = newPassword
	return true
}

// IssueRefresh mints a fresh single-use refresh token for the user.
func (s *Store) IssueRefresh(userID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	token := uuid.NewString()
	s.refreshOwner[token] = userID
	return token
}

// RotateRefresh consumes a refresh token and issues its replacement.
// A token already consumed (or never issued) fails.
func (s *Store) RotateRefresh(token string) (userID, next string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	userID, ok = s.refreshOwner[token]
	if !ok {
		return "", "", false
	}
	delete(s.refreshOwner, token)
	next = uuid.NewString()
	s.refreshOwner[next] = userID
	return userID, next, true
}

func (s *Store) RevokeRefreshTokens(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for token, owner := range s.refreshOwner {
		if owner == userID {
			delete(s.refreshOwner, token)
		}
	}
}

func (s *Store) SetCategories(categories []model.Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories = categories
}

func (s *Store) Categories() []model.Category {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Category, len(s.categories))
	copy(out, s.categories)
	return out
}

func (s *Store) CreateAd(ad model.Ad) model.Ad {
	s.mu.Lock()
	defer s.mu.Unlock()

	ad.ID = uuid.NewString()
	s.adsByID[ad.ID] = ad
	return ad
}

type AdFilter struct {
	Q         string
	Ville     string
	PrixMax   int64
	Categorie string
	SellerID  string
}

func (s *Store) ListAds(filter AdFilter) []model.Ad {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.Ad, 0, len(s.adsByID))
	for _, ad := range s.adsByID {
		if filter.Q != "" && !strings.Contains(strings.ToLower(ad.Title+" "+ad.Description), strings.ToLower(filter.Q)) {
			continue
		}
		if filter.Ville != "" && !strings.EqualFold(ad.Location, filter.Ville) {
			continue
		}
		if filter.PrixMax > 0 && ad.Price > filter.PrixMax {
			continue
		}
		if filter.Categorie != "" && ad.Category != filter.Categorie {
			continue
		}
		if filter.SellerID != "" && ad.SellerID != filter.SellerID {
			continue
		}
		result = append(result, ad)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt != result[j].CreatedAt {
			return result[i].CreatedAt > result[j].CreatedAt
		}
		return result[i].ID < result[j].ID
	})
	return result
}

func (s *Store) GetAd(id string) (model.Ad, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ad, ok := s.adsByID[id]
	return ad, ok
}

func (s *Store) UpdateAd(id, sellerID string, patch map[string]any) (model.Ad, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ad, ok := s.adsByID[id]
	if !ok {
		return model.Ad{}, errNotFound
	}
	if ad.SellerID != sellerID {
		return model.Ad{}, errNotParticipant
	}
	if v, ok := patch["title"].(string); ok {
		ad.Title = v
	}
	if v, ok := patch["description"].(string); ok {
		ad.Description = v
	}
	if v, ok := patch["price"].(float64); ok {
		ad.Price = int64(v)
	}
	if v, ok := patch["location"].(string); ok {
		ad.Location = v
	}
	if v, ok := patch["category"].(string); ok {
		ad.Category = v
	}
	s.adsByID[id] = ad
	return ad, nil
}

func (s *Store) DeleteAd(id, sellerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ad, ok := s.adsByID[id]
	if !ok {
		return errNotFound
	}
	if ad.SellerID != sellerID {
		return errNotParticipant
	}
	delete(s.adsByID, id)
	return nil
}

// GetOrCreateConversation returns the buyer's conversation about an ad,
// creating it with the seller as the other participant.
func (s *Store) GetOrCreateConversation(adID, buyerID string) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ad, ok := s.adsByID[adID]
	if !ok {
		return nil, errNotFound
	}
	if ad.SellerID == buyerID {
		return nil, errors.New("cannot message own ad")
	}

	for _, conv := range s.conversationsByID {
		if conv.Ad != nil && conv.Ad.ID == adID && s.isParticipantLocked(conv, buyerID) {
			return s.copyConversationLocked(conv), nil
		}
	}

	seller := s.usersByID[ad.SellerID]
	buyer := s.usersByID[buyerID]
	adCopy := ad
	conv := &model.Conversation{
		ID:           uuid.NewString(),
		Ad:           &adCopy,
		Participants: []model.User{seller, buyer},
	}
	s.conversationsByID[conv.ID] = conv
	return s.copyConversationLocked(conv), nil
}

func (s *Store) ListConversations(userID string) []model.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.Conversation, 0)
	for _, conv := range s.conversationsByID {
		if s.isParticipantLocked(conv, userID) {
			result = append(result, *s.copyConversationLocked(conv))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func (s *Store) GetConversation(id, userID string) (*model.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversationsByID[id]
	if !ok {
		return nil, errNotFound
	}
	if !s.isParticipantLocked(conv, userID) {
		return nil, errNotParticipant
	}
	return s.copyConversationLocked(conv), nil
}

func (s *Store) DeleteConversation(id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversationsByID[id]
	if !ok {
		return errNotFound
	}
	if !s.isParticipantLocked(conv, userID) {
		return errNotParticipant
	}
	delete(s.conversationsByID, id)
	return nil
}

func (s *Store) AppendMessage(conversationID, senderID, content string, nowMillis int64) (model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversationsByID[conversationID]
	if !ok {
		return model.Message{}, errNotFound
	}
	if !s.isParticipantLocked(conv, senderID) {
		return model.Message{}, errNotParticipant
	}

	msg := model.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Sender:         s.usersByID[senderID],
		Content:        content,
		CreatedAt:      nowMillis,
	}
	conv.Messages = append(conv.Messages, msg)
	return msg, nil
}

// MarkRead flips every message not sent by the reader and returns how
// many flipped.
func (s *Store) MarkRead(conversationID, readerID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversationsByID[conversationID]
	if !ok {
		return 0, errNotFound
	}
	if !s.isParticipantLocked(conv, readerID) {
		return 0, errNotParticipant
	}

	flipped := 0
	for i := range conv.Messages {
		m := &conv.Messages[i]
		if m.Sender.ID == readerID || m.Read {
			continue
		}
		m.Read = true
		flipped++
	}
	return flipped, nil
}

func (s *Store) UnreadCount(userID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, conv := range s.conversationsByID {
		if !s.isParticipantLocked(conv, userID) {
			continue
		}
		for i := range conv.Messages {
			if !conv.Messages[i].Read && conv.Messages[i].Sender.ID != userID {
				count++
			}
		}
	}
	return count
}

func (s *Store) IsParticipant(conversationID, userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversationsByID[conversationID]
	return ok && s.isParticipantLocked(conv, userID)
}

func (s *Store) isParticipantLocked(conv *model.Conversation, userID string) bool {
	for _, p := range conv.Participants {
		if p.ID == userID {
			return true
		}
	}
	return false
}

func (s *Store) copyConversationLocked(conv *model.Conversation) *model.Conversation {
	out := *conv
	out.Messages = make([]model.Message, len(conv.Messages))
	copy(out.Messages, conv.Messages)
	out.Participants = make([]model.User, len(conv.Participants))
	copy(out.Participants, conv.Participants)
	return &out
}
