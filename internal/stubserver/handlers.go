package stubserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"kenivoire-client/internal/model"
)

type handlers struct {
	store        *Store
	cfg          TokenConfig
	hub          *Hub
	loginLimiter *rateLimiter
}

func (h *handlers) issuePair(c *gin.Context, user model.User) {
	access, err := CreateAccessToken(user.ID, user.Username, h.cfg)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "token creation failed"})
		return
	}
	refresh := h.store.IssueRefresh(user.ID)
	c.JSON(http.StatusOK, gin.H{"access": access, "refresh": refresh})
}

func (h *handlers) login(c *gin.Context) {
	if h.loginLimiter != nil && !h.loginLimiter.allow(c.ClientIP()) {
		c.JSON(http.StatusTooManyRequests, gin.H{"detail": "rate limit exceeded"})
		return
	}

	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid request"})
		return
	}

	user, ok := h.store.Authenticate(body.Username, body.Password)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid credentials"})
		return
	}
	h.issuePair(c, user)
}

func (h *handlers) refresh(c *gin.Context) {
	var body struct {
		Refresh string `json:"refresh"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Refresh == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid request"})
		return
	}

	userID, next, ok := h.store.RotateRefresh(body.Refresh)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "token not valid", "code": "token_not_valid"})
		return
	}
	user, ok := h.store.GetUser(userID)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "token not valid", "code": "token_not_valid"})
		return
	}

	access, err := CreateAccessToken(user.ID, user.Username, h.cfg)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "token creation failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access": access, "refresh": next})
}

func (h *handlers) register(c *gin.Context) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Email    string `json:"email"`
		Phone    string `json:"phone"`
		Location string `json:"location"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid request"})
		return
	}

	user, err := h.store.CreateUser(body.Username, body.Password, body.Email, body.Phone, body.Location)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (h *handlers) me(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "invalid token"})
		return
	}
	user, ok := h.store.GetUser(userID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": "user not found"})
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *handlers) updateMe(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "invalid token"})
		return
	}

	var patch map[string]any
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid request"})
		return
	}
	user, ok := h.store.UpdateUser(userID, patch)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": "user not found"})
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *handlers) changePassword(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "invalid token"})
		return
	}

	var body struct {
		OldPassword string `json:"old_password"`
		NewPassword string `json:"new_password"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid request"})
		return
	}
	if !h.store.ChangePassword(userID, body.OldPassword, body.NewPassword) {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "wrong password"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *handlers) listCategories(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.Categories())
}

func (h *handlers) listAds(c *gin.Context) {
	filter := AdFilter{
		Q:         c.Query("q"),
		Ville:     c.Query("ville"),
		Categorie: c.Query("categorie"),
	}
	if raw := c.Query("prix_max"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid prix_max"})
			return
		}
		filter.PrixMax = v
	}
	if c.Query("mine") == "true" {
		// Listing is public; the mine filter needs an identity.
		claims := h.claimsFromHeader(c)
		if claims == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"detail": "authentication required", "code": "token_not_valid"})
			return
		}
		filter.SellerID = claims.Subject
	}
	c.JSON(http.StatusOK, h.store.ListAds(filter))
}

func (h *handlers) claimsFromHeader(c *gin.Context) *Claims {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) < 8 {
		return nil
	}
	claims, err := VerifyToken(authHeader[len("Bearer "):], h.cfg)
	if err != nil {
		return nil
	}
	return claims
}

func (h *handlers) getAd(c *gin.Context) {
	ad, ok := h.store.GetAd(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": "ad not found"})
		return
	}
	c.JSON(http.StatusOK, ad)
}

func (h *handlers) createAd(c *gin.Context) {
	userID, _ := userIDFromContext(c)

	var body struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Price       int64  `json:"price"`
		Location    string `json:"location"`
		Category    string `json:"category"`
		Image       string `json:"image"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "title required"})
		return
	}

	ad := h.store.CreateAd(model.Ad{
		Title:       body.Title,
		Description: body.Description,
		Price:       body.Price,
		Location:    body.Location,
		Category:    body.Category,
		Image:       body.Image,
		SellerID:    userID,
		CreatedAt:   time.Now().UnixMilli(),
	})
	c.JSON(http.StatusCreated, ad)
}

func (h *handlers) updateAd(c *gin.Context) {
	userID, _ := userIDFromContext(c)

	var patch map[string]any
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid request"})
		return
	}
	ad, err := h.store.UpdateAd(c.Param("id"), userID, patch)
	if err != nil {
		h.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ad)
}

func (h *handlers) deleteAd(c *gin.Context) {
	userID, _ := userIDFromContext(c)
	if err := h.store.DeleteAd(c.Param("id"), userID); err != nil {
		h.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *handlers) listConversations(c *gin.Context) {
	userID, _ := userIDFromContext(c)
	c.JSON(http.StatusOK, gin.H{"results": h.store.ListConversations(userID)})
}

func (h *handlers) createConversation(c *gin.Context) {
	userID, _ := userIDFromContext(c)

	var body struct {
		Ad      string `json:"ad"`
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Ad == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "ad required"})
		return
	}

	conv, err := h.store.GetOrCreateConversation(body.Ad, userID)
	if err != nil {
		h.storeError(c, err)
		return
	}
	if body.Content != "" {
		msg, err := h.store.AppendMessage(conv.ID, userID, body.Content, time.Now().UnixMilli())
		if err != nil {
			h.storeError(c, err)
			return
		}
		conv.Messages = append(conv.Messages, msg)
		h.pushMessage(msg)
	}
	c.JSON(http.StatusCreated, conv)
}

func (h *handlers) getConversation(c *gin.Context) {
	userID, _ := userIDFromContext(c)
	conv, err := h.store.GetConversation(c.Param("id"), userID)
	if err != nil {
		h.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

func (h *handlers) deleteConversation(c *gin.Context) {
	userID, _ := userIDFromContext(c)
	if err := h.store.DeleteConversation(c.Param("id"), userID); err != nil {
		h.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *handlers) createMessage(c *gin.Context) {
	userID, _ := userIDFromContext(c)

	var body struct {
		Conversation string `json:"conversation"`
		Content      string `json:"content"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Conversation == "" || body.Content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "conversation and content required"})
		return
	}

	msg, err := h.store.AppendMessage(body.Conversation, userID, body.Content, time.Now().UnixMilli())
	if err != nil {
		h.storeError(c, err)
		return
	}
	h.pushMessage(msg)
	c.JSON(http.StatusCreated, msg)
}

// pushMessage notifies the other participants' open sockets. The REST
// response is the sender's path of record.
func (h *handlers) pushMessage(msg model.Message) {
	frame := model.PushFrame{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		Message:        msg.Content,
		Sender:         msg.Sender,
		Timestamp:      msg.CreatedAt,
	}
	payload, err := json.Marshal(frame)
	if err != nil {
		return
	}
	h.hub.BroadcastOthers(msg.ConversationID, msg.Sender.ID, payload)
}

func (h *handlers) markRead(c *gin.Context) {
	userID, _ := userIDFromContext(c)
	flipped, err := h.store.MarkRead(c.Param("id"), userID)
	if err != nil {
		h.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "marked": flipped})
}

func (h *handlers) unread(c *gin.Context) {
	userID, _ := userIDFromContext(c)
	c.JSON(http.StatusOK, gin.H{"unread_count": h.store.UnreadCount(userID)})
}

func (h *handlers) storeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errNotFound):
		c.JSON(http.StatusNotFound, gin.H{"detail": "not found"})
	case errors.Is(err, errNotParticipant):
		c.JSON(http.StatusForbidden, gin.H{"detail": "forbidden"})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
	}
}
