package stubserver

import (
	"time"

	"github.com/gin-gonic/gin"
)

type Deps struct {
	Store       *Store
	TokenConfig TokenConfig
}

func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	h := &handlers{
		store:        deps.Store,
		cfg:          deps.TokenConfig,
		hub:          NewHub(),
		loginLimiter: newRateLimiter(10, time.Minute),
	}

	api := r.Group("/api")
	api.POST("/auth/token/", h.login)
	api.POST("/auth/token/refresh/", h.refresh)
	api.POST("/auth/register/", h.register)
	api.GET("/categories/", h.listCategories)
	api.GET("/annonces/", h.listAds)
	api.GET("/annonces/:id/", h.getAd)

	protected := api.Group("")
	protected.Use(requireAuth(deps.TokenConfig))
	protected.GET("/auth/me/", h.me)
	protected.PATCH("/auth/me/", h.updateMe)
	protected.POST("/auth/change-password/", h.changePassword)
	protected.POST("/annonces/", h.createAd)
	protected.PATCH("/annonces/:id/", h.updateAd)
	protected.DELETE("/annonces/:id/", h.deleteAd)
	protected.GET("/messaging/conversations/", h.listConversations)
	protected.POST("/messaging/conversations/", h.createConversation)
	protected.GET("/messaging/conversations/:id/", h.getConversation)
	protected.DELETE("/messaging/conversations/:id/", h.deleteConversation)
	protected.POST("/messaging/messages/", h.createMessage)
	protected.POST("/messaging/mark-read/:id/", h.markRead)
	protected.GET("/messaging/unread/", h.unread)

	r.GET("/ws/chat/:id/", h.serveWS)

	return r
}
