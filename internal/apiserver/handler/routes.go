package handler

import (
	"github.com/amoylab/umbra/internal/apiserver/middleware"
	"github.com/amoylab/umbra/internal/store"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handlers bundles the REST handlers mounted under /api/v1
type Handlers struct {
	User    *User
	Chat    *Chat
	Contact *Contact
	Service *Service
}

// New builds every REST handler over db
func New(logger *zap.Logger, db store.Store, notifier ContactNotifier, sessions OnlineLister, queues QueueStats) *Handlers {
	return &Handlers{
		User:    NewUser(logger, db),
		Chat:    NewChat(logger, db),
		Contact: NewContact(logger, db, notifier),
		Service: NewService(sessions, queues),
	}
}

// Register mounts the REST and status routes on r
func (h *Handlers) Register(r gin.IRouter, logger *zap.Logger, db store.Store) {
	r.GET("/health", h.Service.HandleHealth)
	r.GET("/ws-info", h.Service.HandleWSInfo)
	r.GET("/ws-info/stats", h.Service.HandleWSStats)

	api := r.Group("/api/v1")
	api.POST("/users/register", h.User.HandleRegister)

	authed := api.Group("", middleware.DeviceAuth(logger, db))
	{
		authed.GET("/users/me", h.User.HandleMe)
		authed.PATCH("/users/me", h.User.HandleUpdateMe)
		authed.GET("/users/search", h.User.HandleSearch)
		authed.GET("/users/by-nickname/:nickname", h.User.HandleGetByNickname)
		authed.GET("/users/:user_id", h.User.HandleGetUser)

		authed.POST("/chats", h.Chat.HandleCreate)
		authed.GET("/chats", h.Chat.HandleList)
		authed.DELETE("/chats/leave-all", h.Chat.HandleLeaveAll)
		authed.GET("/chats/:chat_id/members", h.Chat.HandleMembers)
		authed.POST("/chats/:chat_id/invite", h.Chat.HandleInvite)
		authed.DELETE("/chats/:chat_id/leave", h.Chat.HandleLeave)

		authed.POST("/contacts/requests", h.Contact.HandleSendRequest)
		authed.GET("/contacts/requests/pending", h.Contact.HandlePending)
		authed.POST("/contacts/requests/:request_id/respond", h.Contact.HandleRespond)
		authed.GET("/contacts", h.Contact.HandleList)
		authed.DELETE("/contacts/:contact_id", h.Contact.HandleRemove)
	}
}
