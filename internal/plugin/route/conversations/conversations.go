// Package conversations exposes the supporting CRM surface: listing and
// creating conversations, appending messages, and marking conversations
// read. These are the operations that populate the tables the contact
// deletion endpoint drains.
package conversations

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/brokerdesk/whatsapp-service/internal/config"
	"github.com/brokerdesk/whatsapp-service/internal/model"
	registrystore "github.com/brokerdesk/whatsapp-service/internal/registry/store"
	"github.com/brokerdesk/whatsapp-service/internal/security"
	"github.com/gin-gonic/gin"
)

// MountRoutes mounts conversation routes on the given router.
// Called after store initialization so the store is available.
func MountRoutes(r *gin.Engine, store registrystore.ChatStore, cfg *config.Config, auth gin.HandlerFunc) {
	roleGate := security.RequireAnyRole(store, security.SplitRoles(cfg.PermittedRoles))

	g := r.Group("/v1", auth, roleGate)

	g.GET("/conversations", func(c *gin.Context) {
		listConversations(c, store)
	})
	g.POST("/conversations", func(c *gin.Context) {
		createConversation(c, store)
	})
	g.GET("/conversations/:conversationId", func(c *gin.Context) {
		getConversation(c, store)
	})
	g.GET("/conversations/:conversationId/messages", func(c *gin.Context) {
		listMessages(c, store)
	})
	g.POST("/conversations/:conversationId/messages", func(c *gin.Context) {
		appendMessage(c, store)
	})
	g.POST("/conversations/:conversationId/read", func(c *gin.Context) {
		markRead(c, store)
	})
}

func listConversations(c *gin.Context, store registrystore.ChatStore) {
	convs, err := store.ListConversations(c.Request.Context(), queryInt(c, "limit", 50))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": convs})
}

func createConversation(c *gin.Context, store registrystore.ChatStore) {
	var req struct {
		Phone      string `json:"phone"`
		WhatsAppID string `json:"whatsapp_id"`
		LeadName   string `json:"lead_name"`
		CreateLead bool   `json:"create_lead"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Phone == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "phone is required"})
		return
	}

	conv, err := store.CreateConversation(c.Request.Context(), registrystore.CreateConversationRequest{
		Phone:      req.Phone,
		WhatsAppID: req.WhatsAppID,
		LeadName:   req.LeadName,
		CreateLead: req.CreateLead,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, conv)
}

func getConversation(c *gin.Context, store registrystore.ChatStore) {
	conv, err := store.GetConversation(c.Request.Context(), c.Param("conversationId"))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

func listMessages(c *gin.Context, store registrystore.ChatStore) {
	msgs, err := store.ListMessages(c.Request.Context(), c.Param("conversationId"), queryInt(c, "limit", 100))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": msgs})
}

func appendMessage(c *gin.Context, store registrystore.ChatStore) {
	var req struct {
		Direction string `json:"direction"`
		Body      string `json:"body"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Direction != model.DirectionInbound && req.Direction != model.DirectionOutbound {
		c.JSON(http.StatusBadRequest, gin.H{"error": "direction must be inbound or outbound"})
		return
	}

	msg, err := store.AppendMessage(c.Request.Context(), c.Param("conversationId"), registrystore.CreateMessageRequest{
		Direction: req.Direction,
		Body:      req.Body,
		SenderID:  security.GetUserID(c),
	})
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func markRead(c *gin.Context, store registrystore.ChatStore) {
	read, err := store.MarkRead(c.Request.Context(), c.Param("conversationId"), security.GetUserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, read)
}

// --- Helpers ---

func handleError(c *gin.Context, err error) {
	var notFound *registrystore.NotFoundError
	var validation *registrystore.ValidationError
	var conflict *registrystore.ConflictError

	switch {
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func queryInt(c *gin.Context, key string, def int) int {
	v := c.Query(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil || i <= 0 {
		return def
	}
	return i
}
