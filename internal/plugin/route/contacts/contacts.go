// Package contacts exposes the contact deletion endpoint: a single
// operation that permanently removes a WhatsApp conversation, its
// messages and read markers, and optionally the linked lead.
package contacts

import (
	"errors"
	"net/http"

	"github.com/brokerdesk/whatsapp-service/internal/config"
	registrystore "github.com/brokerdesk/whatsapp-service/internal/registry/store"
	"github.com/brokerdesk/whatsapp-service/internal/security"
	"github.com/brokerdesk/whatsapp-service/internal/service"
	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
)

// MountRoutes mounts contact routes on the given router.
// Called after store initialization so the store is available.
func MountRoutes(r *gin.Engine, store registrystore.ChatStore, cfg *config.Config, auth gin.HandlerFunc) {
	purger := service.NewContactPurger(store, security.SplitRoles(cfg.PermittedRoles))

	g := r.Group("/v1", auth)

	g.POST("/contacts/delete", func(c *gin.Context) {
		deleteContact(c, purger)
	})
}

type deleteResponse struct {
	OK bool `json:"ok"`
	service.PurgeResult
}

func deleteContact(c *gin.Context, purger *service.ContactPurger) {
	userID := security.GetUserID(c)

	// A malformed or empty body is treated as an empty request; the
	// missing conversation_id is then rejected by the purger before any
	// store access.
	var req service.PurgeRequest
	_ = c.ShouldBindJSON(&req)

	result, err := purger.Purge(c.Request.Context(), userID, req)
	if err != nil {
		handleError(c, err)
		return
	}

	countOutcome("ok")
	c.JSON(http.StatusOK, deleteResponse{OK: true, PurgeResult: *result})
}

func handleError(c *gin.Context, err error) {
	var validation *registrystore.ValidationError
	var forbidden *registrystore.ForbiddenError
	var notFound *registrystore.NotFoundError
	var step *registrystore.DeleteStepError

	switch {
	case errors.As(err, &validation):
		countOutcome("invalid_request")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &forbidden):
		countOutcome("forbidden")
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.As(err, &notFound):
		countOutcome("not_found")
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
	case errors.As(err, &step):
		// Earlier steps have already committed; surface which step failed
		// so the caller knows how much was actually deleted.
		countOutcome("error")
		log.Error("Contact purge failed mid-cascade", "step", step.Step, "err", step.Err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed at step " + step.Step})
	default:
		countOutcome("error")
		log.Error("Contact purge failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func countOutcome(result string) {
	if security.ContactPurgesTotal != nil {
		security.ContactPurgesTotal.WithLabelValues(result).Inc()
	}
}
