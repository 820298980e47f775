package security

import (
	"net/http"
	"strings"

	registrystore "github.com/brokerdesk/whatsapp-service/internal/registry/store"
	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
)

// ContextKeyRole is the gin context key for the caller's matched role.
const ContextKeyRole = "role"

// GetRole returns the caller's matched role from the gin context.
func GetRole(c *gin.Context) string {
	return c.GetString(ContextKeyRole)
}

// SplitRoles parses a comma-separated role list.
func SplitRoles(raw string) []string {
	var roles []string
	for _, part := range strings.Split(raw, ",") {
		if role := strings.TrimSpace(part); role != "" {
			roles = append(roles, role)
		}
	}
	return roles
}

// RequireAnyRole returns a gin middleware that authorizes the caller when
// they hold at least one of the given roles. The check is disjunctive: one
// match is sufficient, and which role matched does not scope anything.
// A failed lookup is reported as a server error, never as a denial.
func RequireAnyRole(store registrystore.ChatStore, roles []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := GetUserID(c)
		role, err := store.FindRole(c.Request.Context(), userID, roles)
		if err != nil {
			log.Error("Role lookup failed", "user", userID, "err", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "permission check failed"})
			return
		}
		if role == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Set(ContextKeyRole, role)
		c.Next()
	}
}
