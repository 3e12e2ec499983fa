package middleware

import (
	"net/http"

	"battdevy/internal/common"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// DemoChecker interface to avoid import cycle
type DemoChecker interface {
	IsDemoUser(userID uuid.UUID) bool
}

// DemoGuard blocks the routes it wraps for the shared demo account, so
// visitors cannot change its plan or profile for everybody else.
func DemoGuard(checker DemoChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := common.GetUserID(c)
		if err != nil {
			// User not authenticated, continue
			c.Next()
			return
		}

		if checker.IsDemoUser(userID) {
			log.Debugf("🔒 [DEMO] blocked %s %s", c.Request.Method, c.FullPath())
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "not available for the demo account"})
			return
		}

		c.Next()
	}
}
