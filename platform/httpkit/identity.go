package httpkit

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Identity is the caller resolved by AuthRequired.
type Identity struct {
	UserID   uuid.UUID
	ClientID uuid.UUID
}

// GetIdentity extracts the caller identity set by AuthRequired.
func GetIdentity(c *gin.Context) (Identity, bool) {
	userID, okUser := c.Get(ContextUserIDKey)
	clientID, okClient := c.Get(ContextClientIDKey)
	if !okUser || !okClient {
		return Identity{}, false
	}

	uid, ok1 := userID.(uuid.UUID)
	cid, ok2 := clientID.(uuid.UUID)
	if !ok1 || !ok2 {
		return Identity{}, false
	}
	return Identity{UserID: uid, ClientID: cid}, true
}

// MustIdentity writes a 401 and returns false when no identity is present.
func MustIdentity(c *gin.Context) (Identity, bool) {
	id, ok := GetIdentity(c)
	if !ok {
		Error(c, http.StatusUnauthorized, "missing identity", nil)
		return Identity{}, false
	}
	return id, true
}
