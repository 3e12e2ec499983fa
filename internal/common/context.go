package common

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ContextUserIDKey is the gin context key set by the auth middleware.
const ContextUserIDKey = "user_id"

// GetUserID extracts the acting owner from the request context. Only the
// auth middleware sets it; there is no header or query fallback.
func GetUserID(c *gin.Context) (uuid.UUID, error) {
	v, exists := c.Get(ContextUserIDKey)
	if !exists {
		return uuid.Nil, fmt.Errorf("user ID required: %w", ErrUnauthorized)
	}
	switch id := v.(type) {
	case uuid.UUID:
		return id, nil
	case string:
		parsed, err := uuid.Parse(id)
		if err != nil {
			return uuid.Nil, fmt.Errorf("invalid user ID: %w", ErrUnauthorized)
		}
		return parsed, nil
	}
	return uuid.Nil, fmt.Errorf("invalid user ID type %T: %w", v, ErrUnauthorized)
}

// ParamUUID parses a UUID route parameter.
func ParamUUID(c *gin.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s: %w", name, ErrValidation)
	}
	return id, nil
}

// QueryBool parses an optional true/false query parameter. Absent or empty
// yields nil.
func QueryBool(c *gin.Context, name string) (*bool, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q: %w", name, raw, ErrValidation)
	}
	return &v, nil
}

// QueryDesc reports whether the "order" query parameter asks for
// descending order. Anything but "asc"/"desc"/"" is rejected.
func QueryDesc(c *gin.Context) (bool, error) {
	switch strings.ToLower(c.Query("order")) {
	case "", "asc":
		return false, nil
	case "desc":
		return true, nil
	}
	return false, fmt.Errorf("invalid order %q: %w", c.Query("order"), ErrValidation)
}
