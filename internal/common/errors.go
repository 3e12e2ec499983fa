package common

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Domain errors shared by all services. Services wrap them with context via
// fmt.Errorf("...: %w", err); handlers map them to status codes.
var (
	ErrNotFoundOrForbidden = errors.New("not found or not owned by user")
	ErrInvalidSelection    = errors.New("invalid battery selection")
	ErrPlanLimitReached    = errors.New("plan limit reached")
	ErrShrinkInstalled     = errors.New("cannot remove batteries that are installed in a device")
	ErrInvalidTransition   = errors.New("invalid battery status transition")
	ErrValidation          = errors.New("validation failed")
	ErrInvalidImage        = errors.New("invalid image")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrConflict            = errors.New("conflict")
)

// StatusFor maps a service error to an HTTP status code.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrNotFoundOrForbidden):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidSelection),
		errors.Is(err, ErrValidation),
		errors.Is(err, ErrInvalidImage):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrPlanLimitReached):
		return http.StatusForbidden
	case errors.Is(err, ErrShrinkInstalled), errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidTransition):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// RespondError writes {"error": "..."} with the mapped status. Internal
// errors are logged and their details hidden from the client.
func RespondError(c *gin.Context, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		log.WithError(err).WithField("path", c.FullPath()).Error("request failed")
		c.JSON(status, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
