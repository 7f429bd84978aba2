package api

import (
	"errors"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"

	"hostel-allocation-backend/internal/apperr"
	"hostel-allocation-backend/internal/ballot"
	"hostel-allocation-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store   store.Store
	ballot  *ballot.Service
	webpush *webpush.Options
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, svc *ballot.Service, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		store:   s,
		ballot:  svc,
		webpush: webpushOptions,
	}
}

// actorID returns the acting user's id. Authentication happens upstream;
// this service trusts the forwarded identity header.
func actorID(c *gin.Context) string {
	return c.GetHeader("X-Actor-ID")
}

// abortWithError maps a domain error onto its HTTP response.
func abortWithError(c *gin.Context, err error) {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		c.AbortWithStatusJSON(ae.Status, gin.H{"error": ae.Message, "code": ae.Code})
		return
	}
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "code": apperr.CodeDB})
}
