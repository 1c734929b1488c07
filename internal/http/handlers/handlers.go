package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/fieldsentry/backend/internal/alerting"
	"github.com/fieldsentry/backend/internal/broadcast"
	"github.com/fieldsentry/backend/internal/db"
	"github.com/fieldsentry/backend/internal/geo"
	"github.com/fieldsentry/backend/internal/http/middleware"
	"github.com/fieldsentry/backend/internal/presence"
	"github.com/fieldsentry/backend/internal/report"
)

type Handler struct {
	Store     *db.Store
	Tracker   *presence.Tracker
	Reports   *report.Generator
	Hub       *broadcast.Hub
	Queue     alerting.Queue
	Validator *validator.Validate
	Logger    zerolog.Logger
}

func (h *Handler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()
	if err := h.Store.Ping(ctx); err != nil {
		writeError(c, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "Database unavailable", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func observerID(c *gin.Context) string {
	return c.GetString(middleware.ObserverIDKey)
}

func writeError(c *gin.Context, status int, code string, message string, details any) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}

// writeDomainError maps domain sentinels onto the error envelope. Anything
// unmapped is a 500.
func writeDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, geo.ErrMalformedCoordinate):
		writeError(c, http.StatusBadRequest, "INVALID_OBSERVATION", "Malformed location payload", err.Error())
	case errors.Is(err, presence.ErrNotAssigned):
		writeError(c, http.StatusForbidden, "NOT_ASSIGNED", "Officer is not on the event roster", err.Error())
	case errors.Is(err, presence.ErrAlreadyCheckedIn):
		writeError(c, http.StatusConflict, "ALREADY_CHECKED_IN", "Officer already checked in", err.Error())
	case errors.Is(err, presence.ErrInvalidTransition):
		writeError(c, http.StatusBadRequest, "INVALID_TRANSITION", "Presence transition not allowed", err.Error())
	case errors.Is(err, db.ErrLifecycle):
		writeError(c, http.StatusBadRequest, "INVALID_TRANSITION", "Event lifecycle transition not allowed", err.Error())
	case errors.Is(err, db.ErrNotFound):
		writeError(c, http.StatusNotFound, "NOT_FOUND", "Resource not found", err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Unexpected error", err.Error())
	}
}
