package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/fieldsentry/backend/internal/models"
)

type checkInRequest struct {
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	AccuracyM float64 `json:"accuracy_m"`
}

// @Summary Check in to an event
// @Tags presence
// @Accept json
// @Produce json
// @Param id path string true "event id"
// @Param request body checkInRequest true "location"
// @Success 200 {object} presence.CheckInResult
// @Failure 403 {object} map[string]any
// @Failure 409 {object} map[string]any
// @Router /api/events/{id}/check-in [post]
func (h *Handler) CheckIn(c *gin.Context) {
	var req checkInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", err.Error())
		return
	}

	res, err := h.Tracker.CheckIn(c.Request.Context(), observerID(c), c.Param("id"), req.Lat, req.Lon, req.AccuracyM)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// @Summary Check out of an event
// @Tags presence
// @Accept json
// @Produce json
// @Param id path string true "event id"
// @Param request body checkInRequest true "location"
// @Success 200 {object} presence.CheckOutResult
// @Failure 400 {object} map[string]any
// @Router /api/events/{id}/check-out [post]
func (h *Handler) CheckOut(c *gin.Context) {
	var req checkInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", err.Error())
		return
	}

	res, err := h.Tracker.CheckOut(c.Request.Context(), observerID(c), c.Param("id"), req.Lat, req.Lon, req.AccuracyM)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type pingRequest struct {
	Lat          float64 `json:"lat"`
	Lon          float64 `json:"lon"`
	AccuracyM    float64 `json:"accuracy_m"`
	BatteryLevel *int    `json:"battery_level"`
}

// @Summary Submit a location ping
// @Tags presence
// @Accept json
// @Produce json
// @Param id path string true "event id"
// @Param request body pingRequest true "observation"
// @Success 200 {object} presence.PingResult
// @Failure 400 {object} map[string]any
// @Router /api/events/{id}/pings [post]
func (h *Handler) SubmitPing(c *gin.Context) {
	var req pingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", err.Error())
		return
	}

	res, err := h.Tracker.SubmitPing(c.Request.Context(), observerID(c), c.Param("id"), req.Lat, req.Lon, req.AccuracyM, req.BatteryLevel)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type emergencyRequest struct {
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Message string  `json:"message"`
}

// @Summary Trigger an emergency alert
// @Tags presence
// @Accept json
// @Produce json
// @Param id path string true "event id"
// @Param request body emergencyRequest true "location and note"
// @Success 202 {object} map[string]any
// @Router /api/events/{id}/emergency [post]
func (h *Handler) TriggerEmergency(c *gin.Context) {
	var req emergencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", err.Error())
		return
	}

	err := h.Tracker.TriggerEmergency(c.Request.Context(), observerID(c), c.Param("id"), req.Lat, req.Lon, req.Message)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "dispatched"})
}

// @Summary Current assignment
// @Description The caller's next upcoming or active event with their roster entry.
// @Tags presence
// @Produce json
// @Success 200 {object} map[string]any
// @Failure 404 {object} map[string]any
// @Router /api/assignments/current [get]
func (h *Handler) CurrentAssignment(c *gin.Context) {
	ev, entry, err := h.Store.FindCurrentAssignment(c.Request.Context(), observerID(c))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"event":  ev,
		"roster": entry,
	})
}

// @Summary Officer tracking history
// @Tags presence
// @Produce json
// @Param id path string true "event id"
// @Param officerId path string true "officer id"
// @Param limit query int false "max records, newest first"
// @Success 200 {array} models.TelemetryRecord
// @Router /api/events/{id}/officers/{officerId}/telemetry [get]
func (h *Handler) TrackingHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	recs, err := h.Store.ListOfficerTelemetry(c.Request.Context(), c.Param("id"), c.Param("officerId"), limit)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	if recs == nil {
		recs = []models.TelemetryRecord{}
	}
	c.JSON(http.StatusOK, recs)
}
