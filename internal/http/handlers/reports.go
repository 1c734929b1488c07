package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/fieldsentry/backend/internal/models"
)

// @Summary Generate performance report
// @Description Aggregates the event's telemetry once; repeated calls return the stored report.
// @Tags reports
// @Produce json
// @Param id path string true "event id"
// @Success 200 {object} models.PerformanceRecord
// @Failure 404 {object} map[string]any
// @Router /api/events/{id}/report [post]
func (h *Handler) GenerateReport(c *gin.Context) {
	rec, err := h.Reports.Generate(c.Request.Context(), c.Param("id"), observerID(c))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// @Summary Fetch a stored report
// @Tags reports
// @Produce json
// @Param id path string true "event id"
// @Success 200 {object} models.PerformanceRecord
// @Failure 404 {object} map[string]any
// @Router /api/events/{id}/report [get]
func (h *Handler) GetReport(c *gin.Context) {
	rec, err := h.Store.FindPerformanceRecord(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	if rec == nil {
		writeError(c, http.StatusNotFound, "NOT_FOUND", "No report generated for this event", nil)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// @Summary List reports
// @Tags reports
// @Produce json
// @Param mine query bool false "only reports the caller generated"
// @Param limit query int false "max records"
// @Success 200 {array} models.PerformanceRecord
// @Router /api/reports [get]
func (h *Handler) ListReports(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	var generatedBy string
	if c.Query("mine") == "true" {
		generatedBy = observerID(c)
	}

	recs, err := h.Store.ListPerformanceRecords(c.Request.Context(), generatedBy, limit)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	if recs == nil {
		recs = []models.PerformanceRecord{}
	}
	c.JSON(http.StatusOK, recs)
}
