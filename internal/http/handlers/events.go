package handlers

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/fieldsentry/backend/internal/alerting"
	"github.com/fieldsentry/backend/internal/geo"
	"github.com/fieldsentry/backend/internal/http/middleware"
	"github.com/fieldsentry/backend/internal/models"
	"github.com/fieldsentry/backend/internal/notify"
	"github.com/fieldsentry/backend/internal/presence"
)

type rosterEntryRequest struct {
	OfficerID string `json:"officer_id" validate:"required"`
	Name      string `json:"name" validate:"required"`
	Badge     string `json:"badge" validate:"required"`
	Phone     string `json:"phone" validate:"required"`
	Email     string `json:"email" validate:"omitempty,email"`
}

type createEventRequest struct {
	Name         string               `json:"name" validate:"required"`
	Description  string               `json:"description"`
	LocationName string               `json:"location_name" validate:"required"`
	StartsAt     time.Time            `json:"starts_at" validate:"required"`
	EndsAt       time.Time            `json:"ends_at" validate:"required"`
	Geofence     models.Geofence      `json:"geofence" validate:"required"`
	Roster       []rosterEntryRequest `json:"roster" validate:"dive"`
}

// @Summary Create event
// @Tags events
// @Accept json
// @Produce json
// @Param request body createEventRequest true "event"
// @Success 201 {object} models.Event
// @Failure 400 {object} map[string]any
// @Router /api/events [post]
func (h *Handler) CreateEvent(c *gin.Context) {
	var req createEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}
	if err := geo.Validate(req.Geofence.Lat, req.Geofence.Lon); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_GEOFENCE", "Geofence center is not a valid coordinate", err.Error())
		return
	}
	if req.Geofence.RadiusM <= 0 {
		writeError(c, http.StatusBadRequest, "INVALID_GEOFENCE", "Geofence radius must be positive", nil)
		return
	}
	if !req.EndsAt.After(req.StartsAt) {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "ends_at must be after starts_at", nil)
		return
	}

	now := time.Now().UTC()
	ev := models.Event{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Description:  req.Description,
		LocationName: req.LocationName,
		StartsAt:     req.StartsAt,
		EndsAt:       req.EndsAt,
		Geofence:     req.Geofence,
		SupervisorID: observerID(c),
		Status:       models.EventUpcoming,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	ctx := c.Request.Context()
	if err := h.Store.CreateEvent(ctx, ev); err != nil {
		writeDomainError(c, err)
		return
	}

	if len(req.Roster) > 0 {
		entries := rosterEntries(ev.ID, req.Roster)
		if _, err := h.Store.AddRosterEntries(ctx, ev.ID, entries); err != nil {
			writeDomainError(c, err)
			return
		}
		h.notifyAssignments(c, ev, entries)
	}

	created, err := h.Store.FindEvent(ctx, ev.ID)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// @Summary List events
// @Tags events
// @Produce json
// @Param status query string false "lifecycle filter"
// @Success 200 {array} models.Event
// @Router /api/events [get]
func (h *Handler) ListEvents(c *gin.Context) {
	status := models.EventStatus(c.Query("status"))
	limit, _ := strconv.Atoi(c.Query("limit"))

	var supervisorID, officerID string
	if c.GetString(middleware.ObserverRoleKey) == middleware.RoleSupervisor {
		supervisorID = observerID(c)
	} else {
		officerID = observerID(c)
	}

	events, err := h.Store.ListEvents(c.Request.Context(), supervisorID, officerID, status, limit)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	if events == nil {
		events = []models.Event{}
	}
	c.JSON(http.StatusOK, events)
}

// @Summary Event details
// @Tags events
// @Produce json
// @Param id path string true "event id"
// @Success 200 {object} models.Event
// @Failure 404 {object} map[string]any
// @Router /api/events/{id} [get]
func (h *Handler) GetEvent(c *gin.Context) {
	ev, err := h.Store.FindEvent(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, ev)
}

type updateStatusRequest struct {
	Status models.EventStatus `json:"status" validate:"required,oneof=active completed cancelled"`
}

// @Summary Transition event lifecycle
// @Description Activation notifies the roster. Completion or cancellation force-checks-out every open roster entry.
// @Tags events
// @Accept json
// @Produce json
// @Param id path string true "event id"
// @Param request body updateStatusRequest true "target status"
// @Success 200 {object} models.Event
// @Failure 400 {object} map[string]any
// @Router /api/events/{id}/status [patch]
func (h *Handler) UpdateEventStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	ctx := c.Request.Context()
	now := time.Now().UTC()
	ev, err := h.Store.TransitionEvent(ctx, c.Param("id"), req.Status, now)
	if err != nil {
		writeDomainError(c, err)
		return
	}

	switch ev.Status {
	case models.EventActive:
		text := notify.EventStartText(ev)
		for _, entry := range eventStartRecipients(ev) {
			h.enqueue(c, alerting.Task{
				Channel:   "message",
				To:        entry.Phone,
				Text:      text,
				Kind:      "event-start",
				EventID:   ev.ID,
				OfficerID: entry.OfficerID,
			})
		}
	case models.EventCompleted, models.EventCancelled:
		h.Hub.PublishEvent(ev.ID, presence.Update{
			Kind:      "event-closed",
			EventID:   ev.ID,
			Status:    models.PresenceCheckedOut,
			Message:   "Event " + string(ev.Status) + ", all officers checked out",
			Timestamp: now,
		})
	}

	c.JSON(http.StatusOK, ev)
}

type addRosterRequest struct {
	Entries []rosterEntryRequest `json:"entries" validate:"required,min=1,dive"`
}

// @Summary Add roster entries
// @Tags events
// @Accept json
// @Produce json
// @Param id path string true "event id"
// @Param request body addRosterRequest true "entries"
// @Success 200 {object} map[string]any
// @Router /api/events/{id}/roster [post]
func (h *Handler) AddRoster(c *gin.Context) {
	var req addRosterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	ctx := c.Request.Context()
	ev, err := h.Store.FindEvent(ctx, c.Param("id"))
	if err != nil {
		writeDomainError(c, err)
		return
	}

	entries := rosterEntries(ev.ID, req.Entries)
	inserted, err := h.Store.AddRosterEntries(ctx, ev.ID, entries)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	h.notifyAssignments(c, ev, entries)

	c.JSON(http.StatusOK, gin.H{"inserted": inserted})
}

// @Summary Import roster from a spreadsheet
// @Description Upload an .xlsx with columns officer_id, name, badge, phone, email on the first sheet.
// @Tags events
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "event id"
// @Param roster formData file true "roster.xlsx"
// @Success 200 {object} map[string]any
// @Failure 400 {object} map[string]any
// @Router /api/events/{id}/roster/import [post]
func (h *Handler) ImportRoster(c *gin.Context) {
	fileHeader, err := c.FormFile("roster")
	if err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "roster file required", nil)
		return
	}
	if !strings.EqualFold(filepath.Ext(fileHeader.Filename), ".xlsx") {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "roster file must be .xlsx", nil)
		return
	}

	ctx := c.Request.Context()
	ev, err := h.Store.FindEvent(ctx, c.Param("id"))
	if err != nil {
		writeDomainError(c, err)
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "cannot open upload", err.Error())
		return
	}
	defer f.Close()

	entries, parseErrs, err := parseRosterSheet(f, ev.ID)
	if err != nil {
		writeError(c, http.StatusBadRequest, "XLSX_PARSE_ERROR", "Cannot read spreadsheet", err.Error())
		return
	}
	if len(parseErrs) > 0 {
		writeError(c, http.StatusBadRequest, "XLSX_PARSE_ERROR", "Roster validation errors", parseErrs)
		return
	}
	if len(entries) == 0 {
		writeError(c, http.StatusBadRequest, "XLSX_PARSE_ERROR", "Spreadsheet has no roster rows", nil)
		return
	}

	inserted, err := h.Store.AddRosterEntries(ctx, ev.ID, entries)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	h.notifyAssignments(c, ev, entries)

	c.JSON(http.StatusOK, gin.H{
		"parsed":   len(entries),
		"inserted": inserted,
	})
}

func parseRosterSheet(r io.Reader, eventID string) ([]models.RosterEntry, []string, error) {
	wb, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, err
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, errors.New("workbook has no sheets")
	}
	rows, err := wb.GetRows(sheets[0])
	if err != nil {
		return nil, nil, err
	}

	var entries []models.RosterEntry
	var errs []string
	for i, row := range rows {
		if i == 0 { // header
			continue
		}
		cell := func(idx int) string {
			if idx < len(row) {
				return strings.TrimSpace(row[idx])
			}
			return ""
		}
		entry := models.RosterEntry{
			EventID:   eventID,
			OfficerID: cell(0),
			Name:      cell(1),
			Badge:     cell(2),
			Phone:     cell(3),
			Email:     cell(4),
			Status:    models.PresenceAssigned,
		}
		if entry.OfficerID == "" || entry.Name == "" || entry.Badge == "" || entry.Phone == "" {
			errs = append(errs, "row "+strconv.Itoa(i+1)+": officer_id, name, badge and phone are required")
			continue
		}
		entries = append(entries, entry)
	}
	return entries, errs, nil
}

// eventStartRecipients picks the officers who still need the start nudge;
// anyone already checked in has no use for it.
func eventStartRecipients(ev models.Event) []models.RosterEntry {
	var out []models.RosterEntry
	for _, entry := range ev.Roster {
		if entry.Status == models.PresenceAssigned {
			out = append(out, entry)
		}
	}
	return out
}

func rosterEntries(eventID string, reqs []rosterEntryRequest) []models.RosterEntry {
	entries := make([]models.RosterEntry, 0, len(reqs))
	for _, r := range reqs {
		entries = append(entries, models.RosterEntry{
			EventID:   eventID,
			OfficerID: r.OfficerID,
			Name:      r.Name,
			Badge:     r.Badge,
			Phone:     r.Phone,
			Email:     r.Email,
			Status:    models.PresenceAssigned,
		})
	}
	return entries
}

func (h *Handler) notifyAssignments(c *gin.Context, ev models.Event, entries []models.RosterEntry) {
	text := notify.AssignmentText(ev)
	for _, entry := range entries {
		h.enqueue(c, alerting.Task{
			Channel:   "message",
			To:        entry.Phone,
			Text:      text,
			Kind:      "assignment",
			EventID:   ev.ID,
			OfficerID: entry.OfficerID,
		})
	}
}

// enqueue never fails the request; notification delivery is best effort.
func (h *Handler) enqueue(c *gin.Context, task alerting.Task) {
	if h.Queue == nil {
		return
	}
	if err := h.Queue.Enqueue(c.Request.Context(), task); err != nil {
		h.Logger.Error().Err(err).Str("kind", task.Kind).Str("officer_id", task.OfficerID).Msg("failed to enqueue notification")
	}
}
