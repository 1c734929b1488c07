package models

import "time"

type EventStatus string

const (
	EventUpcoming  EventStatus = "upcoming"
	EventActive    EventStatus = "active"
	EventCompleted EventStatus = "completed"
	EventCancelled EventStatus = "cancelled"
)

// CanTransition reports whether the one-directional event lifecycle allows
// moving from s to next. Terminal states allow nothing.
func (s EventStatus) CanTransition(next EventStatus) bool {
	switch s {
	case EventUpcoming:
		return next == EventActive || next == EventCancelled
	case EventActive:
		return next == EventCompleted || next == EventCancelled
	default:
		return false
	}
}

type PresenceStatus string

const (
	PresenceAssigned   PresenceStatus = "assigned"
	PresenceCheckedIn  PresenceStatus = "checked-in"
	PresenceActive     PresenceStatus = "active"
	PresenceIdle       PresenceStatus = "idle"
	PresenceOutOfZone  PresenceStatus = "out-of-zone"
	PresenceCheckedOut PresenceStatus = "checked-out"
)

func (s PresenceStatus) Terminal() bool {
	return s == PresenceCheckedOut
}

// OnDuty reports whether the officer has checked in and not yet checked out.
func (s PresenceStatus) OnDuty() bool {
	switch s {
	case PresenceCheckedIn, PresenceActive, PresenceIdle, PresenceOutOfZone:
		return true
	}
	return false
}

type AlertType string

const (
	AlertIdle       AlertType = "idle"
	AlertOutOfZone  AlertType = "out-of-zone"
	AlertLowBattery AlertType = "low-battery"
	AlertEmergency  AlertType = "emergency"
)

type Geofence struct {
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	RadiusM float64 `json:"radius_m"`
}

type Event struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Description  string        `json:"description,omitempty"`
	LocationName string        `json:"location_name"`
	StartsAt     time.Time     `json:"starts_at"`
	EndsAt       time.Time     `json:"ends_at"`
	Geofence     Geofence      `json:"geofence"`
	SupervisorID string        `json:"supervisor_id"`
	Status       EventStatus   `json:"status"`
	Roster       []RosterEntry `json:"roster,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// RosterEntry is one officer's assignment to one event. It is owned by the
// event and mutated only through presence transitions and event lifecycle.
type RosterEntry struct {
	EventID      string         `json:"event_id"`
	OfficerID    string         `json:"officer_id"`
	Name         string         `json:"name"`
	Badge        string         `json:"badge"`
	Phone        string         `json:"phone"`
	Email        string         `json:"email,omitempty"`
	Status       PresenceStatus `json:"status"`
	CheckInTime  *time.Time     `json:"check_in_time,omitempty"`
	CheckOutTime *time.Time     `json:"check_out_time,omitempty"`
}

type AlertCondition struct {
	Type      AlertType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Resolved  bool      `json:"resolved"`
}

// TelemetryRecord is one location observation. Append-only, ordered by
// Timestamp per (officer, event).
type TelemetryRecord struct {
	ID           string           `json:"id"`
	OfficerID    string           `json:"officer_id"`
	EventID      string           `json:"event_id"`
	Timestamp    time.Time        `json:"timestamp"`
	Lat          float64          `json:"lat"`
	Lon          float64          `json:"lon"`
	AccuracyM    float64          `json:"accuracy_m"`
	BatteryLevel *int             `json:"battery_level,omitempty"`
	Address      string           `json:"address,omitempty"`
	Note         string           `json:"note,omitempty"`
	Status       PresenceStatus   `json:"status"`
	Alerts       []AlertCondition `json:"alerts,omitempty"`
}

type EventStats struct {
	TotalOfficers      int `json:"total_officers"`
	AttendanceRatePct  int `json:"attendance_rate_pct"`
	AvgResponseMinutes int `json:"avg_response_minutes"`
	TotalIdleMinutes   int `json:"total_idle_minutes"`
	ZoneViolations     int `json:"zone_violations"`
	EmergencyAlerts    int `json:"emergency_alerts"`
}

type OfficerPerformance struct {
	OfficerID      string     `json:"officer_id"`
	Name           string     `json:"name"`
	Badge          string     `json:"badge"`
	Attendance     bool       `json:"attendance"`
	CheckInTime    *time.Time `json:"check_in_time,omitempty"`
	CheckOutTime   *time.Time `json:"check_out_time,omitempty"`
	DutyMinutes    int        `json:"duty_minutes"`
	IdleAlerts     int        `json:"idle_alerts"`
	ZoneViolations int        `json:"zone_violations"`
	Score          int        `json:"score"`
}

type PerformanceRecord struct {
	ID              string               `json:"id"`
	EventID         string               `json:"event_id"`
	GeneratedBy     string               `json:"generated_by"`
	Summary         string               `json:"summary"`
	Recommendations []string             `json:"recommendations"`
	Stats           EventStats           `json:"stats"`
	Officers        []OfficerPerformance `json:"officers"`
	GeneratedAt     time.Time            `json:"generated_at"`
}
