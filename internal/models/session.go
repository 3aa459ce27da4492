package models

import (
	"database/sql"
	"time"
)

// SessionStatus represents the lifecycle state of a tracked session
type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "active"    // Tracking in progress
	SessionStatusCompleted SessionStatus = "completed" // Ended with a final snapshot
)

// DataSource identifies where a session's movement data comes from
type DataSource string

const (
	DataSourceGPS   DataSource = "gps"   // Live position stream
	DataSourceSteps DataSource = "steps" // Pedometer counts only
)

// RoutePoint is one recorded position along a session's path.
// Accuracy and raw speed from the source are not retained.
type RoutePoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timestamp int64   `json:"timestamp"` // milliseconds since epoch
}

// Session represents one tracked activity session
type Session struct {
	ID              string        `json:"id" db:"id"`
	UserID          string        `json:"user_id" db:"user_id"`
	DataSource      DataSource    `json:"data_source" db:"data_source"`
	Status          SessionStatus `json:"status" db:"status"`
	StartedAt       int64         `json:"started_at" db:"started_at"`
	EndedAt         *int64        `json:"ended_at" db:"ended_at"`
	DurationSeconds int64         `json:"duration_seconds" db:"duration_seconds"`
	DistanceKm      float64       `json:"distance_km" db:"distance_km"`
	Steps           int           `json:"steps" db:"steps"`
	AvgSpeedKmh     float64       `json:"avg_speed_kmh" db:"avg_speed_kmh"`
	MaxSpeedKmh     float64       `json:"max_speed_kmh" db:"max_speed_kmh"`
	AvgPaceMinKm    float64       `json:"avg_pace_min_km" db:"avg_pace_min_km"`
	StartLabel      *string       `json:"start_label" db:"start_label"`
	RoutePoints     []RoutePoint  `json:"route_points" db:"-"`
	CreatedAt       int64         `json:"created_at" db:"created_at"`
	UpdatedAt       int64         `json:"updated_at" db:"updated_at"`
}

// ElapsedSeconds returns the wall-clock duration since the session started.
func (s *Session) ElapsedSeconds() int64 {
	if s.StartedAt == 0 {
		return 0
	}
	elapsed := time.Now().Unix() - s.StartedAt
	if elapsed < 0 {
		elapsed = 0
	}
	return elapsed
}

// SessionSnapshot is the owned copy handed to the caller when a session ends,
// for folding into cross-cutting aggregates like daily totals.
type SessionSnapshot struct {
	SessionID       string       `json:"session_id"`
	UserID          string       `json:"user_id"`
	DataSource      DataSource   `json:"data_source"`
	StartedAt       int64        `json:"started_at"`
	EndedAt         int64        `json:"ended_at"`
	DurationSeconds int64        `json:"duration_seconds"`
	DistanceKm      float64      `json:"distance_km"`
	Steps           int          `json:"steps"`
	AvgSpeedKmh     float64      `json:"avg_speed_kmh"`
	MaxSpeedKmh     float64      `json:"max_speed_kmh"`
	AvgPaceMinPerKm float64      `json:"avg_pace_min_per_km"`
	RoutePoints     []RoutePoint `json:"route_points"`
}

// ToNullInt64 converts a pointer to int64 to sql.NullInt64
func ToNullInt64(i *int64) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{Valid: false}
	}
	return sql.NullInt64{Int64: *i, Valid: true}
}

// FromNullInt64 converts sql.NullInt64 to pointer to int64
func FromNullInt64(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	return &n.Int64
}

// ToNullString converts a pointer to string to sql.NullString
func ToNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: *s, Valid: true}
}

// FromNullString converts sql.NullString to pointer to string
func FromNullString(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	return &n.String
}
