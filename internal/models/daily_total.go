package models

// DailyTotal is the per-user, per-day activity aggregate. Exactly one row per
// (user, day), maintained via UPSERT as sessions complete.
type DailyTotal struct {
	ID                int     `json:"id" db:"id"`
	UserID            string  `json:"user_id" db:"user_id"`
	Day               string  `json:"day" db:"day"` // YYYY-MM-DD, user-local
	Steps             int     `json:"steps" db:"steps"`
	DistanceKm        float64 `json:"distance_km" db:"distance_km"`
	ActiveSeconds     int64   `json:"active_seconds" db:"active_seconds"`
	SessionsCompleted int     `json:"sessions_completed" db:"sessions_completed"`
	CreatedAt         int64   `json:"created_at" db:"created_at"`
	UpdatedAt         int64   `json:"updated_at" db:"updated_at"`
}

// ActivityStats summarizes a date range for the member stats screen
type ActivityStats struct {
	Days            int     `json:"days" db:"days"`
	TotalSteps      int     `json:"total_steps" db:"total_steps"`
	TotalDistanceKm float64 `json:"total_distance_km" db:"total_distance_km"`
	TotalActiveSec  int64   `json:"total_active_seconds" db:"total_active_seconds"`
	TotalSessions   int     `json:"total_sessions" db:"total_sessions"`
	BestDaySteps    int     `json:"best_day_steps" db:"best_day_steps"`
}
