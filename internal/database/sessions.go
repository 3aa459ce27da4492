package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"hotstepper-backend/internal/models"

	"github.com/jmoiron/sqlx"
)

// SessionStore is the sqlx-backed implementation of the tracker's
// persistence boundary.
type SessionStore struct {
	db *sqlx.DB
}

func NewSessionStore(db *sqlx.DB) *SessionStore {
	return &SessionStore{db: db}
}

func (s *SessionStore) CreateSession(ctx context.Context, session *models.Session) error {
	query := `INSERT INTO sessions (id, user_id, data_source, status, started_at, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.db.ExecContext(ctx, query,
		session.ID,
		session.UserID,
		session.DataSource,
		session.Status,
		session.StartedAt,
		session.CreatedAt,
		session.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (s *SessionStore) SyncSessionStats(ctx context.Context, session *models.Session) error {
	query := `UPDATE sessions
			  SET distance_km = $1,
				  steps = $2,
				  avg_speed_kmh = $3,
				  max_speed_kmh = $4,
				  avg_pace_min_km = $5,
				  updated_at = $6
			  WHERE id = $7 AND status = 'active'`

	_, err := s.db.ExecContext(ctx, query,
		session.DistanceKm,
		session.Steps,
		session.AvgSpeedKmh,
		session.MaxSpeedKmh,
		session.AvgPaceMinKm,
		time.Now().Unix(),
		session.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to sync session stats: %w", err)
	}
	return nil
}

func (s *SessionStore) FinishSession(ctx context.Context, session *models.Session) error {
	points, err := json.Marshal(session.RoutePoints)
	if err != nil {
		return fmt.Errorf("failed to encode route points: %w", err)
	}

	query := `UPDATE sessions
			  SET status = $1,
				  ended_at = $2,
				  duration_seconds = $3,
				  distance_km = $4,
				  steps = $5,
				  avg_speed_kmh = $6,
				  max_speed_kmh = $7,
				  avg_pace_min_km = $8,
				  start_label = $9,
				  route_points = $10,
				  updated_at = $11
			  WHERE id = $12`

	result, err := s.db.ExecContext(ctx, query,
		session.Status,
		models.ToNullInt64(session.EndedAt),
		session.DurationSeconds,
		session.DistanceKm,
		session.Steps,
		session.AvgSpeedKmh,
		session.MaxSpeedKmh,
		session.AvgPaceMinKm,
		models.ToNullString(session.StartLabel),
		points,
		time.Now().Unix(),
		session.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish session: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("session %s not found", session.ID)
	}
	return nil
}

func (s *SessionStore) ActiveSession(ctx context.Context, userID string) (*models.Session, error) {
	var row sessionRow
	query := `SELECT * FROM sessions
			  WHERE user_id = $1 AND status = 'active'
			  ORDER BY started_at DESC
			  LIMIT 1`

	err := s.db.GetContext(ctx, &row, query, userID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query active session: %w", err)
	}

	return row.toSession()
}

// sessionRow carries the JSONB route_points column alongside the model
// fields for sqlx scanning.
type sessionRow struct {
	models.Session
	RoutePointsRaw []byte `db:"route_points"`
}

func (r *sessionRow) toSession() (*models.Session, error) {
	session := r.Session
	session.RoutePoints = []models.RoutePoint{}
	if len(r.RoutePointsRaw) > 0 {
		if err := json.Unmarshal(r.RoutePointsRaw, &session.RoutePoints); err != nil {
			return nil, fmt.Errorf("failed to decode route points: %w", err)
		}
	}
	return &session, nil
}

// SessionByID loads one session with its embedded route, scoped to the owner.
func (s *SessionStore) SessionByID(ctx context.Context, userID, sessionID string) (*models.Session, error) {
	var row sessionRow
	query := `SELECT * FROM sessions WHERE id = $1 AND user_id = $2`

	err := s.db.GetContext(ctx, &row, query, sessionID, userID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session: %w", err)
	}
	return row.toSession()
}

// SessionHistory lists the user's completed sessions, most recent first.
// Route points are not hydrated for list views.
func (s *SessionStore) SessionHistory(ctx context.Context, userID string, limit int) ([]models.Session, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	var sessions []models.Session
	query := `SELECT id, user_id, data_source, status, started_at, ended_at,
					 duration_seconds, distance_km, steps, avg_speed_kmh,
					 max_speed_kmh, avg_pace_min_km, start_label, created_at, updated_at
			  FROM sessions
			  WHERE user_id = $1 AND status = 'completed'
			  ORDER BY started_at DESC
			  LIMIT $2`

	if err := s.db.SelectContext(ctx, &sessions, query, userID, limit); err != nil {
		return nil, fmt.Errorf("failed to query session history: %w", err)
	}
	return sessions, nil
}

// UpsertDailyTotal folds a session snapshot into the (user, day) aggregate.
// The uniqueness constraint makes concurrent session ends race-free.
func (s *SessionStore) UpsertDailyTotal(ctx context.Context, snapshot *models.SessionSnapshot) (*models.DailyTotal, error) {
	day := time.Unix(snapshot.EndedAt, 0).Format("2006-01-02")
	now := time.Now().Unix()

	query := `INSERT INTO daily_totals (user_id, day, steps, distance_km, active_seconds, sessions_completed, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, 1, $6, $6)
			  ON CONFLICT (user_id, day)
			  DO UPDATE SET
				  steps = daily_totals.steps + EXCLUDED.steps,
				  distance_km = daily_totals.distance_km + EXCLUDED.distance_km,
				  active_seconds = daily_totals.active_seconds + EXCLUDED.active_seconds,
				  sessions_completed = daily_totals.sessions_completed + 1,
				  updated_at = EXCLUDED.updated_at
			  RETURNING *`

	var total models.DailyTotal
	err := s.db.GetContext(ctx, &total, query,
		snapshot.UserID,
		day,
		snapshot.Steps,
		snapshot.DistanceKm,
		snapshot.DurationSeconds,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert daily total: %w", err)
	}
	return &total, nil
}

// DailyTotals returns the user's per-day aggregates inside [from, to], both
// YYYY-MM-DD inclusive.
func (s *SessionStore) DailyTotals(ctx context.Context, userID, from, to string) ([]models.DailyTotal, error) {
	var totals []models.DailyTotal
	query := `SELECT * FROM daily_totals
			  WHERE user_id = $1 AND day >= $2 AND day <= $3
			  ORDER BY day ASC`

	if err := s.db.SelectContext(ctx, &totals, query, userID, from, to); err != nil {
		return nil, fmt.Errorf("failed to query daily totals: %w", err)
	}
	return totals, nil
}

// ActivityStats aggregates a date range for the member stats screen.
func (s *SessionStore) ActivityStats(ctx context.Context, userID, from, to string) (*models.ActivityStats, error) {
	var stats models.ActivityStats
	query := `SELECT
				  COUNT(*) AS days,
				  COALESCE(SUM(steps), 0) AS total_steps,
				  COALESCE(SUM(distance_km), 0) AS total_distance_km,
				  COALESCE(SUM(active_seconds), 0) AS total_active_seconds,
				  COALESCE(SUM(sessions_completed), 0) AS total_sessions,
				  COALESCE(MAX(steps), 0) AS best_day_steps
			  FROM daily_totals
			  WHERE user_id = $1 AND day >= $2 AND day <= $3`

	if err := s.db.GetContext(ctx, &stats, query, userID, from, to); err != nil {
		return nil, fmt.Errorf("failed to query activity stats: %w", err)
	}
	return &stats, nil
}
