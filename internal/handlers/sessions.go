package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"hotstepper-backend/internal/database"
	"hotstepper-backend/internal/middleware"
	"hotstepper-backend/internal/models"
	"hotstepper-backend/internal/services"
	"hotstepper-backend/internal/tracker"
	"hotstepper-backend/internal/websocket"
	"hotstepper-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"
)

func getClaims(r *http.Request, w http.ResponseWriter) (middleware.UserClaims, bool) {
	userClaims, ok := middleware.GetUserFromContext(r)
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
	}
	return userClaims, ok
}

// StartSession opens a new tracked session for the authenticated member
func StartSession(registry *tracker.Registry, hub *websocket.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Printf("📥 REQUEST: POST /api/tracker/session/start")

		userClaims, ok := getClaims(r, w)
		if !ok {
			return
		}

		var req struct {
			DataSource models.DataSource `json:"data_source"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if req.DataSource != models.DataSourceGPS && req.DataSource != models.DataSourceSteps {
			utils.RespondError(w, http.StatusBadRequest, "data_source must be 'gps' or 'steps'")
			return
		}

		manager := registry.Manager(userClaims.UserID)
		session, err := manager.Start(r.Context(), req.DataSource)
		if errors.Is(err, tracker.ErrSessionActive) {
			log.Printf("⚠️  Double start refused for %s", userClaims.UserID)
			utils.RespondError(w, http.StatusConflict, "A session is already active. End it first.")
			return
		}
		if err != nil {
			log.Printf("❌ Error starting session: %v", err)
			utils.RespondError(w, http.StatusInternalServerError, "Failed to start session")
			return
		}

		// Let coaches see the member go live
		hub.BroadcastToRole("admin", map[string]interface{}{
			"type": "member_session_change",
			"data": map[string]interface{}{
				"user_id":    session.UserID,
				"session_id": session.ID,
				"status":     session.Status,
			},
		})

		log.Printf("✅ Session started: %s (%s, %s)", session.ID, userClaims.Email, session.DataSource)

		utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"data":    session,
		})
	}
}

// EndSession closes the active session, folds its snapshot into the daily
// totals, and fires the push notifications
func EndSession(db *sqlx.DB, store *database.SessionStore, registry *tracker.Registry, hub *websocket.Hub, fcm *services.FCMService, geocoder *services.GeocodingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Printf("📥 REQUEST: POST /api/tracker/session/end")

		userClaims, ok := getClaims(r, w)
		if !ok {
			return
		}

		manager := registry.Manager(userClaims.UserID)
		snapshot, err := manager.End(r.Context())
		if err != nil {
			log.Printf("❌ Error ending session: %v", err)
			utils.RespondError(w, http.StatusInternalServerError, "Failed to end session")
			return
		}
		if snapshot == nil {
			utils.RespondError(w, http.StatusBadRequest, "No active session to end")
			return
		}

		// Label where the session started. Best effort: the record is
		// already final without it.
		if geocoder != nil && len(snapshot.RoutePoints) > 0 {
			start := snapshot.RoutePoints[0]
			if label, gerr := geocoder.ReverseGeocode(start.Latitude, start.Longitude); gerr == nil {
				if _, lerr := db.Exec(`UPDATE sessions SET start_label = $1 WHERE id = $2`, label, snapshot.SessionID); lerr != nil {
					log.Printf("⚠️ Failed to store start label: %v", lerr)
				}
			} else {
				log.Printf("⚠️ Reverse geocode failed: %v", gerr)
			}
		}

		// Fold the snapshot into the (user, day) aggregate
		total, err := store.UpsertDailyTotal(r.Context(), snapshot)
		if err != nil {
			log.Printf("⚠️ Failed to update daily totals: %v", err)
			// The session itself ended cleanly - keep going
		}

		hub.BroadcastToRole("admin", map[string]interface{}{
			"type": "member_session_change",
			"data": map[string]interface{}{
				"user_id":    snapshot.UserID,
				"session_id": snapshot.SessionID,
				"status":     models.SessionStatusCompleted,
			},
		})

		if fcm != nil {
			go notifySessionEnd(db, fcm, userClaims.UserID, snapshot, total)
		}

		log.Printf("🏁 Session ended: %s (%.2f km, %ds)", snapshot.SessionID, snapshot.DistanceKm, snapshot.DurationSeconds)

		utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"data": map[string]interface{}{
				"snapshot":    snapshot,
				"daily_total": total,
			},
		})
	}
}

// notifySessionEnd pushes the session summary and, when today's total just
// crossed the member's goal, the congratulations.
func notifySessionEnd(db *sqlx.DB, fcm *services.FCMService, userID string, snapshot *models.SessionSnapshot, total *models.DailyTotal) {
	var tokens []string
	if err := db.Select(&tokens, `SELECT token FROM fcm_tokens WHERE user_id = $1`, userID); err != nil {
		log.Printf("⚠️ Failed to load FCM tokens for %s: %v", userID, err)
		return
	}
	if len(tokens) == 0 {
		return
	}

	var goal int
	if err := db.Get(&goal, `SELECT step_goal FROM users WHERE id = $1`, userID); err != nil {
		goal = 10000
	}

	goalCrossed := total != nil && total.Steps >= goal && total.Steps-snapshot.Steps < goal

	for _, token := range tokens {
		if err := fcm.SendSessionSummaryNotification(token, snapshot.DistanceKm, snapshot.DurationSeconds, snapshot.Steps); err != nil {
			log.Printf("⚠️ Session summary push failed: %v", err)
		}
		if goalCrossed {
			if err := fcm.SendStepGoalReachedNotification(token, total.Steps, goal); err != nil {
				log.Printf("⚠️ Step goal push failed: %v", err)
			}
		}
	}
}

// GetCurrentSession returns the active session, rehydrating from the store
// after an app reload. GPS watching is not resumed automatically; the client
// re-posts positions or calls retry.
func GetCurrentSession(registry *tracker.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userClaims, ok := getClaims(r, w)
		if !ok {
			return
		}

		manager := registry.Manager(userClaims.UserID)
		session, err := manager.FetchActive(r.Context())
		if err != nil {
			log.Printf("❌ Error fetching active session: %v", err)
			utils.RespondError(w, http.StatusInternalServerError, "Database error")
			return
		}
		if session == nil {
			utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
				"success": true,
				"data":    nil,
			})
			return
		}

		utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"data": map[string]interface{}{
				"session": session,
				"stats":   manager.TrackerStats(),
			},
		})
	}
}

// UpdatePosition ingests one position sample from the client (the HTTP
// fallback to the WebSocket stream)
func UpdatePosition(registry *tracker.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userClaims, ok := getClaims(r, w)
		if !ok {
			return
		}

		var sample tracker.PositionSample
		if err := json.NewDecoder(r.Body).Decode(&sample); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if sample.Latitude == 0 && sample.Longitude == 0 {
			utils.RespondError(w, http.StatusBadRequest, "Invalid coordinates")
			return
		}
		if sample.Timestamp == 0 {
			sample.Timestamp = time.Now().UnixMilli()
		}

		manager := registry.Manager(userClaims.UserID)
		if !manager.Feed(sample) {
			utils.RespondError(w, http.StatusConflict, "No active GPS watch for this session")
			return
		}

		utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"data":    manager.TrackerStats(),
		})
	}
}

// UpdateSteps ingests a pedometer count for the active session
func UpdateSteps(registry *tracker.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userClaims, ok := getClaims(r, w)
		if !ok {
			return
		}

		var req struct {
			Steps int `json:"steps"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if req.Steps < 0 {
			utils.RespondError(w, http.StatusBadRequest, "steps must be non-negative")
			return
		}

		registry.Manager(userClaims.UserID).UpdateSteps(req.Steps)

		utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
		})
	}
}

// RetryGPS restarts the tracking cycle after a source failure (explicit,
// user-initiated; there is no automatic retry)
func RetryGPS(registry *tracker.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userClaims, ok := getClaims(r, w)
		if !ok {
			return
		}

		manager := registry.Manager(userClaims.UserID)
		if err := manager.RetryGPS(); err != nil {
			log.Printf("❌ GPS retry failed for %s: %v", userClaims.UserID, err)
			// Status/error already captured in tracker state; report it
		}

		utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"data":    manager.TrackerStats(),
		})
	}
}

// GetSessionHistory returns the member's completed sessions, most recent first
func GetSessionHistory(store *database.SessionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userClaims, ok := getClaims(r, w)
		if !ok {
			return
		}

		sessions, err := store.SessionHistory(r.Context(), userClaims.UserID, 100)
		if err != nil {
			log.Printf("❌ Error fetching session history: %v", err)
			utils.RespondError(w, http.StatusInternalServerError, "Failed to fetch session history")
			return
		}

		utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"data":    sessions,
		})
	}
}

// GetSessionDetails returns one session with its full route
func GetSessionDetails(store *database.SessionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userClaims, ok := getClaims(r, w)
		if !ok {
			return
		}

		sessionID := chi.URLParam(r, "id")
		session, err := store.SessionByID(r.Context(), userClaims.UserID, sessionID)
		if err != nil {
			log.Printf("❌ Error fetching session %s: %v", sessionID, err)
			utils.RespondError(w, http.StatusInternalServerError, "Database error")
			return
		}
		if session == nil {
			utils.RespondError(w, http.StatusNotFound, "Session not found")
			return
		}

		utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"data":    session,
		})
	}
}

// GetLiveMembers lists members with an active session for the coach
// dashboard (admin only)
func GetLiveMembers(db *sqlx.DB, registry *tracker.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		type liveMember struct {
			UserID  string         `json:"user_id"`
			Name    string         `json:"name"`
			Session models.Session `json:"session"`
			Stats   tracker.Stats  `json:"stats"`
		}

		members := []liveMember{}
		for _, userID := range registry.ActiveUserIDs() {
			manager := registry.Manager(userID)
			session, active := manager.Current()
			if !active {
				continue
			}

			var name string
			if err := db.Get(&name, `SELECT name FROM users WHERE id = $1`, userID); err != nil {
				name = userID
			}

			members = append(members, liveMember{
				UserID:  userID,
				Name:    name,
				Session: session,
				Stats:   manager.TrackerStats(),
			})
		}

		utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"data":    members,
		})
	}
}
