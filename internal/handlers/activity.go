package handlers

import (
	"log"
	"net/http"
	"time"

	"hotstepper-backend/internal/database"
	"hotstepper-backend/pkg/utils"
)

// parseDateRange reads from/to query params (YYYY-MM-DD), defaulting to the
// last 7 days
func parseDateRange(r *http.Request) (string, string, bool) {
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	if from == "" {
		from = time.Now().AddDate(0, 0, -6).Format("2006-01-02")
	}
	if to == "" {
		to = time.Now().Format("2006-01-02")
	}
	for _, d := range []string{from, to} {
		if _, err := time.Parse("2006-01-02", d); err != nil {
			return "", "", false
		}
	}
	return from, to, true
}

// GetDailyTotals returns the per-day aggregates for a date range
func GetDailyTotals(store *database.SessionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userClaims, ok := getClaims(r, w)
		if !ok {
			return
		}

		from, to, ok := parseDateRange(r)
		if !ok {
			utils.RespondError(w, http.StatusBadRequest, "from/to must be YYYY-MM-DD")
			return
		}

		totals, err := store.DailyTotals(r.Context(), userClaims.UserID, from, to)
		if err != nil {
			log.Printf("❌ Error fetching daily totals: %v", err)
			utils.RespondError(w, http.StatusInternalServerError, "Failed to fetch daily totals")
			return
		}

		utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"data":    totals,
		})
	}
}

// GetActivityStats returns aggregate stats over a date range for the member
// stats screen
func GetActivityStats(store *database.SessionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userClaims, ok := getClaims(r, w)
		if !ok {
			return
		}

		from, to, ok := parseDateRange(r)
		if !ok {
			utils.RespondError(w, http.StatusBadRequest, "from/to must be YYYY-MM-DD")
			return
		}

		stats, err := store.ActivityStats(r.Context(), userClaims.UserID, from, to)
		if err != nil {
			log.Printf("❌ Error fetching activity stats: %v", err)
			utils.RespondError(w, http.StatusInternalServerError, "Failed to fetch activity stats")
			return
		}

		utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"data": map[string]interface{}{
				"from":  from,
				"to":    to,
				"stats": stats,
			},
		})
	}
}
