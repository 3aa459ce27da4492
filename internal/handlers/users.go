package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"hotstepper-backend/internal/models"
	"hotstepper-backend/pkg/utils"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
)

// CreateUser provisions a new member or coach account (admin only)
func CreateUser(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
			Name     string `json:"name"`
			Role     string `json:"role"`
			StepGoal int    `json:"step_goal"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		if req.Email == "" || req.Password == "" || req.Name == "" {
			utils.RespondError(w, http.StatusBadRequest, "email, password and name are required")
			return
		}
		if req.Role != "member" && req.Role != "admin" {
			utils.RespondError(w, http.StatusBadRequest, "role must be 'member' or 'admin'")
			return
		}
		if req.StepGoal <= 0 {
			req.StepGoal = 10000
		}

		hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			log.Printf("❌ Error hashing password: %v", err)
			utils.RespondError(w, http.StatusInternalServerError, "Failed to create user")
			return
		}

		now := time.Now().Unix()
		user := models.User{
			ID:        uuid.New().String(),
			Email:     req.Email,
			Name:      req.Name,
			Role:      req.Role,
			StepGoal:  req.StepGoal,
			CreatedAt: now,
			UpdatedAt: now,
		}

		query := `INSERT INTO users (id, email, password, name, role, step_goal, created_at, updated_at)
				  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

		if _, err := db.Exec(query, user.ID, user.Email, string(hashed), user.Name, user.Role, user.StepGoal, now, now); err != nil {
			log.Printf("❌ Error creating user: %v", err)
			utils.RespondError(w, http.StatusConflict, "Failed to create user (email may already exist)")
			return
		}

		log.Printf("✅ User created: %s (%s)", user.Email, user.Role)

		utils.RespondJSON(w, http.StatusCreated, map[string]interface{}{
			"success": true,
			"data":    user.ToUserResponse(),
		})
	}
}

// RegisterFCMToken stores a device push token for the authenticated user
func RegisterFCMToken(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userClaims, ok := getClaims(r, w)
		if !ok {
			return
		}

		var req struct {
			Token      string `json:"token"`
			DeviceType string `json:"device_type"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if req.Token == "" {
			utils.RespondError(w, http.StatusBadRequest, "token is required")
			return
		}
		if req.DeviceType != "ios" && req.DeviceType != "android" {
			utils.RespondError(w, http.StatusBadRequest, "device_type must be 'ios' or 'android'")
			return
		}

		now := time.Now().Unix()
		query := `INSERT INTO fcm_tokens (user_id, token, device_type, created_at, updated_at)
				  VALUES ($1, $2, $3, $4, $4)
				  ON CONFLICT (token)
				  DO UPDATE SET user_id = EXCLUDED.user_id,
								device_type = EXCLUDED.device_type,
								updated_at = EXCLUDED.updated_at`

		if _, err := db.Exec(query, userClaims.UserID, req.Token, req.DeviceType, now); err != nil {
			log.Printf("❌ Error registering FCM token: %v", err)
			utils.RespondError(w, http.StatusInternalServerError, "Failed to register token")
			return
		}

		log.Printf("✅ FCM token registered for %s (%s)", userClaims.UserID, req.DeviceType)

		utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
		})
	}
}
