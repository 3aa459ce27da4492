package database

import (
	"log"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
)

func SeedUsers(db *sqlx.DB) error {
	// Check if users already exist
	var count int
	if err := db.Get(&count, "SELECT COUNT(*) FROM users"); err != nil {
		return err
	}

	if count > 0 {
		log.Println("✓ Users already seeded, skipping...")
		return nil
	}

	log.Println("🌱 Seeding demo users...")

	users := []struct {
		Email    string
		Password string
		Name     string
		Role     string
		StepGoal int
	}{
		{"coach@hotstepper.app", "coach123", "Sam Coach", "admin", 10000},
		{"walker@hotstepper.app", "walker123", "Willa Walker", "member", 10000},
		{"runner@hotstepper.app", "runner123", "Remy Runner", "member", 15000},
	}

	for _, u := range users {
		hashed, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}

		query := `INSERT INTO users (id, email, password, name, role, step_goal)
				  VALUES ($1, $2, $3, $4, $5, $6)
				  ON CONFLICT (email) DO NOTHING`

		if _, err := db.Exec(query, uuid.New().String(), u.Email, string(hashed), u.Name, u.Role, u.StepGoal); err != nil {
			return err
		}
		log.Printf("   👤 %s (%s)", u.Email, u.Role)
	}

	log.Printf("✅ Seeded %d users", len(users))
	return nil
}
