// Command seed populates a development database with demo accounts,
// doctors, patients and a week of open schedules.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/clinicdesk/registration-api/internal/config"
	"github.com/clinicdesk/registration-api/internal/model"
	"github.com/clinicdesk/registration-api/internal/repository/postgres"
	"github.com/clinicdesk/registration-api/internal/service/auth"
)

const (
	doctorCount  = 5
	patientCount = 40
	demoPassword = "password123"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := seed(db); err != nil {
		log.Fatal().Err(err).Msg("seeding failed")
	}
	fmt.Fprintln(os.Stdout, "seed completed")
}

func seed(db *sqlx.DB) error {
	hash, err := auth.HashPassword(demoPassword)
	if err != nil {
		return err
	}

	departmentID := uuid.New()
	if _, err := db.Exec(
		`INSERT INTO departments (id, code, name, is_active) VALUES ($1, $2, $3, true)`,
		departmentID, "GM", "General Medicine",
	); err != nil {
		return fmt.Errorf("failed to insert department: %w", err)
	}

	if err := insertUser(db, hash, "admin", "Site Admin", model.RoleAdmin); err != nil {
		return err
	}
	if err := insertUser(db, hash, "frontdesk", "Front Desk", model.RoleStaff); err != nil {
		return err
	}

	doctorIDs := make([]uuid.UUID, 0, doctorCount)
	for i := 0; i < doctorCount; i++ {
		name := gofakeit.Name()
		userID, err := insertUserID(db, hash, fmt.Sprintf("doctor%d", i+1), name, model.RoleDoctor)
		if err != nil {
			return err
		}
		doctorID := uuid.New()
		if _, err := db.Exec(
			`INSERT INTO doctors (id, user_id, department_id, name, license_number, title, is_active)
			 VALUES ($1, $2, $3, $4, $5, $6, true)`,
			doctorID, userID, departmentID, name,
			fmt.Sprintf("LIC-%06d", gofakeit.Number(100000, 999999)), "Attending",
		); err != nil {
			return fmt.Errorf("failed to insert doctor: %w", err)
		}
		doctorIDs = append(doctorIDs, doctorID)
	}

	for i := 0; i < patientCount; i++ {
		name := gofakeit.Name()
		userID, err := insertUserID(db, hash, fmt.Sprintf("patient%d", i+1), name, model.RolePatient)
		if err != nil {
			return err
		}
		patientID := uuid.New()
		if _, err := db.Exec(
			`INSERT INTO patients (id, user_id, national_id, medical_record_number, name, birth_date, phone, email)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			patientID, userID,
			gofakeit.SSN(),
			fmt.Sprintf("MRN-%06d", i+1),
			name,
			gofakeit.DateRange(time.Date(1940, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2010, 12, 31, 0, 0, 0, 0, time.UTC)),
			gofakeit.Phone(),
			gofakeit.Email(),
		); err != nil {
			return fmt.Errorf("failed to insert patient: %w", err)
		}
		if i%4 == 0 {
			if _, err := db.Exec(
				`INSERT INTO family_members (id, patient_id, full_name, relationship) VALUES ($1, $2, $3, $4)`,
				uuid.New(), patientID, gofakeit.Name(), gofakeit.RandomString([]string{"child", "parent", "spouse"}),
			); err != nil {
				return fmt.Errorf("failed to insert family member: %w", err)
			}
		}
	}

	sessions := []model.Session{model.SessionMorning, model.SessionAfternoon, model.SessionEvening}
	for day := 0; day < 7; day++ {
		date := time.Now().AddDate(0, 0, day).Format("2006-01-02")
		for _, doctorID := range doctorIDs {
			session := sessions[gofakeit.Number(0, len(sessions)-1)]
			if _, err := db.Exec(
				`INSERT INTO schedules (id, doctor_id, department_id, date, session, clinic_room, quota, status)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, 'open')`,
				uuid.New(), doctorID, departmentID, date, session,
				fmt.Sprintf("Room %d", gofakeit.Number(1, 12)),
				gofakeit.Number(20, 50),
			); err != nil {
				return fmt.Errorf("failed to insert schedule: %w", err)
			}
		}
	}

	return nil
}

func insertUser(db *sqlx.DB, hash, username, name string, role model.Role) error {
	_, err := insertUserID(db, hash, username, name, role)
	return err
}

func insertUserID(db *sqlx.DB, hash, username, name string, role model.Role) (uuid.UUID, error) {
	id := uuid.New()
	if _, err := db.Exec(
		`INSERT INTO users (id, username, password_hash, name, role, is_active) VALUES ($1, $2, $3, $4, $5, true)`,
		id, username, hash, name, role,
	); err != nil {
		return uuid.Nil, fmt.Errorf("failed to insert user %s: %w", username, err)
	}
	return id, nil
}
