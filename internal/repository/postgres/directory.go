package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/clinicdesk/registration-api/internal/model"
)

// Directory reads for the patient, doctor and identity collaborators. The
// queue engine only ever reads these; their lifecycles belong to the
// administrative screens outside this service.

func (r *patientRepository) Get(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	var patient model.Patient
	err := r.db.GetContext(ctx, &patient, `
		SELECT id, user_id, national_id, medical_record_number, name,
		       birth_date, phone, email, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrPatientNotFound
		}
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}
	return &patient, nil
}

func (r *patientRepository) GetByUser(ctx context.Context, userID uuid.UUID) (*model.Patient, error) {
	var patient model.Patient
	err := r.db.GetContext(ctx, &patient, `
		SELECT id, user_id, national_id, medical_record_number, name,
		       birth_date, phone, email, created_at, updated_at
		FROM patients
		WHERE user_id = $1
	`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrPatientNotFound
		}
		return nil, fmt.Errorf("failed to get patient by user: %w", err)
	}
	return &patient, nil
}

func (r *patientRepository) GetFamilyMember(ctx context.Context, id uuid.UUID) (*model.FamilyMember, error) {
	var member model.FamilyMember
	err := r.db.GetContext(ctx, &member, `
		SELECT id, patient_id, full_name, relationship, created_at
		FROM family_members
		WHERE id = $1
	`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrFamilyMemberNotFound
		}
		return nil, fmt.Errorf("failed to get family member: %w", err)
	}
	return &member, nil
}

func (r *doctorRepository) Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	var doctor model.Doctor
	err := r.db.GetContext(ctx, &doctor, `
		SELECT id, user_id, department_id, name, license_number, title,
		       is_active, created_at, updated_at
		FROM doctors
		WHERE id = $1
	`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrDoctorNotFound
		}
		return nil, fmt.Errorf("failed to get doctor: %w", err)
	}
	return &doctor, nil
}

func (r *doctorRepository) GetByUser(ctx context.Context, userID uuid.UUID) (*model.Doctor, error) {
	var doctor model.Doctor
	err := r.db.GetContext(ctx, &doctor, `
		SELECT id, user_id, department_id, name, license_number, title,
		       is_active, created_at, updated_at
		FROM doctors
		WHERE user_id = $1
	`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrDoctorNotFound
		}
		return nil, fmt.Errorf("failed to get doctor by user: %w", err)
	}
	return &doctor, nil
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	err := r.db.GetContext(ctx, &user, `
		SELECT id, username, password_hash, name, role, is_active,
		       created_at, updated_at
		FROM users
		WHERE LOWER(username) = LOWER($1)
	`, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}
