package model

import (
	"time"

	"github.com/google/uuid"
)

// Patient is directory data supplied by the patient registry collaborator.
type Patient struct {
	ID                  uuid.UUID `db:"id" json:"id"`
	UserID              uuid.UUID `db:"user_id" json:"user_id"`
	NationalID          string    `db:"national_id" json:"national_id"`
	MedicalRecordNumber string    `db:"medical_record_number" json:"medical_record_number"`
	Name                string    `db:"name" json:"name"`
	BirthDate           time.Time `db:"birth_date" json:"birth_date"`
	Phone               string    `db:"phone" json:"phone"`
	Email               string    `db:"email" json:"email,omitempty"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time `db:"updated_at" json:"updated_at"`
}

// FamilyMember is an attendee a patient may book on behalf of. Removal nulls
// the appointment back-reference rather than cascading.
type FamilyMember struct {
	ID           uuid.UUID `db:"id" json:"id"`
	PatientID    uuid.UUID `db:"patient_id" json:"patient_id"`
	FullName     string    `db:"full_name" json:"full_name"`
	Relationship string    `db:"relationship" json:"relationship"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
