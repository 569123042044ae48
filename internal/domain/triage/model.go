package triage

import (
	"time"

	"github.com/google/uuid"
)

// Triage categories.
const (
	CategoryRed    = "RED"
	CategoryYellow = "YELLOW"
	CategoryGreen  = "GREEN"
	CategoryBlack  = "BLACK"
)

// Entry statuses.
const (
	StatusInProgress = "IN_PROGRESS"
	StatusCompleted  = "COMPLETED"
	StatusCancelled  = "CANCELLED"
)

// Entry maps to the triage_entries table, one per patient visit. CountyID
// is resolved through the hospital for scoping.
type Entry struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	PatientID        uuid.UUID  `db:"patient_id" json:"patient_id"`
	HospitalID       uuid.UUID  `db:"hospital_id" json:"hospital_id"`
	OfficerID        *uuid.UUID `db:"officer_id" json:"officer_id,omitempty"`
	Category         string     `db:"category" json:"category"`
	ChiefComplaint   string     `db:"chief_complaint" json:"chief_complaint"`
	HeartRate        *int       `db:"heart_rate" json:"heart_rate,omitempty"`
	BloodPressureSys *int       `db:"blood_pressure_sys" json:"blood_pressure_sys,omitempty"`
	BloodPressureDia *int       `db:"blood_pressure_dia" json:"blood_pressure_dia,omitempty"`
	Temperature      *float64   `db:"temperature" json:"temperature,omitempty"`
	RespiratoryRate  *int       `db:"respiratory_rate" json:"respiratory_rate,omitempty"`
	OxygenSaturation *int       `db:"oxygen_saturation" json:"oxygen_saturation,omitempty"`
	PainScale        *int       `db:"pain_scale" json:"pain_scale,omitempty"`
	Notes            *string    `db:"notes" json:"notes,omitempty"`
	Status           string     `db:"status" json:"status"`
	CompletedAt      *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CountyID         string     `db:"county_id" json:"county_id,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}
