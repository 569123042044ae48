package telemedicine

import (
	"time"

	"github.com/google/uuid"
)

// Session statuses.
const (
	StatusScheduled        = "SCHEDULED"
	StatusInProgress       = "IN_PROGRESS"
	StatusCompleted        = "COMPLETED"
	StatusCancelled        = "CANCELLED"
	StatusNoShow           = "NO_SHOW"
	StatusTechnicalFailure = "TECHNICAL_FAILURE"
)

// Session is a remote consultation between a patient and a specialist.
type Session struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	SessionNumber string     `db:"session_number" json:"session_number"`
	PatientID     uuid.UUID  `db:"patient_id" json:"patient_id"`
	SpecialistID  uuid.UUID  `db:"specialist_id" json:"specialist_id"`
	HospitalID    uuid.UUID  `db:"hospital_id" json:"hospital_id"`
	ScheduledAt   time.Time  `db:"scheduled_at" json:"scheduled_at"`
	StartTime     *time.Time `db:"start_time" json:"start_time,omitempty"`
	EndTime       *time.Time `db:"end_time" json:"end_time,omitempty"`
	Reason        string     `db:"reason" json:"reason,omitempty"`
	Notes         *string    `db:"notes" json:"notes,omitempty"`
	Status        string     `db:"status" json:"status"`
	CountyID      string     `db:"county_id" json:"county_id,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}
