package patient

import (
	"time"

	"github.com/google/uuid"
)

// Patient statuses.
const (
	StatusAdmitted   = "ADMITTED"
	StatusOutpatient = "OUTPATIENT"
	StatusReferred   = "REFERRED"
	StatusDischarged = "DISCHARGED"
	StatusDeceased   = "DECEASED"
)

// Patient maps to the patients table. CountyID is resolved through the
// current hospital and used for county scoping only.
type Patient struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	PatientNumber  string     `db:"patient_number" json:"patient_number"`
	FirstName      string     `db:"first_name" json:"first_name"`
	LastName       string     `db:"last_name" json:"last_name"`
	NationalID     *string    `db:"national_id" json:"national_id,omitempty"`
	DateOfBirth    *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
	Gender         string     `db:"gender" json:"gender,omitempty"`
	Phone          string     `db:"phone" json:"phone,omitempty"`
	NextOfKinName  string     `db:"next_of_kin_name" json:"next_of_kin_name,omitempty"`
	NextOfKinPhone string     `db:"next_of_kin_phone" json:"next_of_kin_phone,omitempty"`
	BloodGroup     string     `db:"blood_group" json:"blood_group,omitempty"`
	Allergies      *string    `db:"allergies" json:"allergies,omitempty"`
	HospitalID     uuid.UUID  `db:"hospital_id" json:"hospital_id"`
	Status         string     `db:"status" json:"status"`
	CountyID       string     `db:"county_id" json:"county_id,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}
