package staff

import (
	"time"

	"github.com/google/uuid"
)

// Member is a staff account. PasswordHash never serializes.
type Member struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	FirstName    string     `db:"first_name" json:"first_name"`
	LastName     string     `db:"last_name" json:"last_name"`
	Email        string     `db:"email" json:"email"`
	Phone        string     `db:"phone" json:"phone,omitempty"`
	Role         string     `db:"role" json:"role"`
	HospitalID   *uuid.UUID `db:"hospital_id" json:"hospital_id,omitempty"`
	CountyID     string     `db:"county_id" json:"county_id,omitempty"`
	Specialty    string     `db:"specialty" json:"specialty,omitempty"`
	LicenseNo    string     `db:"license_no" json:"license_no,omitempty"`
	PasswordHash string     `db:"password_hash" json:"-"`
	IsActive     bool       `db:"is_active" json:"is_active"`
	LastLoginAt  *time.Time `db:"last_login_at" json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Shift is a scheduled duty window for one staff member.
type Shift struct {
	ID         uuid.UUID `db:"id" json:"id"`
	StaffID    uuid.UUID `db:"staff_id" json:"staff_id"`
	HospitalID uuid.UUID `db:"hospital_id" json:"hospital_id"`
	Ward       string    `db:"ward" json:"ward"`
	StartTime  time.Time `db:"start_time" json:"start_time"`
	EndTime    time.Time `db:"end_time" json:"end_time"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}
