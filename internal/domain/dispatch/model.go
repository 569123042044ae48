package dispatch

import (
	"time"

	"github.com/google/uuid"
)

// Ambulance statuses.
const (
	AmbulanceAvailable    = "AVAILABLE"
	AmbulanceDispatched   = "DISPATCHED"
	AmbulanceEnRoute      = "EN_ROUTE"
	AmbulanceAtScene      = "AT_SCENE"
	AmbulanceTransporting = "TRANSPORTING"
	AmbulanceOutOfService = "OUT_OF_SERVICE"
)

// Dispatch log statuses, in lifecycle order.
const (
	StatusReceived     = "RECEIVED"
	StatusAssessing    = "ASSESSING"
	StatusDispatched   = "DISPATCHED"
	StatusEnRoute      = "EN_ROUTE"
	StatusOnScene      = "ON_SCENE"
	StatusTransporting = "TRANSPORTING"
	StatusAtHospital   = "AT_HOSPITAL"
	StatusCompleted    = "COMPLETED"
	StatusCancelled    = "CANCELLED"
	StatusNoAmbulance  = "NO_AMBULANCE_AVAILABLE"
)

// Emergency response statuses.
const (
	ResponseActive    = "ACTIVE"
	ResponseOnScene   = "ON_SCENE"
	ResponseCompleted = "COMPLETED"
	ResponseCancelled = "CANCELLED"
)

// Ambulance is a dispatchable transport unit attached to a hospital.
type Ambulance struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	UnitNumber   string     `db:"unit_number" json:"unit_number"`
	HospitalID   uuid.UUID  `db:"hospital_id" json:"hospital_id"`
	VehicleType  string     `db:"vehicle_type" json:"vehicle_type,omitempty"`
	Status       string     `db:"status" json:"status"`
	DriverName   string     `db:"driver_name" json:"driver_name,omitempty"`
	DriverPhone  string     `db:"driver_phone" json:"driver_phone,omitempty"`
	Latitude     *float64   `db:"latitude" json:"latitude,omitempty"`
	Longitude    *float64   `db:"longitude" json:"longitude,omitempty"`
	LastServiced *time.Time `db:"last_serviced" json:"last_serviced,omitempty"`
	CountyID     string     `db:"county_id" json:"county_id,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Log is one emergency call worked from intake to handover. The timestamp
// fields are stamped as the status advances.
type Log struct {
	ID                uuid.UUID  `db:"id" json:"id"`
	DispatchNumber    string     `db:"dispatch_number" json:"dispatch_number"`
	CallerName        string     `db:"caller_name" json:"caller_name"`
	CallerPhone       string     `db:"caller_phone" json:"caller_phone"`
	Location          string     `db:"location" json:"location"`
	Description       string     `db:"description" json:"description,omitempty"`
	Severity          string     `db:"severity" json:"severity"`
	AmbulanceID       *uuid.UUID `db:"ambulance_id" json:"ambulance_id,omitempty"`
	HospitalID        uuid.UUID  `db:"hospital_id" json:"hospital_id"`
	PatientID         *uuid.UUID `db:"patient_id" json:"patient_id,omitempty"`
	Status            string     `db:"status" json:"status"`
	ReceivedAt        time.Time  `db:"received_at" json:"received_at"`
	DispatchedAt      *time.Time `db:"dispatched_at" json:"dispatched_at,omitempty"`
	ArrivedOnScene    *time.Time `db:"arrived_on_scene" json:"arrived_on_scene,omitempty"`
	DepartedScene     *time.Time `db:"departed_scene" json:"departed_scene,omitempty"`
	ArrivedHospital   *time.Time `db:"arrived_hospital" json:"arrived_hospital,omitempty"`
	HandoverCompleted *time.Time `db:"handover_completed" json:"handover_completed,omitempty"`
	ClearedAt         *time.Time `db:"cleared_at" json:"cleared_at,omitempty"`
	CountyID          string     `db:"county_id" json:"county_id,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

// Response is a field emergency response tied to an active incident.
type Response struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	ResponseNumber string     `db:"response_number" json:"response_number"`
	DispatchID     *uuid.UUID `db:"dispatch_id" json:"dispatch_id,omitempty"`
	AmbulanceID    *uuid.UUID `db:"ambulance_id" json:"ambulance_id,omitempty"`
	HospitalID     uuid.UUID  `db:"hospital_id" json:"hospital_id"`
	ResponseType   string     `db:"response_type" json:"response_type,omitempty"`
	Location       string     `db:"location" json:"location"`
	Status         string     `db:"status" json:"status"`
	ArrivedOnScene *time.Time `db:"arrived_on_scene" json:"arrived_on_scene,omitempty"`
	CompletedAt    *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CountyID       string     `db:"county_id" json:"county_id,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}
