package transfer

import (
	"time"

	"github.com/google/uuid"
)

// Transfer statuses.
const (
	StatusRequested = "REQUESTED"
	StatusApproved  = "APPROVED"
	StatusRejected  = "REJECTED"
	StatusInTransit = "IN_TRANSIT"
	StatusCompleted = "COMPLETED"
	StatusCancelled = "CANCELLED"
)

// Urgency levels.
const (
	UrgencyCritical = "CRITICAL"
	UrgencyUrgent   = "URGENT"
	UrgencyRoutine  = "ROUTINE"
)

// Transfer is an inter-facility patient referral. CountyID is the origin
// hospital's county, used for scoping.
type Transfer struct {
	ID                    uuid.UUID  `db:"id" json:"id"`
	TransferNumber        string     `db:"transfer_number" json:"transfer_number"`
	PatientID             uuid.UUID  `db:"patient_id" json:"patient_id"`
	OriginHospitalID      uuid.UUID  `db:"origin_hospital_id" json:"origin_hospital_id"`
	DestinationHospitalID uuid.UUID  `db:"destination_hospital_id" json:"destination_hospital_id"`
	TriageEntryID         *uuid.UUID `db:"triage_entry_id" json:"triage_entry_id,omitempty"`
	AmbulanceID           *uuid.UUID `db:"ambulance_id" json:"ambulance_id,omitempty"`
	Urgency               string     `db:"urgency" json:"urgency"`
	Reason                string     `db:"reason" json:"reason"`
	Status                string     `db:"status" json:"status"`
	BedReserved           bool       `db:"bed_reserved" json:"bed_reserved"`
	RequestedAt           time.Time  `db:"requested_at" json:"requested_at"`
	ApprovedAt            *time.Time `db:"approved_at" json:"approved_at,omitempty"`
	RejectedAt            *time.Time `db:"rejected_at" json:"rejected_at,omitempty"`
	DepartureTime         *time.Time `db:"departure_time" json:"departure_time,omitempty"`
	ArrivalTime           *time.Time `db:"arrival_time" json:"arrival_time,omitempty"`
	CompletedAt           *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CancelledAt           *time.Time `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CountyID              string     `db:"county_id" json:"county_id,omitempty"`
	CreatedAt             time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time  `db:"updated_at" json:"updated_at"`
}
