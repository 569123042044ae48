package resource

import (
	"time"

	"github.com/google/uuid"
)

// Resource types.
const (
	TypeBed       = "BED"
	TypeICUBed    = "ICU_BED"
	TypeEquipment = "EQUIPMENT"
	TypeSupply    = "SUPPLY"
	TypeMedicine  = "MEDICINE"
	TypeBloodUnit = "BLOOD_UNIT"
	TypeOxygen    = "OXYGEN"
)

// Resource statuses.
const (
	StatusAdequate = "ADEQUATE"
	StatusLow      = "LOW"
	StatusCritical = "CRITICAL"
	StatusDepleted = "DEPLETED"
)

// Resource tracks capacity of a consumable or allocatable hospital asset.
// The capacity counters must satisfy available + reserved + in_use <=
// total at all times.
type Resource struct {
	ID                uuid.UUID `db:"id" json:"id"`
	HospitalID        uuid.UUID `db:"hospital_id" json:"hospital_id"`
	Name              string    `db:"name" json:"name"`
	ResourceType      string    `db:"resource_type" json:"resource_type"`
	TotalCapacity     int       `db:"total_capacity" json:"total_capacity"`
	AvailableCapacity int       `db:"available_capacity" json:"available_capacity"`
	ReservedCapacity  int       `db:"reserved_capacity" json:"reserved_capacity"`
	InUseCapacity     int       `db:"in_use_capacity" json:"in_use_capacity"`
	CriticalLevel     int       `db:"critical_level" json:"critical_level"`
	ReorderLevel      int       `db:"reorder_level" json:"reorder_level"`
	Status            string    `db:"status" json:"status"`
	IsOperational     bool      `db:"is_operational" json:"is_operational"`
	NeedsReorder      bool      `db:"-" json:"needs_reorder"`
	CountyID          string    `db:"county_id" json:"county_id,omitempty"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// deriveStatus classifies the stock level from the counters.
func (r *Resource) deriveStatus() string {
	switch {
	case r.AvailableCapacity == 0:
		return StatusDepleted
	case r.AvailableCapacity <= r.CriticalLevel:
		return StatusCritical
	case r.AvailableCapacity <= r.ReorderLevel:
		return StatusLow
	default:
		return StatusAdequate
	}
}

// refresh recomputes the derived fields after any counter change.
func (r *Resource) refresh() {
	r.Status = r.deriveStatus()
	r.NeedsReorder = r.AvailableCapacity <= r.ReorderLevel
}
