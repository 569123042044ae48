package hospital

import (
	"time"

	"github.com/google/uuid"
)

// Operational statuses.
const (
	StatusOperational = "OPERATIONAL"
	StatusLimited     = "LIMITED"
	StatusClosed      = "CLOSED"
)

// Facility categories.
const (
	CategoryPublic     = "PUBLIC"
	CategoryPrivate    = "PRIVATE"
	CategoryFaithBased = "FAITH_BASED"
)

// Hospital maps to the hospitals table.
type Hospital struct {
	ID                uuid.UUID `db:"id" json:"id"`
	Code              string    `db:"code" json:"code"`
	Name              string    `db:"name" json:"name"`
	CountyID          string    `db:"county_id" json:"county_id"`
	SubCounty         string    `db:"sub_county" json:"sub_county,omitempty"`
	Level             int       `db:"level" json:"level"`
	Category          string    `db:"category" json:"category"`
	BedCapacity       int       `db:"bed_capacity" json:"bed_capacity"`
	ICUCapacity       int       `db:"icu_capacity" json:"icu_capacity"`
	Phone             string    `db:"phone" json:"phone,omitempty"`
	Email             string    `db:"email" json:"email,omitempty"`
	Address           string    `db:"address" json:"address,omitempty"`
	Latitude          *float64  `db:"latitude" json:"latitude,omitempty"`
	Longitude         *float64  `db:"longitude" json:"longitude,omitempty"`
	OperationalStatus string    `db:"operational_status" json:"operational_status"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}
