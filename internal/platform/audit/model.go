// Package audit records every mutating operation: who did what to which
// entity, whether it succeeded, and what changed. Entries are append-only
// and queryable by administrators.
package audit

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Actions recorded against entities.
const (
	ActionCreate  = "CREATE"
	ActionRead    = "READ"
	ActionUpdate  = "UPDATE"
	ActionDelete  = "DELETE"
	ActionApprove = "APPROVE"
	ActionCancel  = "CANCEL"
	ActionLogin   = "LOGIN"
	ActionLogout  = "LOGOUT"
)

// Entry is one audit log record.
type Entry struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	UserID       *uuid.UUID      `db:"user_id" json:"user_id,omitempty"`
	UserName     string          `db:"user_name" json:"user_name,omitempty"`
	UserRole     string          `db:"user_role" json:"user_role,omitempty"`
	Action       string          `db:"action" json:"action"`
	EntityType   string          `db:"entity_type" json:"entity_type"`
	EntityID     *uuid.UUID      `db:"entity_id" json:"entity_id,omitempty"`
	HospitalID   *uuid.UUID      `db:"hospital_id" json:"hospital_id,omitempty"`
	Description  string          `db:"description" json:"description,omitempty"`
	Changes      json.RawMessage `db:"changes" json:"changes,omitempty"`
	IPAddress    string          `db:"ip_address" json:"ip_address,omitempty"`
	UserAgent    string          `db:"user_agent" json:"user_agent,omitempty"`
	Success      bool            `db:"success" json:"success"`
	ErrorMessage string          `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}
