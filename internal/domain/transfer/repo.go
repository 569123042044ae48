package transfer

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, t *Transfer) error
	GetByID(ctx context.Context, id uuid.UUID) (*Transfer, error)
	Update(ctx context.Context, t *Transfer) error
	Delete(ctx context.Context, id uuid.UUID) error
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Transfer, int, error)
	// UpdateStatus persists a transition guarded by the expected current
	// status; the full row (timestamps, flags, ambulance) is written.
	UpdateStatus(ctx context.Context, t *Transfer, expected string) (bool, error)
}

// PatientDirectory is the slice of the patient store transfers need: the
// referral flips the patient to REFERRED inside the creation transaction.
type PatientDirectory interface {
	SetStatus(ctx context.Context, id uuid.UUID, status string) error
}

// AmbulanceFleet claims a unit for transport and returns it when the
// transfer reaches a terminal state.
type AmbulanceFleet interface {
	ConditionalSetStatus(ctx context.Context, id uuid.UUID, expected, next string) (bool, error)
	Release(ctx context.Context, id uuid.UUID) (bool, error)
}
