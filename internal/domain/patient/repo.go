package patient

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	Delete(ctx context.Context, id uuid.UUID) error
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Patient, int, error)
	// SetStatus updates the patient status. Used by the transfer workflow
	// inside its transaction.
	SetStatus(ctx context.Context, id uuid.UUID, status string) error
	// HasActiveTriage reports whether the patient has in-progress triage
	// entries; such patients cannot be deleted.
	HasActiveTriage(ctx context.Context, id uuid.UUID) (bool, error)
}
