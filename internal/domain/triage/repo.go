package triage

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, e *Entry) error
	GetByID(ctx context.Context, id uuid.UUID) (*Entry, error)
	Update(ctx context.Context, e *Entry) error
	Delete(ctx context.Context, id uuid.UUID) error
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Entry, int, error)
	// ConditionalSetStatus moves status only when the row still holds
	// expected; reports whether a row was changed.
	ConditionalSetStatus(ctx context.Context, id uuid.UUID, expected, next string, completedAt *time.Time) (bool, error)
}
