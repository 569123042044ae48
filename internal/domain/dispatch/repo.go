package dispatch

import (
	"context"

	"github.com/google/uuid"
)

type AmbulanceRepository interface {
	Create(ctx context.Context, a *Ambulance) error
	GetByID(ctx context.Context, id uuid.UUID) (*Ambulance, error)
	Update(ctx context.Context, a *Ambulance) error
	Delete(ctx context.Context, id uuid.UUID) error
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Ambulance, int, error)
	// ConditionalSetStatus moves status only when the row still holds
	// expected; reports whether a row was changed.
	ConditionalSetStatus(ctx context.Context, id uuid.UUID, expected, next string) (bool, error)
	// Release returns a unit to AVAILABLE unless it is out of service.
	Release(ctx context.Context, id uuid.UUID) (bool, error)
}

type LogRepository interface {
	Create(ctx context.Context, l *Log) error
	GetByID(ctx context.Context, id uuid.UUID) (*Log, error)
	Update(ctx context.Context, l *Log) error
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Log, int, error)
	// UpdateStatus persists a transition guarded by the expected current
	// status; the full row (timestamps, ambulance assignment) is written.
	UpdateStatus(ctx context.Context, l *Log, expected string) (bool, error)
}

type ResponseRepository interface {
	Create(ctx context.Context, r *Response) error
	GetByID(ctx context.Context, id uuid.UUID) (*Response, error)
	Update(ctx context.Context, r *Response) error
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Response, int, error)
	UpdateStatus(ctx context.Context, r *Response, expected string) (bool, error)
}
