package telemedicine

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, s *Session) error
	GetByID(ctx context.Context, id uuid.UUID) (*Session, error)
	Update(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id uuid.UUID) error
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Session, int, error)
	// ConditionalSetStatus moves status only when the row still holds
	// expected, stamping the supplied timestamps; reports whether a row
	// was changed.
	ConditionalSetStatus(ctx context.Context, id uuid.UUID, expected, next string, startTime, endTime *time.Time) (bool, error)
}
