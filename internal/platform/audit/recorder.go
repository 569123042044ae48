package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hems/hems/internal/platform/auth"
	"github.com/hems/hems/internal/platform/db"
)

// Recorder writes audit entries synchronously. A failed write is retried
// once; if the retry also fails the entry is logged so the trail is never
// silently lost. Recording never fails the operation being audited.
type Recorder struct {
	repo   Repository
	logger zerolog.Logger
}

func NewRecorder(repo Repository, logger zerolog.Logger) *Recorder {
	return &Recorder{repo: repo, logger: logger}
}

// Event describes one auditable operation.
type Event struct {
	Action      string
	EntityType  string
	EntityID    *uuid.UUID
	HospitalID  *uuid.UUID
	Description string
	Changes     interface{}
	Err         error
}

// Record persists the event attributed to the principal on the context.
// The audit write happens outside any caller transaction so a rolled-back
// operation still leaves its failure entry behind.
func (r *Recorder) Record(ctx context.Context, ev Event) {
	e := &Entry{
		ID:          uuid.New(),
		Action:      ev.Action,
		EntityType:  ev.EntityType,
		EntityID:    ev.EntityID,
		HospitalID:  ev.HospitalID,
		Description: ev.Description,
		Success:     ev.Err == nil,
		CreatedAt:   time.Now().UTC(),
	}
	if ev.Err != nil {
		e.ErrorMessage = ev.Err.Error()
	}
	if p := auth.PrincipalFromContext(ctx); p != nil {
		uid := p.ID
		e.UserID = &uid
		e.UserName = p.Name
		e.UserRole = p.Role
	}
	if ev.Changes != nil {
		if raw, err := json.Marshal(ev.Changes); err == nil {
			e.Changes = raw
		}
	}

	// Detach from the caller's transaction and cancellation.
	ctx = db.WithoutTx(context.WithoutCancel(ctx))
	if err := r.repo.Insert(ctx, e); err != nil {
		if err = r.repo.Insert(ctx, e); err != nil {
			r.logger.Error().Err(err).
				Str("action", e.Action).
				Str("entity_type", e.EntityType).
				Interface("entity_id", e.EntityID).
				Msg("audit write failed, entry dropped")
		}
	}
}
