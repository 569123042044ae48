package telemedicine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hems/hems/internal/platform/apperror"
	"github.com/hems/hems/internal/platform/audit"
	"github.com/hems/hems/internal/platform/auth"
	"github.com/hems/hems/internal/platform/db"
	"github.com/hems/hems/internal/platform/ids"
	"github.com/hems/hems/internal/platform/validate"
	"github.com/hems/hems/internal/platform/workflow"
)

const entityType = "telemedicine_session"

var machine = workflow.New("telemedicine session", map[string][]string{
	StatusScheduled:  {StatusInProgress, StatusCancelled, StatusNoShow},
	StatusInProgress: {StatusCompleted, StatusTechnicalFailure},
})

type Service struct {
	repo Repository
	rec  *audit.Recorder
}

func NewService(repo Repository, rec *audit.Recorder) *Service {
	return &Service{repo: repo, rec: rec}
}

type CreateInput struct {
	PatientID    uuid.UUID `json:"patient_id" validate:"required"`
	SpecialistID uuid.UUID `json:"specialist_id" validate:"required"`
	HospitalID   uuid.UUID `json:"hospital_id" validate:"required"`
	ScheduledAt  time.Time `json:"scheduled_at" validate:"required"`
	Reason       string    `json:"reason"`
	Notes        *string   `json:"notes"`
}

type UpdateInput struct {
	SpecialistID *uuid.UUID `json:"specialist_id"`
	ScheduledAt  *time.Time `json:"scheduled_at"`
	Reason       *string    `json:"reason"`
	Notes        *string    `json:"notes"`
}

func (s *Service) Create(ctx context.Context, in *CreateInput) (sess *Session, err error) {
	defer func() {
		ev := audit.Event{Action: audit.ActionCreate, EntityType: entityType, Err: err}
		if sess != nil {
			ev.EntityID = &sess.ID
			ev.HospitalID = &sess.HospitalID
			ev.Description = fmt.Sprintf("scheduled session %s", sess.SessionNumber)
		}
		s.rec.Record(ctx, ev)
	}()

	if err = validate.Struct(in); err != nil {
		return nil, err
	}

	if principal := auth.PrincipalFromContext(ctx); principal != nil && principal.FacilityScoped() && *principal.FacilityID != in.HospitalID {
		err = apperror.Forbidden("session belongs to another facility")
		return nil, err
	}

	now := time.Now().UTC()
	sess = &Session{
		ID:            uuid.New(),
		SessionNumber: ids.Number("TMS"),
		PatientID:     in.PatientID,
		SpecialistID:  in.SpecialistID,
		HospitalID:    in.HospitalID,
		ScheduledAt:   in.ScheduledAt,
		Reason:        in.Reason,
		Notes:         in.Notes,
		Status:        StatusScheduled,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if createErr := s.repo.Create(ctx, sess); createErr != nil {
		sess = nil
		if db.IsForeignKeyViolation(createErr) {
			err = apperror.Validation("patient, specialist or hospital does not exist")
			return nil, err
		}
		err = apperror.Internal(createErr)
		return nil, err
	}
	return sess, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Session, error) {
	sess, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, apperror.NotFound("session %s not found", id)
		}
		return nil, apperror.Internal(err)
	}
	principal := auth.PrincipalFromContext(ctx)
	if err := principal.CheckScope(sess.HospitalID, sess.CountyID); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *Service) List(ctx context.Context, params map[string]string, limit, offset int) ([]*Session, int, error) {
	if params == nil {
		params = map[string]string{}
	}
	if p := auth.PrincipalFromContext(ctx); p != nil {
		if p.FacilityScoped() {
			params["hospital_id"] = p.FacilityID.String()
		} else if p.CountyScoped() {
			params["county_id"] = p.CountyID
		}
	}
	items, total, err := s.repo.Search(ctx, params, limit, offset)
	if err != nil {
		return nil, 0, apperror.Internal(err)
	}
	return items, total, nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, in *UpdateInput) (sess *Session, err error) {
	defer func() {
		ev := audit.Event{Action: audit.ActionUpdate, EntityType: entityType, EntityID: &id, Err: err}
		if sess != nil {
			ev.HospitalID = &sess.HospitalID
			ev.Changes = in
		}
		s.rec.Record(ctx, ev)
	}()

	if err = validate.Struct(in); err != nil {
		return nil, err
	}

	sess, err = s.Get(ctx, id)
	if err != nil {
		sess = nil
		return nil, err
	}
	if sess.Status != StatusScheduled {
		status := sess.Status
		sess = nil
		err = apperror.Conflict("session is %s and can no longer be rescheduled", status)
		return nil, err
	}

	if in.SpecialistID != nil {
		sess.SpecialistID = *in.SpecialistID
	}
	if in.ScheduledAt != nil {
		sess.ScheduledAt = *in.ScheduledAt
	}
	if in.Reason != nil {
		sess.Reason = *in.Reason
	}
	if in.Notes != nil {
		sess.Notes = in.Notes
	}
	sess.UpdatedAt = time.Now().UTC()

	if updateErr := s.repo.Update(ctx, sess); updateErr != nil {
		sess = nil
		err = apperror.Internal(updateErr)
		return nil, err
	}
	return sess, nil
}

// Transition moves the session through its lifecycle, stamping start_time
// when the consultation begins and end_time on either terminal outcome of
// an in-progress session. Re-issuing the current status is a no-op.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, next string) (sess *Session, err error) {
	defer func() {
		action := audit.ActionUpdate
		if next == StatusCancelled {
			action = audit.ActionCancel
		}
		ev := audit.Event{Action: action, EntityType: entityType, EntityID: &id, Err: err}
		if sess != nil {
			ev.HospitalID = &sess.HospitalID
			ev.Description = fmt.Sprintf("session %s moved to %s", sess.SessionNumber, sess.Status)
		}
		s.rec.Record(ctx, ev)
	}()

	if !machine.Known(next) {
		err = apperror.Validation("unknown session status %q", next)
		return nil, err
	}

	sess, err = s.Get(ctx, id)
	if err != nil {
		sess = nil
		return nil, err
	}
	if sess.Status == next {
		return sess, nil
	}
	if err = machine.Check(sess.Status, next); err != nil {
		sess = nil
		return nil, err
	}

	now := time.Now().UTC()
	var startTime, endTime *time.Time
	switch next {
	case StatusInProgress:
		startTime = &now
	case StatusCompleted, StatusTechnicalFailure:
		endTime = &now
	}

	moved, updErr := s.repo.ConditionalSetStatus(ctx, id, sess.Status, next, startTime, endTime)
	if updErr != nil {
		sess = nil
		err = apperror.Internal(updErr)
		return nil, err
	}
	if !moved {
		sess = nil
		err = apperror.Conflict("session %s was modified concurrently", id)
		return nil, err
	}

	sess.Status = next
	if startTime != nil {
		sess.StartTime = startTime
	}
	if endTime != nil {
		sess.EndTime = endTime
	}
	sess.UpdatedAt = now
	return sess, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) (err error) {
	defer func() {
		s.rec.Record(ctx, audit.Event{
			Action: audit.ActionDelete, EntityType: entityType, EntityID: &id, Err: err,
		})
	}()

	sess, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if sess.Status == StatusInProgress {
		err = apperror.Conflict("cannot delete a session in progress")
		return err
	}

	if delErr := s.repo.Delete(ctx, id); delErr != nil {
		if db.IsNoRows(delErr) {
			err = apperror.NotFound("session %s not found", id)
			return err
		}
		err = apperror.Internal(delErr)
		return err
	}
	return nil
}
