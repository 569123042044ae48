package transfer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hems/hems/internal/domain/dispatch"
	"github.com/hems/hems/internal/domain/patient"
	"github.com/hems/hems/internal/platform/apperror"
	"github.com/hems/hems/internal/platform/audit"
	"github.com/hems/hems/internal/platform/auth"
	"github.com/hems/hems/internal/platform/db"
	"github.com/hems/hems/internal/platform/ids"
	"github.com/hems/hems/internal/platform/validate"
	"github.com/hems/hems/internal/platform/workflow"
)

const entityType = "transfer"

var machine = workflow.New("transfer", map[string][]string{
	StatusRequested: {StatusApproved, StatusRejected, StatusCancelled},
	StatusApproved:  {StatusInTransit},
	StatusInTransit: {StatusCompleted},
})

type Service struct {
	repo     Repository
	patients PatientDirectory
	fleet    AmbulanceFleet
	rec      *audit.Recorder
	pool     *pgxpool.Pool
}

// NewService wires the transfer workflow. A nil pool runs multi-step
// writes without a wrapping transaction; tests rely on that.
func NewService(repo Repository, patients PatientDirectory, fleet AmbulanceFleet, rec *audit.Recorder, pool *pgxpool.Pool) *Service {
	return &Service{repo: repo, patients: patients, fleet: fleet, rec: rec, pool: pool}
}

func (s *Service) inTx(ctx context.Context, fn func(context.Context) error) error {
	if s.pool == nil {
		return fn(ctx)
	}
	return db.WithTx(ctx, s.pool, fn)
}

type CreateInput struct {
	PatientID             uuid.UUID  `json:"patient_id" validate:"required"`
	OriginHospitalID      uuid.UUID  `json:"origin_hospital_id" validate:"required"`
	DestinationHospitalID uuid.UUID  `json:"destination_hospital_id" validate:"required"`
	TriageEntryID         *uuid.UUID `json:"triage_entry_id"`
	Urgency               string     `json:"urgency" validate:"required,oneof=CRITICAL URGENT ROUTINE"`
	Reason                string     `json:"reason" validate:"required"`
}

// Create opens a transfer request. The transfer row and the patient's
// flip to REFERRED commit in one transaction; partial failure rolls back
// both.
func (s *Service) Create(ctx context.Context, in *CreateInput) (t *Transfer, err error) {
	defer func() {
		ev := audit.Event{Action: audit.ActionCreate, EntityType: entityType, Err: err}
		if t != nil {
			ev.EntityID = &t.ID
			ev.HospitalID = &t.OriginHospitalID
			ev.Description = fmt.Sprintf("requested transfer %s (%s)", t.TransferNumber, t.Urgency)
		}
		s.rec.Record(ctx, ev)
	}()

	if err = validate.Struct(in); err != nil {
		return nil, err
	}
	if in.OriginHospitalID == in.DestinationHospitalID {
		err = apperror.Validation("origin and destination must differ")
		return nil, err
	}

	if principal := auth.PrincipalFromContext(ctx); principal != nil && principal.FacilityScoped() && *principal.FacilityID != in.OriginHospitalID {
		err = apperror.Forbidden("transfer must originate from your facility")
		return nil, err
	}

	now := time.Now().UTC()
	t = &Transfer{
		ID:                    uuid.New(),
		TransferNumber:        ids.Number("TRF"),
		PatientID:             in.PatientID,
		OriginHospitalID:      in.OriginHospitalID,
		DestinationHospitalID: in.DestinationHospitalID,
		TriageEntryID:         in.TriageEntryID,
		Urgency:               in.Urgency,
		Reason:                in.Reason,
		Status:                StatusRequested,
		RequestedAt:           now,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	txErr := s.inTx(ctx, func(ctx context.Context) error {
		if createErr := s.repo.Create(ctx, t); createErr != nil {
			return createErr
		}
		return s.patients.SetStatus(ctx, t.PatientID, patient.StatusReferred)
	})
	if txErr != nil {
		t = nil
		switch {
		case db.IsForeignKeyViolation(txErr):
			err = apperror.Validation("patient, hospital or triage entry does not exist")
		case db.IsNoRows(txErr):
			err = apperror.Validation("patient %s does not exist", in.PatientID)
		default:
			err = apperror.Internal(txErr)
		}
		return nil, err
	}
	return t, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Transfer, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, apperror.NotFound("transfer %s not found", id)
		}
		return nil, apperror.Internal(err)
	}
	p := auth.PrincipalFromContext(ctx)
	if p != nil && p.FacilityScoped() {
		// Both ends of the transfer may work it.
		if *p.FacilityID != t.OriginHospitalID && *p.FacilityID != t.DestinationHospitalID {
			return nil, apperror.Forbidden("transfer belongs to other facilities")
		}
		return t, nil
	}
	if err := p.CheckScope(t.OriginHospitalID, t.CountyID); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) List(ctx context.Context, params map[string]string, limit, offset int) ([]*Transfer, int, error) {
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

type UpdateInput struct {
	DestinationHospitalID *uuid.UUID `json:"destination_hospital_id"`
	TriageEntryID         *uuid.UUID `json:"triage_entry_id"`
	AmbulanceID           *uuid.UUID `json:"ambulance_id"`
	Urgency               *string    `json:"urgency" validate:"omitempty,oneof=CRITICAL URGENT ROUTINE"`
	Reason                *string    `json:"reason" validate:"omitempty,min=1"`
}

// Update amends the request details. Only pending requests are editable;
// once a transfer is approved its record moves solely through Transition.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in *UpdateInput) (t *Transfer, err error) {
	defer func() {
		ev := audit.Event{Action: audit.ActionUpdate, EntityType: entityType, EntityID: &id, Err: err}
		if t != nil {
			ev.HospitalID = &t.OriginHospitalID
			ev.Changes = in
		}
		s.rec.Record(ctx, ev)
	}()

	if err = validate.Struct(in); err != nil {
		return nil, err
	}

	t, err = s.Get(ctx, id)
	if err != nil {
		t = nil
		return nil, err
	}
	if t.Status != StatusRequested {
		status := t.Status
		t = nil
		err = apperror.Conflict("transfer is %s and can no longer be edited", status)
		return nil, err
	}

	if in.DestinationHospitalID != nil {
		if *in.DestinationHospitalID == t.OriginHospitalID {
			t = nil
			err = apperror.Validation("origin and destination must differ")
			return nil, err
		}
		t.DestinationHospitalID = *in.DestinationHospitalID
	}
	if in.TriageEntryID != nil {
		t.TriageEntryID = in.TriageEntryID
	}
	if in.AmbulanceID != nil {
		t.AmbulanceID = in.AmbulanceID
	}
	if in.Urgency != nil {
		t.Urgency = *in.Urgency
	}
	if in.Reason != nil {
		t.Reason = *in.Reason
	}
	t.UpdatedAt = time.Now().UTC()

	if updateErr := s.repo.Update(ctx, t); updateErr != nil {
		t = nil
		if db.IsForeignKeyViolation(updateErr) {
			err = apperror.Validation("hospital, triage entry or ambulance does not exist")
			return nil, err
		}
		err = apperror.Internal(updateErr)
		return nil, err
	}
	return t, nil
}

// Delete removes a transfer record. Only terminal transfers may be
// deleted; an in-flight transfer must be cancelled first.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) (err error) {
	defer func() {
		s.rec.Record(ctx, audit.Event{
			Action: audit.ActionDelete, EntityType: entityType, EntityID: &id, Err: err,
		})
	}()

	t, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !machine.Terminal(t.Status) {
		err = apperror.Conflict("transfer %s is still %s; cancel it first", t.TransferNumber, t.Status)
		return err
	}

	if delErr := s.repo.Delete(ctx, id); delErr != nil {
		if db.IsNoRows(delErr) {
			err = apperror.NotFound("transfer %s not found", id)
			return err
		}
		err = apperror.Internal(delErr)
		return err
	}
	return nil
}

// Transition moves a transfer through its lifecycle. Approval reserves a
// destination bed; departing claims the transport unit; completion and
// cancellation release it. Re-issuing the current status is a no-op.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, next string, ambulanceID *uuid.UUID) (t *Transfer, err error) {
	defer func() {
		action := audit.ActionUpdate
		switch next {
		case StatusApproved:
			action = audit.ActionApprove
		case StatusCancelled:
			action = audit.ActionCancel
		}
		ev := audit.Event{Action: action, EntityType: entityType, EntityID: &id, Err: err}
		if t != nil {
			ev.HospitalID = &t.OriginHospitalID
			ev.Description = fmt.Sprintf("transfer %s moved to %s", t.TransferNumber, t.Status)
		}
		s.rec.Record(ctx, ev)
	}()

	if !machine.Known(next) {
		err = apperror.Validation("unknown transfer status %q", next)
		return nil, err
	}

	t, err = s.Get(ctx, id)
	if err != nil {
		t = nil
		return nil, err
	}
	if t.Status == next {
		return t, nil
	}
	if err = machine.Check(t.Status, next); err != nil {
		t = nil
		return nil, err
	}

	prev := t.Status
	now := time.Now().UTC()

	if next == StatusInTransit {
		if ambulanceID != nil {
			t.AmbulanceID = ambulanceID
		}
		if t.AmbulanceID != nil {
			claimed, claimErr := s.fleet.ConditionalSetStatus(ctx, *t.AmbulanceID, dispatch.AmbulanceAvailable, dispatch.AmbulanceDispatched)
			if claimErr != nil {
				t = nil
				err = apperror.Internal(claimErr)
				return nil, err
			}
			if !claimed {
				amb := *t.AmbulanceID
				t = nil
				err = apperror.Conflict("ambulance %s is not available", amb)
				return nil, err
			}
		}
	}

	t.Status = next
	switch next {
	case StatusApproved:
		t.ApprovedAt = &now
		t.BedReserved = true
	case StatusRejected:
		t.RejectedAt = &now
	case StatusInTransit:
		t.DepartureTime = &now
	case StatusCompleted:
		t.ArrivalTime = &now
		t.CompletedAt = &now
	case StatusCancelled:
		t.CancelledAt = &now
	}
	t.UpdatedAt = now

	moved, updErr := s.repo.UpdateStatus(ctx, t, prev)
	if updErr != nil {
		t = nil
		err = apperror.Internal(updErr)
		return nil, err
	}
	if !moved {
		t = nil
		err = apperror.Conflict("transfer %s was modified concurrently", id)
		return nil, err
	}

	if t.AmbulanceID != nil && machine.Terminal(next) {
		if _, relErr := s.fleet.Release(ctx, *t.AmbulanceID); relErr != nil {
			err = apperror.Internal(relErr)
			return nil, err
		}
	}
	return t, nil
}
