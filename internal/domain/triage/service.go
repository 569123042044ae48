package triage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hems/hems/internal/platform/apperror"
	"github.com/hems/hems/internal/platform/audit"
	"github.com/hems/hems/internal/platform/auth"
	"github.com/hems/hems/internal/platform/db"
	"github.com/hems/hems/internal/platform/validate"
	"github.com/hems/hems/internal/platform/workflow"
)

const entityType = "triage_entry"

var machine = workflow.New("triage entry", map[string][]string{
	StatusInProgress: {StatusCompleted, StatusCancelled},
})

type Service struct {
	repo Repository
	rec  *audit.Recorder
}

func NewService(repo Repository, rec *audit.Recorder) *Service {
	return &Service{repo: repo, rec: rec}
}

type CreateInput struct {
	PatientID        uuid.UUID  `json:"patient_id" validate:"required"`
	HospitalID       uuid.UUID  `json:"hospital_id" validate:"required"`
	OfficerID        *uuid.UUID `json:"officer_id"`
	Category         string     `json:"category" validate:"required,oneof=RED YELLOW GREEN BLACK"`
	ChiefComplaint   string     `json:"chief_complaint" validate:"required"`
	HeartRate        *int       `json:"heart_rate" validate:"omitempty,min=0,max=300"`
	BloodPressureSys *int       `json:"blood_pressure_sys" validate:"omitempty,min=0,max=350"`
	BloodPressureDia *int       `json:"blood_pressure_dia" validate:"omitempty,min=0,max=250"`
	Temperature      *float64   `json:"temperature" validate:"omitempty,min=20,max=45"`
	RespiratoryRate  *int       `json:"respiratory_rate" validate:"omitempty,min=0,max=100"`
	OxygenSaturation *int       `json:"oxygen_saturation" validate:"omitempty,min=0,max=100"`
	PainScale        *int       `json:"pain_scale" validate:"omitempty,min=0,max=10"`
	Notes            *string    `json:"notes"`
}

type UpdateInput struct {
	OfficerID        *uuid.UUID `json:"officer_id"`
	Category         *string    `json:"category" validate:"omitempty,oneof=RED YELLOW GREEN BLACK"`
	ChiefComplaint   *string    `json:"chief_complaint" validate:"omitempty,min=1"`
	HeartRate        *int       `json:"heart_rate" validate:"omitempty,min=0,max=300"`
	BloodPressureSys *int       `json:"blood_pressure_sys" validate:"omitempty,min=0,max=350"`
	BloodPressureDia *int       `json:"blood_pressure_dia" validate:"omitempty,min=0,max=250"`
	Temperature      *float64   `json:"temperature" validate:"omitempty,min=20,max=45"`
	RespiratoryRate  *int       `json:"respiratory_rate" validate:"omitempty,min=0,max=100"`
	OxygenSaturation *int       `json:"oxygen_saturation" validate:"omitempty,min=0,max=100"`
	PainScale        *int       `json:"pain_scale" validate:"omitempty,min=0,max=10"`
	Notes            *string    `json:"notes"`
}

func (s *Service) Create(ctx context.Context, in *CreateInput) (e *Entry, err error) {
	defer func() {
		ev := audit.Event{Action: audit.ActionCreate, EntityType: entityType, Err: err}
		if e != nil {
			ev.EntityID = &e.ID
			ev.HospitalID = &e.HospitalID
			ev.Description = fmt.Sprintf("triaged patient %s as %s", e.PatientID, e.Category)
		}
		s.rec.Record(ctx, ev)
	}()

	if err = validate.Struct(in); err != nil {
		return nil, err
	}

	if principal := auth.PrincipalFromContext(ctx); principal != nil && principal.FacilityScoped() && *principal.FacilityID != in.HospitalID {
		err = apperror.Forbidden("triage entry belongs to another facility")
		return nil, err
	}

	now := time.Now().UTC()
	e = &Entry{
		ID:               uuid.New(),
		PatientID:        in.PatientID,
		HospitalID:       in.HospitalID,
		OfficerID:        in.OfficerID,
		Category:         in.Category,
		ChiefComplaint:   in.ChiefComplaint,
		HeartRate:        in.HeartRate,
		BloodPressureSys: in.BloodPressureSys,
		BloodPressureDia: in.BloodPressureDia,
		Temperature:      in.Temperature,
		RespiratoryRate:  in.RespiratoryRate,
		OxygenSaturation: in.OxygenSaturation,
		PainScale:        in.PainScale,
		Notes:            in.Notes,
		Status:           StatusInProgress,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if e.OfficerID == nil {
		if principal := auth.PrincipalFromContext(ctx); principal != nil {
			id := principal.ID
			e.OfficerID = &id
		}
	}

	if createErr := s.repo.Create(ctx, e); createErr != nil {
		e = nil
		if db.IsForeignKeyViolation(createErr) {
			err = apperror.Validation("patient or hospital does not exist")
			return nil, err
		}
		err = apperror.Internal(createErr)
		return nil, err
	}
	return e, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Entry, error) {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, apperror.NotFound("triage entry %s not found", id)
		}
		return nil, apperror.Internal(err)
	}
	principal := auth.PrincipalFromContext(ctx)
	if err := principal.CheckScope(e.HospitalID, e.CountyID); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *Service) List(ctx context.Context, params map[string]string, limit, offset int) ([]*Entry, int, error) {
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

func (s *Service) Update(ctx context.Context, id uuid.UUID, in *UpdateInput) (e *Entry, err error) {
	defer func() {
		ev := audit.Event{Action: audit.ActionUpdate, EntityType: entityType, EntityID: &id, Err: err}
		if e != nil {
			ev.HospitalID = &e.HospitalID
			ev.Changes = in
		}
		s.rec.Record(ctx, ev)
	}()

	if err = validate.Struct(in); err != nil {
		return nil, err
	}

	e, err = s.Get(ctx, id)
	if err != nil {
		e = nil
		return nil, err
	}
	if e.Status != StatusInProgress {
		status := e.Status
		e = nil
		err = apperror.Conflict("triage entry is %s and can no longer be edited", status)
		return nil, err
	}

	if in.OfficerID != nil {
		e.OfficerID = in.OfficerID
	}
	if in.Category != nil {
		e.Category = *in.Category
	}
	if in.ChiefComplaint != nil {
		e.ChiefComplaint = *in.ChiefComplaint
	}
	if in.HeartRate != nil {
		e.HeartRate = in.HeartRate
	}
	if in.BloodPressureSys != nil {
		e.BloodPressureSys = in.BloodPressureSys
	}
	if in.BloodPressureDia != nil {
		e.BloodPressureDia = in.BloodPressureDia
	}
	if in.Temperature != nil {
		e.Temperature = in.Temperature
	}
	if in.RespiratoryRate != nil {
		e.RespiratoryRate = in.RespiratoryRate
	}
	if in.OxygenSaturation != nil {
		e.OxygenSaturation = in.OxygenSaturation
	}
	if in.PainScale != nil {
		e.PainScale = in.PainScale
	}
	if in.Notes != nil {
		e.Notes = in.Notes
	}
	e.UpdatedAt = time.Now().UTC()

	if updateErr := s.repo.Update(ctx, e); updateErr != nil {
		e = nil
		err = apperror.Internal(updateErr)
		return nil, err
	}
	return e, nil
}

// UpdateStatus moves the entry to next, stamping completed_at on any
// terminal state. Re-issuing the current status is a no-op.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, next string) (e *Entry, err error) {
	defer func() {
		ev := audit.Event{Action: audit.ActionUpdate, EntityType: entityType, EntityID: &id, Err: err}
		if e != nil {
			ev.HospitalID = &e.HospitalID
			ev.Description = fmt.Sprintf("triage entry moved to %s", e.Status)
		}
		s.rec.Record(ctx, ev)
	}()

	if !machine.Known(next) {
		err = apperror.Validation("unknown triage status %q", next)
		return nil, err
	}

	e, err = s.Get(ctx, id)
	if err != nil {
		e = nil
		return nil, err
	}
	if e.Status == next {
		return e, nil
	}
	if err = machine.Check(e.Status, next); err != nil {
		e = nil
		return nil, err
	}

	var completedAt *time.Time
	if next == StatusCompleted || next == StatusCancelled {
		now := time.Now().UTC()
		completedAt = &now
	}

	moved, updErr := s.repo.ConditionalSetStatus(ctx, id, e.Status, next, completedAt)
	if updErr != nil {
		e = nil
		err = apperror.Internal(updErr)
		return nil, err
	}
	if !moved {
		e = nil
		err = apperror.Conflict("triage entry %s was modified concurrently", id)
		return nil, err
	}

	e.Status = next
	e.CompletedAt = completedAt
	e.UpdatedAt = time.Now().UTC()
	return e, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) (err error) {
	defer func() {
		s.rec.Record(ctx, audit.Event{
			Action: audit.ActionDelete, EntityType: entityType, EntityID: &id, Err: err,
		})
	}()

	e, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if e.Status == StatusInProgress {
		err = apperror.Conflict("cannot delete an in-progress triage entry; cancel it first")
		return err
	}

	if delErr := s.repo.Delete(ctx, id); delErr != nil {
		if db.IsNoRows(delErr) {
			err = apperror.NotFound("triage entry %s not found", id)
			return err
		}
		err = apperror.Internal(delErr)
		return err
	}
	return nil
}
