package patient

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
)

const entityType = "patient"

type Service struct {
	repo Repository
	rec  *audit.Recorder
}

func NewService(repo Repository, rec *audit.Recorder) *Service {
	return &Service{repo: repo, rec: rec}
}

type CreateInput struct {
	FirstName      string     `json:"first_name" validate:"required"`
	LastName       string     `json:"last_name" validate:"required"`
	NationalID     *string    `json:"national_id"`
	DateOfBirth    *time.Time `json:"date_of_birth"`
	Gender         string     `json:"gender" validate:"omitempty,oneof=MALE FEMALE OTHER"`
	Phone          string     `json:"phone"`
	NextOfKinName  string     `json:"next_of_kin_name"`
	NextOfKinPhone string     `json:"next_of_kin_phone"`
	BloodGroup     string     `json:"blood_group" validate:"omitempty,oneof=A+ A- B+ B- AB+ AB- O+ O-"`
	Allergies      *string    `json:"allergies"`
	HospitalID     uuid.UUID  `json:"hospital_id" validate:"required"`
	Status         string     `json:"status" validate:"omitempty,oneof=ADMITTED OUTPATIENT REFERRED DISCHARGED DECEASED"`
}

type UpdateInput struct {
	FirstName      *string    `json:"first_name" validate:"omitempty,min=1"`
	LastName       *string    `json:"last_name" validate:"omitempty,min=1"`
	NationalID     *string    `json:"national_id"`
	DateOfBirth    *time.Time `json:"date_of_birth"`
	Gender         *string    `json:"gender" validate:"omitempty,oneof=MALE FEMALE OTHER"`
	Phone          *string    `json:"phone"`
	NextOfKinName  *string    `json:"next_of_kin_name"`
	NextOfKinPhone *string    `json:"next_of_kin_phone"`
	BloodGroup     *string    `json:"blood_group" validate:"omitempty,oneof=A+ A- B+ B- AB+ AB- O+ O-"`
	Allergies      *string    `json:"allergies"`
	HospitalID     *uuid.UUID `json:"hospital_id"`
	Status         *string    `json:"status" validate:"omitempty,oneof=ADMITTED OUTPATIENT REFERRED DISCHARGED DECEASED"`
}

func (s *Service) Create(ctx context.Context, in *CreateInput) (p *Patient, err error) {
	defer func() {
		ev := audit.Event{Action: audit.ActionCreate, EntityType: entityType, Err: err}
		if p != nil {
			ev.EntityID = &p.ID
			ev.HospitalID = &p.HospitalID
			ev.Description = fmt.Sprintf("registered patient %s", p.PatientNumber)
		}
		s.rec.Record(ctx, ev)
	}()

	if err = validate.Struct(in); err != nil {
		return nil, err
	}

	if principal := auth.PrincipalFromContext(ctx); principal != nil && principal.FacilityScoped() && *principal.FacilityID != in.HospitalID {
		err = apperror.Forbidden("patient belongs to another facility")
		return nil, err
	}

	now := time.Now().UTC()
	p = &Patient{
		ID:             uuid.New(),
		PatientNumber:  ids.Number("PAT"),
		FirstName:      in.FirstName,
		LastName:       in.LastName,
		NationalID:     in.NationalID,
		DateOfBirth:    in.DateOfBirth,
		Gender:         in.Gender,
		Phone:          in.Phone,
		NextOfKinName:  in.NextOfKinName,
		NextOfKinPhone: in.NextOfKinPhone,
		BloodGroup:     in.BloodGroup,
		Allergies:      in.Allergies,
		HospitalID:     in.HospitalID,
		Status:         in.Status,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if p.Status == "" {
		p.Status = StatusOutpatient
	}

	if createErr := s.repo.Create(ctx, p); createErr != nil {
		p = nil
		if db.IsForeignKeyViolation(createErr) {
			err = apperror.Validation("hospital %s does not exist", in.HospitalID)
			return nil, err
		}
		err = apperror.Internal(createErr)
		return nil, err
	}
	return p, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, apperror.NotFound("patient %s not found", id)
		}
		return nil, apperror.Internal(err)
	}
	principal := auth.PrincipalFromContext(ctx)
	if err := principal.CheckScope(p.HospitalID, p.CountyID); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) List(ctx context.Context, params map[string]string, limit, offset int) ([]*Patient, int, error) {
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

func (s *Service) Update(ctx context.Context, id uuid.UUID, in *UpdateInput) (p *Patient, err error) {
	defer func() {
		ev := audit.Event{Action: audit.ActionUpdate, EntityType: entityType, EntityID: &id, Err: err}
		if p != nil {
			ev.HospitalID = &p.HospitalID
			ev.Description = fmt.Sprintf("updated patient %s", p.PatientNumber)
			ev.Changes = in
		}
		s.rec.Record(ctx, ev)
	}()

	if err = validate.Struct(in); err != nil {
		return nil, err
	}

	p, err = s.Get(ctx, id)
	if err != nil {
		p = nil
		return nil, err
	}

	if in.FirstName != nil {
		p.FirstName = *in.FirstName
	}
	if in.LastName != nil {
		p.LastName = *in.LastName
	}
	if in.NationalID != nil {
		p.NationalID = in.NationalID
	}
	if in.DateOfBirth != nil {
		p.DateOfBirth = in.DateOfBirth
	}
	if in.Gender != nil {
		p.Gender = *in.Gender
	}
	if in.Phone != nil {
		p.Phone = *in.Phone
	}
	if in.NextOfKinName != nil {
		p.NextOfKinName = *in.NextOfKinName
	}
	if in.NextOfKinPhone != nil {
		p.NextOfKinPhone = *in.NextOfKinPhone
	}
	if in.BloodGroup != nil {
		p.BloodGroup = *in.BloodGroup
	}
	if in.Allergies != nil {
		p.Allergies = in.Allergies
	}
	if in.HospitalID != nil {
		p.HospitalID = *in.HospitalID
	}
	if in.Status != nil {
		p.Status = *in.Status
	}
	p.UpdatedAt = time.Now().UTC()

	if updateErr := s.repo.Update(ctx, p); updateErr != nil {
		p = nil
		err = apperror.Internal(updateErr)
		return nil, err
	}
	return p, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) (err error) {
	defer func() {
		s.rec.Record(ctx, audit.Event{
			Action: audit.ActionDelete, EntityType: entityType, EntityID: &id, Err: err,
		})
	}()

	if _, err = s.Get(ctx, id); err != nil {
		return err
	}

	active, depErr := s.repo.HasActiveTriage(ctx, id)
	if depErr != nil {
		err = apperror.Internal(depErr)
		return err
	}
	if active {
		err = apperror.Conflict("patient has in-progress triage entries")
		return err
	}

	if delErr := s.repo.Delete(ctx, id); delErr != nil {
		if db.IsNoRows(delErr) {
			err = apperror.NotFound("patient %s not found", id)
			return err
		}
		err = apperror.Internal(delErr)
		return err
	}
	return nil
}
