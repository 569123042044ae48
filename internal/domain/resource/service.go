package resource

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
)

const entityType = "resource"

type Service struct {
	repo Repository
	rec  *audit.Recorder
}

func NewService(repo Repository, rec *audit.Recorder) *Service {
	return &Service{repo: repo, rec: rec}
}

type CreateInput struct {
	HospitalID        uuid.UUID `json:"hospital_id" validate:"required"`
	Name              string    `json:"name" validate:"required"`
	ResourceType      string    `json:"resource_type" validate:"required,oneof=BED ICU_BED EQUIPMENT SUPPLY MEDICINE BLOOD_UNIT OXYGEN"`
	TotalCapacity     int       `json:"total_capacity" validate:"min=0"`
	AvailableCapacity int       `json:"available_capacity" validate:"min=0"`
	ReservedCapacity  int       `json:"reserved_capacity" validate:"min=0"`
	InUseCapacity     int       `json:"in_use_capacity" validate:"min=0"`
	CriticalLevel     int       `json:"critical_level" validate:"min=0"`
	ReorderLevel      int       `json:"reorder_level" validate:"min=0"`
	IsOperational     *bool     `json:"is_operational"`
}

type UpdateInput struct {
	Name              *string `json:"name" validate:"omitempty,min=1"`
	ResourceType      *string `json:"resource_type" validate:"omitempty,oneof=BED ICU_BED EQUIPMENT SUPPLY MEDICINE BLOOD_UNIT OXYGEN"`
	TotalCapacity     *int    `json:"total_capacity" validate:"omitempty,min=0"`
	AvailableCapacity *int    `json:"available_capacity" validate:"omitempty,min=0"`
	ReservedCapacity  *int    `json:"reserved_capacity" validate:"omitempty,min=0"`
	InUseCapacity     *int    `json:"in_use_capacity" validate:"omitempty,min=0"`
	CriticalLevel     *int    `json:"critical_level" validate:"omitempty,min=0"`
	ReorderLevel      *int    `json:"reorder_level" validate:"omitempty,min=0"`
	IsOperational     *bool   `json:"is_operational"`
}

// checkCapacity enforces the counter invariant before any write reaches
// the store.
func checkCapacity(total, available, reserved, inUse int) error {
	if available+reserved+inUse > total {
		return apperror.Validation(
			"capacity counters exceed total: %d available + %d reserved + %d in use > %d total",
			available, reserved, inUse, total)
	}
	return nil
}

func (s *Service) Create(ctx context.Context, in *CreateInput) (res *Resource, err error) {
	defer func() {
		ev := audit.Event{Action: audit.ActionCreate, EntityType: entityType, Err: err}
		if res != nil {
			ev.EntityID = &res.ID
			ev.HospitalID = &res.HospitalID
			ev.Description = fmt.Sprintf("added resource %s (%s)", res.Name, res.ResourceType)
		}
		s.rec.Record(ctx, ev)
	}()

	if err = validate.Struct(in); err != nil {
		return nil, err
	}
	if err = checkCapacity(in.TotalCapacity, in.AvailableCapacity, in.ReservedCapacity, in.InUseCapacity); err != nil {
		return nil, err
	}

	if principal := auth.PrincipalFromContext(ctx); principal != nil && principal.FacilityScoped() && *principal.FacilityID != in.HospitalID {
		err = apperror.Forbidden("resource belongs to another facility")
		return nil, err
	}

	now := time.Now().UTC()
	res = &Resource{
		ID:                uuid.New(),
		HospitalID:        in.HospitalID,
		Name:              in.Name,
		ResourceType:      in.ResourceType,
		TotalCapacity:     in.TotalCapacity,
		AvailableCapacity: in.AvailableCapacity,
		ReservedCapacity:  in.ReservedCapacity,
		InUseCapacity:     in.InUseCapacity,
		CriticalLevel:     in.CriticalLevel,
		ReorderLevel:      in.ReorderLevel,
		IsOperational:     true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if in.IsOperational != nil {
		res.IsOperational = *in.IsOperational
	}
	res.refresh()

	if createErr := s.repo.Create(ctx, res); createErr != nil {
		res = nil
		if db.IsForeignKeyViolation(createErr) {
			err = apperror.Validation("hospital %s does not exist", in.HospitalID)
			return nil, err
		}
		err = apperror.Internal(createErr)
		return nil, err
	}
	return res, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Resource, error) {
	res, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, apperror.NotFound("resource %s not found", id)
		}
		return nil, apperror.Internal(err)
	}
	principal := auth.PrincipalFromContext(ctx)
	if err := principal.CheckScope(res.HospitalID, res.CountyID); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Service) List(ctx context.Context, params map[string]string, limit, offset int) ([]*Resource, int, error) {
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

func (s *Service) Update(ctx context.Context, id uuid.UUID, in *UpdateInput) (res *Resource, err error) {
	defer func() {
		ev := audit.Event{Action: audit.ActionUpdate, EntityType: entityType, EntityID: &id, Err: err}
		if res != nil {
			ev.HospitalID = &res.HospitalID
			ev.Description = fmt.Sprintf("updated resource %s", res.Name)
			ev.Changes = in
		}
		s.rec.Record(ctx, ev)
	}()

	if err = validate.Struct(in); err != nil {
		return nil, err
	}

	res, err = s.Get(ctx, id)
	if err != nil {
		res = nil
		return nil, err
	}

	if in.Name != nil {
		res.Name = *in.Name
	}
	if in.ResourceType != nil {
		res.ResourceType = *in.ResourceType
	}
	if in.TotalCapacity != nil {
		res.TotalCapacity = *in.TotalCapacity
	}
	if in.AvailableCapacity != nil {
		res.AvailableCapacity = *in.AvailableCapacity
	}
	if in.ReservedCapacity != nil {
		res.ReservedCapacity = *in.ReservedCapacity
	}
	if in.InUseCapacity != nil {
		res.InUseCapacity = *in.InUseCapacity
	}
	if in.CriticalLevel != nil {
		res.CriticalLevel = *in.CriticalLevel
	}
	if in.ReorderLevel != nil {
		res.ReorderLevel = *in.ReorderLevel
	}
	if in.IsOperational != nil {
		res.IsOperational = *in.IsOperational
	}

	if err = checkCapacity(res.TotalCapacity, res.AvailableCapacity, res.ReservedCapacity, res.InUseCapacity); err != nil {
		res = nil
		return nil, err
	}

	res.refresh()
	res.UpdatedAt = time.Now().UTC()

	if updateErr := s.repo.Update(ctx, res); updateErr != nil {
		res = nil
		err = apperror.Internal(updateErr)
		return nil, err
	}
	return res, nil
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

	if delErr := s.repo.Delete(ctx, id); delErr != nil {
		if db.IsNoRows(delErr) {
			err = apperror.NotFound("resource %s not found", id)
			return err
		}
		err = apperror.Internal(delErr)
		return err
	}
	return nil
}
