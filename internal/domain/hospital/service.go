package hospital

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

const entityType = "hospital"

type Service struct {
	repo Repository
	rec  *audit.Recorder
}

func NewService(repo Repository, rec *audit.Recorder) *Service {
	return &Service{repo: repo, rec: rec}
}

type CreateInput struct {
	Code              string   `json:"code" validate:"required"`
	Name              string   `json:"name" validate:"required"`
	CountyID          string   `json:"county_id" validate:"required"`
	SubCounty         string   `json:"sub_county"`
	Level             int      `json:"level" validate:"gte=1,lte=6"`
	Category          string   `json:"category" validate:"omitempty,oneof=PUBLIC PRIVATE FAITH_BASED"`
	BedCapacity       int      `json:"bed_capacity" validate:"gte=0"`
	ICUCapacity       int      `json:"icu_capacity" validate:"gte=0"`
	Phone             string   `json:"phone"`
	Email             string   `json:"email" validate:"omitempty,email"`
	Address           string   `json:"address"`
	Latitude          *float64 `json:"latitude"`
	Longitude         *float64 `json:"longitude"`
	OperationalStatus string   `json:"operational_status" validate:"omitempty,oneof=OPERATIONAL LIMITED CLOSED"`
}

type UpdateInput struct {
	Name              *string  `json:"name" validate:"omitempty,min=1"`
	SubCounty         *string  `json:"sub_county"`
	Level             *int     `json:"level" validate:"omitempty,gte=1,lte=6"`
	Category          *string  `json:"category" validate:"omitempty,oneof=PUBLIC PRIVATE FAITH_BASED"`
	BedCapacity       *int     `json:"bed_capacity" validate:"omitempty,gte=0"`
	ICUCapacity       *int     `json:"icu_capacity" validate:"omitempty,gte=0"`
	Phone             *string  `json:"phone"`
	Email             *string  `json:"email" validate:"omitempty,email"`
	Address           *string  `json:"address"`
	Latitude          *float64 `json:"latitude"`
	Longitude         *float64 `json:"longitude"`
	OperationalStatus *string  `json:"operational_status" validate:"omitempty,oneof=OPERATIONAL LIMITED CLOSED"`
}

func (s *Service) Create(ctx context.Context, in *CreateInput) (h *Hospital, err error) {
	defer func() {
		ev := audit.Event{Action: audit.ActionCreate, EntityType: entityType, Err: err}
		if h != nil {
			ev.EntityID = &h.ID
			ev.HospitalID = &h.ID
			ev.Description = fmt.Sprintf("registered hospital %s (%s)", h.Name, h.Code)
		}
		s.rec.Record(ctx, ev)
	}()

	if err = validate.Struct(in); err != nil {
		return nil, err
	}
	if _, lookupErr := s.repo.GetByCode(ctx, in.Code); lookupErr == nil {
		return nil, apperror.Conflict("hospital code %s already registered", in.Code)
	}

	now := time.Now().UTC()
	h = &Hospital{
		ID:                uuid.New(),
		Code:              in.Code,
		Name:              in.Name,
		CountyID:          in.CountyID,
		SubCounty:         in.SubCounty,
		Level:             in.Level,
		Category:          in.Category,
		BedCapacity:       in.BedCapacity,
		ICUCapacity:       in.ICUCapacity,
		Phone:             in.Phone,
		Email:             in.Email,
		Address:           in.Address,
		Latitude:          in.Latitude,
		Longitude:         in.Longitude,
		OperationalStatus: in.OperationalStatus,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if h.Category == "" {
		h.Category = CategoryPublic
	}
	if h.OperationalStatus == "" {
		h.OperationalStatus = StatusOperational
	}

	if createErr := s.repo.Create(ctx, h); createErr != nil {
		h = nil
		if db.IsUniqueViolation(createErr) {
			err = apperror.Conflict("hospital code %s already registered", in.Code)
			return nil, err
		}
		err = apperror.Internal(createErr)
		return nil, err
	}
	return h, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Hospital, error) {
	h, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, apperror.NotFound("hospital %s not found", id)
		}
		return nil, apperror.Internal(err)
	}
	p := auth.PrincipalFromContext(ctx)
	if err := p.CheckScope(h.ID, h.CountyID); err != nil {
		return nil, err
	}
	return h, nil
}

func (s *Service) List(ctx context.Context, params map[string]string, limit, offset int) ([]*Hospital, int, error) {
	// County-scoped principals only ever see their own county.
	if p := auth.PrincipalFromContext(ctx); p != nil && p.CountyScoped() {
		if params == nil {
			params = map[string]string{}
		}
		params["county_id"] = p.CountyID
	}
	items, total, err := s.repo.Search(ctx, params, limit, offset)
	if err != nil {
		return nil, 0, apperror.Internal(err)
	}
	return items, total, nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, in *UpdateInput) (h *Hospital, err error) {
	defer func() {
		ev := audit.Event{Action: audit.ActionUpdate, EntityType: entityType, EntityID: &id, Err: err}
		if h != nil {
			ev.HospitalID = &h.ID
			ev.Description = fmt.Sprintf("updated hospital %s", h.Code)
			ev.Changes = in
		}
		s.rec.Record(ctx, ev)
	}()

	if err = validate.Struct(in); err != nil {
		return nil, err
	}

	h, err = s.Get(ctx, id)
	if err != nil {
		h = nil
		return nil, err
	}

	if in.Name != nil {
		h.Name = *in.Name
	}
	if in.SubCounty != nil {
		h.SubCounty = *in.SubCounty
	}
	if in.Level != nil {
		h.Level = *in.Level
	}
	if in.Category != nil {
		h.Category = *in.Category
	}
	if in.BedCapacity != nil {
		h.BedCapacity = *in.BedCapacity
	}
	if in.ICUCapacity != nil {
		h.ICUCapacity = *in.ICUCapacity
	}
	if in.Phone != nil {
		h.Phone = *in.Phone
	}
	if in.Email != nil {
		h.Email = *in.Email
	}
	if in.Address != nil {
		h.Address = *in.Address
	}
	if in.Latitude != nil {
		h.Latitude = in.Latitude
	}
	if in.Longitude != nil {
		h.Longitude = in.Longitude
	}
	if in.OperationalStatus != nil {
		h.OperationalStatus = *in.OperationalStatus
	}
	h.UpdatedAt = time.Now().UTC()

	if updateErr := s.repo.Update(ctx, h); updateErr != nil {
		h = nil
		err = apperror.Internal(updateErr)
		return nil, err
	}
	return h, nil
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

	hasPatients, depErr := s.repo.HasPatients(ctx, id)
	if depErr != nil {
		err = apperror.Internal(depErr)
		return err
	}
	if hasPatients {
		err = apperror.Conflict("hospital has registered patients")
		return err
	}

	if delErr := s.repo.Delete(ctx, id); delErr != nil {
		if db.IsNoRows(delErr) {
			err = apperror.NotFound("hospital %s not found", id)
			return err
		}
		err = apperror.Internal(delErr)
		return err
	}
	return nil
}
