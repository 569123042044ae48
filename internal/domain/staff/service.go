package staff

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hems/hems/internal/platform/apperror"
	"github.com/hems/hems/internal/platform/audit"
	"github.com/hems/hems/internal/platform/auth"
	"github.com/hems/hems/internal/platform/db"
	"github.com/hems/hems/internal/platform/validate"
)

const (
	entityType      = "staff"
	shiftEntityType = "shift"
)

type Service struct {
	repo   Repository
	shifts ShiftRepository
	rec    *audit.Recorder
	secret []byte
}

func NewService(repo Repository, shifts ShiftRepository, rec *audit.Recorder, secret []byte) *Service {
	return &Service{repo: repo, shifts: shifts, rec: rec, secret: secret}
}

type CreateInput struct {
	FirstName  string     `json:"first_name" validate:"required"`
	LastName   string     `json:"last_name" validate:"required"`
	Email      string     `json:"email" validate:"required,email"`
	Phone      string     `json:"phone"`
	Role       string     `json:"role" validate:"required"`
	HospitalID *uuid.UUID `json:"hospital_id"`
	CountyID   string     `json:"county_id"`
	Specialty  string     `json:"specialty"`
	LicenseNo  string     `json:"license_no"`
	Password   string     `json:"password" validate:"required,min=8"`
}

type UpdateInput struct {
	FirstName  *string    `json:"first_name" validate:"omitempty,min=1"`
	LastName   *string    `json:"last_name" validate:"omitempty,min=1"`
	Email      *string    `json:"email" validate:"omitempty,email"`
	Phone      *string    `json:"phone"`
	Role       *string    `json:"role"`
	HospitalID *uuid.UUID `json:"hospital_id"`
	CountyID   *string    `json:"county_id"`
	Specialty  *string    `json:"specialty"`
	LicenseNo  *string    `json:"license_no"`
	Password   *string    `json:"password" validate:"omitempty,min=8"`
	IsActive   *bool      `json:"is_active"`
}

// checkMemberScope applies facility/county scoping to a staff record.
func checkMemberScope(ctx context.Context, m *Member) error {
	p := auth.PrincipalFromContext(ctx)
	if p == nil {
		return nil
	}
	if p.FacilityScoped() {
		if m.HospitalID == nil || *m.HospitalID != *p.FacilityID {
			return apperror.Forbidden("staff member belongs to another facility")
		}
		return nil
	}
	if p.CountyScoped() && m.CountyID != p.CountyID {
		return apperror.Forbidden("staff member belongs to another county")
	}
	return nil
}

func (s *Service) Create(ctx context.Context, in *CreateInput) (m *Member, err error) {
	defer func() {
		ev := audit.Event{Action: audit.ActionCreate, EntityType: entityType, Err: err}
		if m != nil {
			ev.EntityID = &m.ID
			ev.HospitalID = m.HospitalID
			ev.Description = fmt.Sprintf("registered staff account %s (%s)", m.Email, m.Role)
		}
		s.rec.Record(ctx, ev)
	}()

	if err = validate.Struct(in); err != nil {
		return nil, err
	}
	if !auth.KnownRole(in.Role) {
		err = apperror.Validation("unknown role %q", in.Role)
		return nil, err
	}

	if principal := auth.PrincipalFromContext(ctx); principal != nil && principal.FacilityScoped() {
		if in.HospitalID == nil || *in.HospitalID != *principal.FacilityID {
			err = apperror.Forbidden("staff member belongs to another facility")
			return nil, err
		}
	}

	if existing, lookupErr := s.repo.GetByEmail(ctx, in.Email); lookupErr == nil && existing != nil {
		err = apperror.Conflict("staff member with email %s already exists", in.Email)
		return nil, err
	}

	hash, hashErr := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if hashErr != nil {
		err = apperror.Internal(hashErr)
		return nil, err
	}

	now := time.Now().UTC()
	m = &Member{
		ID:           uuid.New(),
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Email:        in.Email,
		Phone:        in.Phone,
		Role:         in.Role,
		HospitalID:   in.HospitalID,
		CountyID:     in.CountyID,
		Specialty:    in.Specialty,
		LicenseNo:    in.LicenseNo,
		PasswordHash: string(hash),
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if createErr := s.repo.Create(ctx, m); createErr != nil {
		m = nil
		if db.IsUniqueViolation(createErr) {
			err = apperror.Conflict("staff member with email %s already exists", in.Email)
			return nil, err
		}
		if db.IsForeignKeyViolation(createErr) {
			err = apperror.Validation("hospital does not exist")
			return nil, err
		}
		err = apperror.Internal(createErr)
		return nil, err
	}
	return m, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Member, error) {
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, apperror.NotFound("staff member %s not found", id)
		}
		return nil, apperror.Internal(err)
	}
	if err := checkMemberScope(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Service) List(ctx context.Context, params map[string]string, limit, offset int) ([]*Member, int, error) {
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

func (s *Service) Update(ctx context.Context, id uuid.UUID, in *UpdateInput) (m *Member, err error) {
	defer func() {
		ev := audit.Event{Action: audit.ActionUpdate, EntityType: entityType, EntityID: &id, Err: err}
		if m != nil {
			ev.HospitalID = m.HospitalID
			ev.Description = fmt.Sprintf("updated staff account %s", m.Email)
		}
		s.rec.Record(ctx, ev)
	}()

	if err = validate.Struct(in); err != nil {
		return nil, err
	}
	if in.Role != nil && !auth.KnownRole(*in.Role) {
		err = apperror.Validation("unknown role %q", *in.Role)
		return nil, err
	}

	m, err = s.Get(ctx, id)
	if err != nil {
		m = nil
		return nil, err
	}

	if in.FirstName != nil {
		m.FirstName = *in.FirstName
	}
	if in.LastName != nil {
		m.LastName = *in.LastName
	}
	if in.Email != nil {
		m.Email = *in.Email
	}
	if in.Phone != nil {
		m.Phone = *in.Phone
	}
	if in.Role != nil {
		m.Role = *in.Role
	}
	if in.HospitalID != nil {
		m.HospitalID = in.HospitalID
	}
	if in.CountyID != nil {
		m.CountyID = *in.CountyID
	}
	if in.Specialty != nil {
		m.Specialty = *in.Specialty
	}
	if in.LicenseNo != nil {
		m.LicenseNo = *in.LicenseNo
	}
	if in.IsActive != nil {
		m.IsActive = *in.IsActive
	}
	if in.Password != nil {
		hash, hashErr := bcrypt.GenerateFromPassword([]byte(*in.Password), bcrypt.DefaultCost)
		if hashErr != nil {
			m = nil
			err = apperror.Internal(hashErr)
			return nil, err
		}
		m.PasswordHash = string(hash)
	}
	m.UpdatedAt = time.Now().UTC()

	if updateErr := s.repo.Update(ctx, m); updateErr != nil {
		m = nil
		if db.IsUniqueViolation(updateErr) {
			err = apperror.Conflict("staff member with that email already exists")
			return nil, err
		}
		err = apperror.Internal(updateErr)
		return nil, err
	}
	return m, nil
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
			err = apperror.NotFound("staff member %s not found", id)
			return err
		}
		err = apperror.Internal(delErr)
		return err
	}
	return nil
}

// LoginResult carries the authenticated member and the freshly issued
// token pair.
type LoginResult struct {
	Member       *Member `json:"user"`
	AccessToken  string  `json:"token"`
	RefreshToken string  `json:"-"`
}

// Login verifies credentials and issues an access/refresh token pair.
// All credential failures collapse into one Unauthenticated error.
func (s *Service) Login(ctx context.Context, email, password string) (res *LoginResult, err error) {
	defer func() {
		ev := audit.Event{
			Action:      audit.ActionLogin,
			EntityType:  entityType,
			Description: fmt.Sprintf("login attempt for %s", email),
			Err:         err,
		}
		if res != nil {
			ev.EntityID = &res.Member.ID
			ev.HospitalID = res.Member.HospitalID
		}
		s.rec.Record(ctx, ev)
	}()

	m, lookupErr := s.repo.GetByEmail(ctx, email)
	if lookupErr != nil {
		if db.IsNoRows(lookupErr) {
			err = apperror.Unauthenticated("invalid credentials")
			return nil, err
		}
		err = apperror.Internal(lookupErr)
		return nil, err
	}
	if !m.IsActive {
		err = apperror.Unauthenticated("invalid credentials")
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(m.PasswordHash), []byte(password)) != nil {
		err = apperror.Unauthenticated("invalid credentials")
		return nil, err
	}

	facility := ""
	if m.HospitalID != nil {
		facility = m.HospitalID.String()
	}
	name := m.FirstName + " " + m.LastName

	access, tokenErr := auth.IssueToken(s.secret, m.ID, m.Role, name, facility, m.CountyID)
	if tokenErr != nil {
		err = apperror.Internal(tokenErr)
		return nil, err
	}
	refresh, tokenErr := auth.IssueRefreshToken(s.secret, m.ID, m.Role, name, facility, m.CountyID)
	if tokenErr != nil {
		err = apperror.Internal(tokenErr)
		return nil, err
	}

	if touchErr := s.repo.TouchLastLogin(ctx, m.ID); touchErr == nil {
		now := time.Now().UTC()
		m.LastLoginAt = &now
	}

	res = &LoginResult{Member: m, AccessToken: access, RefreshToken: refresh}
	return res, nil
}

// Refresh exchanges a valid refresh token for a new access token. The
// account must still exist and be active.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, error) {
	claims, err := auth.VerifyToken(s.secret, refreshToken)
	if err != nil {
		return "", err
	}
	if !claims.Refresh {
		return "", apperror.Unauthenticated("invalid token")
	}

	uid, parseErr := uuid.Parse(claims.Subject)
	if parseErr != nil {
		return "", apperror.Unauthenticated("invalid token")
	}
	m, lookupErr := s.repo.GetByID(ctx, uid)
	if lookupErr != nil || !m.IsActive {
		return "", apperror.Unauthenticated("invalid token")
	}

	facility := ""
	if m.HospitalID != nil {
		facility = m.HospitalID.String()
	}
	access, tokenErr := auth.IssueToken(s.secret, m.ID, m.Role, m.FirstName+" "+m.LastName, facility, m.CountyID)
	if tokenErr != nil {
		return "", apperror.Internal(tokenErr)
	}
	return access, nil
}

type ShiftInput struct {
	StaffID    uuid.UUID `json:"staff_id" validate:"required"`
	HospitalID uuid.UUID `json:"hospital_id" validate:"required"`
	Ward       string    `json:"ward" validate:"required"`
	StartTime  time.Time `json:"start_time" validate:"required"`
	EndTime    time.Time `json:"end_time" validate:"required"`
}

type ShiftUpdateInput struct {
	Ward      *string    `json:"ward" validate:"omitempty,min=1"`
	StartTime *time.Time `json:"start_time"`
	EndTime   *time.Time `json:"end_time"`
}

func (s *Service) CreateShift(ctx context.Context, in *ShiftInput) (sh *Shift, err error) {
	defer func() {
		ev := audit.Event{Action: audit.ActionCreate, EntityType: shiftEntityType, Err: err}
		if sh != nil {
			ev.EntityID = &sh.ID
			ev.HospitalID = &sh.HospitalID
		}
		s.rec.Record(ctx, ev)
	}()

	if err = validate.Struct(in); err != nil {
		return nil, err
	}
	if !in.EndTime.After(in.StartTime) {
		err = apperror.Validation("shift end must be after start")
		return nil, err
	}

	if principal := auth.PrincipalFromContext(ctx); principal != nil && principal.FacilityScoped() && *principal.FacilityID != in.HospitalID {
		err = apperror.Forbidden("shift belongs to another facility")
		return nil, err
	}

	now := time.Now().UTC()
	sh = &Shift{
		ID:         uuid.New(),
		StaffID:    in.StaffID,
		HospitalID: in.HospitalID,
		Ward:       in.Ward,
		StartTime:  in.StartTime,
		EndTime:    in.EndTime,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if createErr := s.shifts.Create(ctx, sh); createErr != nil {
		sh = nil
		if db.IsForeignKeyViolation(createErr) {
			err = apperror.Validation("staff member or hospital does not exist")
			return nil, err
		}
		err = apperror.Internal(createErr)
		return nil, err
	}
	return sh, nil
}

func (s *Service) GetShift(ctx context.Context, id uuid.UUID) (*Shift, error) {
	sh, err := s.shifts.GetByID(ctx, id)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, apperror.NotFound("shift %s not found", id)
		}
		return nil, apperror.Internal(err)
	}
	if p := auth.PrincipalFromContext(ctx); p != nil && p.FacilityScoped() && *p.FacilityID != sh.HospitalID {
		return nil, apperror.Forbidden("shift belongs to another facility")
	}
	return sh, nil
}

func (s *Service) ListShifts(ctx context.Context, params map[string]string, limit, offset int) ([]*Shift, int, error) {
	if params == nil {
		params = map[string]string{}
	}
	if p := auth.PrincipalFromContext(ctx); p != nil && p.FacilityScoped() {
		params["hospital_id"] = p.FacilityID.String()
	}
	items, total, err := s.shifts.Search(ctx, params, limit, offset)
	if err != nil {
		return nil, 0, apperror.Internal(err)
	}
	return items, total, nil
}

func (s *Service) UpdateShift(ctx context.Context, id uuid.UUID, in *ShiftUpdateInput) (sh *Shift, err error) {
	defer func() {
		ev := audit.Event{Action: audit.ActionUpdate, EntityType: shiftEntityType, EntityID: &id, Err: err}
		if sh != nil {
			ev.HospitalID = &sh.HospitalID
		}
		s.rec.Record(ctx, ev)
	}()

	if err = validate.Struct(in); err != nil {
		return nil, err
	}

	sh, err = s.GetShift(ctx, id)
	if err != nil {
		sh = nil
		return nil, err
	}

	if in.Ward != nil {
		sh.Ward = *in.Ward
	}
	if in.StartTime != nil {
		sh.StartTime = *in.StartTime
	}
	if in.EndTime != nil {
		sh.EndTime = *in.EndTime
	}
	if !sh.EndTime.After(sh.StartTime) {
		sh = nil
		err = apperror.Validation("shift end must be after start")
		return nil, err
	}
	sh.UpdatedAt = time.Now().UTC()

	if updateErr := s.shifts.Update(ctx, sh); updateErr != nil {
		sh = nil
		err = apperror.Internal(updateErr)
		return nil, err
	}
	return sh, nil
}

func (s *Service) DeleteShift(ctx context.Context, id uuid.UUID) (err error) {
	defer func() {
		s.rec.Record(ctx, audit.Event{
			Action: audit.ActionDelete, EntityType: shiftEntityType, EntityID: &id, Err: err,
		})
	}()

	if _, err = s.GetShift(ctx, id); err != nil {
		return err
	}
	if delErr := s.shifts.Delete(ctx, id); delErr != nil {
		if db.IsNoRows(delErr) {
			err = apperror.NotFound("shift %s not found", id)
			return err
		}
		err = apperror.Internal(delErr)
		return err
	}
	return nil
}
