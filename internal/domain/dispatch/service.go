package dispatch

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

const (
	ambulanceEntityType = "ambulance"
	logEntityType       = "dispatch_log"
	responseEntityType  = "emergency_response"
)

// The dispatch lifecycle is an ordered chain; skipping forward is allowed
// (a crew may go straight from DISPATCHED to ON_SCENE), going back is not.
var logMachine = workflow.Chain("dispatch",
	[]string{
		StatusReceived, StatusAssessing, StatusDispatched, StatusEnRoute,
		StatusOnScene, StatusTransporting, StatusAtHospital, StatusCompleted,
	},
	map[string][]string{
		StatusReceived:     {StatusCancelled, StatusNoAmbulance},
		StatusAssessing:    {StatusCancelled, StatusNoAmbulance},
		StatusDispatched:   {StatusCancelled},
		StatusEnRoute:      {StatusCancelled},
		StatusOnScene:      {StatusCancelled},
		StatusTransporting: {StatusCancelled},
		StatusAtHospital:   {StatusCancelled},
	})

var responseMachine = workflow.New("emergency response", map[string][]string{
	ResponseActive:  {ResponseOnScene, ResponseCancelled},
	ResponseOnScene: {ResponseCompleted, ResponseCancelled},
})

// ambulanceMirror maps dispatch statuses to the ambulance status the
// assigned unit should reflect while the call progresses.
var ambulanceMirror = map[string]string{
	StatusEnRoute:      AmbulanceEnRoute,
	StatusOnScene:      AmbulanceAtScene,
	StatusTransporting: AmbulanceTransporting,
}

type Service struct {
	ambulances AmbulanceRepository
	logs       LogRepository
	responses  ResponseRepository
	rec        *audit.Recorder
}

func NewService(ambulances AmbulanceRepository, logs LogRepository, responses ResponseRepository, rec *audit.Recorder) *Service {
	return &Service{ambulances: ambulances, logs: logs, responses: responses, rec: rec}
}

type AmbulanceInput struct {
	UnitNumber  string    `json:"unit_number" validate:"required"`
	HospitalID  uuid.UUID `json:"hospital_id" validate:"required"`
	VehicleType string    `json:"vehicle_type"`
	DriverName  string    `json:"driver_name"`
	DriverPhone string    `json:"driver_phone"`
	Latitude    *float64  `json:"latitude" validate:"omitempty,min=-90,max=90"`
	Longitude   *float64  `json:"longitude" validate:"omitempty,min=-180,max=180"`
}

type AmbulanceUpdateInput struct {
	UnitNumber   *string    `json:"unit_number" validate:"omitempty,min=1"`
	VehicleType  *string    `json:"vehicle_type"`
	Status       *string    `json:"status" validate:"omitempty,oneof=AVAILABLE DISPATCHED EN_ROUTE AT_SCENE TRANSPORTING OUT_OF_SERVICE"`
	DriverName   *string    `json:"driver_name"`
	DriverPhone  *string    `json:"driver_phone"`
	Latitude     *float64   `json:"latitude" validate:"omitempty,min=-90,max=90"`
	Longitude    *float64   `json:"longitude" validate:"omitempty,min=-180,max=180"`
	LastServiced *time.Time `json:"last_serviced"`
}

func (s *Service) CreateAmbulance(ctx context.Context, in *AmbulanceInput) (a *Ambulance, err error) {
	defer func() {
		ev := audit.Event{Action: audit.ActionCreate, EntityType: ambulanceEntityType, Err: err}
		if a != nil {
			ev.EntityID = &a.ID
			ev.HospitalID = &a.HospitalID
			ev.Description = fmt.Sprintf("registered ambulance %s", a.UnitNumber)
		}
		s.rec.Record(ctx, ev)
	}()

	if err = validate.Struct(in); err != nil {
		return nil, err
	}

	if principal := auth.PrincipalFromContext(ctx); principal != nil && principal.FacilityScoped() && *principal.FacilityID != in.HospitalID {
		err = apperror.Forbidden("ambulance belongs to another facility")
		return nil, err
	}

	now := time.Now().UTC()
	a = &Ambulance{
		ID:          uuid.New(),
		UnitNumber:  in.UnitNumber,
		HospitalID:  in.HospitalID,
		VehicleType: in.VehicleType,
		Status:      AmbulanceAvailable,
		DriverName:  in.DriverName,
		DriverPhone: in.DriverPhone,
		Latitude:    in.Latitude,
		Longitude:   in.Longitude,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if createErr := s.ambulances.Create(ctx, a); createErr != nil {
		a = nil
		if db.IsUniqueViolation(createErr) {
			err = apperror.Conflict("ambulance with unit number %s already exists", in.UnitNumber)
			return nil, err
		}
		if db.IsForeignKeyViolation(createErr) {
			err = apperror.Validation("hospital does not exist")
			return nil, err
		}
		err = apperror.Internal(createErr)
		return nil, err
	}
	return a, nil
}

func (s *Service) GetAmbulance(ctx context.Context, id uuid.UUID) (*Ambulance, error) {
	a, err := s.ambulances.GetByID(ctx, id)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, apperror.NotFound("ambulance %s not found", id)
		}
		return nil, apperror.Internal(err)
	}
	principal := auth.PrincipalFromContext(ctx)
	if err := principal.CheckScope(a.HospitalID, a.CountyID); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) ListAmbulances(ctx context.Context, params map[string]string, limit, offset int) ([]*Ambulance, int, error) {
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
	items, total, err := s.ambulances.Search(ctx, params, limit, offset)
	if err != nil {
		return nil, 0, apperror.Internal(err)
	}
	return items, total, nil
}

func (s *Service) UpdateAmbulance(ctx context.Context, id uuid.UUID, in *AmbulanceUpdateInput) (a *Ambulance, err error) {
	defer func() {
		ev := audit.Event{Action: audit.ActionUpdate, EntityType: ambulanceEntityType, EntityID: &id, Err: err}
		if a != nil {
			ev.HospitalID = &a.HospitalID
			ev.Changes = in
		}
		s.rec.Record(ctx, ev)
	}()

	if err = validate.Struct(in); err != nil {
		return nil, err
	}

	a, err = s.GetAmbulance(ctx, id)
	if err != nil {
		a = nil
		return nil, err
	}

	if in.UnitNumber != nil {
		a.UnitNumber = *in.UnitNumber
	}
	if in.VehicleType != nil {
		a.VehicleType = *in.VehicleType
	}
	if in.Status != nil {
		a.Status = *in.Status
	}
	if in.DriverName != nil {
		a.DriverName = *in.DriverName
	}
	if in.DriverPhone != nil {
		a.DriverPhone = *in.DriverPhone
	}
	if in.Latitude != nil {
		a.Latitude = in.Latitude
	}
	if in.Longitude != nil {
		a.Longitude = in.Longitude
	}
	if in.LastServiced != nil {
		a.LastServiced = in.LastServiced
	}
	a.UpdatedAt = time.Now().UTC()

	if updateErr := s.ambulances.Update(ctx, a); updateErr != nil {
		a = nil
		if db.IsUniqueViolation(updateErr) {
			err = apperror.Conflict("ambulance with that unit number already exists")
			return nil, err
		}
		err = apperror.Internal(updateErr)
		return nil, err
	}
	return a, nil
}

func (s *Service) DeleteAmbulance(ctx context.Context, id uuid.UUID) (err error) {
	defer func() {
		s.rec.Record(ctx, audit.Event{
			Action: audit.ActionDelete, EntityType: ambulanceEntityType, EntityID: &id, Err: err,
		})
	}()

	a, err := s.GetAmbulance(ctx, id)
	if err != nil {
		return err
	}
	if a.Status != AmbulanceAvailable && a.Status != AmbulanceOutOfService {
		err = apperror.Conflict("ambulance %s is on an active call", a.UnitNumber)
		return err
	}

	if delErr := s.ambulances.Delete(ctx, id); delErr != nil {
		if db.IsNoRows(delErr) {
			err = apperror.NotFound("ambulance %s not found", id)
			return err
		}
		err = apperror.Internal(delErr)
		return err
	}
	return nil
}

type LogInput struct {
	CallerName  string     `json:"caller_name" validate:"required"`
	CallerPhone string     `json:"caller_phone" validate:"required"`
	Location    string     `json:"location" validate:"required"`
	Description string     `json:"description"`
	Severity    string     `json:"severity" validate:"required,oneof=CRITICAL HIGH MEDIUM LOW"`
	HospitalID  uuid.UUID  `json:"hospital_id" validate:"required"`
	PatientID   *uuid.UUID `json:"patient_id"`
}

type LogUpdateInput struct {
	CallerName  *string    `json:"caller_name" validate:"omitempty,min=1"`
	CallerPhone *string    `json:"caller_phone"`
	Location    *string    `json:"location" validate:"omitempty,min=1"`
	Description *string    `json:"description"`
	Severity    *string    `json:"severity" validate:"omitempty,oneof=CRITICAL HIGH MEDIUM LOW"`
	PatientID   *uuid.UUID `json:"patient_id"`
}

func (s *Service) CreateLog(ctx context.Context, in *LogInput) (l *Log, err error) {
	defer func() {
		ev := audit.Event{Action: audit.ActionCreate, EntityType: logEntityType, Err: err}
		if l != nil {
			ev.EntityID = &l.ID
			ev.HospitalID = &l.HospitalID
			ev.Description = fmt.Sprintf("opened dispatch %s (%s)", l.DispatchNumber, l.Severity)
		}
		s.rec.Record(ctx, ev)
	}()

	if err = validate.Struct(in); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	l = &Log{
		ID:             uuid.New(),
		DispatchNumber: ids.Number("DSP"),
		CallerName:     in.CallerName,
		CallerPhone:    in.CallerPhone,
		Location:       in.Location,
		Description:    in.Description,
		Severity:       in.Severity,
		HospitalID:     in.HospitalID,
		PatientID:      in.PatientID,
		Status:         StatusReceived,
		ReceivedAt:     now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if createErr := s.logs.Create(ctx, l); createErr != nil {
		l = nil
		if db.IsForeignKeyViolation(createErr) {
			err = apperror.Validation("hospital or patient does not exist")
			return nil, err
		}
		err = apperror.Internal(createErr)
		return nil, err
	}
	return l, nil
}

func (s *Service) GetLog(ctx context.Context, id uuid.UUID) (*Log, error) {
	l, err := s.logs.GetByID(ctx, id)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, apperror.NotFound("dispatch %s not found", id)
		}
		return nil, apperror.Internal(err)
	}
	principal := auth.PrincipalFromContext(ctx)
	if err := principal.CheckScope(l.HospitalID, l.CountyID); err != nil {
		return nil, err
	}
	return l, nil
}

func (s *Service) ListLogs(ctx context.Context, params map[string]string, limit, offset int) ([]*Log, int, error) {
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
	items, total, err := s.logs.Search(ctx, params, limit, offset)
	if err != nil {
		return nil, 0, apperror.Internal(err)
	}
	return items, total, nil
}

func (s *Service) UpdateLog(ctx context.Context, id uuid.UUID, in *LogUpdateInput) (l *Log, err error) {
	defer func() {
		ev := audit.Event{Action: audit.ActionUpdate, EntityType: logEntityType, EntityID: &id, Err: err}
		if l != nil {
			ev.HospitalID = &l.HospitalID
			ev.Changes = in
		}
		s.rec.Record(ctx, ev)
	}()

	if err = validate.Struct(in); err != nil {
		return nil, err
	}

	l, err = s.GetLog(ctx, id)
	if err != nil {
		l = nil
		return nil, err
	}
	if logMachine.Terminal(l.Status) {
		status := l.Status
		l = nil
		err = apperror.Conflict("dispatch is %s and can no longer be edited", status)
		return nil, err
	}

	if in.CallerName != nil {
		l.CallerName = *in.CallerName
	}
	if in.CallerPhone != nil {
		l.CallerPhone = *in.CallerPhone
	}
	if in.Location != nil {
		l.Location = *in.Location
	}
	if in.Description != nil {
		l.Description = *in.Description
	}
	if in.Severity != nil {
		l.Severity = *in.Severity
	}
	if in.PatientID != nil {
		l.PatientID = in.PatientID
	}
	l.UpdatedAt = time.Now().UTC()

	if updateErr := s.logs.Update(ctx, l); updateErr != nil {
		l = nil
		err = apperror.Internal(updateErr)
		return nil, err
	}
	return l, nil
}

// TransitionLog advances a dispatch through its lifecycle. Moving to
// DISPATCHED claims the given ambulance (Conflict if it is not available);
// intermediate statuses mirror onto the unit; terminal statuses release it.
func (s *Service) TransitionLog(ctx context.Context, id uuid.UUID, next string, ambulanceID *uuid.UUID) (l *Log, err error) {
	defer func() {
		action := audit.ActionUpdate
		if next == StatusCancelled {
			action = audit.ActionCancel
		}
		ev := audit.Event{Action: action, EntityType: logEntityType, EntityID: &id, Err: err}
		if l != nil {
			ev.HospitalID = &l.HospitalID
			ev.Description = fmt.Sprintf("dispatch %s moved to %s", l.DispatchNumber, l.Status)
		}
		s.rec.Record(ctx, ev)
	}()

	if !logMachine.Known(next) {
		err = apperror.Validation("unknown dispatch status %q", next)
		return nil, err
	}

	l, err = s.GetLog(ctx, id)
	if err != nil {
		l = nil
		return nil, err
	}
	if l.Status == next {
		return l, nil
	}
	if err = logMachine.Check(l.Status, next); err != nil {
		l = nil
		return nil, err
	}

	prev := l.Status
	now := time.Now().UTC()

	if next == StatusDispatched {
		if ambulanceID != nil {
			l.AmbulanceID = ambulanceID
		}
		if l.AmbulanceID == nil {
			l = nil
			err = apperror.Validation("dispatching requires an ambulance")
			return nil, err
		}
		claimed, claimErr := s.ambulances.ConditionalSetStatus(ctx, *l.AmbulanceID, AmbulanceAvailable, AmbulanceDispatched)
		if claimErr != nil {
			l = nil
			err = apperror.Internal(claimErr)
			return nil, err
		}
		if !claimed {
			amb := *l.AmbulanceID
			l = nil
			err = apperror.Conflict("ambulance %s is not available", amb)
			return nil, err
		}
	}

	l.Status = next
	switch next {
	case StatusDispatched:
		l.DispatchedAt = &now
	case StatusOnScene:
		l.ArrivedOnScene = &now
	case StatusTransporting:
		l.DepartedScene = &now
	case StatusAtHospital:
		l.ArrivedHospital = &now
	case StatusCompleted:
		l.HandoverCompleted = &now
		l.ClearedAt = &now
	case StatusCancelled, StatusNoAmbulance:
		l.ClearedAt = &now
	}
	l.UpdatedAt = now

	moved, updErr := s.logs.UpdateStatus(ctx, l, prev)
	if updErr != nil {
		l = nil
		err = apperror.Internal(updErr)
		return nil, err
	}
	if !moved {
		l = nil
		err = apperror.Conflict("dispatch %s was modified concurrently", id)
		return nil, err
	}

	if l.AmbulanceID != nil {
		if mirror, ok := ambulanceMirror[next]; ok {
			// Best effort; the unit may have been moved by hand.
			_, _ = s.ambulances.ConditionalSetStatus(ctx, *l.AmbulanceID, ambulanceStatusFor(prev), mirror)
		}
		if logMachine.Terminal(next) {
			if _, relErr := s.ambulances.Release(ctx, *l.AmbulanceID); relErr != nil {
				err = apperror.Internal(relErr)
				return nil, err
			}
		}
	}
	return l, nil
}

// ambulanceStatusFor maps a dispatch status to the ambulance status the
// unit held at that stage of the call.
func ambulanceStatusFor(dispatchStatus string) string {
	switch dispatchStatus {
	case StatusEnRoute:
		return AmbulanceEnRoute
	case StatusOnScene:
		return AmbulanceAtScene
	case StatusTransporting:
		return AmbulanceTransporting
	default:
		return AmbulanceDispatched
	}
}

type ResponseInput struct {
	DispatchID   *uuid.UUID `json:"dispatch_id"`
	AmbulanceID  *uuid.UUID `json:"ambulance_id"`
	HospitalID   uuid.UUID  `json:"hospital_id" validate:"required"`
	ResponseType string     `json:"response_type"`
	Location     string     `json:"location" validate:"required"`
}

func (s *Service) CreateResponse(ctx context.Context, in *ResponseInput) (res *Response, err error) {
	defer func() {
		ev := audit.Event{Action: audit.ActionCreate, EntityType: responseEntityType, Err: err}
		if res != nil {
			ev.EntityID = &res.ID
			ev.HospitalID = &res.HospitalID
			ev.Description = fmt.Sprintf("opened response %s", res.ResponseNumber)
		}
		s.rec.Record(ctx, ev)
	}()

	if err = validate.Struct(in); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	res = &Response{
		ID:             uuid.New(),
		ResponseNumber: ids.Number("EMR"),
		DispatchID:     in.DispatchID,
		AmbulanceID:    in.AmbulanceID,
		HospitalID:     in.HospitalID,
		ResponseType:   in.ResponseType,
		Location:       in.Location,
		Status:         ResponseActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if createErr := s.responses.Create(ctx, res); createErr != nil {
		res = nil
		if db.IsForeignKeyViolation(createErr) {
			err = apperror.Validation("hospital, dispatch or ambulance does not exist")
			return nil, err
		}
		err = apperror.Internal(createErr)
		return nil, err
	}
	return res, nil
}

func (s *Service) GetResponse(ctx context.Context, id uuid.UUID) (*Response, error) {
	res, err := s.responses.GetByID(ctx, id)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, apperror.NotFound("emergency response %s not found", id)
		}
		return nil, apperror.Internal(err)
	}
	principal := auth.PrincipalFromContext(ctx)
	if err := principal.CheckScope(res.HospitalID, res.CountyID); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Service) ListResponses(ctx context.Context, params map[string]string, limit, offset int) ([]*Response, int, error) {
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
	items, total, err := s.responses.Search(ctx, params, limit, offset)
	if err != nil {
		return nil, 0, apperror.Internal(err)
	}
	return items, total, nil
}

// TransitionResponse advances a field response. ON_SCENE stamps the
// arrival time; either terminal outcome stamps completion and releases
// the ambulance.
func (s *Service) TransitionResponse(ctx context.Context, id uuid.UUID, next string) (res *Response, err error) {
	defer func() {
		action := audit.ActionUpdate
		if next == ResponseCancelled {
			action = audit.ActionCancel
		}
		ev := audit.Event{Action: action, EntityType: responseEntityType, EntityID: &id, Err: err}
		if res != nil {
			ev.HospitalID = &res.HospitalID
			ev.Description = fmt.Sprintf("response %s moved to %s", res.ResponseNumber, res.Status)
		}
		s.rec.Record(ctx, ev)
	}()

	if !responseMachine.Known(next) {
		err = apperror.Validation("unknown response status %q", next)
		return nil, err
	}

	res, err = s.GetResponse(ctx, id)
	if err != nil {
		res = nil
		return nil, err
	}
	if res.Status == next {
		return res, nil
	}
	if err = responseMachine.Check(res.Status, next); err != nil {
		res = nil
		return nil, err
	}

	prev := res.Status
	now := time.Now().UTC()
	res.Status = next
	switch next {
	case ResponseOnScene:
		res.ArrivedOnScene = &now
	case ResponseCompleted, ResponseCancelled:
		res.CompletedAt = &now
	}
	res.UpdatedAt = now

	moved, updErr := s.responses.UpdateStatus(ctx, res, prev)
	if updErr != nil {
		res = nil
		err = apperror.Internal(updErr)
		return nil, err
	}
	if !moved {
		res = nil
		err = apperror.Conflict("emergency response %s was modified concurrently", id)
		return nil, err
	}

	if res.AmbulanceID != nil && responseMachine.Terminal(next) {
		if _, relErr := s.ambulances.Release(ctx, *res.AmbulanceID); relErr != nil {
			err = apperror.Internal(relErr)
			return nil, err
		}
	}
	return res, nil
}
