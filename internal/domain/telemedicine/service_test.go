package telemedicine

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/hems/hems/internal/platform/apperror"
	"github.com/hems/hems/internal/platform/audit"
	"github.com/hems/hems/internal/platform/auth"
)

type mockRepo struct {
	sessions map[uuid.UUID]*Session
}

func newMockRepo() *mockRepo {
	return &mockRepo{sessions: make(map[uuid.UUID]*Session)}
}

func (m *mockRepo) Create(_ context.Context, s *Session) error {
	m.sessions[s.ID] = s
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Session, error) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *s
	return &cp, nil
}

func (m *mockRepo) Update(_ context.Context, s *Session) error {
	if _, ok := m.sessions[s.ID]; !ok {
		return pgx.ErrNoRows
	}
	m.sessions[s.ID] = s
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.sessions[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(m.sessions, id)
	return nil
}

func (m *mockRepo) Search(_ context.Context, params map[string]string, limit, offset int) ([]*Session, int, error) {
	var result []*Session
	for _, s := range m.sessions {
		if hid, ok := params["hospital_id"]; ok && s.HospitalID.String() != hid {
			continue
		}
		if st, ok := params["status"]; ok && s.Status != st {
			continue
		}
		result = append(result, s)
	}
	return result, len(result), nil
}

func (m *mockRepo) ConditionalSetStatus(_ context.Context, id uuid.UUID, expected, next string, startTime, endTime *time.Time) (bool, error) {
	s, ok := m.sessions[id]
	if !ok || s.Status != expected {
		return false, nil
	}
	s.Status = next
	if startTime != nil {
		s.StartTime = startTime
	}
	if endTime != nil {
		s.EndTime = endTime
	}
	return true, nil
}

type memAuditRepo struct {
	entries []*audit.Entry
}

func (m *memAuditRepo) Insert(_ context.Context, e *audit.Entry) error {
	m.entries = append(m.entries, e)
	return nil
}

func (m *memAuditRepo) GetByID(_ context.Context, id uuid.UUID) (*audit.Entry, error) {
	return nil, fmt.Errorf("not found")
}

func (m *memAuditRepo) Search(_ context.Context, _ map[string]string, limit, offset int) ([]*audit.Entry, int, error) {
	return m.entries, len(m.entries), nil
}

func newTestService() (*Service, *mockRepo, *memAuditRepo) {
	repo := newMockRepo()
	auditRepo := &memAuditRepo{}
	return NewService(repo, audit.NewRecorder(auditRepo, zerolog.Nop())), repo, auditRepo
}

func doctorCtx(facilityID uuid.UUID) context.Context {
	return auth.WithPrincipal(context.Background(), &auth.Principal{
		ID: uuid.New(), Role: auth.RoleDoctor, FacilityID: &facilityID,
		Permissions: auth.PermissionsForRole(auth.RoleDoctor),
	})
}

func seedSession(t *testing.T, svc *Service, ctx context.Context, hid uuid.UUID) *Session {
	t.Helper()
	s, err := svc.Create(ctx, &CreateInput{
		PatientID:    uuid.New(),
		SpecialistID: uuid.New(),
		HospitalID:   hid,
		ScheduledAt:  time.Now().UTC().Add(time.Hour),
		Reason:       "cardiology follow-up",
	})
	if err != nil {
		t.Fatalf("seed session: %v", err)
	}
	return s
}

func TestCreate_SchedulesWithSessionNumber(t *testing.T) {
	svc, _, _ := newTestService()
	hid := uuid.New()
	s := seedSession(t, svc, doctorCtx(hid), hid)

	if !strings.HasPrefix(s.SessionNumber, "TMS-") {
		t.Errorf("expected generated session number, got %q", s.SessionNumber)
	}
	if s.Status != StatusScheduled {
		t.Errorf("expected SCHEDULED, got %s", s.Status)
	}
	if s.StartTime != nil || s.EndTime != nil {
		t.Error("scheduled sessions carry no start/end time")
	}
}

func TestTransition_FullLifecycle(t *testing.T) {
	svc, _, _ := newTestService()
	hid := uuid.New()
	ctx := doctorCtx(hid)
	s := seedSession(t, svc, ctx, hid)

	started, err := svc.Transition(ctx, s.ID, StatusInProgress)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if started.StartTime == nil {
		t.Fatal("starting must stamp start_time")
	}

	done, err := svc.Transition(ctx, s.ID, StatusCompleted)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if done.EndTime == nil {
		t.Fatal("completing must stamp end_time")
	}
	if done.StartTime == nil {
		t.Error("completion must not clear start_time")
	}
}

func TestTransition_NoShowFromScheduledOnly(t *testing.T) {
	svc, _, _ := newTestService()
	hid := uuid.New()
	ctx := doctorCtx(hid)
	s := seedSession(t, svc, ctx, hid)

	if _, err := svc.Transition(ctx, s.ID, StatusInProgress); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := svc.Transition(ctx, s.ID, StatusNoShow)
	if !apperror.IsKind(err, apperror.KindInvalidTransition) {
		t.Errorf("NO_SHOW only applies to scheduled sessions, got %v", err)
	}
}

func TestTransition_TechnicalFailureEndsSession(t *testing.T) {
	svc, _, _ := newTestService()
	hid := uuid.New()
	ctx := doctorCtx(hid)
	s := seedSession(t, svc, ctx, hid)

	if _, err := svc.Transition(ctx, s.ID, StatusInProgress); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	failed, err := svc.Transition(ctx, s.ID, StatusTechnicalFailure)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if failed.EndTime == nil {
		t.Error("technical failure must stamp end_time")
	}
}

func TestTransition_CancelledIsTerminal(t *testing.T) {
	svc, _, _ := newTestService()
	hid := uuid.New()
	ctx := doctorCtx(hid)
	s := seedSession(t, svc, ctx, hid)

	if _, err := svc.Transition(ctx, s.ID, StatusCancelled); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := svc.Transition(ctx, s.ID, StatusInProgress)
	if !apperror.IsKind(err, apperror.KindInvalidTransition) {
		t.Errorf("expected invalid transition from CANCELLED, got %v", err)
	}
}

func TestTransition_SameStateNoOp(t *testing.T) {
	svc, _, _ := newTestService()
	hid := uuid.New()
	ctx := doctorCtx(hid)
	s := seedSession(t, svc, ctx, hid)

	got, err := svc.Transition(ctx, s.ID, StatusScheduled)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusScheduled || got.StartTime != nil {
		t.Error("no-op transition must leave the session untouched")
	}
}

func TestUpdate_RescheduleOnlyWhileScheduled(t *testing.T) {
	svc, _, _ := newTestService()
	hid := uuid.New()
	ctx := doctorCtx(hid)
	s := seedSession(t, svc, ctx, hid)

	later := time.Now().UTC().Add(48 * time.Hour)
	updated, err := svc.Update(ctx, s.ID, &UpdateInput{ScheduledAt: &later})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !updated.ScheduledAt.Equal(later) {
		t.Error("reschedule must move scheduled_at")
	}

	if _, err := svc.Transition(ctx, s.ID, StatusInProgress); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Update(ctx, s.ID, &UpdateInput{ScheduledAt: &later}); !apperror.IsKind(err, apperror.KindConflict) {
		t.Errorf("expected conflict rescheduling an in-progress session, got %v", err)
	}
}

func TestDelete_InProgressBlocked(t *testing.T) {
	svc, _, _ := newTestService()
	hid := uuid.New()
	ctx := doctorCtx(hid)
	s := seedSession(t, svc, ctx, hid)

	if _, err := svc.Transition(ctx, s.ID, StatusInProgress); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.Delete(ctx, s.ID); !apperror.IsKind(err, apperror.KindConflict) {
		t.Errorf("expected conflict deleting a session in progress, got %v", err)
	}
}

func TestCreate_FacilityScope(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.Create(doctorCtx(uuid.New()), &CreateInput{
		PatientID:    uuid.New(),
		SpecialistID: uuid.New(),
		HospitalID:   uuid.New(),
		ScheduledAt:  time.Now().UTC(),
	})
	if !apperror.IsKind(err, apperror.KindForbidden) {
		t.Errorf("expected forbidden for another facility, got %v", err)
	}
}
