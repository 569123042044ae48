package transfer

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/hems/hems/internal/domain/dispatch"
	"github.com/hems/hems/internal/domain/patient"
	"github.com/hems/hems/internal/platform/apperror"
	"github.com/hems/hems/internal/platform/audit"
	"github.com/hems/hems/internal/platform/auth"
)

type mockRepo struct {
	transfers map[uuid.UUID]*Transfer
}

func newMockRepo() *mockRepo {
	return &mockRepo{transfers: make(map[uuid.UUID]*Transfer)}
}

func (m *mockRepo) Create(_ context.Context, t *Transfer) error {
	m.transfers[t.ID] = t
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Transfer, error) {
	t, ok := m.transfers[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *t
	return &cp, nil
}

func (m *mockRepo) Update(_ context.Context, t *Transfer) error {
	if _, ok := m.transfers[t.ID]; !ok {
		return pgx.ErrNoRows
	}
	m.transfers[t.ID] = t
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.transfers[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(m.transfers, id)
	return nil
}

func (m *mockRepo) UpdateStatus(_ context.Context, t *Transfer, expected string) (bool, error) {
	stored, ok := m.transfers[t.ID]
	if !ok || stored.Status != expected {
		return false, nil
	}
	cp := *t
	m.transfers[t.ID] = &cp
	return true, nil
}

func (m *mockRepo) Search(_ context.Context, params map[string]string, limit, offset int) ([]*Transfer, int, error) {
	var result []*Transfer
	for _, t := range m.transfers {
		if hid, ok := params["hospital_id"]; ok &&
			t.OriginHospitalID.String() != hid && t.DestinationHospitalID.String() != hid {
			continue
		}
		result = append(result, t)
	}
	return result, len(result), nil
}

// mockPatients records status flips so the test can assert the
// transactional coupling between the transfer row and the patient.
type mockPatients struct {
	statuses map[uuid.UUID]string
	missing  bool
}

func (m *mockPatients) SetStatus(_ context.Context, id uuid.UUID, status string) error {
	if m.missing {
		return pgx.ErrNoRows
	}
	if m.statuses == nil {
		m.statuses = make(map[uuid.UUID]string)
	}
	m.statuses[id] = status
	return nil
}

type mockFleet struct {
	statuses map[uuid.UUID]string
	releases int
}

func newMockFleet() *mockFleet {
	return &mockFleet{statuses: make(map[uuid.UUID]string)}
}

func (m *mockFleet) ConditionalSetStatus(_ context.Context, id uuid.UUID, expected, next string) (bool, error) {
	if m.statuses[id] != expected {
		return false, nil
	}
	m.statuses[id] = next
	return true, nil
}

func (m *mockFleet) Release(_ context.Context, id uuid.UUID) (bool, error) {
	m.releases++
	m.statuses[id] = dispatch.AmbulanceAvailable
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

type testEnv struct {
	svc      *Service
	repo     *mockRepo
	patients *mockPatients
	fleet    *mockFleet
	audits   *memAuditRepo
}

func newTestEnv() *testEnv {
	env := &testEnv{
		repo:     newMockRepo(),
		patients: &mockPatients{},
		fleet:    newMockFleet(),
		audits:   &memAuditRepo{},
	}
	env.svc = NewService(env.repo, env.patients, env.fleet,
		audit.NewRecorder(env.audits, zerolog.Nop()), nil)
	return env
}

func doctorCtx(facilityID uuid.UUID) context.Context {
	return auth.WithPrincipal(context.Background(), &auth.Principal{
		ID: uuid.New(), Role: auth.RoleDoctor, FacilityID: &facilityID,
		Permissions: auth.PermissionsForRole(auth.RoleDoctor),
	})
}

func seedTransfer(t *testing.T, env *testEnv, origin uuid.UUID) *Transfer {
	t.Helper()
	tr, err := env.svc.Create(doctorCtx(origin), &CreateInput{
		PatientID:             uuid.New(),
		OriginHospitalID:      origin,
		DestinationHospitalID: uuid.New(),
		Urgency:               UrgencyCritical,
		Reason:                "requires ICU care",
	})
	if err != nil {
		t.Fatalf("seed transfer: %v", err)
	}
	return tr
}

func TestCreate_MarksPatientReferred(t *testing.T) {
	env := newTestEnv()
	origin := uuid.New()
	tr := seedTransfer(t, env, origin)

	if !strings.HasPrefix(tr.TransferNumber, "TRF-") {
		t.Errorf("expected generated transfer number, got %q", tr.TransferNumber)
	}
	if tr.Status != StatusRequested {
		t.Errorf("expected REQUESTED, got %s", tr.Status)
	}
	if env.patients.statuses[tr.PatientID] != patient.StatusReferred {
		t.Error("creating a transfer must flip the patient to REFERRED")
	}
}

func TestCreate_SameOriginAndDestination(t *testing.T) {
	env := newTestEnv()
	origin := uuid.New()
	_, err := env.svc.Create(doctorCtx(origin), &CreateInput{
		PatientID:             uuid.New(),
		OriginHospitalID:      origin,
		DestinationHospitalID: origin,
		Urgency:               UrgencyRoutine,
		Reason:                "x",
	})
	if !apperror.IsKind(err, apperror.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestCreate_MissingPatientRollsBack(t *testing.T) {
	env := newTestEnv()
	env.patients.missing = true
	origin := uuid.New()

	_, err := env.svc.Create(doctorCtx(origin), &CreateInput{
		PatientID:             uuid.New(),
		OriginHospitalID:      origin,
		DestinationHospitalID: uuid.New(),
		Urgency:               UrgencyCritical,
		Reason:                "requires ICU care",
	})
	if !apperror.IsKind(err, apperror.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	last := env.audits.entries[len(env.audits.entries)-1]
	if last.Success {
		t.Error("failed create must record success=false")
	}
}

func TestCreate_OriginMustBeOwnFacility(t *testing.T) {
	env := newTestEnv()
	_, err := env.svc.Create(doctorCtx(uuid.New()), &CreateInput{
		PatientID:             uuid.New(),
		OriginHospitalID:      uuid.New(),
		DestinationHospitalID: uuid.New(),
		Urgency:               UrgencyUrgent,
		Reason:                "x",
	})
	if !apperror.IsKind(err, apperror.KindForbidden) {
		t.Errorf("expected forbidden, got %v", err)
	}
}

func TestTransition_ApprovalReservesBed(t *testing.T) {
	env := newTestEnv()
	origin := uuid.New()
	ctx := doctorCtx(origin)
	tr := seedTransfer(t, env, origin)

	approved, err := env.svc.Transition(ctx, tr.ID, StatusApproved, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if approved.ApprovedAt == nil {
		t.Error("approval must stamp approved_at")
	}
	if !approved.BedReserved {
		t.Error("approval must reserve a destination bed")
	}

	last := env.audits.entries[len(env.audits.entries)-1]
	if last.Action != audit.ActionApprove {
		t.Errorf("approval must audit as APPROVE, got %s", last.Action)
	}
}

func TestTransition_FullLifecycleReleasesAmbulanceOnce(t *testing.T) {
	env := newTestEnv()
	origin := uuid.New()
	ctx := doctorCtx(origin)
	tr := seedTransfer(t, env, origin)

	ambID := uuid.New()
	env.fleet.statuses[ambID] = dispatch.AmbulanceAvailable

	if _, err := env.svc.Transition(ctx, tr.ID, StatusApproved, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	inTransit, err := env.svc.Transition(ctx, tr.ID, StatusInTransit, &ambID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inTransit.DepartureTime == nil {
		t.Error("departure must stamp departure_time")
	}
	if env.fleet.statuses[ambID] != dispatch.AmbulanceDispatched {
		t.Error("departure must claim the ambulance")
	}

	done, err := env.svc.Transition(ctx, tr.ID, StatusCompleted, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if done.ArrivalTime == nil || done.CompletedAt == nil {
		t.Error("completion must stamp arrival and completion")
	}
	if env.fleet.releases != 1 {
		t.Fatalf("expected exactly one release, got %d", env.fleet.releases)
	}

	// Re-issuing COMPLETED is a no-op and must not release again.
	if _, err := env.svc.Transition(ctx, tr.ID, StatusCompleted, nil); err != nil {
		t.Fatalf("no-op terminal transition must succeed: %v", err)
	}
	if env.fleet.releases != 1 {
		t.Errorf("no-op must not double-release, got %d releases", env.fleet.releases)
	}
}

func TestTransition_CancelOnlyFromRequested(t *testing.T) {
	env := newTestEnv()
	origin := uuid.New()
	ctx := doctorCtx(origin)
	tr := seedTransfer(t, env, origin)

	if _, err := env.svc.Transition(ctx, tr.ID, StatusApproved, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := env.svc.Transition(ctx, tr.ID, StatusCancelled, nil)
	if !apperror.IsKind(err, apperror.KindInvalidTransition) {
		t.Errorf("cancellation applies only to pending requests, got %v", err)
	}
}

func TestTransition_BusyAmbulanceConflicts(t *testing.T) {
	env := newTestEnv()
	origin := uuid.New()
	ctx := doctorCtx(origin)
	tr := seedTransfer(t, env, origin)

	ambID := uuid.New()
	env.fleet.statuses[ambID] = dispatch.AmbulanceDispatched

	if _, err := env.svc.Transition(ctx, tr.ID, StatusApproved, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := env.svc.Transition(ctx, tr.ID, StatusInTransit, &ambID)
	if !apperror.IsKind(err, apperror.KindConflict) {
		t.Errorf("expected conflict claiming a busy ambulance, got %v", err)
	}
}

func TestUpdate_OnlyWhileRequested(t *testing.T) {
	env := newTestEnv()
	origin := uuid.New()
	ctx := doctorCtx(origin)
	tr := seedTransfer(t, env, origin)

	urgency := UrgencyRoutine
	updated, err := env.svc.Update(ctx, tr.ID, &UpdateInput{Urgency: &urgency})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Urgency != UrgencyRoutine {
		t.Errorf("expected ROUTINE, got %s", updated.Urgency)
	}

	if _, err := env.svc.Transition(ctx, tr.ID, StatusApproved, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := env.svc.Update(ctx, tr.ID, &UpdateInput{Urgency: &urgency}); !apperror.IsKind(err, apperror.KindConflict) {
		t.Errorf("expected conflict editing an approved transfer, got %v", err)
	}
}

func TestDelete_OnlyTerminal(t *testing.T) {
	env := newTestEnv()
	origin := uuid.New()
	ctx := doctorCtx(origin)
	tr := seedTransfer(t, env, origin)

	if err := env.svc.Delete(ctx, tr.ID); !apperror.IsKind(err, apperror.KindConflict) {
		t.Errorf("expected conflict deleting a pending transfer, got %v", err)
	}

	if _, err := env.svc.Transition(ctx, tr.ID, StatusCancelled, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := env.svc.Delete(ctx, tr.ID); err != nil {
		t.Fatalf("cancelled transfer must be deletable: %v", err)
	}
}

func TestGet_VisibleToBothEnds(t *testing.T) {
	env := newTestEnv()
	origin := uuid.New()
	tr := seedTransfer(t, env, origin)

	if _, err := env.svc.Get(doctorCtx(tr.DestinationHospitalID), tr.ID); err != nil {
		t.Errorf("destination facility must see the transfer: %v", err)
	}
	if _, err := env.svc.Get(doctorCtx(uuid.New()), tr.ID); !apperror.IsKind(err, apperror.KindForbidden) {
		t.Error("unrelated facilities must not see the transfer")
	}
}
