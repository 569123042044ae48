package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hems/hems/internal/platform/auth"
)

type mockAuditRepo struct {
	entries  []*Entry
	failures int // number of Insert calls to fail before succeeding
	calls    int
}

func (m *mockAuditRepo) Insert(ctx context.Context, e *Entry) error {
	m.calls++
	if m.calls <= m.failures {
		return errors.New("connection refused")
	}
	m.entries = append(m.entries, e)
	return nil
}

func (m *mockAuditRepo) GetByID(ctx context.Context, id uuid.UUID) (*Entry, error) {
	for _, e := range m.entries {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, errors.New("not found")
}

func (m *mockAuditRepo) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Entry, int, error) {
	return m.entries, len(m.entries), nil
}

func TestRecord_AttributesPrincipal(t *testing.T) {
	repo := &mockAuditRepo{}
	rec := NewRecorder(repo, zerolog.Nop())

	uid := uuid.New()
	ctx := auth.WithPrincipal(context.Background(), &auth.Principal{
		ID: uid, Role: auth.RoleDoctor, Name: "Dr. Wanjiru",
	})

	eid := uuid.New()
	rec.Record(ctx, Event{Action: ActionUpdate, EntityType: "patient", EntityID: &eid})

	if len(repo.entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(repo.entries))
	}
	e := repo.entries[0]
	if e.UserID == nil || *e.UserID != uid {
		t.Error("entry must carry the acting user id")
	}
	if e.UserRole != auth.RoleDoctor || e.UserName != "Dr. Wanjiru" {
		t.Errorf("unexpected attribution: %s %s", e.UserRole, e.UserName)
	}
	if !e.Success {
		t.Error("entry for a successful operation must be marked success")
	}
	if e.EntityID == nil || *e.EntityID != eid {
		t.Error("entry must reference the entity")
	}
}

func TestRecord_FailureEntry(t *testing.T) {
	repo := &mockAuditRepo{}
	rec := NewRecorder(repo, zerolog.Nop())

	rec.Record(context.Background(), Event{
		Action:     ActionDelete,
		EntityType: "hospital",
		Err:        errors.New("hospital has active transfers"),
	})

	if len(repo.entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(repo.entries))
	}
	e := repo.entries[0]
	if e.Success {
		t.Error("entry for a failed operation must be marked unsuccessful")
	}
	if e.ErrorMessage != "hospital has active transfers" {
		t.Errorf("unexpected error message: %q", e.ErrorMessage)
	}
}

func TestRecord_RetriesOnce(t *testing.T) {
	repo := &mockAuditRepo{failures: 1}
	rec := NewRecorder(repo, zerolog.Nop())

	rec.Record(context.Background(), Event{Action: ActionCreate, EntityType: "triage"})

	if repo.calls != 2 {
		t.Errorf("expected 2 insert attempts, got %d", repo.calls)
	}
	if len(repo.entries) != 1 {
		t.Errorf("retry should have persisted the entry, got %d", len(repo.entries))
	}
}

func TestRecord_NeverPanicsWhenBothWritesFail(t *testing.T) {
	repo := &mockAuditRepo{failures: 2}
	rec := NewRecorder(repo, zerolog.Nop())

	rec.Record(context.Background(), Event{Action: ActionCreate, EntityType: "dispatch"})

	if repo.calls != 2 {
		t.Errorf("expected exactly 2 insert attempts, got %d", repo.calls)
	}
	if len(repo.entries) != 0 {
		t.Errorf("expected no persisted entries, got %d", len(repo.entries))
	}
}

func TestRecord_SerializesChanges(t *testing.T) {
	repo := &mockAuditRepo{}
	rec := NewRecorder(repo, zerolog.Nop())

	rec.Record(context.Background(), Event{
		Action:     ActionUpdate,
		EntityType: "transfer",
		Changes:    map[string]string{"status": "APPROVED"},
	})

	if string(repo.entries[0].Changes) != `{"status":"APPROVED"}` {
		t.Errorf("unexpected changes payload: %s", repo.entries[0].Changes)
	}
}
