package resource

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/hems/hems/internal/platform/apperror"
	"github.com/hems/hems/internal/platform/audit"
	"github.com/hems/hems/internal/platform/auth"
)

type mockRepo struct {
	resources map[uuid.UUID]*Resource
}

func newMockRepo() *mockRepo {
	return &mockRepo{resources: make(map[uuid.UUID]*Resource)}
}

func (m *mockRepo) Create(_ context.Context, r *Resource) error {
	m.resources[r.ID] = r
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Resource, error) {
	r, ok := m.resources[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *r
	return &cp, nil
}

func (m *mockRepo) Update(_ context.Context, r *Resource) error {
	if _, ok := m.resources[r.ID]; !ok {
		return pgx.ErrNoRows
	}
	m.resources[r.ID] = r
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.resources[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(m.resources, id)
	return nil
}

func (m *mockRepo) Search(_ context.Context, params map[string]string, limit, offset int) ([]*Resource, int, error) {
	var result []*Resource
	for _, r := range m.resources {
		if hid, ok := params["hospital_id"]; ok && r.HospitalID.String() != hid {
			continue
		}
		if _, ok := params["needs_reorder"]; ok && r.AvailableCapacity > r.ReorderLevel {
			continue
		}
		result = append(result, r)
	}
	return result, len(result), nil
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

func adminCtx(facilityID uuid.UUID) context.Context {
	return auth.WithPrincipal(context.Background(), &auth.Principal{
		ID: uuid.New(), Role: auth.RoleHospitalAdmin, FacilityID: &facilityID,
		Permissions: auth.PermissionsForRole(auth.RoleHospitalAdmin),
	})
}

func TestCreate_DerivedStatus(t *testing.T) {
	svc, _, _ := newTestService()
	hid := uuid.New()

	created, err := svc.Create(adminCtx(hid), &CreateInput{
		HospitalID:        hid,
		Name:              "ICU Beds",
		ResourceType:      TypeICUBed,
		TotalCapacity:     10,
		AvailableCapacity: 2,
		InUseCapacity:     8,
		CriticalLevel:     1,
		ReorderLevel:      3,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.Status != StatusLow {
		t.Errorf("expected LOW at 2 available with reorder level 3, got %s", created.Status)
	}
	if !created.NeedsReorder {
		t.Error("expected needs_reorder at reorder level")
	}
	if !created.IsOperational {
		t.Error("resources default to operational")
	}
}

func TestCreate_CapacityInvariant(t *testing.T) {
	svc, _, auditRepo := newTestService()
	hid := uuid.New()

	_, err := svc.Create(adminCtx(hid), &CreateInput{
		HospitalID:        hid,
		Name:              "Ventilators",
		ResourceType:      TypeEquipment,
		TotalCapacity:     5,
		AvailableCapacity: 3,
		ReservedCapacity:  2,
		InUseCapacity:     2,
	})
	if !apperror.IsKind(err, apperror.KindValidation) {
		t.Fatalf("expected validation error when counters exceed total, got %v", err)
	}
	if len(auditRepo.entries) != 1 || auditRepo.entries[0].Success {
		t.Error("rejected create must record a failed audit entry")
	}
}

func TestUpdate_CapacityInvariantOnPatch(t *testing.T) {
	svc, _, _ := newTestService()
	hid := uuid.New()
	ctx := adminCtx(hid)
	created, err := svc.Create(ctx, &CreateInput{
		HospitalID:        hid,
		Name:              "Oxygen cylinders",
		ResourceType:      TypeOxygen,
		TotalCapacity:     20,
		AvailableCapacity: 10,
		ReservedCapacity:  5,
		InUseCapacity:     5,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Shrinking total below the committed counters must fail.
	total := 15
	if _, err := svc.Update(ctx, created.ID, &UpdateInput{TotalCapacity: &total}); !apperror.IsKind(err, apperror.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}

	// And the stored row must be untouched.
	got, err := svc.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.TotalCapacity != 20 {
		t.Errorf("rejected update must not change the row, total is %d", got.TotalCapacity)
	}
}

func TestUpdate_StatusRecomputed(t *testing.T) {
	svc, _, _ := newTestService()
	hid := uuid.New()
	ctx := adminCtx(hid)
	created, _ := svc.Create(ctx, &CreateInput{
		HospitalID:        hid,
		Name:              "Blood O-",
		ResourceType:      TypeBloodUnit,
		TotalCapacity:     30,
		AvailableCapacity: 20,
		CriticalLevel:     2,
		ReorderLevel:      5,
	})

	avail := 0
	inUse := 30
	updated, err := svc.Update(ctx, created.ID, &UpdateInput{
		AvailableCapacity: &avail,
		InUseCapacity:     &inUse,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != StatusDepleted {
		t.Errorf("expected DEPLETED at zero available, got %s", updated.Status)
	}
}

func TestCreate_FacilityScope(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.Create(adminCtx(uuid.New()), &CreateInput{
		HospitalID:   uuid.New(),
		Name:         "Beds",
		ResourceType: TypeBed,
	})
	if !apperror.IsKind(err, apperror.KindForbidden) {
		t.Errorf("expected forbidden for another facility, got %v", err)
	}
}

func TestList_NeedsReorderFilter(t *testing.T) {
	svc, repo, _ := newTestService()
	hid := uuid.New()
	low := &Resource{ID: uuid.New(), HospitalID: hid, Name: "Gloves", AvailableCapacity: 2, ReorderLevel: 10}
	ok := &Resource{ID: uuid.New(), HospitalID: hid, Name: "Masks", AvailableCapacity: 50, ReorderLevel: 10}
	repo.resources[low.ID] = low
	repo.resources[ok.ID] = ok

	items, total, err := svc.List(adminCtx(hid), map[string]string{"needs_reorder": "true"}, 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 || items[0].Name != "Gloves" {
		t.Errorf("expected only below-reorder resources, got %d", total)
	}
}
