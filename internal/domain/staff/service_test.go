package staff

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

var testSecret = []byte("test-secret-test-secret-test-sec")

type mockRepo struct {
	members map[uuid.UUID]*Member
}

func newMockRepo() *mockRepo {
	return &mockRepo{members: make(map[uuid.UUID]*Member)}
}

func (m *mockRepo) Create(_ context.Context, mem *Member) error {
	m.members[mem.ID] = mem
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Member, error) {
	mem, ok := m.members[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *mem
	return &cp, nil
}

func (m *mockRepo) GetByEmail(_ context.Context, email string) (*Member, error) {
	for _, mem := range m.members {
		if strings.EqualFold(mem.Email, email) {
			cp := *mem
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *mockRepo) Update(_ context.Context, mem *Member) error {
	if _, ok := m.members[mem.ID]; !ok {
		return pgx.ErrNoRows
	}
	m.members[mem.ID] = mem
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.members[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(m.members, id)
	return nil
}

func (m *mockRepo) Search(_ context.Context, params map[string]string, limit, offset int) ([]*Member, int, error) {
	var result []*Member
	for _, mem := range m.members {
		if hid, ok := params["hospital_id"]; ok && (mem.HospitalID == nil || mem.HospitalID.String() != hid) {
			continue
		}
		if role, ok := params["role"]; ok && mem.Role != role {
			continue
		}
		result = append(result, mem)
	}
	return result, len(result), nil
}

func (m *mockRepo) TouchLastLogin(_ context.Context, id uuid.UUID) error {
	mem, ok := m.members[id]
	if !ok {
		return pgx.ErrNoRows
	}
	now := time.Now().UTC()
	mem.LastLoginAt = &now
	return nil
}

type mockShiftRepo struct {
	shifts map[uuid.UUID]*Shift
}

func newMockShiftRepo() *mockShiftRepo {
	return &mockShiftRepo{shifts: make(map[uuid.UUID]*Shift)}
}

func (m *mockShiftRepo) Create(_ context.Context, s *Shift) error {
	m.shifts[s.ID] = s
	return nil
}

func (m *mockShiftRepo) GetByID(_ context.Context, id uuid.UUID) (*Shift, error) {
	s, ok := m.shifts[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *s
	return &cp, nil
}

func (m *mockShiftRepo) Update(_ context.Context, s *Shift) error {
	if _, ok := m.shifts[s.ID]; !ok {
		return pgx.ErrNoRows
	}
	m.shifts[s.ID] = s
	return nil
}

func (m *mockShiftRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.shifts[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(m.shifts, id)
	return nil
}

func (m *mockShiftRepo) Search(_ context.Context, params map[string]string, limit, offset int) ([]*Shift, int, error) {
	var result []*Shift
	for _, s := range m.shifts {
		if hid, ok := params["hospital_id"]; ok && s.HospitalID.String() != hid {
			continue
		}
		result = append(result, s)
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
	svc := NewService(repo, newMockShiftRepo(), audit.NewRecorder(auditRepo, zerolog.Nop()), testSecret)
	return svc, repo, auditRepo
}

func adminCtx() context.Context {
	return auth.WithPrincipal(context.Background(), &auth.Principal{
		ID: uuid.New(), Role: auth.RoleSuperAdmin,
		Permissions: auth.PermissionsForRole(auth.RoleSuperAdmin),
	})
}

func seedAccount(t *testing.T, svc *Service, email, password string) *Member {
	t.Helper()
	hid := uuid.New()
	m, err := svc.Create(adminCtx(), &CreateInput{
		FirstName:  "Grace",
		LastName:   "Mwangi",
		Email:      email,
		Role:       auth.RoleNurse,
		HospitalID: &hid,
		Password:   password,
	})
	if err != nil {
		t.Fatalf("seed account: %v", err)
	}
	return m
}

func TestCreate_HashesPassword(t *testing.T) {
	svc, repo, _ := newTestService()
	m := seedAccount(t, svc, "grace@example.org", "s3curePassw0rd")

	stored := repo.members[m.ID]
	if stored.PasswordHash == "s3curePassw0rd" || stored.PasswordHash == "" {
		t.Error("password must be stored as a bcrypt hash")
	}
	if !stored.IsActive {
		t.Error("new accounts default to active")
	}
}

func TestCreate_DuplicateEmail(t *testing.T) {
	svc, _, _ := newTestService()
	seedAccount(t, svc, "grace@example.org", "s3curePassw0rd")

	hid := uuid.New()
	_, err := svc.Create(adminCtx(), &CreateInput{
		FirstName:  "Another",
		LastName:   "Person",
		Email:      "GRACE@example.org",
		Role:       auth.RoleDoctor,
		HospitalID: &hid,
		Password:   "differentPass1",
	})
	if !apperror.IsKind(err, apperror.KindConflict) {
		t.Errorf("expected conflict on duplicate email, got %v", err)
	}
}

func TestCreate_UnknownRole(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.Create(adminCtx(), &CreateInput{
		FirstName: "A", LastName: "B", Email: "a@example.org",
		Role: "JANITOR", Password: "longenough",
	})
	if !apperror.IsKind(err, apperror.KindValidation) {
		t.Errorf("expected validation error for unknown role, got %v", err)
	}
}

func TestLogin_Succeeds(t *testing.T) {
	svc, _, auditRepo := newTestService()
	seedAccount(t, svc, "grace@example.org", "s3curePassw0rd")

	res, err := svc.Login(context.Background(), "grace@example.org", "s3curePassw0rd")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.AccessToken == "" || res.RefreshToken == "" {
		t.Fatal("login must issue both tokens")
	}

	claims, err := auth.VerifyToken(testSecret, res.AccessToken)
	if err != nil {
		t.Fatalf("access token must verify: %v", err)
	}
	if claims.Refresh {
		t.Error("access token must not carry the refresh marker")
	}
	if claims.Role != auth.RoleNurse {
		t.Errorf("expected NURSE role claim, got %s", claims.Role)
	}

	last := auditRepo.entries[len(auditRepo.entries)-1]
	if last.Action != audit.ActionLogin || !last.Success {
		t.Error("successful login must record a LOGIN audit entry")
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	svc, _, auditRepo := newTestService()
	seedAccount(t, svc, "grace@example.org", "s3curePassw0rd")

	_, err := svc.Login(context.Background(), "grace@example.org", "wrong")
	if !apperror.IsKind(err, apperror.KindUnauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
	last := auditRepo.entries[len(auditRepo.entries)-1]
	if last.Success {
		t.Error("failed login must record success=false")
	}
}

func TestLogin_InactiveAccount(t *testing.T) {
	svc, repo, _ := newTestService()
	m := seedAccount(t, svc, "grace@example.org", "s3curePassw0rd")
	repo.members[m.ID].IsActive = false

	_, err := svc.Login(context.Background(), "grace@example.org", "s3curePassw0rd")
	if !apperror.IsKind(err, apperror.KindUnauthenticated) {
		t.Errorf("expected unauthenticated for inactive account, got %v", err)
	}
}

func TestRefresh_RotatesAccessToken(t *testing.T) {
	svc, _, _ := newTestService()
	seedAccount(t, svc, "grace@example.org", "s3curePassw0rd")
	res, err := svc.Login(context.Background(), "grace@example.org", "s3curePassw0rd")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	access, err := svc.Refresh(context.Background(), res.RefreshToken)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	claims, err := auth.VerifyToken(testSecret, access)
	if err != nil {
		t.Fatalf("rotated token must verify: %v", err)
	}
	if claims.Refresh {
		t.Error("rotated token must be an access token")
	}
}

func TestRefresh_RejectsAccessToken(t *testing.T) {
	svc, _, _ := newTestService()
	seedAccount(t, svc, "grace@example.org", "s3curePassw0rd")
	res, _ := svc.Login(context.Background(), "grace@example.org", "s3curePassw0rd")

	if _, err := svc.Refresh(context.Background(), res.AccessToken); !apperror.IsKind(err, apperror.KindUnauthenticated) {
		t.Errorf("access tokens must not pass the refresh endpoint, got %v", err)
	}
}

func TestShift_EndBeforeStart(t *testing.T) {
	svc, _, _ := newTestService()
	now := time.Now().UTC()
	_, err := svc.CreateShift(adminCtx(), &ShiftInput{
		StaffID:    uuid.New(),
		HospitalID: uuid.New(),
		Ward:       "ER",
		StartTime:  now,
		EndTime:    now.Add(-time.Hour),
	})
	if !apperror.IsKind(err, apperror.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestShift_CRUD(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := adminCtx()
	m := seedAccount(t, svc, "grace@example.org", "s3curePassw0rd")
	now := time.Now().UTC()

	sh, err := svc.CreateShift(ctx, &ShiftInput{
		StaffID:    m.ID,
		HospitalID: *m.HospitalID,
		Ward:       "ER",
		StartTime:  now,
		EndTime:    now.Add(8 * time.Hour),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ward := "ICU"
	updated, err := svc.UpdateShift(ctx, sh.ID, &ShiftUpdateInput{Ward: &ward})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Ward != "ICU" {
		t.Errorf("expected ICU, got %s", updated.Ward)
	}

	if err := svc.DeleteShift(ctx, sh.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.GetShift(ctx, sh.ID); !apperror.IsKind(err, apperror.KindNotFound) {
		t.Errorf("expected not found after delete, got %v", err)
	}
}
