package auth

import (
	"testing"

	"github.com/google/uuid"

	"github.com/hems/hems/internal/platform/apperror"
)

var testSecret = []byte("test-secret-key-for-unit-tests!!")

func TestIssueAndVerifyToken(t *testing.T) {
	uid := uuid.New()
	fid := uuid.New()
	token, err := IssueToken(testSecret, uid, RoleDoctor, "Dr. Achieng", fid.String(), "nairobi")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	claims, err := VerifyToken(testSecret, token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claims.Subject != uid.String() {
		t.Errorf("expected subject %s, got %s", uid, claims.Subject)
	}
	if claims.Role != RoleDoctor {
		t.Errorf("expected role DOCTOR, got %s", claims.Role)
	}
	if claims.Refresh {
		t.Error("access token must not carry the refresh flag")
	}
}

func TestVerifyToken_WrongSecret(t *testing.T) {
	token, _ := IssueToken(testSecret, uuid.New(), RoleNurse, "", "", "")
	_, err := VerifyToken([]byte("other-secret"), token)
	if !apperror.IsKind(err, apperror.KindUnauthenticated) {
		t.Errorf("expected unauthenticated, got %v", err)
	}
}

func TestVerifyToken_Malformed(t *testing.T) {
	_, err := VerifyToken(testSecret, "not.a.token")
	if !apperror.IsKind(err, apperror.KindUnauthenticated) {
		t.Errorf("expected unauthenticated, got %v", err)
	}
}

func TestIssueRefreshToken_Flagged(t *testing.T) {
	token, err := IssueRefreshToken(testSecret, uuid.New(), RoleNurse, "", "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	claims, err := VerifyToken(testSecret, token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !claims.Refresh {
		t.Error("refresh token must carry the refresh flag")
	}
}

func TestNewPrincipal_MergesPermissions(t *testing.T) {
	uid := uuid.New()
	fid := uuid.New()
	claims := &Claims{Role: RoleTriageOfficer, FacilityID: fid.String(), CountyID: "kisumu"}
	claims.Subject = uid.String()

	p, err := NewPrincipal(claims)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID != uid {
		t.Errorf("expected id %s, got %s", uid, p.ID)
	}
	if p.FacilityID == nil || *p.FacilityID != fid {
		t.Error("expected facility id to be parsed")
	}
	if !p.HasPermission("triage.write") {
		t.Error("expected triage.write from role table")
	}
	if !p.Permissions["profile.read"] {
		t.Error("expected mandatory baseline on principal")
	}
}

func TestNewPrincipal_BadSubject(t *testing.T) {
	claims := &Claims{Role: RoleNurse}
	claims.Subject = "not-a-uuid"
	if _, err := NewPrincipal(claims); !apperror.IsKind(err, apperror.KindUnauthenticated) {
		t.Errorf("expected unauthenticated, got %v", err)
	}
}
