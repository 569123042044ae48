package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/hems/hems/internal/platform/apperror"
)

const (
	// AccessTokenTTL is the lifetime of an access token.
	AccessTokenTTL = 15 * time.Minute
	// RefreshTokenTTL is the lifetime of a refresh token.
	RefreshTokenTTL = 7 * 24 * time.Hour
)

// Claims are the JWT claims embedded in access and refresh tokens.
type Claims struct {
	jwt.RegisteredClaims
	Role       string `json:"role"`
	Name       string `json:"name,omitempty"`
	FacilityID string `json:"facility_id,omitempty"`
	CountyID   string `json:"county_id,omitempty"`
	Refresh    bool   `json:"refresh,omitempty"`
}

// Principal is the per-request runtime identity: verified claims merged
// with the role's static permission set. It is never persisted.
type Principal struct {
	ID          uuid.UUID
	Role        string
	Name        string
	FacilityID  *uuid.UUID
	CountyID    string
	Permissions map[string]bool
}

// IssueToken signs a short-lived access token for the given identity.
func IssueToken(secret []byte, userID uuid.UUID, role, name, facilityID, countyID string) (string, error) {
	return issue(secret, userID, role, name, facilityID, countyID, AccessTokenTTL, false)
}

// IssueRefreshToken signs a long-lived refresh token. Refresh tokens carry
// the same identity claims but are only accepted by the refresh endpoint.
func IssueRefreshToken(secret []byte, userID uuid.UUID, role, name, facilityID, countyID string) (string, error) {
	return issue(secret, userID, role, name, facilityID, countyID, RefreshTokenTTL, true)
}

func issue(secret []byte, userID uuid.UUID, role, name, facilityID, countyID string, ttl time.Duration, refresh bool) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role:       role,
		Name:       name,
		FacilityID: facilityID,
		CountyID:   countyID,
		Refresh:    refresh,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// VerifyToken validates signature and expiry and returns the claims. All
// failure modes collapse into a single unauthenticated error so callers
// never leak why a token was rejected.
func VerifyToken(secret []byte, tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return nil, apperror.Unauthenticated("invalid token")
	}
	return claims, nil
}

// NewPrincipal materializes the runtime principal from verified claims,
// merging in the role's permission table. The permission set is always a
// superset of the mandatory baseline.
func NewPrincipal(claims *Claims) (*Principal, error) {
	uid, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, apperror.Unauthenticated("invalid token")
	}
	p := &Principal{
		ID:          uid,
		Role:        claims.Role,
		Name:        claims.Name,
		CountyID:    claims.CountyID,
		Permissions: PermissionsForRole(claims.Role),
	}
	if claims.FacilityID != "" {
		fid, err := uuid.Parse(claims.FacilityID)
		if err != nil {
			return nil, apperror.Unauthenticated("invalid token")
		}
		p.FacilityID = &fid
	}
	return p, nil
}
