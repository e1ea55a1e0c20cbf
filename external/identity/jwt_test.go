package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/foxseedlab/tablesession/internal/identity"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestAuthenticate_ValidToken(t *testing.T) {
	p := NewJWTProvider(testSecret)
	token, err := p.IssueToken(identity.Actor{UserID: 42, Username: "gm", Role: identity.RoleMaster}, time.Hour)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	for _, credential := range []string{token, "Bearer " + token, "bearer  " + token} {
		actor, err := p.Authenticate(context.Background(), credential)
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", credential, err)
		}
		if actor.UserID != 42 || actor.Username != "gm" || actor.Role != identity.RoleMaster {
			t.Fatalf("unexpected actor: %+v", actor)
		}
	}
}

func TestAuthenticate_Rejects(t *testing.T) {
	p := NewJWTProvider(testSecret)
	other := NewJWTProvider("fedcba9876543210fedcba9876543210")
	forged, err := other.IssueToken(identity.Actor{UserID: 1, Role: identity.RolePlayer}, time.Hour)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	past := NewJWTProvider(testSecret)
	past.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := past.IssueToken(identity.Actor{UserID: 1, Role: identity.RolePlayer}, time.Hour)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	sign := func(claims actorClaims) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		if err != nil {
			t.Fatalf("failed to sign: %v", err)
		}
		return s
	}
	badRole := sign(actorClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: "1"}, Role: "Admin"})
	badSubject := sign(actorClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: "alice"}, Role: "Player"})
	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, actorClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "1"}, Role: "Player",
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("failed to sign: %v", err)
	}

	cases := map[string]string{
		"empty":         "",
		"bearer only":   "Bearer ",
		"malformed":     "not-a-jwt",
		"bad signature": forged,
		"expired":       expired,
		"unknown role":  badRole,
		"bad subject":   badSubject,
		"wrong method":  hs512,
	}
	for name, credential := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := p.Authenticate(context.Background(), credential)
			if !errors.Is(err, identity.ErrUnauthenticated) {
				t.Fatalf("expected ErrUnauthenticated, got %v", err)
			}
		})
	}
}

func TestIssueToken_RejectsUnknownRole(t *testing.T) {
	p := NewJWTProvider(testSecret)
	if _, err := p.IssueToken(identity.Actor{UserID: 1, Role: "Admin"}, 0); err == nil {
		t.Fatal("expected error for unknown role")
	}
}
