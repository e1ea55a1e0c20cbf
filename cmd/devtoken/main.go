// Command devtoken mints a bearer token for local testing against a backend
// that shares JWT_SECRET.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	identityimpl "github.com/foxseedlab/tablesession/external/identity"
	"github.com/foxseedlab/tablesession/internal/identity"
)

func main() {
	userID := flag.Int64("user", 0, "numeric user id (required)")
	role := flag.String("role", string(identity.RolePlayer), "Master or Player")
	username := flag.String("name", "", "display name")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime; 0 disables expiry")
	flag.Parse()

	secret := os.Getenv("JWT_SECRET")
	if len(secret) < 16 {
		slog.Error("JWT_SECRET must be set to at least 16 bytes")
		os.Exit(1)
	}
	if *userID <= 0 {
		slog.Error("-user must be a positive id")
		os.Exit(1)
	}

	token, err := identityimpl.NewJWTProvider(secret).IssueToken(identity.Actor{
		UserID:   *userID,
		Username: *username,
		Role:     identity.Role(*role),
	}, *ttl)
	if err != nil {
		slog.Error("failed to issue token", "error", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
