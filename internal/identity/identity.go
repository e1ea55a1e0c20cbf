package identity

import (
	"context"
	"errors"
)

var ErrUnauthenticated = errors.New("unauthenticated")

type Role string

const (
	RoleMaster Role = "Master"
	RolePlayer Role = "Player"
)

func (r Role) Valid() bool {
	return r == RoleMaster || r == RolePlayer
}

// Actor is the authenticated caller of a lifecycle or dispatch operation.
type Actor struct {
	UserID   int64
	Username string
	Role     Role
}

func (a Actor) IsMaster() bool {
	return a.Role == RoleMaster
}

func (a Actor) IsPlayer() bool {
	return a.Role == RolePlayer
}

type Provider interface {
	Authenticate(ctx context.Context, credential string) (Actor, error)
}
