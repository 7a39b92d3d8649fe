package principal

import (
	"fmt"

	"github.com/google/uuid"
)

type Role string

const (
	RoleClient Role = "CLIENT"
	RoleTasker Role = "TASKER"
)

func ParseRole(value string) (Role, error) {
	switch r := Role(value); r {
	case RoleClient, RoleTasker:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", value)
}

// Principal is the identity behind a request, as asserted by the identity provider.
type Principal struct {
	ID   uuid.UUID
	Name string
	Role Role
}
