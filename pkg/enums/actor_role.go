package enums

import (
	"fmt"
	"strings"
)

type ActorRole string

const (
	ActorRoleBuyer  ActorRole = "buyer"
	ActorRoleSeller ActorRole = "seller"
	ActorRoleAdmin  ActorRole = "admin"
)

func (r ActorRole) String() string {
	return string(r)
}

func (r ActorRole) IsValid() bool {
	switch r {
	case ActorRoleBuyer, ActorRoleSeller, ActorRoleAdmin:
		return true
	default:
		return false
	}
}

func ParseActorRole(value string) (ActorRole, error) {
	r := ActorRole(strings.ToLower(strings.TrimSpace(value)))
	if !r.IsValid() {
		return "", fmt.Errorf("invalid actor role: %q", value)
	}
	return r, nil
}
