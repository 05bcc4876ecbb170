package model

import (
	"fmt"

	"github.com/google/uuid"
)

// Role is the closed set of capabilities a principal can hold.
type Role int

const (
	RoleRequester Role = iota + 1
	RoleApprover
	RoleFinance
)

func (r Role) String() string {
	switch r {
	case RoleRequester:
		return "requester"
	case RoleApprover:
		return "approver"
	case RoleFinance:
		return "finance"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// ParseRole maps a token claim onto a Role.
func ParseRole(s string) (Role, error) {
	switch s {
	case "requester", "staff":
		return RoleRequester, nil
	case "approver":
		return RoleApprover, nil
	case "finance":
		return RoleFinance, nil
	default:
		return 0, fmt.Errorf("unknown role %q", s)
	}
}

// Principal is the authenticated actor of a workflow operation.
// Level is meaningful only for RoleApprover.
type Principal struct {
	ID    uuid.UUID
	Name  string
	Role  Role
	Level int
}

func Requester(id uuid.UUID, name string) Principal {
	return Principal{ID: id, Name: name, Role: RoleRequester}
}

func ApproverAtLevel(id uuid.UUID, name string, level int) Principal {
	return Principal{ID: id, Name: name, Role: RoleApprover, Level: level}
}

func Finance(id uuid.UUID, name string) Principal {
	return Principal{ID: id, Name: name, Role: RoleFinance}
}

// ApprovalLevel returns the level an approver decides at.
func (p Principal) ApprovalLevel() (int, bool) {
	switch p.Role {
	case RoleApprover:
		return p.Level, p.Level >= 1
	case RoleRequester, RoleFinance:
		return 0, false
	default:
		return 0, false
	}
}

func (p Principal) IsFinance() bool {
	switch p.Role {
	case RoleFinance:
		return true
	case RoleRequester, RoleApprover:
		return false
	default:
		return false
	}
}

func (p Principal) IsRequester() bool {
	switch p.Role {
	case RoleRequester:
		return true
	case RoleApprover, RoleFinance:
		return false
	default:
		return false
	}
}

// DisplayName falls back to the id when no name is known.
func (p Principal) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.ID.String()
}
