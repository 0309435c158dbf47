package sessions

import (
	"strings"

	"github.com/gigan-store/session-client/internal/errors"
)

// Role is the backoffice role carried alongside a token.
type Role string

const (
	RoleOwner Role = "OWNER" // Store owner: full access including user administration
	RoleStaff Role = "STAFF" // Staff member: day to day operations
)

// ParseRole accepts a role name in any case.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", errors.Wrapf(errors.ErrInvalidRole, "role %q", s)
	}
	return r, nil
}

func (r Role) Valid() bool {
	return r == RoleOwner || r == RoleStaff
}

// Session is the authenticated identity of one tab: a bearer token and its role.
// Role is set if and only if Token is set.
type Session struct {
	Token string `json:"token,omitempty"`
	Role  Role   `json:"role,omitempty"`
}

func (s Session) Empty() bool {
	return s.Token == ""
}
