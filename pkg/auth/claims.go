package auth

import (
	"slices"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the JWT claims accepted by the ledger. The operator identity is the subject.
type Claims struct {
	jwt.RegisteredClaims
	Roles []string `json:"roles"`
}

// HasAnyRole reports whether at least one of roles was granted.
func (c Claims) HasAnyRole(roles ...string) bool {
	for _, r := range roles {
		if slices.Contains(c.Roles, r) {
			return true
		}
	}
	return false
}

const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
	RoleAuditor  = "auditor"
)
