// Package authz decides who is an admin. The allowlist is built once at
// startup from config and injected; admin status is also cached on the
// account row so most checks never touch the allowlist.
package authz

import (
	"strings"

	"github.com/TEESTIMONY/playmarket-api/internal/models"
)

type Authorizer struct {
	allow map[string]struct{}
}

func New(adminEmails []string) *Authorizer {
	allow := make(map[string]struct{}, len(adminEmails))
	for _, e := range adminEmails {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" {
			allow[e] = struct{}{}
		}
	}
	return &Authorizer{allow: allow}
}

// IsAdmin reports whether the user has admin privileges, by cached
// account flag or by email allowlist.
func (a *Authorizer) IsAdmin(user *models.User, acc *models.Account) bool {
	if acc != nil && acc.IsAdmin {
		return true
	}
	if user == nil {
		return false
	}
	_, ok := a.allow[strings.ToLower(strings.TrimSpace(user.Email))]
	return ok
}
