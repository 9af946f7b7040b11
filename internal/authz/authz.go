// Package authz holds the single ownership policy every service consults before
// reading or mutating user-owned data.
package authz

import (
	"fmt"

	"github.com/tinoosan/finman/internal/errs"
	"github.com/tinoosan/finman/internal/ledger"
)

// Caller is the authenticated identity behind a request.
type Caller struct {
	ID      int64
	Login   string
	IsAdmin bool
}

// FromUser builds a Caller from a stored user.
func FromUser(u ledger.User) Caller {
	return Caller{ID: u.ID, Login: u.Login, IsAdmin: u.IsAdmin}
}

// Authorize permits admins on any owner and everyone else only on their own data.
func Authorize(c Caller, ownerID int64) error {
	if c.IsAdmin || c.ID == ownerID {
		return nil
	}
	return fmt.Errorf("no access rights: %w", errs.ErrForbidden)
}

// RequireAdmin permits admins only.
func RequireAdmin(c Caller) error {
	if c.IsAdmin {
		return nil
	}
	return fmt.Errorf("no access rights: %w", errs.ErrForbidden)
}

// Self resolves the "0 means me" convention used by id-addressed routes.
func Self(c Caller, id int64) int64 {
	if id == 0 {
		return c.ID
	}
	return id
}

// Protector reports whether a user is the seeded administrator, which may not be
// targeted by id-based operations.
type Protector struct {
	AdminLogin string
}

// Check returns errs.ErrProtectedAdmin if u is the seeded administrator.
func (p Protector) Check(u ledger.User) error {
	if p.AdminLogin != "" && u.Login == p.AdminLogin {
		return fmt.Errorf("no access rights: the seeded administrator cannot be targeted: %w", errs.ErrProtectedAdmin)
	}
	return nil
}
