package authz

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tinoosan/finman/internal/errs"
	"github.com/tinoosan/finman/internal/ledger"
)

func TestAuthorize(t *testing.T) {
	admin := Caller{ID: 1, Login: "admin", IsAdmin: true}
	alice := Caller{ID: 2, Login: "alice"}

	cases := []struct {
		name   string
		caller Caller
		owner  int64
		want   error
	}{
		{"admin on other", admin, 2, nil},
		{"owner on self", alice, 2, nil},
		{"user on other", alice, 3, errs.ErrForbidden},
		{"user on admin", alice, 1, errs.ErrForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Authorize(tc.caller, tc.owner)
			if tc.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}
}

func TestRequireAdminAndSelf(t *testing.T) {
	assert.NoError(t, RequireAdmin(Caller{ID: 1, IsAdmin: true}))
	assert.ErrorIs(t, RequireAdmin(Caller{ID: 2}), errs.ErrForbidden)
	assert.Equal(t, int64(7), Self(Caller{ID: 7}, 0))
	assert.Equal(t, int64(3), Self(Caller{ID: 7}, 3))
}

func TestProtector(t *testing.T) {
	p := Protector{AdminLogin: "root"}
	assert.ErrorIs(t, p.Check(ledger.User{ID: 1, Login: "root", IsAdmin: true}), errs.ErrProtectedAdmin)
	assert.NoError(t, p.Check(ledger.User{ID: 2, Login: "other-admin", IsAdmin: true}))
	assert.NoError(t, Protector{}.Check(ledger.User{Login: "root"}))
}
