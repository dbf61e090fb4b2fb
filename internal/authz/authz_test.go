package authz

import (
	"testing"

	"github.com/TEESTIMONY/playmarket-api/internal/models"
	"github.com/stretchr/testify/require"
)

func TestIsAdmin(t *testing.T) {
	a := New([]string{" Admin@Playmarket.local ", "", "ops@playmarket.local"})

	tests := []struct {
		name string
		user *models.User
		acc  *models.Account
		want bool
	}{
		{"allowlisted email, case-insensitive", &models.User{Email: "ADMIN@playmarket.LOCAL"}, &models.Account{}, true},
		{"cached account flag", &models.User{Email: "someone@test.local"}, &models.Account{IsAdmin: true}, true},
		{"regular user", &models.User{Email: "someone@test.local"}, &models.Account{}, false},
		{"nil user without flag", nil, &models.Account{}, false},
		{"nil account, allowlisted", &models.User{Email: "ops@playmarket.local"}, nil, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, a.IsAdmin(tc.user, tc.acc))
		})
	}
}

func TestEmptyAllowlist(t *testing.T) {
	a := New(nil)
	require.False(t, a.IsAdmin(&models.User{Email: "anyone@test.local"}, &models.Account{}))
}
