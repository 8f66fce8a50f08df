package auth

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/erp-sync/internal/model"
)

func sign(t *testing.T, claims Claims) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("any-key"))
	require.NoError(t, err)
	return raw
}

func TestIdentityFromToken(t *testing.T) {
	raw := sign(t, Claims{
		Role:             "Vendor",
		TenantID:         "t1",
		TenantIDs:        []string{"t2"},
		RegisteredClaims: jwt.RegisteredClaims{Subject: "v1"},
	})

	id, err := IdentityFromToken(raw)
	require.NoError(t, err)
	assert.Equal(t, "v1", id.UserID)
	assert.Equal(t, model.RoleVendor, id.Role)
	assert.Equal(t, []string{"t2", "t1"}, id.TenantIDs)
}

func TestIdentityFromTokenUserIDClaim(t *testing.T) {
	id, err := IdentityFromToken(sign(t, Claims{Role: "admin", UserID: "a1"}))
	require.NoError(t, err)
	assert.Equal(t, "a1", id.UserID)
	assert.Empty(t, id.TenantIDs)
}

func TestIdentityFromTokenErrors(t *testing.T) {
	_, err := IdentityFromToken("not-a-token")
	assert.Error(t, err)

	_, err = IdentityFromToken(sign(t, Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "x"}}))
	assert.ErrorIs(t, err, ErrNoRole)

	_, err = IdentityFromToken(sign(t, Claims{Role: "superuser", UserID: "x"}))
	assert.Error(t, err)

	_, err = IdentityFromToken(sign(t, Claims{Role: "client"}))
	assert.Error(t, err)
}

func TestIdentitiesStream(t *testing.T) {
	ids := NewIdentities()
	assert.Nil(t, ids.Current())

	sub := ids.Subscribe()
	defer sub.Close()
	assert.Nil(t, <-sub.C())

	_, err := ids.SignIn(sign(t, Claims{Role: "designer", UserID: "d1"}))
	require.NoError(t, err)
	got := <-sub.C()
	require.NotNil(t, got)
	assert.Equal(t, model.RoleDesigner, got.Role)

	_, err = ids.SignIn("garbage")
	assert.Error(t, err)
	assert.Equal(t, "d1", ids.Current().UserID, "failed sign-in keeps the identity")

	ids.SignOut()
	assert.Nil(t, <-sub.C())
}

func TestIdentityFromUser(t *testing.T) {
	tenant := "t1"
	id := IdentityFromUser(model.User{ID: "c1", Role: model.RoleClient, TenantID: &tenant})
	assert.Equal(t, &model.Identity{UserID: "c1", Role: model.RoleClient, TenantIDs: []string{"t1"}}, id)
}
