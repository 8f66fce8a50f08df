// Package auth adapts the identity provider to the role identity the sync
// engine filters by. Tokens are not verified here: the backend enforces
// access, the client only mirrors the claims it was handed.
package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nhle/erp-sync/internal/model"
	"github.com/nhle/erp-sync/internal/observable"
)

// ErrNoRole is returned when a token carries no usable role claim.
var ErrNoRole = errors.New("token has no role claim")

// Claims are the custom claims set on ID tokens.
type Claims struct {
	Role      string   `json:"role"`
	TenantID  string   `json:"tenantId"`
	TenantIDs []string `json:"tenantIds"`
	UserID    string   `json:"user_id"`
	jwt.RegisteredClaims
}

// IdentityFromToken reads the role identity out of a raw ID token.
func IdentityFromToken(raw string) (*model.Identity, error) {
	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(strings.TrimSpace(raw), &claims); err != nil {
		return nil, fmt.Errorf("parsing id token: %w", err)
	}

	if claims.Role == "" {
		return nil, ErrNoRole
	}
	role, err := model.ParseRole(claims.Role)
	if err != nil {
		return nil, fmt.Errorf("parsing id token: %w", err)
	}

	userID := claims.Subject
	if userID == "" {
		userID = claims.UserID
	}
	if userID == "" {
		return nil, errors.New("parsing id token: no subject")
	}

	tenants := append([]string(nil), claims.TenantIDs...)
	if claims.TenantID != "" && !contains(tenants, claims.TenantID) {
		tenants = append(tenants, claims.TenantID)
	}

	return &model.Identity{UserID: userID, Role: role, TenantIDs: tenants}, nil
}

// IdentityFromUser derives the identity of a user record.
func IdentityFromUser(u model.User) *model.Identity {
	return u.Identity()
}

// Identities is the identity stream the sink follows. A nil value means
// signed out.
type Identities struct {
	*observable.Value[*model.Identity]
}

// NewIdentities returns a signed-out stream.
func NewIdentities() *Identities {
	return &Identities{Value: observable.NewWith[*model.Identity](nil)}
}

// SignIn publishes the identity carried by an ID token.
func (ids *Identities) SignIn(rawToken string) (*model.Identity, error) {
	id, err := IdentityFromToken(rawToken)
	if err != nil {
		return nil, err
	}
	ids.Set(id)
	return id, nil
}

// SignInAs publishes id directly.
func (ids *Identities) SignInAs(id *model.Identity) {
	ids.Set(id)
}

// SignOut publishes nil.
func (ids *Identities) SignOut() {
	ids.Set(nil)
}

// Current returns the current identity, or nil.
func (ids *Identities) Current() *model.Identity {
	id, _ := ids.Get()
	return id
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
