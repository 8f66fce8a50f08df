package model

import (
	"fmt"
	"strings"
	"time"
)

// Role is the closed set of user roles.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleDesigner Role = "designer"
	RoleVendor   Role = "vendor"
	RoleClient   Role = "client"
)

// Roles lists every role in display order.
var Roles = []Role{RoleAdmin, RoleDesigner, RoleVendor, RoleClient}

// ParseRole maps a stored role name to a Role. Stored values have used both
// "Admin" and "admin"; the comparison is case-insensitive.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleDesigner:
		return RoleDesigner, nil
	case RoleVendor:
		return RoleVendor, nil
	case RoleClient:
		return RoleClient, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// DisplayName returns the capitalized role label.
func (r Role) DisplayName() string {
	if r == "" {
		return ""
	}
	return strings.ToUpper(string(r[:1])) + string(r[1:])
}

// IsStaff reports whether the role belongs to the studio (admin or
// designer) rather than an outside party.
func (r Role) IsStaff() bool {
	return r == RoleAdmin || r == RoleDesigner
}

// Identity is the signed-in user's role and tenant scope as handed over by
// the identity provider. It is read-only input; a nil *Identity means the
// identity has not been resolved yet.
type Identity struct {
	UserID    string
	Role      Role
	TenantIDs []string
}

// InTenant reports whether a record tagged with tenantID is within the
// identity's tenant scope. Untagged records and unscoped identities always
// match.
func (id *Identity) InTenant(tenantID *string) bool {
	if id == nil {
		return false
	}
	if tenantID == nil || *tenantID == "" || len(id.TenantIDs) == 0 {
		return true
	}
	return contains(id.TenantIDs, *tenantID)
}

// ProjectMetric is the per-project summary cached on vendor user records.
type ProjectMetric struct {
	ProjectName string  `json:"project_name"`
	TaskCount   int64   `json:"task_count"`
	NetAmount   float64 `json:"net_amount"`
}

// User is a person with access to the workspace.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  Role   `json:"role"`

	Phone  *string `json:"phone,omitempty"`
	Avatar *string `json:"avatar,omitempty"`

	TenantID  *string  `json:"tenant_id,omitempty"`
	TenantIDs []string `json:"tenant_ids,omitempty"`

	Company    *string `json:"company,omitempty"`
	Specialty  *string `json:"specialty,omitempty"`
	AuthMethod *string `json:"auth_method,omitempty"`
	CreatedBy  *string `json:"created_by,omitempty"`
	FCMToken   *string `json:"fcm_token,omitempty"`

	ProjectMetrics map[string]ProjectMetric `json:"project_metrics,omitempty"`

	CreatedAt *time.Time `json:"created_at,omitempty"`
	LastLogin *time.Time `json:"last_login,omitempty"`
	IsActive  *bool      `json:"is_active,omitempty"`
}

// Identity derives the role identity of the user.
func (u User) Identity() *Identity {
	tenants := append([]string(nil), u.TenantIDs...)
	if u.TenantID != nil && *u.TenantID != "" && !contains(tenants, *u.TenantID) {
		tenants = append(tenants, *u.TenantID)
	}
	return &Identity{UserID: u.ID, Role: u.Role, TenantIDs: tenants}
}

// DecodeUser decodes a user document. Email and a recognised role are
// required.
func DecodeUser(id string, f Fields) (User, error) {
	r := newReader(CollectionUsers, id, f)
	u := User{
		ID:         id,
		Email:      r.requiredString("email"),
		Name:       r.str("name"),
		Phone:      r.optString("phone"),
		Avatar:     r.optString("avatar"),
		TenantID:   r.optString("tenantId"),
		TenantIDs:  r.strings("tenantIds"),
		Company:    r.optString("company"),
		Specialty:  r.optString("specialty"),
		AuthMethod: r.optString("authMethod"),
		CreatedBy:  r.optString("createdBy"),
		FCMToken:   r.optString("fcmToken"),
		CreatedAt:  r.optTime("createdAt"),
		LastLogin:  r.optTime("lastLogin"),
		IsActive:   r.optBool("isActive"),
	}
	if raw := r.requiredString("role"); raw != "" {
		role, err := ParseRole(raw)
		if err != nil {
			r.fail("role", "is not a known role")
		}
		u.Role = role
	}
	if metrics := f.Map("projectMetrics"); metrics != nil {
		u.ProjectMetrics = decodeProjectMetrics(metrics)
	}
	return u, r.done()
}

func decodeProjectMetrics(f Fields) map[string]ProjectMetric {
	out := make(map[string]ProjectMetric, len(f))
	for projectID := range f {
		m := f.Map(projectID)
		if m == nil {
			continue
		}
		pm := ProjectMetric{ProjectName: m.String("projectName")}
		if n, ok := m.OptInt("taskCount"); ok && n != nil {
			pm.TaskCount = *n
		}
		if n, ok := m.OptFloat("netAmount"); ok && n != nil {
			pm.NetAmount = *n
		}
		out[projectID] = pm
	}
	return out
}

// EncodeUser returns the canonical field map for a user.
func EncodeUser(u User) Fields {
	e := encoder{"id": u.ID}
	e.str("email", u.Email)
	e.str("name", u.Name)
	e.str("role", u.Role.DisplayName())
	e.optStr("phone", u.Phone)
	e.optStr("avatar", u.Avatar)
	e.optStr("tenantId", u.TenantID)
	e.strings("tenantIds", u.TenantIDs)
	e.optStr("company", u.Company)
	e.optStr("specialty", u.Specialty)
	e.optStr("authMethod", u.AuthMethod)
	e.optStr("createdBy", u.CreatedBy)
	e.optStr("fcmToken", u.FCMToken)
	e.optTimestamp("createdAt", u.CreatedAt)
	e.optTimestamp("lastLogin", u.LastLogin)
	e.optBool("isActive", u.IsActive)
	return Fields(e)
}
