package model

import "time"

// Collection names in the remote document store.
const (
	CollectionProjects     = "projects"
	CollectionTasks        = "tasks"
	CollectionUsers        = "users"
	CollectionActivityLogs = "activity_logs"

	// Per-project subcollections, addressed as projects/{id}/<name>.
	SubcollectionDocuments  = "documents"
	SubcollectionMeetings   = "meetings"
	SubcollectionFinancials = "financials"
)

// Project status values.
const (
	ProjectStatusDiscovery = "Discovery"
	ProjectStatusPlanning  = "Planning"
	ProjectStatusExecution = "Execution"
	ProjectStatusCompleted = "Completed"
	ProjectStatusOnHold    = "On Hold"
)

// ProjectPath returns the document path of a project.
func ProjectPath(projectID string) string {
	return CollectionProjects + "/" + projectID
}

// ProjectSubcollection returns the collection path of a per-project
// subcollection (e.g. "projects/p1/documents").
func ProjectSubcollection(projectID, name string) string {
	return ProjectPath(projectID) + "/" + name
}

// Project is a client engagement that tasks, documents, meetings and
// financial records hang off.
type Project struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Type        string `json:"type,omitempty"`
	Category    string `json:"category,omitempty"`

	// TenantID scopes the project to one organization. Older records
	// predate tenancy and leave it unset.
	TenantID *string `json:"tenant_id,omitempty"`

	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
	Deadline  *time.Time `json:"deadline,omitempty"`

	Budget        *float64 `json:"budget,omitempty"`
	InitialBudget *float64 `json:"initial_budget,omitempty"`

	Owner     string     `json:"owner"`
	CreatedBy *string    `json:"created_by,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`

	// Membership lists. These are unvalidated user ids.
	ClientID       *string  `json:"client_id,omitempty"`
	ClientIDs      []string `json:"client_ids,omitempty"`
	LeadDesignerID *string  `json:"lead_designer_id,omitempty"`
	TeamMembers    []string `json:"team_members,omitempty"`
	Team           []string `json:"team,omitempty"`
	VendorIDs      []string `json:"vendor_ids,omitempty"`
	HiddenVendors  []string `json:"hidden_vendors,omitempty"`

	Thumbnail                *string  `json:"thumbnail,omitempty"`
	DesignerChargePercentage *float64 `json:"designer_charge_percentage,omitempty"`
}

// HasMember reports whether userID appears in any of the project's team
// lists.
func (p Project) HasMember(userID string) bool {
	if userID == "" {
		return false
	}
	return contains(p.Team, userID) ||
		contains(p.TeamMembers, userID) ||
		contains(p.VendorIDs, userID)
}

// HasClient reports whether userID is one of the project's clients.
func (p Project) HasClient(userID string) bool {
	if userID == "" {
		return false
	}
	if p.ClientID != nil && *p.ClientID == userID {
		return true
	}
	return contains(p.ClientIDs, userID)
}

// HidesVendor reports whether the vendor has been hidden from the project.
func (p Project) HidesVendor(userID string) bool {
	return contains(p.HiddenVendors, userID)
}

// DecodeProject decodes a project document. Name is required.
func DecodeProject(id string, f Fields) (Project, error) {
	r := newReader(CollectionProjects, id, f)
	p := Project{
		ID:                       id,
		Name:                     r.requiredString("name"),
		Description:              r.str("description"),
		Status:                   r.str("status"),
		Type:                     r.str("type"),
		Category:                 r.str("category"),
		TenantID:                 r.optString("tenantId"),
		StartDate:                r.optTime("startDate"),
		EndDate:                  r.optTime("endDate"),
		Deadline:                 r.optTime("deadline"),
		Budget:                   r.optFloat("budget"),
		InitialBudget:            r.optFloat("initialBudget"),
		Owner:                    r.str("owner"),
		CreatedBy:                r.optString("createdBy"),
		CreatedAt:                r.optTime("createdAt"),
		UpdatedAt:                r.optTime("updatedAt"),
		ClientID:                 r.optString("clientId"),
		ClientIDs:                r.strings("clientIds"),
		LeadDesignerID:           r.optString("leadDesignerId"),
		TeamMembers:              r.strings("teamMembers"),
		Team:                     r.strings("team"),
		VendorIDs:                r.strings("vendorIds"),
		HiddenVendors:            r.strings("hiddenVendors"),
		Thumbnail:                r.optString("thumbnail"),
		DesignerChargePercentage: r.optFloat("designerChargePercentage"),
	}
	return p, r.done()
}

// EncodeProject returns the canonical field map for a project.
func EncodeProject(p Project) Fields {
	e := encoder{"id": p.ID}
	e.str("name", p.Name)
	e.str("description", p.Description)
	e.str("status", p.Status)
	e.str("type", p.Type)
	e.str("category", p.Category)
	e.optStr("tenantId", p.TenantID)
	e.optTimestamp("startDate", p.StartDate)
	e.optTimestamp("endDate", p.EndDate)
	e.optTimestamp("deadline", p.Deadline)
	e.optFloat("budget", p.Budget)
	e.optFloat("initialBudget", p.InitialBudget)
	e.str("owner", p.Owner)
	e.optStr("createdBy", p.CreatedBy)
	e.optTimestamp("createdAt", p.CreatedAt)
	e.optTimestamp("updatedAt", p.UpdatedAt)
	e.optStr("clientId", p.ClientID)
	e.strings("clientIds", p.ClientIDs)
	e.optStr("leadDesignerId", p.LeadDesignerID)
	e.strings("teamMembers", p.TeamMembers)
	e.strings("team", p.Team)
	e.strings("vendorIds", p.VendorIDs)
	e.strings("hiddenVendors", p.HiddenVendors)
	e.optStr("thumbnail", p.Thumbnail)
	e.optFloat("designerChargePercentage", p.DesignerChargePercentage)
	return Fields(e)
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
