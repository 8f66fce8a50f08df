package model

import (
	"strings"
	"time"
)

// Document approval states.
const (
	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
	ApprovalRejected = "rejected"
)

// Document is a file attached to a project.
type Document struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id,omitempty"`
	Name      string `json:"name"`
	URL       string `json:"url"`
	Type      string `json:"type"`
	Size      *int64 `json:"size,omitempty"`

	UploadedBy string     `json:"uploaded_by"`
	UploadedAt *time.Time `json:"uploaded_at,omitempty"`

	// ApprovalStatus is one of the Approval* values. Documents written
	// before the approval flow existed leave it unset.
	ApprovalStatus *string `json:"approval_status,omitempty"`

	// SharedWith lists user ids and role names the approved document is
	// shared with.
	SharedWith []string `json:"shared_with,omitempty"`

	TenantID *string `json:"tenant_id,omitempty"`
}

// Status returns the normalized approval status, treating missing or
// unrecognised values as pending.
func (d Document) Status() string {
	if d.ApprovalStatus == nil {
		return ApprovalPending
	}
	switch s := strings.ToLower(strings.TrimSpace(*d.ApprovalStatus)); s {
	case ApprovalApproved, ApprovalRejected:
		return s
	}
	return ApprovalPending
}

// SharedWithIdentity reports whether the document's share list names the
// identity's user id or its role.
func (d Document) SharedWithIdentity(id *Identity) bool {
	if id == nil {
		return false
	}
	for _, entry := range d.SharedWith {
		if entry == id.UserID && id.UserID != "" {
			return true
		}
		if role, err := ParseRole(entry); err == nil && role == id.Role {
			return true
		}
	}
	return false
}

// DecodeDocument decodes a document record. Name is required.
func DecodeDocument(id string, f Fields) (Document, error) {
	r := newReader(SubcollectionDocuments, id, f)
	d := Document{
		ID:             id,
		ProjectID:      r.str("projectId"),
		Name:           r.requiredString("name"),
		URL:            r.str("url"),
		Type:           r.str("type"),
		Size:           r.optInt("size"),
		UploadedBy:     r.str("uploadedBy"),
		UploadedAt:     r.optTime("uploadedAt"),
		ApprovalStatus: r.optString("approvalStatus"),
		SharedWith:     r.strings("sharedWith"),
		TenantID:       r.optString("tenantId"),
	}
	if d.UploadedAt == nil {
		// Revisions that stored the upload date as "uploadDate".
		d.UploadedAt = r.optTime("uploadDate")
	}
	return d, r.done()
}

// EncodeDocument returns the canonical field map for a document.
func EncodeDocument(d Document) Fields {
	e := encoder{"id": d.ID}
	e.str("projectId", d.ProjectID)
	e.str("name", d.Name)
	e.str("url", d.URL)
	e.str("type", d.Type)
	e.optInt("size", d.Size)
	e.str("uploadedBy", d.UploadedBy)
	e.optTimestamp("uploadedAt", d.UploadedAt)
	e.optStr("approvalStatus", d.ApprovalStatus)
	e.strings("sharedWith", d.SharedWith)
	e.optStr("tenantId", d.TenantID)
	return Fields(e)
}
