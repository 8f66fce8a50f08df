package model

import "time"

// ActivityLog is an audit entry describing something a user did.
type ActivityLog struct {
	ID        string     `json:"id"`
	ProjectID string     `json:"project_id,omitempty"`
	UserID    string     `json:"user_id"`
	Action    string     `json:"action"`
	Details   string     `json:"details"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
	TenantID  *string    `json:"tenant_id,omitempty"`
}

// DecodeActivityLog decodes an activity log entry. Action is required.
func DecodeActivityLog(id string, f Fields) (ActivityLog, error) {
	r := newReader(CollectionActivityLogs, id, f)
	l := ActivityLog{
		ID:        id,
		ProjectID: r.str("projectId"),
		UserID:    r.str("userId"),
		Action:    r.requiredString("action"),
		Details:   r.str("details"),
		Timestamp: r.optTime("timestamp"),
		TenantID:  r.optString("tenantId"),
	}
	return l, r.done()
}

// EncodeActivityLog returns the canonical field map for a log entry.
func EncodeActivityLog(l ActivityLog) Fields {
	e := encoder{"id": l.ID}
	e.str("projectId", l.ProjectID)
	e.str("userId", l.UserID)
	e.str("action", l.Action)
	e.str("details", l.Details)
	e.optTimestamp("timestamp", l.Timestamp)
	e.optStr("tenantId", l.TenantID)
	return Fields(e)
}
