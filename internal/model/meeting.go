package model

import (
	"strings"
	"time"
)

// Meeting statuses.
const (
	MeetingScheduled = "scheduled"
	MeetingCompleted = "completed"
	MeetingCancelled = "cancelled"
)

// Meeting is a scheduled session on a project.
type Meeting struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id,omitempty"`
	Title     string    `json:"title"`
	Date      time.Time `json:"date"`

	// Duration is in minutes.
	Duration  *int64   `json:"duration,omitempty"`
	Location  string   `json:"location"`
	Attendees []string `json:"attendees,omitempty"`
	Notes     *string  `json:"notes,omitempty"`
	Status    string   `json:"status"`
}

// DecodeMeeting decodes a meeting. Title and date are required; an unknown
// status reads as scheduled.
func DecodeMeeting(id string, f Fields) (Meeting, error) {
	r := newReader(SubcollectionMeetings, id, f)
	m := Meeting{
		ID:        id,
		ProjectID: r.str("projectId"),
		Title:     r.requiredString("title"),
		Date:      r.requiredTime("date"),
		Duration:  r.optInt("duration"),
		Location:  r.str("location"),
		Attendees: r.strings("attendees"),
		Notes:     r.optString("notes"),
	}
	switch s := strings.ToLower(r.str("status")); s {
	case MeetingCompleted, MeetingCancelled:
		m.Status = s
	default:
		m.Status = MeetingScheduled
	}
	return m, r.done()
}

// EncodeMeeting returns the canonical field map for a meeting.
func EncodeMeeting(m Meeting) Fields {
	e := encoder{"id": m.ID}
	e.str("projectId", m.ProjectID)
	e.str("title", m.Title)
	e.timestamp("date", m.Date)
	e.optInt("duration", m.Duration)
	e.str("location", m.Location)
	e.strings("attendees", m.Attendees)
	e.optStr("notes", m.Notes)
	e.str("status", m.Status)
	return Fields(e)
}
