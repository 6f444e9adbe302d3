package models

import "time"

// AdminStatus is the workflow status tracked internally by admins.
type AdminStatus string

const (
	AdminStatusNew        AdminStatus = "NEW"
	AdminStatusPending    AdminStatus = "PENDING"
	AdminStatusRedirected AdminStatus = "REDIRECTED"
	AdminStatusResolved   AdminStatus = "RESOLVED"
	AdminStatusRejected   AdminStatus = "REJECTED"
)

// StudentStatus is the status surfaced to the filing student.
type StudentStatus string

const (
	StudentStatusSubmitted   StudentStatus = "SUBMITTED"
	StudentStatusUnderReview StudentStatus = "UNDER_REVIEW"
	StudentStatusInProgress  StudentStatus = "IN_PROGRESS"
	StudentStatusResolved    StudentStatus = "RESOLVED"
	StudentStatusRejected    StudentStatus = "REJECTED"
)

// SystemActor is the sentinel admin id recorded on the system-generated
// first tracking entry.
const SystemActor = "SYSTEM"

// adminTransitions is the single source of truth for legal admin-status
// moves. Terminal states map to an empty set.
var adminTransitions = map[AdminStatus][]AdminStatus{
	AdminStatusNew:        {AdminStatusPending, AdminStatusRedirected},
	AdminStatusPending:    {AdminStatusResolved, AdminStatusRejected, AdminStatusRedirected},
	AdminStatusRedirected: {AdminStatusPending, AdminStatusResolved, AdminStatusRejected},
	AdminStatusResolved:   nil,
	AdminStatusRejected:   nil,
}

// Valid reports whether s is a known admin status.
func (s AdminStatus) Valid() bool {
	_, ok := adminTransitions[s]
	return ok
}

// Terminal reports whether no further entries may be appended after s.
func (s AdminStatus) Terminal() bool {
	next, ok := adminTransitions[s]
	return ok && len(next) == 0
}

// Valid reports whether s is a known student status.
func (s StudentStatus) Valid() bool {
	switch s {
	case StudentStatusSubmitted, StudentStatusUnderReview, StudentStatusInProgress,
		StudentStatusResolved, StudentStatusRejected:
		return true
	}
	return false
}

// Terminal reports whether s closes the grievance from the student's view.
func (s StudentStatus) Terminal() bool {
	return s == StudentStatusResolved || s == StudentStatusRejected
}

// CanTransition decides whether requested may follow current. A nil current
// means no history exists yet; that only happens for the system-generated
// first entry, which may use any status.
func CanTransition(current *AdminStatus, requested AdminStatus) bool {
	if !requested.Valid() {
		return false
	}
	if current == nil {
		return true
	}
	for _, next := range adminTransitions[*current] {
		if next == requested {
			return true
		}
	}
	return false
}

// AllowedTransitions returns the legal next statuses after current.
func AllowedTransitions(current AdminStatus) []AdminStatus {
	next := adminTransitions[current]
	out := make([]AdminStatus, len(next))
	copy(out, next)
	return out
}

// TrackingEntry is one immutable history record of an admin action on a
// grievance. Rows are append-only; current status is always the entry with
// the greatest response_at.
type TrackingEntry struct {
	ID             int64         `db:"id" json:"id"`
	GrievanceID    string        `db:"grievance_id" json:"grievance_id"`
	ResponseText   string        `db:"response_text" json:"response_text"`
	AdminStatus    AdminStatus   `db:"admin_status" json:"admin_status"`
	StudentStatus  StudentStatus `db:"student_status" json:"student_status"`
	ResponseBy     string        `db:"response_by" json:"response_by"`
	ResponseAt     time.Time     `db:"response_at" json:"response_at"`
	RedirectTo     *string       `db:"redirect_to" json:"redirect_to,omitempty"`
	RedirectFrom   *string       `db:"redirect_from" json:"redirect_from,omitempty"`
	IsRedirect     bool          `db:"is_redirect" json:"is_redirect"`
	HasAttachments bool          `db:"has_attachments" json:"has_attachments"`
}

// TrackingSummary is derived from a grievance's history, never stored.
type TrackingSummary struct {
	TotalEntries   int           `json:"total_entries"`
	AdminStatus    AdminStatus   `json:"admin_status"`
	StudentStatus  StudentStatus `json:"student_status"`
	CreatedAt      time.Time     `json:"created_at"`
	LastUpdated    time.Time     `json:"last_updated"`
	RedirectCount  int           `json:"redirect_count"`
	ResolutionTime *string       `json:"resolution_time,omitempty"`
}

// TrackingHistory bundles the ordered entries with their summary.
type TrackingHistory struct {
	Entries []TrackingEntry  `json:"entries"`
	Summary *TrackingSummary `json:"summary,omitempty"`
}
