package models

import "time"

// Grievance represents a filed grievance. Core fields are immutable once
// created; lifecycle changes live in the tracking history, never here.
type Grievance struct {
	ID             string    `db:"id" json:"id"`
	Reference      string    `db:"reference" json:"reference"`
	StudentID      string    `db:"student_id" json:"student_id"`
	CampusID       string    `db:"campus_id" json:"campus_id"`
	DepartmentID   string    `db:"department_id" json:"department_id"`
	IssueType      string    `db:"issue_type" json:"issue_type"`
	Subject        string    `db:"subject" json:"subject"`
	Description    string    `db:"description" json:"description"`
	HasAttachments bool      `db:"has_attachments" json:"has_attachments"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// GrievanceFilter captures filtering criteria for listing grievances.
type GrievanceFilter struct {
	Scope      QueryScope
	StudentID  string
	IssueType  string
	Search     string
	CreatedGTE *time.Time
	CreatedLTE *time.Time
	Page       int
	PageSize   int
}
