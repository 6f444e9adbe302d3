package models

import "time"

// AuditAction constants represent admin actions to be logged.
const (
	AuditActionLogin           = "LOGIN"
	AuditActionGrievanceCreate = "GRIEVANCE_CREATE"
	AuditActionGrievanceView   = "GRIEVANCE_VIEW"
	AuditActionTrackingCreate  = "TRACKING_CREATE"
	AuditActionRedirect        = "GRIEVANCE_REDIRECT"
	AuditActionHistoryExport   = "HISTORY_EXPORT"
)

// AuditLog represents an audit trail record. Writes are fire-and-forget;
// a failed audit write never aborts the operation it describes.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	AdminID    *string   `db:"admin_id" json:"admin_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	Details    []byte    `db:"details" json:"details,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
