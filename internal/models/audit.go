package models

import "time"

// AuditAction constants represent term transitions recorded in the audit trail.
const (
	AuditActionTermCreate        = "TERM_CREATE"
	AuditActionTermUpdate        = "TERM_UPDATE"
	AuditActionTermDelete        = "TERM_DELETE"
	AuditActionTermActivate      = "TERM_ACTIVATE"
	AuditActionTermComplete      = "TERM_COMPLETE"
	AuditActionTermForceComplete = "TERM_FORCE_COMPLETE"
	AuditActionTermExtend        = "TERM_EXTEND"
	AuditActionTermReconcile     = "TERM_RECONCILE"
)

// AuditResourceTerm is the resource name used for term audit entries.
const AuditResourceTerm = "term"

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	OldValues  []byte    `db:"old_values" json:"old_values,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	Reason     *string   `db:"reason" json:"reason,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Actor identifies who triggered a change. The zero value is the system itself.
type Actor struct {
	UserID    string
	IPAddress string
	UserAgent string
	RequestID string
}
