package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// Audit actions.
const (
	AuditActionCreate  = "create"
	AuditActionUpdate  = "update"
	AuditActionDelete  = "delete"
	AuditActionApprove = "approve"
	AuditActionReject  = "reject"
	AuditActionLogin   = "login"
	AuditActionLogout  = "logout"
)

// Audited model types.
const (
	ModelWarga         = "Warga"
	ModelPengajuan     = "PengajuanWarga"
	ModelUser          = "User"
	ModelTypeAllFilter = "all"
)

// AuditLog is an immutable activity_logs row.
type AuditLog struct {
	ID          string             `db:"id" json:"id"`
	UserID      *string            `db:"user_id" json:"user_id,omitempty"`
	Action      string             `db:"action" json:"action"`
	ModelType   string             `db:"model_type" json:"model_type"`
	ModelID     *string            `db:"model_id" json:"model_id,omitempty"`
	OldValues   types.NullJSONText `db:"old_values" json:"old_values"`
	NewValues   types.NullJSONText `db:"new_values" json:"new_values"`
	Description string             `db:"description" json:"description"`
	IPAddress   string             `db:"ip_address" json:"ip_address"`
	UserAgent   string             `db:"user_agent" json:"user_agent"`
	RequestID   string             `db:"request_id" json:"request_id,omitempty"`
	CreatedAt   time.Time          `db:"created_at" json:"created_at"`
	User        *AuditActor        `db:"-" json:"user,omitempty"`
}

// AuditActor is the user summary joined onto listed entries.
type AuditActor struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// AuditEntry is what callers hand to the audit log.
type AuditEntry struct {
	Action      string
	ModelType   string
	ModelID     string
	Old         interface{}
	New         interface{}
	Description string
}

// AuditFilter constrains activity log listings.
type AuditFilter struct {
	UserID    string
	Action    string
	ModelType string
	DateFrom  *time.Time
	DateTo    *time.Time
	Search    string
	Page      int
	PageSize  int
}
