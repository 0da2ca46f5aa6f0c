package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ChangeRequestStatus captures the pengajuan lifecycle.
type ChangeRequestStatus string

const (
	ChangeRequestPending  ChangeRequestStatus = "pending"
	ChangeRequestApproved ChangeRequestStatus = "approved"
	ChangeRequestRejected ChangeRequestStatus = "rejected"
)

// Valid reports whether s is a known status.
func (s ChangeRequestStatus) Valid() bool {
	switch s {
	case ChangeRequestPending, ChangeRequestApproved, ChangeRequestRejected:
		return true
	}
	return false
}

// ErrAlreadyResolved is returned when resolving a request that is no longer pending.
var ErrAlreadyResolved = errors.New("change request already resolved")

// FieldChanges maps a resident column to its proposed value. Persisted as JSONB.
type FieldChanges map[string]string

// Value implements driver.Valuer.
func (f FieldChanges) Value() (driver.Value, error) {
	if f == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(f)
}

// Scan implements sql.Scanner.
func (f *FieldChanges) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*f = FieldChanges{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("scan field changes: unsupported type %T", src)
	}
	out := FieldChanges{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("scan field changes: %w", err)
	}
	*f = out
	return nil
}

// Review records who resolved a change request and how.
type Review struct {
	ReviewerID string    `json:"admin_id"`
	ReviewedAt time.Time `json:"reviewed_at"`
	Note       string    `json:"catatan_admin,omitempty"`
}

// ChangeRequest is a resident's proposal to edit their own record (pengajuan_warga).
type ChangeRequest struct {
	ID        string              `json:"id"`
	WargaID   string              `json:"warga_id"`
	UserID    string              `json:"user_id"`
	Changes   FieldChanges        `json:"data_perubahan"`
	Reason    string              `json:"alasan,omitempty"`
	Status    ChangeRequestStatus `json:"status"`
	Review    *Review             `json:"review,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`

	Warga     *ResidentRef `json:"warga,omitempty"`
	Requester *UserRef     `json:"user,omitempty"`
	Reviewer  *UserRef     `json:"admin,omitempty"`
}

// ResidentRef is the resident summary embedded in change request listings.
type ResidentRef struct {
	ID          string `json:"id"`
	NIK         string `json:"nik"`
	NamaLengkap string `json:"nama_lengkap"`
}

// UserRef is a user summary embedded in listings.
type UserRef struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Email    string `json:"email,omitempty"`
}

// Resolve moves a pending request to approved or rejected. It is the only transition
// out of pending and refuses to run twice.
func (c *ChangeRequest) Resolve(status ChangeRequestStatus, reviewerID, note string, at time.Time) error {
	if c.Status != ChangeRequestPending {
		return ErrAlreadyResolved
	}
	if status != ChangeRequestApproved && status != ChangeRequestRejected {
		return fmt.Errorf("invalid resolution %q", status)
	}
	c.Status = status
	c.Review = &Review{ReviewerID: reviewerID, ReviewedAt: at, Note: note}
	c.UpdatedAt = at
	return nil
}

// ChangeRequestFilter constrains change request listings.
type ChangeRequestFilter struct {
	Status   ChangeRequestStatus
	Search   string
	UserID   string
	Page     int
	PageSize int
}
