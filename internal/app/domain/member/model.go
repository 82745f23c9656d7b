package member

import (
	"time"

	"github.com/shopspring/decimal"
)

// Role distinguishes plain members from cooperative administrators.
type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

// AdminRole refines the admin role. Empty for plain members.
type AdminRole string

const (
	AdminRoleSuper      AdminRole = "super_admin"
	AdminRoleOperations AdminRole = "operations_admin"
)

// Member is a cooperative member. ShareCapital is the running net capital
// position; it must always equal the sum of the member's capital entries.
type Member struct {
	ID                string          `json:"id"`
	FullName          string          `json:"full_name"`
	Email             string          `json:"email"`
	Role              Role            `json:"role"`
	AdminRole         AdminRole       `json:"admin_role,omitempty"`
	GroupID           string          `json:"group_id,omitempty"`
	ShareCapital      decimal.Decimal `json:"share_capital"`
	MembershipFeePaid bool            `json:"membership_fee_paid"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// IsAdmin reports whether the member holds any admin role.
func (m Member) IsAdmin() bool { return m.Role == RoleAdmin }

// EntryType tags a capital journal entry with the event that produced it.
type EntryType string

const (
	EntryContribution EntryType = "contribution"
	EntryDividend     EntryType = "dividend"
	EntryWithdrawal   EntryType = "withdrawal"
	EntryAdjustment   EntryType = "adjustment"
)

// CapitalEntry is one signed movement of a member's share capital. The
// journal is append-only; corrections are new entries, never edits.
type CapitalEntry struct {
	ID            string          `json:"id"`
	MemberID      string          `json:"member_id"`
	Amount        decimal.Decimal `json:"amount"`
	Type          EntryType       `json:"type"`
	ReferenceType string          `json:"reference_type,omitempty"`
	ReferenceID   string          `json:"reference_id,omitempty"`
	Description   string          `json:"description,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}
