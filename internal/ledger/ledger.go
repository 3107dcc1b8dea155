// Package ledger defines the credit ledger: user accounts, discount codes and
// service offerings, together with the Store contract the flows depend on.
package ledger

import (
	"context"
	"strings"
)

// Approval is the admin approval status of a user account.
type Approval string

const (
	// ApprovalPending marks a user waiting for the admin.
	ApprovalPending Approval = "pending"
	// ApprovalApproved marks a user the admin has cleared.
	ApprovalApproved Approval = "approved"
)

// Valid reports whether a is a known approval status.
func (a Approval) Valid() bool {
	return a == ApprovalPending || a == ApprovalApproved
}

// ServiceKind identifies a service offering. The set is open; the built-in
// kinds are the ones the admin panel offers by default.
type ServiceKind string

const (
	ServiceOpenVPN ServiceKind = "openvpn"
	ServiceV2Ray   ServiceKind = "v2ray"
	ServiceProxy   ServiceKind = "proxy"
)

// NormalizeKind lowercases and trims a raw kind value.
func NormalizeKind(raw string) ServiceKind {
	return ServiceKind(strings.ToLower(strings.TrimSpace(raw)))
}

// ContentKind distinguishes inline text/link content from an opaque file reference.
type ContentKind int

const (
	ContentText ContentKind = iota
	ContentFile
)

func (k ContentKind) String() string {
	if k == ContentFile {
		return "file"
	}
	return "text"
}

// User is a ledger account keyed by the chat identity.
type User struct {
	ID           int64    `db:"id"`
	Username     string   `db:"username"`
	Credit       int64    `db:"credit"`
	DiscountUsed bool     `db:"discount_used"`
	Approval     Approval `db:"approval"`
}

// Approved reports whether the admin has approved the account.
func (u User) Approved() bool {
	return u.Approval == ApprovalApproved
}

// DiscountCode maps a code string to a credit value.
type DiscountCode struct {
	Code  string `db:"code"`
	Value int64  `db:"value"`
}

// Service is the single current offering for a kind.
type Service struct {
	Kind    ServiceKind `db:"kind"`
	Content string      `db:"content"`
	IsFile  bool        `db:"is_file"`
}

// ContentKind returns the content-kind flag of the offering.
func (s Service) ContentKind() ContentKind {
	if s.IsFile {
		return ContentFile
	}
	return ContentText
}

// Store is the narrow persistence contract consumed by the conversation engine.
// Implementations must give read-your-writes consistency per user row and
// perform Transfer and RedeemDiscount as single atomic units.
type Store interface {
	// EnsureUser returns the account for id, creating it with zero credit and
	// pending approval on first sight. A non-empty username refreshes the stored handle.
	EnsureUser(ctx context.Context, id int64, username string) (User, error)
	// User returns an existing account or ErrUserNotFound.
	User(ctx context.Context, id int64) (User, error)
	// SetApproval updates the approval status; unknown ids return ErrUserNotFound.
	SetApproval(ctx context.Context, id int64, status Approval) error

	// RedeemDiscount credits the code value and sets the discount-used flag in
	// one step. It returns ErrDiscountUsed or ErrCodeNotFound without writing.
	RedeemDiscount(ctx context.Context, id int64, code string) (int64, error)
	// Transfer moves amount from one account to another atomically. It returns
	// ErrInsufficientFunds or ErrUserNotFound leaving both balances unchanged.
	Transfer(ctx context.Context, from, to, amount int64) error
	// Credit adds amount to the account. Crediting an unknown id is a no-op
	// reported by the boolean result.
	Credit(ctx context.Context, id, amount int64) (bool, error)

	// UpsertService replaces the offering for its kind.
	UpsertService(ctx context.Context, svc Service) error
	// Service returns the current offering or ErrServiceNotFound.
	Service(ctx context.Context, kind ServiceKind) (Service, error)

	// InsertCode stores a new discount code; duplicates return ErrDuplicateCode.
	InsertCode(ctx context.Context, code DiscountCode) error
	// Code looks up a code by exact match or returns ErrCodeNotFound.
	Code(ctx context.Context, code string) (DiscountCode, error)

	// UserIDs enumerates every known account id.
	UserIDs(ctx context.Context) ([]int64, error)
	// PendingUsers enumerates accounts awaiting approval.
	PendingUsers(ctx context.Context) ([]User, error)
}
