package ledger

import "errors"

var (
	// ErrUserNotFound is returned when an account id is unknown.
	ErrUserNotFound = errors.New("ledger: user not found")
	// ErrInsufficientFunds is returned when a debit exceeds the balance.
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")
	// ErrInvalidAmount is returned for non-positive transfer amounts.
	ErrInvalidAmount = errors.New("ledger: invalid amount")
	// ErrSelfTransfer is returned when sender and receiver are the same account.
	ErrSelfTransfer = errors.New("ledger: transfer to self")
	// ErrDiscountUsed is returned when the user already redeemed a code.
	ErrDiscountUsed = errors.New("ledger: discount already used")
	// ErrCodeNotFound is returned for unknown discount codes.
	ErrCodeNotFound = errors.New("ledger: discount code not found")
	// ErrDuplicateCode is returned when inserting an existing code.
	ErrDuplicateCode = errors.New("ledger: discount code exists")
	// ErrServiceNotFound is returned when no offering is configured for a kind.
	ErrServiceNotFound = errors.New("ledger: service not configured")
)
