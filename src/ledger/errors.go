package ledger

import (
	"errors"
	"fmt"
)

// Sentinel errors for errors.Is checks. The concrete error values carry the
// detail callers need to build a precise user-facing message.
var (
	ErrValidation         = errors.New("invalid transaction input")
	ErrInsufficientShares = errors.New("insufficient shares")
)

// ValidationError reports bad caller input to RecordBuy or RecordSell. The
// ledger state is never mutated when one is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// InsufficientSharesError reports a sell request that exceeds the open
// inventory for a ticker. It carries both quantities so callers can surface
// the exact shortfall.
type InsufficientSharesError struct {
	Ticker    string
	Requested int
	Available int
}

func (e *InsufficientSharesError) Error() string {
	return fmt.Sprintf("insufficient shares of %s: requested %d, available %d", e.Ticker, e.Requested, e.Available)
}

func (e *InsufficientSharesError) Is(target error) bool { return target == ErrInsufficientShares }
