package split

import "errors"

var (
	// ErrNoShares indicates the split has no recipients.
	ErrNoShares = errors.New("split: no recipients")

	// ErrEmptyUsername indicates a share has a blank username.
	ErrEmptyUsername = errors.New("split: empty username")

	// ErrDuplicateRecipient indicates the same username appears more than once.
	ErrDuplicateRecipient = errors.New("split: duplicate recipient")

	// ErrShareOutOfRange indicates a fixed share above 1000 thousandths.
	ErrShareOutOfRange = errors.New("split: share out of range")

	// ErrPledgeTooLarge indicates a pledge, or the pledges of an issue
	// together, exceed the supported amount.
	ErrPledgeTooLarge = errors.New("split: pledge amount too large")

	// ErrOverAllocated indicates fixed shares sum to more than 1000 thousandths.
	ErrOverAllocated = errors.New("split: fixed shares exceed 100%")

	// ErrUnallocatedResidual indicates every share is fixed but they do not reach 100%.
	ErrUnallocatedResidual = errors.New("split: unallocated residual with no unfixed recipients")

	// ErrNegativePledge indicates a pledge with a negative amount.
	ErrNegativePledge = errors.New("split: negative pledge amount")

	// ErrMixedCurrency indicates pledges in more than one currency.
	ErrMixedCurrency = errors.New("split: pledges in mixed currencies")

	// ErrNegativePool indicates a negative distributable pool.
	ErrNegativePool = errors.New("split: negative distributable pool")

	// ErrZeroTotalShares indicates a finalized split whose shares sum to zero.
	ErrZeroTotalShares = errors.New("split: zero total shares")

	// ErrPayoutMismatch indicates payouts that do not match the finalized split.
	ErrPayoutMismatch = errors.New("split: payout mismatch")

	// ErrInvalidSplitData indicates encoded split data is malformed.
	ErrInvalidSplitData = errors.New("split: invalid split data")

	// ErrInvalidShareSpec indicates a share written as text cannot be parsed.
	ErrInvalidShareSpec = errors.New("split: invalid share spec")

	// ErrTooManyEntries indicates the split has too many entries to encode.
	ErrTooManyEntries = errors.New("split: too many entries")
)
