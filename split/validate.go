package split

import (
	"fmt"
	"strings"
)

// Validate checks a share list before it is finalized or submitted.
// Calculate accepts anything; this is where bad configurations are caught.
func Validate(shares []Share) error {
	if len(shares) == 0 {
		return ErrNoShares
	}

	seen := make(map[string]struct{}, len(shares))
	var fixed uint64
	remaining := 0
	for i, s := range shares {
		name := NormalizeUsername(s.Username)
		if name == "" {
			return fmt.Errorf("%w: entry %d", ErrEmptyUsername, i)
		}
		key := strings.ToLower(name)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateRecipient, name)
		}
		seen[key] = struct{}{}

		if !s.IsFixed() {
			remaining++
			continue
		}
		if *s.Thousandths > Thousandths {
			return fmt.Errorf("%w: %s has %d", ErrShareOutOfRange, name, *s.Thousandths)
		}
		fixed += uint64(*s.Thousandths)
	}

	if fixed > Thousandths {
		return fmt.Errorf("%w: fixed=%d", ErrOverAllocated, fixed)
	}
	if remaining == 0 && fixed < Thousandths {
		return fmt.Errorf("%w: %d thousandths unassigned", ErrUnallocatedResidual, Thousandths-fixed)
	}
	return nil
}

// ValidatePledges checks that pledges are non-negative, within
// MaxPledgeAmount, share a currency, and total no more than MaxPledgeTotal.
func ValidatePledges(pledges []Pledge) error {
	var currency string
	var sum int64
	for i, p := range pledges {
		if p.Amount < 0 {
			return fmt.Errorf("%w: pledge %d amount %d", ErrNegativePledge, i, p.Amount)
		}
		if p.Amount > MaxPledgeAmount {
			return fmt.Errorf("%w: pledge %d amount %d exceeds %d", ErrPledgeTooLarge, i, p.Amount, int64(MaxPledgeAmount))
		}
		// Both terms are at most MaxPledgeTotal, so the sum cannot wrap.
		sum += p.Amount
		if sum > MaxPledgeTotal {
			return fmt.Errorf("%w: total exceeds %d", ErrPledgeTooLarge, int64(MaxPledgeTotal))
		}
		c := p.CurrencyCode()
		if currency == "" {
			currency = c
		} else if c != currency {
			return fmt.Errorf("%w: %s and %s", ErrMixedCurrency, currency, c)
		}
	}
	return nil
}

// ValidatePayouts checks that payouts match what Distribute produces for final.
func ValidatePayouts(payouts []Payout, final *FinalSplit, pool int64) error {
	if final == nil {
		return ErrNoShares
	}
	if len(payouts) != len(final.Entries) {
		return fmt.Errorf("%w: payout count %d != share count %d", ErrPayoutMismatch, len(payouts), len(final.Entries))
	}

	expected, err := Distribute(pool, final)
	if err != nil {
		return err
	}

	for i := range payouts {
		if payouts[i].Username != expected[i].Username {
			return fmt.Errorf("%w: entry %d: username mismatch", ErrPayoutMismatch, i)
		}
		if payouts[i].Amount != expected[i].Amount {
			return fmt.Errorf("%w: entry %d: amount %d != expected %d", ErrPayoutMismatch, i, payouts[i].Amount, expected[i].Amount)
		}
	}
	return nil
}
