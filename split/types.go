// Package split computes how the pledges on an issue are divided between
// reward recipients once the platform fee is taken.
//
// Shares are expressed in thousandths (0-1000) of the distributable pool.
// A share without a fixed value takes an equal part of whatever the fixed
// shares leave over. All money is carried as int64 minor currency units.
package split

import "strings"

// Thousandths is the whole of the distributable pool.
const Thousandths = 1000

// DefaultCurrency is assumed for pledges that do not name a currency.
const DefaultCurrency = "USD"

// Pledge limits, in minor units. Keeping totals under MaxPledgeTotal keeps
// every fee and share product well inside int64.
const (
	MaxPledgeAmount = 1_000_000_000_000   // 10 billion in a two-decimal currency
	MaxPledgeTotal  = 100_000_000_000_000 // per issue
)

// Pledge is a monetary commitment toward an issue.
type Pledge struct {
	ID       string `json:"id,omitempty"`
	Amount   int64  `json:"amount"`             // Minor units (cents)
	Currency string `json:"currency,omitempty"` // ISO 4217 code
}

// CurrencyCode returns the pledge currency, falling back to DefaultCurrency.
func (p Pledge) CurrencyCode() string {
	if p.Currency == "" {
		return DefaultCurrency
	}
	return strings.ToUpper(p.Currency)
}

// Share is a recipient's allocation. A nil Thousandths means the share is
// computed as an equal split of the unfixed remainder.
type Share struct {
	Username    string  `json:"username"`
	Thousandths *uint32 `json:"share_thousandths,omitempty"`
}

// Fixed returns a share pinned to t thousandths.
func Fixed(username string, t uint32) Share {
	return Share{Username: username, Thousandths: &t}
}

// Unfixed returns a share that takes an equal part of the remainder.
func Unfixed(username string) Share {
	return Share{Username: username}
}

// IsFixed reports whether the share carries an explicit value.
func (s Share) IsFixed() bool {
	return s.Thousandths != nil
}

// Contributor is a recipient identity used for presentation only.
type Contributor struct {
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// Allocation is the resolved share of one recipient.
type Allocation struct {
	Username  string  `json:"username"`
	Percent   float64 `json:"percent"`   // Display only
	EstAmount int64   `json:"estAmount"` // Minor units
	IsFixed   bool    `json:"isFixed"`
}

// Result is the output of Calculate.
type Result struct {
	Currency         string       `json:"currency"`
	PledgeSum        int64        `json:"pledge_sum"`
	Fee              int64        `json:"fee"`
	Pool             int64        `json:"pool"`
	FixedThousandths int64        `json:"fixed_thousandths"`
	RemainingCount   int          `json:"remaining_count"`
	Residual         int64        `json:"residual_thousandths"` // Unassigned when every share is fixed
	Allocations      []Allocation `json:"allocations"`
}

// OverAllocated reports whether fixed shares exceed the whole pool.
func (r *Result) OverAllocated() bool {
	return r.FixedThousandths > Thousandths
}

// Find returns the allocation for username, or nil if absent.
func (r *Result) Find(username string) *Allocation {
	for i := range r.Allocations {
		if strings.EqualFold(r.Allocations[i].Username, username) {
			return &r.Allocations[i]
		}
	}
	return nil
}

// FinalShare is one recipient's share in a finalized split.
type FinalShare struct {
	Username    string `json:"username"`
	Thousandths uint32 `json:"share_thousandths"`
}

// FinalSplit is the integer split submitted for an issue. Entries sum to
// exactly 1000 thousandths when produced by Finalize.
type FinalSplit struct {
	IssueID string       `json:"issue_id"`
	Entries []FinalShare `json:"shares"`
}

// Total returns the sum of all entry thousandths.
func (f *FinalSplit) Total() uint64 {
	var total uint64
	for _, e := range f.Entries {
		total += uint64(e.Thousandths)
	}
	return total
}

// Payout is a single recipient's cash amount.
type Payout struct {
	Username string `json:"username"`
	Amount   int64  `json:"amount"`
}
