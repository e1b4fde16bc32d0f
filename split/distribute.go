package split

import (
	"math/bits"
	"sort"
)

// Finalize validates shares and converts them to integer thousandths summing
// to exactly 1000. Fixed shares keep their value; unfixed shares split the
// remainder evenly and the last unfixed recipient takes what integer
// division leaves over.
func Finalize(issueID string, shares []Share) (*FinalSplit, error) {
	if err := Validate(shares); err != nil {
		return nil, err
	}

	var fixed uint32
	remaining := 0
	lastUnfixed := -1
	for i, s := range shares {
		if s.IsFixed() {
			fixed += *s.Thousandths
		} else {
			remaining++
			lastUnfixed = i
		}
	}

	unfixed := uint32(Thousandths) - fixed
	var each uint32
	if remaining > 0 {
		each = unfixed / uint32(remaining)
	}

	final := &FinalSplit{IssueID: issueID, Entries: make([]FinalShare, len(shares))}
	var assigned uint32
	for i, s := range shares {
		e := FinalShare{Username: NormalizeUsername(s.Username)}
		switch {
		case s.IsFixed():
			e.Thousandths = *s.Thousandths
		case i == lastUnfixed:
			// Last unfixed recipient gets the remainder
			e.Thousandths = unfixed - assigned
		default:
			e.Thousandths = each
			assigned += each
		}
		final.Entries[i] = e
	}
	return final, nil
}

// Distribute splits pool between the entries of final in proportion to
// their thousandths, using largest-remainder apportionment: every entry gets
// the floor of its exact share, and the cents left over go one each to the
// entries with the largest fractional parts (earlier entries win ties).
// Payouts sum to exactly pool, each is within one cent of the exact share,
// and an entry with zero thousandths is never paid.
func Distribute(pool int64, final *FinalSplit) ([]Payout, error) {
	if pool < 0 {
		return nil, ErrNegativePool
	}
	if final == nil || len(final.Entries) == 0 {
		return nil, ErrNoShares
	}
	total := final.Total()
	if total == 0 {
		return nil, ErrZeroTotalShares
	}

	payouts := make([]Payout, len(final.Entries))
	rems := make([]uint64, len(final.Entries))
	var distributed int64
	for i, e := range final.Entries {
		// pool*t can exceed 64 bits; t <= total keeps the quotient in range.
		hi, lo := bits.Mul64(uint64(pool), uint64(e.Thousandths))
		q, r := bits.Div64(hi, lo, total)
		payouts[i] = Payout{Username: e.Username, Amount: int64(q)}
		rems[i] = r
		distributed += int64(q)
	}

	order := make([]int, len(payouts))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return rems[order[a]] > rems[order[b]] })

	// The leftover is smaller than the number of non-zero remainders, so
	// entries whose share divides evenly (including zero shares) get nothing.
	for _, i := range order[:pool-distributed] {
		payouts[i].Amount++
	}
	return payouts, nil
}
