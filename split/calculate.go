package split

import "math"

// SumPledges returns the total of all pledge amounts, saturating at the
// int64 bounds instead of wrapping.
func SumPledges(pledges []Pledge) int64 {
	var sum int64
	for _, p := range pledges {
		switch {
		case p.Amount > 0 && sum > math.MaxInt64-p.Amount:
			sum = math.MaxInt64
		case p.Amount < 0 && sum < math.MinInt64-p.Amount:
			sum = math.MinInt64
		default:
			sum += p.Amount
		}
	}
	return sum
}

// Calculate resolves every share against the distributable pool.
//
// It never fails. Over-allocated fixed shares leave unfixed recipients with
// negative amounts, and when every share is fixed below 1000 the leftover is
// reported in Result.Residual rather than assigned. Run Validate first when
// the result is going to be submitted.
func Calculate(pledges []Pledge, shares []Share, fee FeePolicy) Result {
	sum := SumPledges(pledges)
	feeAmount := fee.Fee(sum)
	pool := sum - feeAmount

	var fixed int64
	remaining := 0
	for _, s := range shares {
		if s.IsFixed() {
			fixed += int64(*s.Thousandths)
		} else {
			remaining++
		}
	}
	unfixed := Thousandths - fixed

	res := Result{
		Currency:         DefaultCurrency,
		PledgeSum:        sum,
		Fee:              feeAmount,
		Pool:             pool,
		FixedThousandths: fixed,
		RemainingCount:   remaining,
		Allocations:      make([]Allocation, len(shares)),
	}
	if len(pledges) > 0 {
		res.Currency = pledges[0].CurrencyCode()
	}
	if remaining == 0 && unfixed > 0 {
		res.Residual = unfixed
	}

	for i, s := range shares {
		a := Allocation{Username: NormalizeUsername(s.Username), IsFixed: s.IsFixed()}
		if a.IsFixed {
			t := int64(*s.Thousandths)
			a.Percent = float64(t) / 10
			a.EstAmount = MulRoundDiv(pool, t, Thousandths)
		} else {
			// remaining > 0 on this branch.
			n := int64(remaining)
			a.Percent = float64(unfixed) / (10 * float64(n))
			a.EstAmount = MulRoundDiv(pool, unfixed, Thousandths*n)
		}
		res.Allocations[i] = a
	}
	return res
}
