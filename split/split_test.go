package split

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cents(amounts ...int64) []Pledge {
	pledges := make([]Pledge, len(amounts))
	for i, a := range amounts {
		pledges[i] = Pledge{Amount: a}
	}
	return pledges
}

// --- Calculate tests ---

func TestCalculate_Scenarios(t *testing.T) {
	tests := []struct {
		name      string
		pledges   []Pledge
		shares    []Share
		wantPool  int64
		wantPct   []float64
		wantAmt   []int64
		wantFixed []bool
	}{
		{"single recipient", cents(1000), []Share{Unfixed("a")},
			900, []float64{100}, []int64{900}, []bool{false}},
		{"two unfixed", cents(1000), []Share{Unfixed("a"), Unfixed("b")},
			900, []float64{50, 50}, []int64{450, 450}, []bool{false, false}},
		{"fixed and unfixed", cents(1000), []Share{Fixed("a", 400), Unfixed("b")},
			900, []float64{40, 60}, []int64{360, 540}, []bool{true, false}},
		{"fully fixed", cents(500, 500), []Share{Fixed("a", 1000)},
			900, []float64{100}, []int64{900}, []bool{true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Calculate(tt.pledges, tt.shares, DefaultFeePolicy)
			assert.Equal(t, int64(1000), res.PledgeSum)
			assert.Equal(t, int64(100), res.Fee)
			assert.Equal(t, tt.wantPool, res.Pool)
			assert.Zero(t, res.Residual)
			require.Len(t, res.Allocations, len(tt.shares))
			for i, a := range res.Allocations {
				assert.Equal(t, tt.shares[i].Username, a.Username)
				assert.InDelta(t, tt.wantPct[i], a.Percent, 1e-9)
				assert.Equal(t, tt.wantAmt[i], a.EstAmount)
				assert.Equal(t, tt.wantFixed[i], a.IsFixed)
			}
		})
	}
}

func TestCalculate_ThreeWayRounding(t *testing.T) {
	res := Calculate(cents(1111), []Share{Unfixed("a"), Unfixed("b"), Unfixed("c")}, DefaultFeePolicy)
	assert.Equal(t, int64(111), res.Fee)
	assert.Equal(t, int64(1000), res.Pool)

	var sum int64
	for _, a := range res.Allocations {
		assert.InDelta(t, 100.0/3, a.Percent, 1e-9)
		assert.Equal(t, int64(333), a.EstAmount)
		sum += a.EstAmount
	}
	assert.InDelta(t, res.Pool, sum, 3)
}

func TestCalculate_ZeroPledges(t *testing.T) {
	shares := []Share{Fixed("a", 250), Unfixed("b"), Unfixed("c")}
	res := Calculate(nil, shares, DefaultFeePolicy)
	assert.Zero(t, res.PledgeSum)
	assert.Zero(t, res.Pool)
	assert.Equal(t, DefaultCurrency, res.Currency)
	for _, a := range res.Allocations {
		assert.Zero(t, a.EstAmount)
	}
	assert.InDelta(t, 37.5, res.Allocations[1].Percent, 1e-9)
}

func TestCalculate_ResidualNotAssigned(t *testing.T) {
	res := Calculate(cents(1000), []Share{Fixed("a", 400), Fixed("b", 300)}, DefaultFeePolicy)
	assert.Equal(t, 0, res.RemainingCount)
	assert.Equal(t, int64(300), res.Residual)
	assert.Equal(t, int64(360), res.Allocations[0].EstAmount)
	assert.Equal(t, int64(270), res.Allocations[1].EstAmount)
}

func TestCalculate_OverAllocated(t *testing.T) {
	res := Calculate(cents(1000), []Share{Fixed("a", 800), Fixed("b", 400), Unfixed("c")}, DefaultFeePolicy)
	assert.True(t, res.OverAllocated())
	assert.Equal(t, int64(1200), res.FixedThousandths)

	c := res.Find("c")
	require.NotNil(t, c)
	assert.InDelta(t, -20.0, c.Percent, 1e-9)
	assert.Equal(t, int64(-180), c.EstAmount)
}

func TestCalculate_FixedIndependentOfOthers(t *testing.T) {
	pledges := cents(2500, 1700, 9)
	base := Calculate(pledges, []Share{Fixed("a", 125)}, DefaultFeePolicy)
	more := Calculate(pledges, []Share{Fixed("a", 125), Unfixed("b"), Fixed("c", 500), Unfixed("d")}, DefaultFeePolicy)
	assert.Equal(t, base.Allocations[0].EstAmount, more.Allocations[0].EstAmount)
	assert.Equal(t, RoundDiv(base.Pool*125, 1000), base.Allocations[0].EstAmount)
}

func TestCalculate_CustomFee(t *testing.T) {
	res := Calculate(cents(1000), []Share{Unfixed("a")}, FeePolicy{BasisPoints: 0})
	assert.Zero(t, res.Fee)
	assert.Equal(t, int64(1000), res.Allocations[0].EstAmount)

	res = Calculate(cents(999), []Share{Unfixed("a")}, FeePolicy{BasisPoints: 250})
	assert.Equal(t, int64(25), res.Fee) // 24.975 rounds up
	assert.Equal(t, int64(974), res.Pool)
}

func TestCalculate_CurrencyFromPledges(t *testing.T) {
	res := Calculate([]Pledge{{Amount: 100, Currency: "eur"}}, []Share{Unfixed("a")}, DefaultFeePolicy)
	assert.Equal(t, "EUR", res.Currency)
}

func TestCalculate_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for iter := 0; iter < 500; iter++ {
		pledges := make([]Pledge, rng.Intn(6))
		for i := range pledges {
			pledges[i].Amount = rng.Int63n(1_000_000)
		}

		n := 1 + rng.Intn(8)
		shares := make([]Share, n)
		budget := uint32(1000)
		for i := range shares {
			shares[i] = Unfixed(string(rune('a' + i)))
			if i < n-1 && rng.Intn(2) == 0 && budget > 0 {
				v := uint32(rng.Intn(int(budget) + 1))
				budget -= v
				shares[i] = Fixed(shares[i].Username, v)
			}
		}
		// Make sure the residual is absorbed.
		shares[n-1] = Unfixed(shares[n-1].Username)

		res := Calculate(pledges, shares, DefaultFeePolicy)
		again := Calculate(pledges, shares, DefaultFeePolicy)
		require.Equal(t, res, again, "calculate must be deterministic")

		var sum int64
		var pct float64
		for _, a := range res.Allocations {
			sum += a.EstAmount
			pct += a.Percent
		}
		assert.InDelta(t, res.Pool, sum, float64(n), "iteration %d", iter)
		assert.InDelta(t, 100.0, pct, 1e-6, "iteration %d", iter)
		if len(pledges) == 0 {
			assert.Zero(t, sum)
		}
	}
}

func TestCalculate_EqualSplitFractions(t *testing.T) {
	for n := 1; n <= 10; n++ {
		shares := make([]Share, n)
		for i := range shares {
			shares[i] = Unfixed(string(rune('a' + i)))
		}
		res := Calculate(cents(100000), shares, DefaultFeePolicy)
		for _, a := range res.Allocations {
			assert.InDelta(t, 100/float64(n), a.Percent, 1e-9)
		}
	}
}

func TestRoundDiv(t *testing.T) {
	tests := []struct {
		n, d, want int64
	}{
		{0, 5, 0},
		{5, 2, 3},
		{-5, 2, -2},
		{7, 3, 2},
		{-7, 3, -2},
		{8, 3, 3},
		{-8, 3, -3},
		{1000000, 10000, 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RoundDiv(tt.n, tt.d), "RoundDiv(%d, %d)", tt.n, tt.d)
	}
}

// --- Validate tests ---

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		shares  []Share
		wantErr error
	}{
		{"ok unfixed", []Share{Unfixed("a"), Unfixed("b")}, nil},
		{"ok fixed to full", []Share{Fixed("a", 600), Fixed("b", 400)}, nil},
		{"ok mixed", []Share{Fixed("a", 999), Unfixed("b")}, nil},
		{"empty", nil, ErrNoShares},
		{"blank username", []Share{Unfixed("  ")}, ErrEmptyUsername},
		{"duplicate", []Share{Unfixed("alice"), Unfixed("Alice")}, ErrDuplicateRecipient},
		{"out of range", []Share{Fixed("a", 1001), Unfixed("b")}, ErrShareOutOfRange},
		{"over allocated", []Share{Fixed("a", 700), Fixed("b", 400), Unfixed("c")}, ErrOverAllocated},
		{"residual", []Share{Fixed("a", 400), Fixed("b", 300)}, ErrUnallocatedResidual},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.shares)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidatePledges(t *testing.T) {
	assert.NoError(t, ValidatePledges(nil))
	assert.NoError(t, ValidatePledges([]Pledge{{Amount: 10}, {Amount: 0, Currency: "usd"}}))
	assert.ErrorIs(t, ValidatePledges([]Pledge{{Amount: -1}}), ErrNegativePledge)
	assert.ErrorIs(t, ValidatePledges([]Pledge{{Amount: 1, Currency: "USD"}, {Amount: 1, Currency: "EUR"}}), ErrMixedCurrency)
}

func TestValidatePledges_Limits(t *testing.T) {
	assert.NoError(t, ValidatePledges([]Pledge{{Amount: MaxPledgeAmount}}))
	assert.ErrorIs(t, ValidatePledges([]Pledge{{Amount: MaxPledgeAmount + 1}}), ErrPledgeTooLarge)
	assert.ErrorIs(t, ValidatePledges([]Pledge{{Amount: math.MaxInt64}}), ErrPledgeTooLarge)

	many := make([]Pledge, MaxPledgeTotal/MaxPledgeAmount+1)
	for i := range many {
		many[i].Amount = MaxPledgeAmount
	}
	assert.NoError(t, ValidatePledges(many[:len(many)-1]))
	assert.ErrorIs(t, ValidatePledges(many), ErrPledgeTooLarge)
}

func TestCalculate_LargeAmountsDoNotWrap(t *testing.T) {
	res := Calculate([]Pledge{{Amount: 1e16}}, []Share{Unfixed("a")}, DefaultFeePolicy)
	assert.Equal(t, int64(1e15), res.Fee)
	assert.Equal(t, int64(9e15), res.Pool)
	assert.Equal(t, int64(9e15), res.Allocations[0].EstAmount)

	res = Calculate([]Pledge{{Amount: math.MaxInt64}, {Amount: math.MaxInt64}}, []Share{Fixed("a", 1000)}, FeePolicy{})
	assert.Equal(t, int64(math.MaxInt64), res.PledgeSum)
	assert.Equal(t, int64(math.MaxInt64), res.Allocations[0].EstAmount)
}

func TestMulRoundDiv(t *testing.T) {
	assert.Equal(t, int64(5), MulRoundDiv(9, 5, 9))
	assert.Equal(t, int64(-2), MulRoundDiv(-5, 1, 2))
	assert.Equal(t, int64(math.MaxInt64/2+1), MulRoundDiv(math.MaxInt64, 1, 2))
	assert.Equal(t, int64(math.MaxInt64), MulRoundDiv(math.MaxInt64, 4, 1))
	assert.Equal(t, int64(math.MinInt64), MulRoundDiv(math.MinInt64, 4, 1))
}

// --- Finalize / Distribute tests ---

func TestFinalize(t *testing.T) {
	tests := []struct {
		name   string
		shares []Share
		want   []uint32
	}{
		{"three unfixed", []Share{Unfixed("a"), Unfixed("b"), Unfixed("c")}, []uint32{333, 333, 334}},
		{"fixed first", []Share{Fixed("a", 400), Unfixed("b"), Unfixed("c")}, []uint32{400, 300, 300}},
		{"fixed between", []Share{Unfixed("a"), Fixed("b", 100), Unfixed("c")}, []uint32{450, 100, 450}},
		{"fixed last", []Share{Unfixed("a"), Unfixed("b"), Fixed("c", 1)}, []uint32{499, 500, 1}},
		{"all fixed", []Share{Fixed("a", 250), Fixed("b", 750)}, []uint32{250, 750}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			final, err := Finalize("42", tt.shares)
			require.NoError(t, err)
			assert.Equal(t, "42", final.IssueID)
			assert.Equal(t, uint64(Thousandths), final.Total())
			require.Len(t, final.Entries, len(tt.want))
			for i, e := range final.Entries {
				assert.Equal(t, tt.shares[i].Username, e.Username)
				assert.Equal(t, tt.want[i], e.Thousandths)
			}
		})
	}
}

func TestFinalize_NormalizesUsernames(t *testing.T) {
	_, err := Finalize("1", []Share{Unfixed("@alice"), Unfixed("Alice")})
	assert.ErrorIs(t, err, ErrDuplicateRecipient)

	assert.ErrorIs(t, Validate([]Share{Unfixed("@ ")}), ErrEmptyUsername)

	final, err := Finalize("1", []Share{Fixed(" @alice ", 400), Unfixed("bob")})
	require.NoError(t, err)
	assert.Equal(t, "alice", final.Entries[0].Username)
}

func TestFinalize_RejectsInvalid(t *testing.T) {
	_, err := Finalize("1", []Share{Fixed("a", 500)})
	assert.ErrorIs(t, err, ErrUnallocatedResidual)

	_, err = Finalize("1", []Share{Fixed("a", 600), Fixed("b", 600)})
	assert.ErrorIs(t, err, ErrOverAllocated)
}

func TestDistribute(t *testing.T) {
	final := &FinalSplit{IssueID: "7", Entries: []FinalShare{
		{Username: "a", Thousandths: 333},
		{Username: "b", Thousandths: 333},
		{Username: "c", Thousandths: 334},
	}}

	payouts, err := Distribute(900, final)
	require.NoError(t, err)
	assert.Equal(t, []Payout{{"a", 300}, {"b", 300}, {"c", 300}}, payouts)
	require.NoError(t, ValidatePayouts(payouts, final, 900))

	payouts, err = Distribute(0, final)
	require.NoError(t, err)
	for _, p := range payouts {
		assert.Zero(t, p.Amount)
	}
}

func TestDistribute_ZeroShareLast(t *testing.T) {
	final, err := Finalize("1", []Share{Fixed("a", 500), Fixed("b", 500), Fixed("c", 0)})
	require.NoError(t, err)

	payouts, err := Distribute(901, final)
	require.NoError(t, err)
	assert.Equal(t, []Payout{{"a", 451}, {"b", 450}, {"c", 0}}, payouts)
	require.NoError(t, ValidatePayouts(payouts, final, 901))
}

func TestDistribute_FixedLast(t *testing.T) {
	final, err := Finalize("1", []Share{Unfixed("a"), Unfixed("b"), Fixed("c", 1)})
	require.NoError(t, err)

	// Exact shares are 449.599, 450.5 and 0.901.
	payouts, err := Distribute(901, final)
	require.NoError(t, err)
	assert.Equal(t, []Payout{{"a", 450}, {"b", 450}, {"c", 1}}, payouts)
}

func TestDistribute_MatchesPreview(t *testing.T) {
	shares := []Share{Unfixed("a"), Unfixed("b"), Unfixed("c")}
	res := Calculate([]Pledge{{Amount: 1000}}, shares, DefaultFeePolicy)
	final, err := Finalize("1", shares)
	require.NoError(t, err)

	payouts, err := Distribute(res.Pool, final)
	require.NoError(t, err)
	for i, p := range payouts {
		assert.Equal(t, res.Allocations[i].EstAmount, p.Amount, p.Username)
	}
}

func TestDistribute_NearExactShare(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for iter := 0; iter < 300; iter++ {
		n := 1 + rng.Intn(8)
		shares := make([]Share, n)
		budget := uint32(Thousandths)
		for i := range shares {
			name := string(rune('a' + i))
			if i < n-1 && rng.Intn(2) == 0 {
				v := uint32(rng.Intn(int(budget) + 1))
				budget -= v
				shares[i] = Fixed(name, v)
			} else {
				shares[i] = Unfixed(name)
			}
		}
		if shares[n-1].IsFixed() {
			continue
		}
		final, err := Finalize("x", shares)
		require.NoError(t, err)

		pool := rng.Int63n(MaxPledgeTotal)
		payouts, err := Distribute(pool, final)
		require.NoError(t, err)

		var sum int64
		for i, p := range payouts {
			th := int64(final.Entries[i].Thousandths)
			if th == 0 {
				assert.Zero(t, p.Amount)
			}
			diff := p.Amount - MulRoundDiv(pool, th, Thousandths)
			assert.True(t, diff >= -1 && diff <= 1, "entry %d: pool %d share %d paid %d", i, pool, th, p.Amount)
			sum += p.Amount
		}
		assert.Equal(t, pool, sum)
	}
}

func TestDistribute_LargePool(t *testing.T) {
	final := &FinalSplit{Entries: []FinalShare{{Username: "a", Thousandths: 999}, {Username: "b", Thousandths: 1}}}
	payouts, err := Distribute(math.MaxInt64, final)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), payouts[0].Amount+payouts[1].Amount)
	assert.Greater(t, payouts[0].Amount, payouts[1].Amount)
}

func TestDistribute_Errors(t *testing.T) {
	_, err := Distribute(-1, &FinalSplit{Entries: []FinalShare{{Username: "a", Thousandths: 1000}}})
	assert.ErrorIs(t, err, ErrNegativePool)

	_, err = Distribute(100, &FinalSplit{})
	assert.ErrorIs(t, err, ErrNoShares)

	_, err = Distribute(100, &FinalSplit{Entries: []FinalShare{{Username: "a"}}})
	assert.ErrorIs(t, err, ErrZeroTotalShares)
}

func TestDistribute_ConservesPool(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for iter := 0; iter < 200; iter++ {
		n := 1 + rng.Intn(9)
		shares := make([]Share, n)
		for i := range shares {
			shares[i] = Unfixed(string(rune('a' + i)))
		}
		final, err := Finalize("x", shares)
		require.NoError(t, err)

		pool := rng.Int63n(10_000_000)
		payouts, err := Distribute(pool, final)
		require.NoError(t, err)

		var sum int64
		for _, p := range payouts {
			assert.GreaterOrEqual(t, p.Amount, int64(0))
			sum += p.Amount
		}
		assert.Equal(t, pool, sum)
	}
}

func TestValidatePayouts_NilSplit(t *testing.T) {
	assert.ErrorIs(t, ValidatePayouts([]Payout{{"a", 1}}, nil, 1), ErrNoShares)
}

func TestValidatePayouts_Mismatch(t *testing.T) {
	final := &FinalSplit{Entries: []FinalShare{{Username: "a", Thousandths: 500}, {Username: "b", Thousandths: 500}}}

	err := ValidatePayouts([]Payout{{"a", 50}}, final, 100)
	assert.ErrorIs(t, err, ErrPayoutMismatch)

	err = ValidatePayouts([]Payout{{"a", 40}, {"b", 60}}, final, 100)
	assert.ErrorIs(t, err, ErrPayoutMismatch)

	err = ValidatePayouts([]Payout{{"b", 50}, {"a", 50}}, final, 100)
	assert.ErrorIs(t, err, ErrPayoutMismatch)
}

// --- Codec tests ---

func TestMarshalFinalSplit_RoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		split *FinalSplit
	}{
		{"single", &FinalSplit{IssueID: "polarsource/polar#1", Entries: []FinalShare{{"alice", 1000}}}},
		{"multiple", &FinalSplit{IssueID: "42", Entries: []FinalShare{{"a", 333}, {"bb", 333}, {"ccc", 334}}}},
		{"empty issue id", &FinalSplit{Entries: []FinalShare{{"x", 1000}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := MarshalFinalSplit(tt.split)
			require.NoError(t, err)

			decoded, err := UnmarshalFinalSplit(data)
			require.NoError(t, err)
			assert.Equal(t, tt.split.IssueID, decoded.IssueID)
			assert.Equal(t, tt.split.Entries, decoded.Entries)
		})
	}
}

func TestMarshalFinalSplit_Size(t *testing.T) {
	data, err := MarshalFinalSplit(&FinalSplit{IssueID: "42", Entries: []FinalShare{{"a", 500}, {"bb", 500}}})
	require.NoError(t, err)
	// Expected: 2 + 2 + 4 + (2+1+4) + (2+2+4) = 23
	assert.Len(t, data, 23)
}

func TestUnmarshalFinalSplit_Invalid(t *testing.T) {
	good, err := MarshalFinalSplit(&FinalSplit{IssueID: "42", Entries: []FinalShare{{"a", 500}, {"b", 500}}})
	require.NoError(t, err)

	cases := map[string][]byte{
		"too short":  {0x01},
		"truncated":  good[:len(good)-1],
		"trailing":   append(append([]byte{}, good...), 0x00),
		"huge count": {0x00, 0x00, 0xFF, 0xFF, 0xFF, 0xFF},
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := UnmarshalFinalSplit(data)
			assert.ErrorIs(t, err, ErrInvalidSplitData)
		})
	}
}

// --- ParseShare tests ---

func TestParseShare(t *testing.T) {
	tests := []struct {
		spec  string
		want  Share
		fixed uint32
	}{
		{"alice", Unfixed("alice"), 0},
		{"@bob", Unfixed("bob"), 0},
		{"carol:400", Fixed("carol", 400), 400},
		{" dave : 40% ", Fixed("dave", 400), 400},
		{"erin:12.5%", Fixed("erin", 125), 125},
		{"frank:0", Fixed("frank", 0), 0},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			got, err := ParseShare(tt.spec)
			require.NoError(t, err)
			assert.Equal(t, tt.want.Username, got.Username)
			assert.Equal(t, tt.want.IsFixed(), got.IsFixed())
			if got.IsFixed() {
				assert.Equal(t, tt.fixed, *got.Thousandths)
			}
		})
	}
}

func TestParseShare_Invalid(t *testing.T) {
	for _, spec := range []string{"", ":400", "a:", "a:-1", "a:x", "a:1.25%", "a:%"} {
		_, err := ParseShare(spec)
		assert.ErrorIs(t, err, ErrInvalidShareSpec, "spec %q", spec)
	}
}

func TestShareString_RoundTrip(t *testing.T) {
	shares, err := ParseShares([]string{"a", "b:250"})
	require.NoError(t, err)
	assert.Equal(t, "a", shares[0].String())
	assert.Equal(t, "b:250", shares[1].String())
}
