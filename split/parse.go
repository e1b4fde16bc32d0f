package split

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseShare parses "username" or "username:thousandths". A trailing '%'
// on the value is read as a percentage with one decimal, so "alice:40%"
// and "alice:400" are the same share.
func ParseShare(spec string) (Share, error) {
	name, value, hasValue := strings.Cut(strings.TrimSpace(spec), ":")
	name = NormalizeUsername(name)
	if name == "" {
		return Share{}, fmt.Errorf("%w: %q", ErrInvalidShareSpec, spec)
	}
	if !hasValue {
		return Unfixed(name), nil
	}

	value = strings.TrimSpace(value)
	if pct, ok := strings.CutSuffix(value, "%"); ok {
		t, err := parsePercent(pct)
		if err != nil {
			return Share{}, fmt.Errorf("%w: %q: %v", ErrInvalidShareSpec, spec, err)
		}
		return Fixed(name, t), nil
	}

	n, err := strconv.ParseUint(value, 10, 32)
	if err != nil {
		return Share{}, fmt.Errorf("%w: %q: %v", ErrInvalidShareSpec, spec, err)
	}
	return Fixed(name, uint32(n)), nil
}

// NormalizeUsername trims whitespace and a leading '@' from a username.
func NormalizeUsername(name string) string {
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(name), "@"))
}

// ParseShares parses each spec with ParseShare.
func ParseShares(specs []string) ([]Share, error) {
	shares := make([]Share, 0, len(specs))
	for _, spec := range specs {
		s, err := ParseShare(spec)
		if err != nil {
			return nil, err
		}
		shares = append(shares, s)
	}
	return shares, nil
}

// parsePercent converts "12" or "12.5" to thousandths.
func parsePercent(s string) (uint32, error) {
	whole, frac, _ := strings.Cut(s, ".")
	if len(frac) > 1 {
		return 0, fmt.Errorf("at most one decimal place")
	}
	w, err := strconv.ParseUint(whole, 10, 32)
	if err != nil {
		return 0, err
	}
	var f uint64
	if frac != "" {
		if f, err = strconv.ParseUint(frac, 10, 8); err != nil {
			return 0, err
		}
	}
	t := w*10 + f
	if t > 1<<32-1 {
		return 0, fmt.Errorf("percentage too large")
	}
	return uint32(t), nil
}

// String formats the share the way ParseShare reads it.
func (s Share) String() string {
	if !s.IsFixed() {
		return s.Username
	}
	return s.Username + ":" + strconv.FormatUint(uint64(*s.Thousandths), 10)
}
