package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseAmount converts a catalog decimal price string such as "100.00" into
// minor units (e.g. fils or cents). At most two fractional digits are
// accepted; shorter fractions are padded. Negative amounts are rejected.
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("parse amount: empty string")
	}
	if strings.HasPrefix(s, "-") {
		return 0, fmt.Errorf("parse amount %q: must not be negative", s)
	}

	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}

	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}

	switch len(frac) {
	case 0:
		frac = "00"
	case 1:
		frac += "0"
	case 2:
	default:
		return 0, fmt.Errorf("parse amount %q: more than two decimal places", s)
	}

	cents, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}

	return units*100 + cents, nil
}
