package core

import (
	"strconv"
	"strings"
	"unicode"
)

// ParseAmount reads a whole-unit amount typed by an operator.
//
// A leading rupee sign or "Rs" is dropped, grouping separators (comma, space,
// underscore) are ignored and a trailing zero fraction such as "500.00" is
// accepted. Signs, non-zero fractions and
// zero are rejected with ErrInvalidAmount.
//
//	ParseAmount("1,500")  -> 1500, nil
//	ParseAmount("₹1,500") -> 1500, nil
//	ParseAmount("500.00") -> 500, nil
//	ParseAmount("12.50")  -> 0, ErrInvalidAmount
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"₹", "Rs.", "Rs"} {
		if rest, ok := strings.CutPrefix(s, prefix); ok {
			s = strings.TrimSpace(rest)
			break
		}
	}
	if s == "" || strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	s = strings.NewReplacer(",", "", " ", "", "_", "").Replace(s)

	intPart, fracPart, hasFrac := strings.Cut(s, ".")
	if hasFrac {
		if fracPart == "" || strings.Trim(fracPart, "0") != "" {
			return 0, ErrInvalidAmount
		}
	}
	if intPart == "" {
		return 0, ErrInvalidAmount
	}
	for _, r := range intPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	v, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil || v <= 0 {
		return 0, ErrInvalidAmount
	}
	return v, nil
}

// ValidateTopUp checks a top-up amount against the configured minimum.
func ValidateTopUp(amount, minimum int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if amount < minimum {
		return ErrAmountBelowMinimum
	}
	return nil
}

// ValidateDeduction checks the fields the backend requires for a deduction.
func ValidateDeduction(amount int64, deductor, description string) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(deductor) == "" {
		return ErrEmptyDeductor
	}
	if strings.TrimSpace(description) == "" {
		return ErrEmptyDescription
	}
	return nil
}

// FormatRupees renders an amount with the Indian digit grouping used on
// receipts and dashboards, e.g. 1234567 -> "₹12,34,567".
func FormatRupees(amount int64) string {
	neg := amount < 0
	if neg {
		amount = -amount
	}
	digits := strconv.FormatInt(amount, 10)

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	b.WriteString("₹")
	if len(digits) <= 3 {
		b.WriteString(digits)
		return b.String()
	}
	head, tail := digits[:len(digits)-3], digits[len(digits)-3:]
	// leading group may be one or two digits, the rest are pairs
	first := len(head) % 2
	if first == 0 {
		first = 2
	}
	b.WriteString(head[:first])
	for i := first; i < len(head); i += 2 {
		b.WriteByte(',')
		b.WriteString(head[i : i+2])
	}
	b.WriteByte(',')
	b.WriteString(tail)
	return b.String()
}
