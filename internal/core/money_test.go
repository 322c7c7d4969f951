package core

import (
	"errors"
	"testing"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"500", 500, true},
		{" 1000 ", 1000, true},
		{"1,500", 1500, true},
		{"1,00,000", 100000, true},
		{"₹1,500", 1500, true},
		{"₹ 750", 750, true},
		{"Rs. 2,000", 2000, true},
		{"₹", 0, false},
		{"₹-5", 0, false},
		{"1,500₹", 0, false},
		{"500.00", 500, true},
		{"12.50", 0, false},
		{"-1", 0, false},
		{"+5", 0, false},
		{"0", 0, false},
		{"abc", 0, false},
		{"5.", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else if !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("%q expected ErrInvalidAmount, got %v", tc.in, err)
		}
	}
}

func TestValidateTopUp(t *testing.T) {
	if err := ValidateTopUp(500, 500); err != nil {
		t.Fatalf("expected ok at minimum, got %v", err)
	}
	if err := ValidateTopUp(499, 500); !errors.Is(err, ErrAmountBelowMinimum) {
		t.Fatalf("expected ErrAmountBelowMinimum, got %v", err)
	}
	if err := ValidateTopUp(0, 500); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestValidateDeduction(t *testing.T) {
	cases := []struct {
		name        string
		amount      int64
		deductor    string
		description string
		want        error
	}{
		{"ok", 100, "anita", "snacks", nil},
		{"zero amount", 0, "anita", "snacks", ErrInvalidAmount},
		{"no deductor", 100, "  ", "snacks", ErrEmptyDeductor},
		{"no description", 100, "anita", "", ErrEmptyDescription},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateDeduction(tc.amount, tc.deductor, tc.description)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestFormatRupees(t *testing.T) {
	cases := map[int64]string{
		0:       "₹0",
		999:     "₹999",
		1000:    "₹1,000",
		12345:   "₹12,345",
		100000:  "₹1,00,000",
		1234567: "₹12,34,567",
		-2500:   "-₹2,500",
	}
	for in, want := range cases {
		if got := FormatRupees(in); got != want {
			t.Errorf("FormatRupees(%d) = %q, want %q", in, got, want)
		}
	}
}
