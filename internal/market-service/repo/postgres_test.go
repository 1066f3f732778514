package repo

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestFitsOddsColumn(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"1.85", true},
		{"1.2345", true},
		{"1.50000", true},
		{"1.23456", false},
		{"99999999.9999", true},
		{"100000000", false},
	}
	for _, tc := range cases {
		if got := FitsOddsColumn(decimal.RequireFromString(tc.in)); got != tc.want {
			t.Fatalf("FitsOddsColumn(%s) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
