package units

import (
	"errors"
	"math/big"
	"testing"

	silerrors "hooliganhorde/core/errors"
)

func TestParse(t *testing.T) {
	cases := []struct {
		raw      string
		decimals uint8
		want     int64
	}{
		{"1", 6, 1_000_000},
		{" 12.5 ", 6, 12_500_000},
		{"0.000001", 6, 1},
		{"0", 18, 0},
		{"3.10", 2, 310},
	}
	for _, tc := range cases {
		got, err := Parse(tc.raw, tc.decimals)
		if err != nil {
			t.Fatalf("parse %q: %v", tc.raw, err)
		}
		if got.Cmp(big.NewInt(tc.want)) != 0 {
			t.Fatalf("parse %q: got %s want %d", tc.raw, got, tc.want)
		}
	}
}

func TestParseRejects(t *testing.T) {
	for _, raw := range []string{"", "abc", "-1", "0.0000001"} {
		if _, err := Parse(raw, 6); !errors.Is(err, silerrors.ErrInvalidAmount) {
			t.Fatalf("parse %q: expected ErrInvalidAmount, got %v", raw, err)
		}
	}
}

func TestFormat(t *testing.T) {
	if got := Format(big.NewInt(12_500_000), 6); got != "12.5" {
		t.Fatalf("unexpected format %q", got)
	}
	if got := Horde(big.NewInt(20_000_000)); got != "0.002" {
		t.Fatalf("unexpected horde format %q", got)
	}
	if got := BDV(nil); got != "0" {
		t.Fatalf("unexpected nil format %q", got)
	}
	if got := Prospects(big.NewInt(2_000_000)); got != "2" {
		t.Fatalf("unexpected prospects format %q", got)
	}
}
