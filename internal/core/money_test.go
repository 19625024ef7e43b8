package core

import "testing"

func TestParseDecimalToCents(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half-up rounding
		{" 2.50 ", 250, true},
		{"-1", 0, false},
		{"0", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseDecimalToCents(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
		}
	}
}

func TestMoneyFloat(t *testing.T) {
	cases := map[int64]float64{
		1250: 12.5,
		1:    0.01,
		10:   0.1,
		0:    0,
	}
	for cents, want := range cases {
		if got := (Money{Cents: cents}).Float(); got != want {
			t.Errorf("Money{%d}.Float() = %v, want %v", cents, got, want)
		}
	}
}

func TestCentsFromFloat(t *testing.T) {
	cases := map[float64]int64{
		12.5:  1250,
		0.1:   10,
		19.99: 1999,
		1.005: 101,
	}
	for in, want := range cases {
		if got := CentsFromFloat(in); got != want {
			t.Errorf("CentsFromFloat(%v) = %d, want %d", in, got, want)
		}
	}
}
