package utils

import "testing"

func TestAtoiDefault(t *testing.T) {
	cases := []struct {
		name string
		in   string
		def  int
		want int
	}{
		{"empty falls back", "", 20, 20},
		{"plain int", "1", 0, 1},
		{"multi digit", "100", 0, 100},
		{"negative", "-3", 1, -3},
		{"leading zeros", "007", 99, 7},
		{"letters fall back", "abc", 5, 5},
		{"no trimming", " 42", 7, 7},
		{"float falls back", "4.2", 7, 7},
		{"overflow falls back", "999999999999999999999999", -1, -1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := AtoiDefault(tc.in, tc.def); got != tc.want {
				t.Fatalf("AtoiDefault(%q, %d) = %d, want %d", tc.in, tc.def, got, tc.want)
			}
		})
	}
}
