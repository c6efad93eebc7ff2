package utils

import "testing"

func TestParseID(t *testing.T) {
	cases := []struct {
		s      string
		want   int64
		wantOK bool
	}{
		// empty -> not ok
		{"", 0, false},
		{"   ", 0, false},
		// valid ids
		{"42", 42, true},
		{" 7 ", 7, true},
		{"0012", 12, true},
		// non-positive -> not ok
		{"0", 0, false},
		{"-13", 0, false},
		// malformed
		{"x", 0, false},
		{"4.2", 0, false},
		// overflow
		{"999999999999999999999999", 0, false},
	}

	for _, tc := range cases {
		got, ok := ParseID(tc.s)
		if got != tc.want || ok != tc.wantOK {
			t.Fatalf("ParseID(%q) = (%d, %v); want (%d, %v)", tc.s, got, ok, tc.want, tc.wantOK)
		}
	}
}
