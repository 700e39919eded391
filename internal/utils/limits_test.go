package utils

import "testing"

func TestClampInt(t *testing.T) {
	cases := []struct {
		in            string
		def, min, max int
		want          int
	}{
		{"", 10, 1, 50, 10},
		{"x", 10, 1, 50, 10},
		{"7", 10, 1, 50, 7},
		{"0", 10, 1, 50, 1},
		{"-3", 10, 1, 50, 1},
		{"500", 10, 1, 50, 50},
		{"500", 10, 1, 0, 500},
		{"", 80, 1, 50, 50},
	}
	for _, c := range cases {
		if got := ClampInt(c.in, c.def, c.min, c.max); got != c.want {
			t.Errorf("ClampInt(%q, %d, %d, %d) = %d, want %d", c.in, c.def, c.min, c.max, got, c.want)
		}
	}
}
