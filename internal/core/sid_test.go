package core

import (
	"strings"
	"testing"
)

func TestValidSID(t *testing.T) {
	body := "114ff411c17045feb7e917c71278772a"
	cases := []struct {
		name string
		in   string
		want bool
	}{
		{"valid", "CH" + body, true},
		{"short body", "CH" + body[:30], false},
		{"long body", "CH" + body + "ab", false},
		{"uppercase body", "CH" + strings.ToUpper(body), false},
		{"lowercase prefix", "ch" + body, false},
		{"wrong prefix", "WS" + body, false},
		{"non alphanumeric", "CH" + body[:31] + "-", false},
		{"random name", "random-name", false},
		{"empty", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ValidSID(tc.in, ChannelPrefix); got != tc.want {
				t.Fatalf("ValidSID(%q) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}
