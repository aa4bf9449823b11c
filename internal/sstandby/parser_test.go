package sstandby

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"quorum form returns empty", `ANY 2 (host_a, host_b, host_c)`, nil},
		{"quorum form case-insensitive", `any 2 (host_a, host_b)`, nil},
		{"first form explicit", `FIRST 2 (host_a, host_b, host_c)`, []string{"host_a", "host_b"}},
		{"first form implicit", `2 (host_a, host_b, host_c)`, []string{"host_a", "host_b"}},
		{"bare single name", `host_solo`, []string{"host_solo"}},
		{"empty input", ``, nil},
		{"count exceeds name list", `FIRST 5 (host_a, host_b)`, []string{"host_a", "host_b"}},
		{"zero count", `FIRST 0 (host_a, host_b)`, nil},
		{"non-numeric count yields zero", `FIRST (host_a, host_b)`, nil},
		{"quotes are separators not quoting", `FIRST 1 ("host, a", host_b)`, []string{"host"}},
		{"collapsed separators", `FIRST   2  (  host_a ,, host_b  )`, []string{"host_a", "host_b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.raw)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseIsPure(t *testing.T) {
	raw := `FIRST 2 (host_a, host_b, host_c)`
	first := Parse(raw)
	second := Parse(raw)
	assert.Equal(t, first, second)
}
