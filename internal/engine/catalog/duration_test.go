package catalog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"PT4M13S", 4*time.Minute + 13*time.Second},
		{"PT2M", 2 * time.Minute},
		{"PT59S", 59 * time.Second},
		{"PT1H", time.Hour},
		{"PT1H2M3S", time.Hour + 2*time.Minute + 3*time.Second},
		{"P1DT2H", 26 * time.Hour},
		{"P0D", 0},
		{"PT0S", 0},
		{"", 0},
		{"garbage", 0},
		{"4:13", 0},
		{"-PT5M", 0},
		{"PT1H2X", 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseDuration(tt.in))
		})
	}
}
