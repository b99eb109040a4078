package pdf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtensions(t *testing.T) {
	e := New()
	assert.Equal(t, []string{".pdf"}, e.Extensions())
}

func TestParseYear(t *testing.T) {
	tests := []struct {
		name string
		date string
		want int
	}{
		{"pdf date format", "D:20190412103000", 2019},
		{"plain year", "2021", 2021},
		{"with whitespace", "  D:20051101  ", 2005},
		{"empty", "", 0},
		{"too short", "D:19", 0},
		{"not numeric", "D:abcd0101", 0},
		{"implausible year", "0099", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseYear(tt.date))
		})
	}
}
