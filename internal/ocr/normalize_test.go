package ocr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Empty", "", ""},
		{"CRLF", "a\r\nb\rc", "a\nb\nc"},
		{"Tabs and spaces", "N gene\t\tDetected    23.8", "N gene Detected 23.8"},
		{"Blank line runs", "a\n\n\n\n\nb", "a\n\nb"},
		{"Whitespace-only lines collapse", "a\n   \n \n\nb", "a\n\nb"},
		{"Trailing spaces", "a   \nb ", "a\nb"},
		{"Form feed page break", "page one\fpage two", "page one\npage two"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.input))
		})
	}
}
