package validators

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestCleanText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		max   int
		want  string
	}{
		{name: "trims", input: "  wrong size \n", max: 50, want: "wrong size"},
		{name: "drops control characters", input: "too\x00 small\x07", max: 50, want: "too small"},
		{name: "keeps inner newline", input: "line one\nline two", max: 50, want: "line one\nline two"},
		{name: "counts runes not bytes", input: "गलत साइज़", max: 3, want: "गलत"},
		{name: "no limit", input: "colour faded", max: 0, want: "colour faded"},
		{name: "drops invalid utf8", input: "bad\xffbyte", max: 50, want: "badbyte"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := CleanText(tc.input, tc.max)
			assert.Equal(t, tc.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}

func TestCleanTextNeverSplitsRune(t *testing.T) {
	got := CleanText("ééééé", 2)
	assert.Equal(t, "éé", got)
}
