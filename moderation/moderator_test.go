package moderation

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

const replacementChar = '*'

// The dictionary uses distinctive words to avoid partial collisions
// (e.g. "he" inside "The").
func TestModerator_Censor(t *testing.T) {
	req := require.New(t)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	dictionary := []string{"spamlord", "dox", "freecoins"}
	mod, err := NewModerator(dictionary, replacementChar, log)
	req.NoError(err)

	tests := []struct {
		name     string
		input    string
		expected string
		words    []string
	}{
		{
			name:     "Simple word and space preservation",
			input:    "The spamlord jam room",
			expected: "The ******** jam room",
			words:    []string{"spamlord"},
		},
		{
			name:     "Multiple occurrences and preserved spacing",
			input:    "dox dox dox",
			expected: "*** *** ***",
			words:    []string{"dox", "dox", "dox"},
		},
		{
			name: "Leet speak and internal punctuation",
			// s.p.4.m.l.0.r.d spans 15 original runes
			input:    "Room of s.p.4.m.l.0.r.d !",
			expected: "Room of *************** !",
			words:    []string{"spamlord"},
		},
		{
			name:     "Uppercase and extreme noise",
			input:    "D-O-X night with FREEC0INS",
			expected: "***** night with *********",
			words:    []string{"dox", "freecoins"},
		},
		{
			name:     "Accents and special characters (UTF-8)",
			input:    "Un été avec un spamlord",
			expected: "Un été avec un ********",
			words:    []string{"spamlord"},
		},
		{
			name:     "Word adjacent to trailing punctuation",
			input:    "no freecoins!",
			expected: "no *********!",
			words:    []string{"freecoins"},
		},
		{
			name:     "Nothing to censor",
			input:    "Friday-Night Funk Session",
			expected: "Friday-Night Funk Session",
			words:    nil,
		},
		{
			name:     "Empty string",
			input:    "",
			expected: "",
			words:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content, words := mod.Censor(tt.input)
			req.Equal(tt.expected, content, "test=%s,", tt.name)
			req.Equal(tt.words, words, "expected=%s,words=%s", tt.expected, words)
		})
	}
}

func TestModerator_CornerCases(t *testing.T) {
	req := require.New(t)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	// Given a dictionary polluted with entries that normalize to nothing
	dictionary := []string{"...", ",,,", "", "spamlord"}

	mod, err := NewModerator(dictionary, replacementChar, log)
	req.NoError(err)

	// Then the real word is still censored
	content, words := mod.Censor("The spamlord is back")
	req.Equal("The ******** is back", content)
	req.Equal([]string{"spamlord"}, words)

	// And plain punctuation passes through untouched
	content, words = mod.Censor("Hello ...")
	req.Equal("Hello ...", content)
	req.Nil(words)
}

func TestDefaultWords_EmbeddedListIsClean(t *testing.T) {
	req := require.New(t)

	words := DefaultWords()
	req.NotEmpty(words)
	for _, word := range words {
		req.NotEmpty(word)
		req.NotContains(word, "#")
		req.NotContains(word, " ")
	}
}
