package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeWhitespace(t *testing.T) {
	assert.Equal(t, "a b\nc", NormalizeWhitespace("  a \t b\n\n\r\nc  "))
	assert.Equal(t, "", NormalizeWhitespace(" \n\t "))
}

func TestSteps(t *testing.T) {
	tests := []struct {
		name string
		fn   func(string) string
		in   string
		want string
	}{
		{"accents", RemoveAccents, "café naïve", "cafe naive"},
		{"transliterate", Transliterate, "Straße œuvre €5", "Strasse oeuvre €5"},
		{"fix unicode quotes and ligatures", FixUnicode, "“ﬁne”", `"fine"`},
		{"fix unicode width", FixUnicode, "ＡＢＣ１", "ABC1"},
		{"contractions", UnpackContractions, "I can't, won't, don't and we'll", "I can not, will not, do not and we will"},
		{"numbers", ReplaceNumbers, "in 2017 we had 1,000 papers and 3.5%", "in *NUMBER* we had *NUMBER* papers and *NUMBER*%"},
		{"punct", RemovePunct, "a,b.c", "a b c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.fn(tt.in))
		})
	}
}

func TestNormalize_Defaults(t *testing.T) {
	in := "Visit https://core.ac.uk/search or mail me@x.org. Call 555-123-4567!"
	assert.Equal(t, "visit *url* or mail *email*. call *phone*!", Normalize(in, DefaultOptions()))
}

func TestNormalize_AllOff(t *testing.T) {
	in := "Keep 42 AS-IS"
	assert.Equal(t, in, Normalize(in, Options{}))
}

func TestNormalize_Currency(t *testing.T) {
	got := Normalize("costs $5", Options{NoCurrencySymbols: true})
	assert.Equal(t, "costs *CUR*5", got)
}

func TestParseOptions(t *testing.T) {
	o, err := ParseOptions(map[string]bool{"lowercase": true, "no_punct": true})
	require.NoError(t, err)
	assert.Equal(t, Options{Lowercase: true, NoPunct: true}, o)

	_, err = ParseOptions(map[string]bool{"no_emojis": true})
	assert.ErrorIs(t, err, ErrUnknownOption)

	round, err := ParseOptions(DefaultOptions().Map())
	require.NoError(t, err)
	assert.Equal(t, DefaultOptions(), round)
}
