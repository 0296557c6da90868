package coredata

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(t *testing.T, fields map[string]any) Record {
	t.Helper()
	r := make(Record, len(fields))
	for k, v := range fields {
		b, err := json.Marshal(v)
		require.NoError(t, err)
		r[k] = b
	}
	return r
}

func TestFullText(t *testing.T) {
	text, ok, err := FullText(record(t, map[string]any{"fullText": "hello"}))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "hello", text)

	_, ok, err = FullText(record(t, map[string]any{"fullText": nil}))
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = FullText(record(t, map[string]any{"id": "x"}))
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = FullText(record(t, map[string]any{"fullText": 12}))
	assert.Error(t, err)
}

func TestFullTextExtractor_NoFullText(t *testing.T) {
	r := record(t, map[string]any{"id": "x"})

	v, err := FullTextExtractor(nil)(r)
	require.NoError(t, err)
	assert.Equal(t, r, v)
}

func TestMetadataFullTextPairExtractor(t *testing.T) {
	r := record(t, map[string]any{
		"id":          "x",
		"title":       "T",
		"fullText":    "Visit   https://core.ac.uk NOW",
		"ft_file_num": 0,
	})

	opts := DefaultPreprocessOptions()
	v, err := MetadataFullTextPairExtractor(&opts)(r)
	require.NoError(t, err)

	pair := v.(MetadataFullText)
	assert.True(t, pair.HasFullText)
	assert.Equal(t, "visit *url* now", pair.FullText)
	assert.NotContains(t, pair.Metadata, "fullText")
	assert.Contains(t, pair.Metadata, "title")

	v, err = MetadataFullTextPairExtractor(nil)(record(t, map[string]any{"id": "y"}))
	require.NoError(t, err)
	assert.False(t, v.(MetadataFullText).HasFullText)
}

func TestCleanText(t *testing.T) {
	var opts PreprocessOptions
	assert.Equal(t, "a b\nc", CleanText("  a \t b\n\nc ", opts))
}

func TestParsePreprocessOptions(t *testing.T) {
	o, err := ParsePreprocessOptions(map[string]bool{"lowercase": false, "no_punct": true})
	require.NoError(t, err)
	assert.False(t, o.Lowercase)
	assert.True(t, o.NoPunct)

	_, err = ParsePreprocessOptions(map[string]bool{"stem": true})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfig)
}
