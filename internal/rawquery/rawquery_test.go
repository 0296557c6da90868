package rawquery

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/coredata/internal/compress"
	"github.com/hupe1980/coredata/internal/table"
)

const page = `[
  {"id": 1, "oai": "oai:x:1", "fullText": "line one\nline two", "repositories": [{"id": "86", "name": "arXiv"}]},
  {"id": 2, "oai": null, "title": "T", "repositories": []}
]`

func TestDecodeBytes_Array(t *testing.T) {
	recs, err := DecodeBytes([]byte(page), nil)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, `1`, string(recs[0][table.FieldID]))
	assert.Equal(t, `"line one\nline two"`, string(recs[0][table.FieldFullText]))
	assert.Equal(t, `86`, string(recs[0][table.FieldRepoID]))
	assert.NotContains(t, recs[0], table.FieldRepositories)

	assert.NotContains(t, recs[1], table.FieldRepoID)
	assert.NotContains(t, recs[1], table.FieldRepositories)
}

func TestDecodeBytes_Envelope(t *testing.T) {
	recs, err := DecodeBytes([]byte(`{"totalHits": 2, "data": [{"id": "a"}, {"id": {"x": [1, 2]}}]}`), nil)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, `{"x":[1,2]}`, string(recs[1]["id"]))

	recs, err = DecodeBytes([]byte(`{"totalHits": 0, "data": []}`), nil)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestDecodeBytes_Shapes(t *testing.T) {
	for _, in := range []string{`{"totalHits": 3}`, `"text"`, `[1, 2]`} {
		_, err := DecodeBytes([]byte(in), nil)
		assert.ErrorIs(t, err, ErrUnexpectedShape, in)
	}

	recs, err := DecodeBytes([]byte("  \n"), nil)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestDecode_Compressed(t *testing.T) {
	for _, typ := range []compress.Type{compress.None, compress.LZ4, compress.ZSTD} {
		t.Run(typ.String(), func(t *testing.T) {
			data, err := compress.EncodeAll([]byte(page), typ)
			require.NoError(t, err)

			recs, err := Decode(bytes.NewReader(data), "cs_0_1.json"+typ.Ext(), nil)
			require.NoError(t, err)
			assert.Len(t, recs, 2)
		})
	}
}

func TestIsPageFile(t *testing.T) {
	assert.True(t, IsPageFile("cs_0_1.json"))
	assert.True(t, IsPageFile("cs_0_1.json.zst"))
	assert.False(t, IsPageFile("cs_0.lck"))
	assert.False(t, IsPageFile("notes.txt"))
}
