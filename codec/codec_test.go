package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByName(t *testing.T) {
	c, ok := ByName("json")
	require.True(t, ok)
	assert.Equal(t, "json", c.Name())

	c, ok = ByName("go-json")
	require.True(t, ok)
	assert.Equal(t, "go-json", c.Name())

	_, ok = ByName("msgpack")
	assert.False(t, ok)
}

func TestMarshalLine(t *testing.T) {
	for _, c := range []Codec{JSON{}, GoJSON{}} {
		t.Run(c.Name(), func(t *testing.T) {
			line, err := MarshalLine(c, map[string]any{"id": 1, "fullText": "a\nb"})
			require.NoError(t, err)
			assert.Equal(t, byte('\n'), line[len(line)-1])
			assert.NotContains(t, string(line[:len(line)-1]), "\n")

			var back map[string]any
			require.NoError(t, c.Unmarshal(line, &back))
			assert.Equal(t, "a\nb", back["fullText"])
		})
	}
}

func TestMustMarshal_NilUsesDefault(t *testing.T) {
	b := MustMarshal(nil, []int{1, 2})
	assert.Equal(t, "[1,2]", string(b))
}
