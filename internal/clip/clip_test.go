package clip

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory(t *testing.T) {
	var b Backend = NewMemory()

	text, err := b.ReadText()
	require.NoError(t, err)
	assert.Empty(t, text)

	require.NoError(t, b.WriteText("hello"))
	text, _ = b.ReadText()
	assert.Equal(t, "hello", text)

	require.NoError(t, b.WriteImage([]byte{0x89, 'P', 'N', 'G'}))
	img, err := b.ReadImage()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, img)
	text, _ = b.ReadText()
	assert.Empty(t, text, "writing an image replaces the text")

	m := b.(*Memory)
	m.Set("both", []byte{1})
	text, _ = b.ReadText()
	img, _ = b.ReadImage()
	assert.Equal(t, "both", text)
	assert.Equal(t, []byte{1}, img)
}
