package lahc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHistory(t *testing.T) {
	h, err := NewHistory(4, 7.5)
	require.NoError(t, err)
	assert.Equal(t, 4, h.Len())
	assert.Equal(t, []float64{7.5, 7.5, 7.5, 7.5}, h.Snapshot())
}

func TestNewHistory_InvalidLength(t *testing.T) {
	for _, length := range []int{0, -1} {
		_, err := NewHistory(length, 1)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrConfiguration)
	}
}

func TestHistory_CyclicIndexing(t *testing.T) {
	h, err := NewHistory(3, 0)
	require.NoError(t, err)

	h.Set(4, 9) // slot 1
	assert.Equal(t, []float64{0, 9, 0}, h.Snapshot())
	assert.Equal(t, 9.0, h.Get(1))
	assert.Equal(t, 9.0, h.Get(7))
	assert.Equal(t, 2, h.Index(-1))
}

func TestHistory_SnapshotIsIndependent(t *testing.T) {
	h, err := NewHistory(2, 1)
	require.NoError(t, err)

	snap := h.Snapshot()
	snap[0] = 42
	assert.Equal(t, 1.0, h.Get(0))
}
