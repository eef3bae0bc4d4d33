package tablediff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChooseCheckpointsSingleDimension(t *testing.T) {
	bounds := KeyBounds{Min: Key{IntKey(0)}, Max: Key{IntKey(100)}}
	dc, err := ChooseCheckpoints(bounds, 10)
	require.NoError(t, err)
	require.Len(t, dc, 1)
	assert.Len(t, dc[0], 11) // n+1 checkpoints for n cells
	assert.Equal(t, IntKey(0), dc[0][0])
	assert.Equal(t, IntKey(100), dc[0][10])
}

func TestChooseCheckpointsClampsToIntegerSpan(t *testing.T) {
	bounds := KeyBounds{Min: Key{IntKey(0)}, Max: Key{IntKey(3)}}
	dc, err := ChooseCheckpoints(bounds, 100)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(dc[0]), 4) // cannot produce more cells than distinct integer values
}

func TestChooseCheckpointsCompositeKey(t *testing.T) {
	bounds := KeyBounds{
		Min: Key{IntKey(0), IntKey(0)},
		Max: Key{IntKey(100), IntKey(100)},
	}
	dc, err := ChooseCheckpoints(bounds, 100)
	require.NoError(t, err)
	require.Len(t, dc, 2)
	cells := MeshCells(dc)
	// Roughly n cells total across both dimensions (perDimensionCount rounds).
	assert.InDelta(t, 100, len(cells), 40)
}

func TestMeshCellsCoversWholeRange(t *testing.T) {
	bounds := KeyBounds{Min: Key{IntKey(0)}, Max: Key{IntKey(10)}}
	dc, err := ChooseCheckpoints(bounds, 5)
	require.NoError(t, err)
	cells := MeshCells(dc)
	require.Len(t, cells, 5)
	assert.Equal(t, IntKey(0), cells[0].Min[0])
	assert.Equal(t, IntKey(10), cells[len(cells)-1].Max[0])
}

func TestDegenerateMesh(t *testing.T) {
	bounds := KeyBounds{Min: Key{IntKey(5)}, Max: Key{IntKey(6)}}
	dc, err := ChooseCheckpoints(bounds, 10)
	require.NoError(t, err)
	assert.True(t, dc.Degenerate())
}

func TestHexPointAtFraction(t *testing.T) {
	lo, hi := StringKey("00000000"), StringKey("ffffffff")
	mid, err := pointAtFraction(lo, hi, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, KeyDomainString, mid.Domain)
	assert.Len(t, mid.S, 8)
}

func TestChooseCheckpointsRejectsInvalidBounds(t *testing.T) {
	bounds := KeyBounds{Min: Key{IntKey(10)}, Max: Key{IntKey(5)}}
	_, err := ChooseCheckpoints(bounds, 10)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}
