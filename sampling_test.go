package tablediff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampleSizeNeverExceedsPopulation(t *testing.T) {
	sp := SamplingPlanner{Confidence: 0.95, Margin: 0.05}
	n, err := sp.SampleSize(100)
	require.NoError(t, err)
	assert.LessOrEqual(t, n, int64(100))
	assert.Greater(t, n, int64(0))
}

func TestSampleSizeGrowsWithTighterMargin(t *testing.T) {
	sp := SamplingPlanner{Confidence: 0.95, Margin: 0.1}
	loose, err := sp.SampleSize(1_000_000)
	require.NoError(t, err)

	sp.Margin = 0.01
	tight, err := sp.SampleSize(1_000_000)
	require.NoError(t, err)

	assert.Greater(t, tight, loose)
}

func TestSampleSizeRejectsUnknownConfidence(t *testing.T) {
	sp := SamplingPlanner{Confidence: 0.5, Margin: 0.05}
	_, err := sp.SampleSize(1000)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestSampleSizeRejectsInvalidMargin(t *testing.T) {
	sp := SamplingPlanner{Confidence: 0.95, Margin: 0}
	_, err := sp.SampleSize(1000)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestConfidenceIntervalShrinksWithLargerSample(t *testing.T) {
	sp := SamplingPlanner{Confidence: 0.95, Margin: 0.05}
	wide, err := sp.ConfidenceInterval(1_000_000, 100)
	require.NoError(t, err)
	narrow, err := sp.ConfidenceInterval(1_000_000, 10000)
	require.NoError(t, err)
	assert.Greater(t, wide, narrow)
}

func TestSampleSizeZeroPopulation(t *testing.T) {
	sp := SamplingPlanner{Confidence: 0.95, Margin: 0.05}
	n, err := sp.SampleSize(0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}
