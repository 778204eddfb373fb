package scoring_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/auctionhub/auction-core/internal/scoring"
)

func TestScore(t *testing.T) {
	got := scoring.Score(1.0, 2.0, 0.5, 100.0, 1.0, 10.0)
	want := 1.0*100.0 + 2.0/(1.0+1.0) + 0.5*10.0
	assert.InDelta(t, want, got, 1e-9)
}

func TestScore_RewardsEarliness(t *testing.T) {
	early := scoring.Score(1.0, 2.0, 0.5, 100.0, 0.0, 10.0)
	late := scoring.Score(1.0, 2.0, 0.5, 100.0, 100.0, 10.0)
	assert.Greater(t, early, late)
}

func TestClampResponseTime(t *testing.T) {
	assert.Equal(t, 0.0, scoring.ClampResponseTime(-5))
	assert.Equal(t, 3.5, scoring.ClampResponseTime(3.5))
}

func TestScore_KnownValues(t *testing.T) {
	// alpha=0.5, beta=1000, gamma=2, weight=1.0
	assert.InDelta(t, 627.0, scoring.Score(0.5, 1000, 2, 250, 1, 1.0), 1e-9)
	assert.InDelta(t, 402.0, scoring.Score(0.5, 1000, 2, 300, 3, 1.0), 1e-9)
	assert.InDelta(t, 602.0, scoring.Score(0.5, 1000, 2, 200, 1, 1.0), 1e-9)
}

func TestScore_StrictlyIncreasingInPrice(t *testing.T) {
	low := scoring.Score(0.5, 1000, 2, 200, 5, 1.0)
	high := scoring.Score(0.5, 1000, 2, 201, 5, 1.0)
	assert.Greater(t, high, low)
}
