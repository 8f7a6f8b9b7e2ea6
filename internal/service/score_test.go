package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestComputeScoreFIFOWithinPriority(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	first := ComputeScore(base, 0)
	second := ComputeScore(base.Add(time.Millisecond), 0)
	require.Less(t, first, second, "earlier arrival must score lower")
}

func TestComputeScorePriorityBeatsConcurrentArrivals(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	// Priority 1 arriving 5ms later still scores below a priority-0 request:
	// one level is worth a 10ms head start.
	low := ComputeScore(base, 0)
	high := ComputeScore(base.Add(5*time.Millisecond), 1)
	require.Less(t, high, low)
}

func TestComputeScorePriorityIsNotPreemption(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	// A priority-0 request more than 10ms older than a priority-1 request
	// keeps its place.
	old := ComputeScore(base, 0)
	boosted := ComputeScore(base.Add(15*time.Millisecond), 1)
	require.Less(t, old, boosted)
}

func TestComputeScoreMonotonicInPriority(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	prev := ComputeScore(now, 0)
	for p := 1; p <= 10; p++ {
		score := ComputeScore(now, p)
		require.Less(t, score, prev, "priority %d must score below priority %d", p, p-1)
		prev = score
	}
}
