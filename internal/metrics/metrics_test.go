package metrics

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCountersIncrementIndependently(t *testing.T) {
	c := &Counters{}
	c.IncBuild()
	c.IncBuildCacheHit()
	c.IncBuildCacheHit()
	c.IncSearchQuery()

	snap := c.Snapshot()
	require.EqualValues(t, 1, snap.BuildCount)
	require.EqualValues(t, 2, snap.BuildCacheHits)
	require.EqualValues(t, 0, snap.BuildCacheMisses)
	require.EqualValues(t, 1, snap.SearchQueries)
}
