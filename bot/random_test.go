// Random Player Tests
//
// Copyright (c) 2023  Philip Kaludercic

package bot

import (
	"context"
	"testing"

	"go-pyrat"

	"github.com/stretchr/testify/require"
)

func TestRandom(t *testing.T) {
	b := pyrat.NewBuilder(3, 1)
	require.NoError(t, b.Set(pyrat.Cell{Row: 0, Col: 0}, pyrat.Cell{Row: 0, Col: 1}, pyrat.Open))
	require.NoError(t, b.Set(pyrat.Cell{Row: 0, Col: 1}, pyrat.Cell{Row: 0, Col: 2}, 3))
	s := &pyrat.Snapshot{
		Maze:      b.Build(),
		Positions: [2]pyrat.Cell{{Row: 0, Col: 0}, {Row: 0, Col: 1}},
	}

	var (
		a, c = Random(42), Random(42)
		ctx  = context.Background()
		seen = make(map[pyrat.Move]int)
	)
	for i := 0; i < 100; i++ {
		m, err := a.Decide(ctx, pyrat.Player2, s)
		require.NoError(t, err)
		seen[m]++

		// Equal seeds make equal choices
		n, err := c.Decide(ctx, pyrat.Player2, s)
		require.NoError(t, err)
		require.Equal(t, m, n)

		m, err = Random(uint64(i)).Decide(ctx, pyrat.Player1, s)
		require.NoError(t, err)
		require.Equal(t, pyrat.Right, m)
	}
	require.Len(t, seen, 2)
	require.Positive(t, seen[pyrat.Left])
	require.Positive(t, seen[pyrat.Right])
}

func TestRandomTrapped(t *testing.T) {
	s := &pyrat.Snapshot{Maze: pyrat.NewBuilder(1, 1).Build()}
	m, err := Random(0).Decide(context.Background(), pyrat.Player1, s)
	require.NoError(t, err)
	require.Equal(t, pyrat.Stay, m)
}
