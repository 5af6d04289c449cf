// Maze Generation Tests
//
// Copyright (c) 2023  Philip Kaludercic

package maze

import (
	"errors"
	"fmt"
	"testing"

	"go-pyrat"

	"github.com/stretchr/testify/require"
)

func TestConnected(t *testing.T) {
	for _, size := range [][2]int{{1, 2}, {2, 1}, {5, 5}, {15, 13}, {31, 29}, {1, 40}} {
		for seed := uint64(0); seed < 20; seed++ {
			p := Defaults()
			p.Width, p.Height = size[0], size[1]
			p.WallPercentage = 100
			p.Cheese = 1
			p.Start = StartCenter
			p.Seeds = Derive(seed)

			t.Run(fmt.Sprintf("%dx%d/%d", size[0], size[1], seed), func(t *testing.T) {
				s, err := Generate(p)
				require.NoError(t, err)
				require.True(t, s.Maze.Connected())
				require.Equal(t, p.Width, s.Maze.Width())
				require.Equal(t, p.Height, s.Maze.Height())
			})
		}
	}
}

func TestFullWallsIsTree(t *testing.T) {
	p := Defaults()
	p.WallPercentage = 100
	p.MudPercentage = 0
	p.Seeds = Derive(7)

	s, err := Generate(p)
	require.NoError(t, err)

	var n int
	s.Maze.Passages(func(a, b pyrat.Cell, w uint) { n++ })
	require.Equal(t, p.Width*p.Height-1, n)
}

func TestNoWallsIsOpenGrid(t *testing.T) {
	p := Defaults()
	p.Width, p.Height = 5, 5
	p.WallPercentage = 0
	p.MudPercentage = 0
	p.Cheese = 3

	s, err := Generate(p)
	require.NoError(t, err)
	require.True(t, s.Maze.Equal(pyrat.NewBuilder(5, 5).Fill(pyrat.Open).Build()))
}

func TestDeterministic(t *testing.T) {
	for seed := uint64(0); seed < 10; seed++ {
		p := Defaults()
		p.Start = StartRandom
		p.Seeds = Derive(seed)

		a, err := Generate(p)
		require.NoError(t, err)
		b, err := Generate(p)
		require.NoError(t, err)

		require.True(t, a.Maze.Equal(b.Maze))
		require.Equal(t, a.Cheese, b.Cheese)
		require.Equal(t, a.Starts, b.Starts)
	}

	p := Defaults()
	p.Seeds = Derive(1)
	a, err := Generate(p)
	require.NoError(t, err)
	p.Seeds = Derive(2)
	b, err := Generate(p)
	require.NoError(t, err)
	require.False(t, a.Maze.Equal(b.Maze))
}

func TestIndependentStreams(t *testing.T) {
	p := Defaults()
	p.Seeds = pyrat.Seeds{Maze: 1, Cheese: 1}
	a, err := Generate(p)
	require.NoError(t, err)

	p.Seeds.Cheese = 2
	b, err := Generate(p)
	require.NoError(t, err)

	require.True(t, a.Maze.Equal(b.Maze))
	require.NotEqual(t, a.Cheese, b.Cheese)
}

func TestMud(t *testing.T) {
	p := Defaults()
	p.MudPercentage = 100
	p.MudRange = [2]uint{3, 5}
	p.Seeds = Derive(3)

	s, err := Generate(p)
	require.NoError(t, err)
	s.Maze.Passages(func(a, b pyrat.Cell, w uint) {
		require.GreaterOrEqual(t, w, uint(3))
		require.LessOrEqual(t, w, uint(5))
	})

	p.MudRange = [2]uint{2, MaxMud}
	s, err = Generate(p)
	require.NoError(t, err)
	s.Maze.Passages(func(a, b pyrat.Cell, w uint) {
		require.GreaterOrEqual(t, w, uint(2))
		require.LessOrEqual(t, w, uint(MaxMud))
	})

	p.MudPercentage = 0
	s, err = Generate(p)
	require.NoError(t, err)
	s.Maze.Passages(func(a, b pyrat.Cell, w uint) {
		require.Equal(t, pyrat.Open, w)
	})
}

func TestCheesePlacement(t *testing.T) {
	p := Defaults()
	p.Width, p.Height = 3, 3
	p.Cheese = 7
	p.Seeds = Derive(11)

	s, err := Generate(p)
	require.NoError(t, err)
	require.Len(t, s.Cheese, 7)

	seen := make(map[pyrat.Cell]bool)
	for _, c := range s.Cheese {
		require.True(t, s.Maze.Contains(c))
		require.NotEqual(t, s.Starts[0], c)
		require.NotEqual(t, s.Starts[1], c)
		require.False(t, seen[c])
		seen[c] = true
	}
}

func TestStarts(t *testing.T) {
	p := Defaults()
	p.Width, p.Height = 5, 5
	p.Cheese = 1

	for i, test := range []struct {
		start Start
		check func(s [2]pyrat.Cell)
	}{
		{StartCorners, func(s [2]pyrat.Cell) {
			require.Equal(t, [2]pyrat.Cell{{Row: 0, Col: 0}, {Row: 4, Col: 4}}, s)
		}},
		{StartCenter, func(s [2]pyrat.Cell) {
			require.Equal(t, [2]pyrat.Cell{{Row: 2, Col: 2}, {Row: 2, Col: 2}}, s)
		}},
		{StartSame, func(s [2]pyrat.Cell) {
			require.Equal(t, s[0], s[1])
		}},
		{StartRandom, func(s [2]pyrat.Cell) {
			require.NotEqual(t, s[0], s[1])
		}},
	} {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			p.Start = test.start
			s, err := Generate(p)
			require.NoError(t, err)
			test.check(s.Starts)
		})
	}
}

func TestInfeasible(t *testing.T) {
	for _, test := range []struct {
		field string
		edit  func(p *Params)
	}{
		{"width", func(p *Params) { p.Width = 0 }},
		{"height", func(p *Params) { p.Height = -3 }},
		{"width", func(p *Params) { p.Width, p.Height = 1, 1 }},
		{"wall_percentage", func(p *Params) { p.WallPercentage = 101 }},
		{"mud_percentage", func(p *Params) { p.MudPercentage = -1 }},
		{"mud_range", func(p *Params) { p.MudRange = [2]uint{1, 4} }},
		{"mud_range", func(p *Params) { p.MudRange = [2]uint{6, 4} }},
		{"mud_range", func(p *Params) { p.MudRange = [2]uint{2, MaxMud + 1} }},
		{"cheese", func(p *Params) { p.Cheese = 0 }},
		{"cheese", func(p *Params) { p.Width, p.Height, p.Cheese = 3, 3, 8 }},
		{"fixed_cheese", func(p *Params) { p.FixedCheese = []pyrat.Cell{{Row: 1, Col: 1}, {Row: 1, Col: 1}} }},
		{"fixed_cheese", func(p *Params) { p.FixedCheese = []pyrat.Cell{{Row: 0, Col: 0}} }},
		{"fixed_cheese", func(p *Params) { p.FixedCheese = []pyrat.Cell{{Row: -1, Col: 3}} }},
		{"starts", func(p *Params) {
			p.Start = StartFixed
			p.Starts = [2]pyrat.Cell{{Row: 0, Col: 0}, {Row: 20, Col: 0}}
		}},
		{"cell_percentage", func(p *Params) { p.CellPercentage = 0 }},
		{"cell_percentage", func(p *Params) { p.CellPercentage = 120 }},
		{"fixed_maze", func(p *Params) { p.FixedMaze = pyrat.NewBuilder(3, 3).Fill(pyrat.Open).Build() }},
		{"fixed_maze", func(p *Params) {
			p.Width, p.Height, p.Cheese = 3, 1, 1
			p.FixedMaze = pyrat.NewBuilder(3, 1).Build()
		}},
		{"starts", func(p *Params) {
			p.Width, p.Height, p.Cheese = 3, 2, 1
			p.FixedMaze = holey(t)
			p.Start = StartFixed
			p.Starts = [2]pyrat.Cell{{Row: 0, Col: 0}, {Row: 0, Col: 2}}
		}},
		{"fixed_cheese", func(p *Params) {
			p.Width, p.Height = 3, 2
			p.FixedMaze = holey(t)
			p.FixedCheese = []pyrat.Cell{{Row: 0, Col: 1}, {Row: 0, Col: 2}}
		}},
	} {
		t.Run(test.field, func(t *testing.T) {
			p := Defaults()
			test.edit(&p)
			_, err := Generate(p)

			var cerr *pyrat.ConfigurationError
			require.True(t, errors.As(err, &cerr), "got %v", err)
			require.Equal(t, test.field, cerr.Field)
		})
	}
}

func TestFixedCheese(t *testing.T) {
	p := Defaults()
	p.FixedCheese = []pyrat.Cell{{Row: 6, Col: 7}, {Row: 1, Col: 2}}

	s, err := Generate(p)
	require.NoError(t, err)
	require.Equal(t, p.FixedCheese, s.Cheese)
}

// The 3x2 grid without (0,2), with all remaining passages open.
func holey(t *testing.T) *pyrat.Maze {
	b := pyrat.NewBuilder(3, 2)
	require.NoError(t, b.Remove(pyrat.Cell{Row: 0, Col: 2}))
	return b.Fill(pyrat.Open).Build()
}

func TestCellPercentage(t *testing.T) {
	for _, percent := range []float64{5, 25, 50, 80, 99} {
		for seed := uint64(0); seed < 5; seed++ {
			p := Defaults()
			p.CellPercentage = percent
			p.Cheese = 1
			p.Start = StartRandom
			p.Seeds = Derive(seed)

			t.Run(fmt.Sprintf("%g/%d", percent, seed), func(t *testing.T) {
				s, err := Generate(p)
				require.NoError(t, err)

				require.Equal(t, share(percent, p.Width*p.Height), s.Maze.Cells())
				require.True(t, s.Maze.Connected())
				require.True(t, s.Maze.Contains(pyrat.Cell{Row: p.Height / 2, Col: p.Width / 2}))
				for _, c := range append(s.Cheese, s.Starts[:]...) {
					require.True(t, s.Maze.Contains(c), "%s", c)
				}
				s.Maze.Passages(func(a, b pyrat.Cell, w uint) {
					require.True(t, s.Maze.Contains(a))
					require.True(t, s.Maze.Contains(b))
				})
			})
		}
	}
}

func TestStartsOnPresentCells(t *testing.T) {
	p := Defaults()
	p.CellPercentage = 30
	p.Seeds = Derive(4)

	s, err := Generate(p)
	require.NoError(t, err)
	require.True(t, s.Maze.Contains(s.Starts[0]))
	require.True(t, s.Maze.Contains(s.Starts[1]))
	require.NotEqual(t, s.Starts[0], s.Starts[1])
}

func TestFixedMaze(t *testing.T) {
	m := holey(t)
	for seed := uint64(0); seed < 3; seed++ {
		p := Defaults()
		p.Width, p.Height = 3, 2
		p.Cheese = 3
		p.FixedMaze = m
		p.Seeds = Derive(seed)

		s, err := Generate(p)
		require.NoError(t, err)
		require.Same(t, m, s.Maze)
		require.Equal(t, [2]pyrat.Cell{{Row: 0, Col: 0}, {Row: 1, Col: 2}}, s.Starts)
		require.NotContains(t, s.Cheese, pyrat.Cell{Row: 0, Col: 2})
	}
}
