// Seeded maze generation
//
// Copyright (c) 2023  Philip Kaludercic
//
// This file is part of go-pyrat.
//
// go-pyrat is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License,
// version 3, as published by the Free Software Foundation.
//
// go-pyrat is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the GNU
// Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public
// License, version 3, along with go-pyrat. If not, see
// <http://www.gnu.org/licenses/>

package maze

import (
	"math"

	"go-pyrat"

	"golang.org/x/exp/rand"
)

// Setup is the initial configuration of a game.
type Setup struct {
	Maze   *pyrat.Maze
	Cheese []pyrat.Cell
	Starts [2]pyrat.Cell
	Seeds  pyrat.Seeds
}

// Derive splits a single seed into the seeds of the maze, cheese and
// player streams.
func Derive(seed uint64) pyrat.Seeds {
	r := rand.New(rand.NewSource(seed))
	return pyrat.Seeds{
		Maze:    r.Uint64(),
		Cheese:  r.Uint64(),
		Players: r.Uint64(),
	}
}

type edge struct{ a, b pyrat.Cell }

// Generate builds a maze, places the players and distributes the
// cheese.  The maze is always connected: a random spanning tree is
// never turned into walls.
func Generate(p Params) (*Setup, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	m := p.FixedMaze
	if m == nil {
		m = carve(&p, rand.New(rand.NewSource(p.Seeds.Maze)))
		if !m.Connected() {
			return nil, pyrat.Broken("generated maze is not connected")
		}
	}

	starts, err := place(&p, m, rand.New(rand.NewSource(p.Seeds.Players)))
	if err != nil {
		return nil, err
	}

	cheese, err := distribute(&p, m, starts, rand.New(rand.NewSource(p.Seeds.Cheese)))
	if err != nil {
		return nil, err
	}

	pyrat.Log.Debug().
		Int("width", p.Width).
		Int("height", p.Height).
		Int("cells", m.Cells()).
		Int("cheese", len(cheese)).
		Bool("fixed", p.FixedMaze != nil).
		Uint64("seed", p.Seeds.Maze).
		Msg("Generated maze")

	return &Setup{
		Maze:   m,
		Cheese: cheese,
		Starts: starts,
		Seeds:  p.Seeds,
	}, nil
}

// Return the grid-neighbours of cell I that are present, in a fixed
// order.
func neighbours(p *Params, present []bool, i int) []int {
	row, col := i/p.Width, i%p.Width
	next := make([]int, 0, 4)
	if row > 0 {
		next = append(next, i-p.Width)
	}
	if row+1 < p.Height {
		next = append(next, i+p.Width)
	}
	if col > 0 {
		next = append(next, i-1)
	}
	if col+1 < p.Width {
		next = append(next, i+1)
	}

	k := 0
	for _, j := range next {
		if present[j] {
			next[k] = j
			k++
		}
	}
	return next[:k]
}

// Grow the set of cells from the center of the grid by adding random
// cells next to it, until CellPercentage of the grid is covered.
func grow(p *Params, r *rand.Rand) []bool {
	n := p.Width * p.Height
	present := make([]bool, n)
	if p.CellPercentage >= 100 {
		for i := range present {
			present[i] = true
		}
		return present
	}

	want := share(p.CellPercentage, n)
	if want < 2 {
		want = 2
	}

	all := make([]bool, n)
	for i := range all {
		all[i] = true
	}
	frontier := []int{(p.Height/2)*p.Width + p.Width/2}
	for have := 0; have < want; {
		k := r.Intn(len(frontier))
		i := frontier[k]
		frontier[k] = frontier[len(frontier)-1]
		frontier = frontier[:len(frontier)-1]
		if present[i] {
			continue
		}
		present[i] = true
		have++
		for _, j := range neighbours(p, all, i) {
			if !present[j] {
				frontier = append(frontier, j)
			}
		}
	}
	return present
}

// Wilson's algorithm: a loop-erased random walk from every cell not
// yet in the tree.  Overwriting next[] while walking erases loops.
func spanningTree(p *Params, present []bool, r *rand.Rand) map[edge]struct{} {
	n := p.Width * p.Height
	var cells []int
	for i := 0; i < n; i++ {
		if present[i] {
			cells = append(cells, i)
		}
	}

	tree := make(map[edge]struct{}, len(cells)-1)
	in := make([]bool, n)
	next := make([]int, n)
	in[cells[r.Intn(len(cells))]] = true

	for _, i := range cells {
		u := i
		for !in[u] {
			nb := neighbours(p, present, u)
			next[u] = nb[r.Intn(len(nb))]
			u = next[u]
		}

		u = i
		for !in[u] {
			in[u] = true
			tree[makeEdge(p, u, next[u])] = struct{}{}
			u = next[u]
		}
	}

	return tree
}

func makeEdge(p *Params, i, j int) edge {
	if j < i {
		i, j = j, i
	}
	return edge{
		a: pyrat.Cell{Row: i / p.Width, Col: i % p.Width},
		b: pyrat.Cell{Row: j / p.Width, Col: j % p.Width},
	}
}

// Return the number of elements PERCENT of N amounts to, rounding up.
func share(percent float64, n int) int {
	k := int(math.Ceil(percent * float64(n) / 100))
	if k > n {
		k = n
	}
	return k
}

func carve(p *Params, r *rand.Rand) *pyrat.Maze {
	present := grow(p, r)
	tree := spanningTree(p, present, r)

	// All edges between present cells in row-major order
	var open, extra []edge
	for i := 0; i < p.Width*p.Height; i++ {
		if !present[i] {
			continue
		}
		for _, j := range neighbours(p, present, i) {
			if j < i {
				continue
			}
			e := makeEdge(p, i, j)
			if _, ok := tree[e]; ok {
				open = append(open, e)
			} else {
				extra = append(extra, e)
			}
		}
	}

	r.Shuffle(len(extra), func(i, j int) {
		extra[i], extra[j] = extra[j], extra[i]
	})
	open = append(open, extra[share(p.WallPercentage, len(extra)):]...)

	r.Shuffle(len(open), func(i, j int) {
		open[i], open[j] = open[j], open[i]
	})
	muddy := share(p.MudPercentage, len(open))

	b := pyrat.NewBuilder(p.Width, p.Height)
	for i, in := range present {
		if !in {
			if err := b.Remove(pyrat.Cell{Row: i / p.Width, Col: i % p.Width}); err != nil {
				panic(err)
			}
		}
	}
	for i, e := range open {
		w := pyrat.Open
		if i < muddy {
			lo, hi := p.MudRange[0], p.MudRange[1]
			w = lo + uint(r.Uint64n(uint64(hi-lo)+1))
		}
		if err := b.Set(e.a, e.b, w); err != nil {
			panic(err)
		}
	}

	return b.Build()
}

// Return the cell of M closest to C, preferring the first one in
// row-major order.
func nearest(m *pyrat.Maze, c pyrat.Cell) pyrat.Cell {
	best, dist := c, math.MaxInt
	for _, d := range m.Present() {
		if n := abs(d.Row-c.Row) + abs(d.Col-c.Col); n < dist {
			best, dist = d, n
		}
	}
	return best
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func place(p *Params, m *pyrat.Maze, r *rand.Rand) (s [2]pyrat.Cell, err error) {
	cells := m.Present()
	random := func() pyrat.Cell {
		return cells[r.Intn(len(cells))]
	}

	switch p.Start {
	case StartCorners:
		s[pyrat.Player1] = nearest(m, pyrat.Cell{})
		s[pyrat.Player2] = nearest(m, pyrat.Cell{Row: p.Height - 1, Col: p.Width - 1})
	case StartCenter:
		c := nearest(m, pyrat.Cell{Row: p.Height / 2, Col: p.Width / 2})
		s = [2]pyrat.Cell{c, c}
	case StartSame:
		c := random()
		s = [2]pyrat.Cell{c, c}
	case StartRandom:
		s[pyrat.Player1] = random()
		s[pyrat.Player2] = random()
		for s[pyrat.Player2] == s[pyrat.Player1] {
			s[pyrat.Player2] = random()
		}
	case StartFixed:
		for _, c := range p.Starts {
			if !m.Contains(c) {
				return s, pyrat.Misconfigured("starts", "%s is not part of the maze", c)
			}
		}
		s = p.Starts
	default:
		err = pyrat.Misconfigured("start", "unknown start policy %d", p.Start)
	}
	return
}

func distribute(p *Params, m *pyrat.Maze, starts [2]pyrat.Cell, r *rand.Rand) ([]pyrat.Cell, error) {
	if len(p.FixedCheese) > 0 {
		for _, c := range p.FixedCheese {
			if !m.Contains(c) {
				return nil, pyrat.Misconfigured("fixed_cheese",
					"%s is not part of the maze", c)
			}
			if c == starts[0] || c == starts[1] {
				return nil, pyrat.Misconfigured("fixed_cheese",
					"%s is a start cell", c)
			}
		}
		return append([]pyrat.Cell(nil), p.FixedCheese...), nil
	}

	free := make([]pyrat.Cell, 0, m.Size())
	for _, c := range m.Present() {
		if c != starts[0] && c != starts[1] {
			free = append(free, c)
		}
	}
	if p.Cheese > len(free) {
		return nil, pyrat.Misconfigured("cheese",
			"%d pieces do not fit on %d free cells", p.Cheese, len(free))
	}

	r.Shuffle(len(free), func(i, j int) {
		free[i], free[j] = free[j], free[i]
	})
	return free[:p.Cheese], nil
}
