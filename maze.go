// Maze representation
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

package pyrat

import (
	"encoding/json"
	"fmt"
)

const (
	// Passage weights
	Wall uint = 0
	Open uint = 1
)

// Maze is a grid graph.  Every cell has a passage to the cell on its
// right and to the cell below it; a weight of 0 is a wall, 1 an open
// passage and anything above is mud that takes that many turns to
// cross.  Cells of the grid may be missing from the maze, and are
// then surrounded by walls.  A Maze is never modified after Build
// returns it.
type Maze struct {
	width, height int
	right, down   []uint
	// nil if every cell is present
	absent []bool
}

func (m *Maze) Width() int  { return m.width }
func (m *Maze) Height() int { return m.height }

// Size returns the number of cells of the grid, including those
// that are missing from the maze.
func (m *Maze) Size() int { return m.width * m.height }

// Cells returns the number of cells in the maze.
func (m *Maze) Cells() int {
	n := m.Size()
	for _, a := range m.absent {
		if a {
			n--
		}
	}
	return n
}

func (m *Maze) index(c Cell) int {
	return c.Row*m.width + c.Col
}

func (m *Maze) onGrid(c Cell) bool {
	return c.Row >= 0 && c.Row < m.height && c.Col >= 0 && c.Col < m.width
}

// Contains reports whether C lies inside the maze.
func (m *Maze) Contains(c Cell) bool {
	return m.onGrid(c) && (m.absent == nil || !m.absent[m.index(c)])
}

// Present returns the cells of the maze in row-major order.
func (m *Maze) Present() []Cell {
	cells := make([]Cell, 0, m.Size())
	for i := 0; i < m.Size(); i++ {
		if c := m.Cell(i); m.Contains(c) {
			cells = append(cells, c)
		}
	}
	return cells
}

// Cell returns the I'th cell in row-major order.
func (m *Maze) Cell(i int) Cell {
	return Cell{Row: i / m.width, Col: i % m.width}
}

// Weight returns the weight of the passage between A and B, or Wall
// if the cells are not adjacent.
func (m *Maze) Weight(a, b Cell) uint {
	if !m.Contains(a) || !m.Contains(b) {
		return Wall
	}
	switch {
	case a.Row == b.Row && a.Col+1 == b.Col:
		return m.right[m.index(a)]
	case a.Row == b.Row && b.Col+1 == a.Col:
		return m.right[m.index(b)]
	case a.Col == b.Col && a.Row+1 == b.Row:
		return m.down[m.index(a)]
	case a.Col == b.Col && b.Row+1 == a.Row:
		return m.down[m.index(b)]
	}
	return Wall
}

// Step is the only place where the legality of a move is decided.
// It returns the cell a player at FROM reaches by MOVE together with
// the weight of the passage.  Staying is always legal and has weight
// 0.  A move into a wall or out of the maze is not legal.
func (m *Maze) Step(from Cell, move Move) (Cell, uint, bool) {
	if !move.Valid() || !m.Contains(from) {
		return from, Wall, false
	}
	if move == Stay {
		return from, 0, true
	}

	to := from.Apply(move)
	w := m.Weight(from, to)
	if w == Wall {
		return from, Wall, false
	}
	return to, w, true
}

// Neighbours returns the cells reachable from C in one move, in the
// order of Moves.
func (m *Maze) Neighbours(c Cell) []Cell {
	var next []Cell
	for _, move := range Moves[1:] {
		if to, _, ok := m.Step(c, move); ok {
			next = append(next, to)
		}
	}
	return next
}

// Reachable returns the number of cells reachable from C.
func (m *Maze) Reachable(c Cell) int {
	if !m.Contains(c) {
		return 0
	}

	seen := make([]bool, m.Size())
	seen[m.index(c)] = true
	queue := []Cell{c}
	n := 1
	for len(queue) > 0 {
		c, queue = queue[0], queue[1:]
		for _, next := range m.Neighbours(c) {
			if i := m.index(next); !seen[i] {
				seen[i] = true
				queue = append(queue, next)
				n++
			}
		}
	}
	return n
}

// Connected reports whether every cell can be reached from every
// other cell.
func (m *Maze) Connected() bool {
	for i := 0; i < m.Size(); i++ {
		if c := m.Cell(i); m.Contains(c) {
			return m.Reachable(c) == m.Cells()
		}
	}
	return false
}

// Passages calls FN for every passage that is not a wall.
func (m *Maze) Passages(fn func(a, b Cell, w uint)) {
	for i := 0; i < m.Size(); i++ {
		c := m.Cell(i)
		if w := m.right[i]; w != Wall {
			fn(c, c.Apply(Right), w)
		}
		if w := m.down[i]; w != Wall {
			fn(c, c.Apply(Down), w)
		}
	}
}

// Equal reports whether M and O have the same shape and passages.
func (m *Maze) Equal(o *Maze) bool {
	if m == nil || o == nil {
		return m == o
	}
	if m.width != o.width || m.height != o.height {
		return false
	}
	for i := range m.right {
		if m.right[i] != o.right[i] || m.down[i] != o.down[i] {
			return false
		}
		if c := m.Cell(i); m.Contains(c) != o.Contains(c) {
			return false
		}
	}
	return true
}

type mazeJSON struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Right  []uint `json:"right"`
	Down   []uint `json:"down"`
	Holes  []Cell `json:"holes,omitempty"`
}

func (m *Maze) MarshalJSON() ([]byte, error) {
	raw := mazeJSON{
		Width:  m.width,
		Height: m.height,
		Right:  m.right,
		Down:   m.down,
	}
	for i, a := range m.absent {
		if a {
			raw.Holes = append(raw.Holes, m.Cell(i))
		}
	}
	return json.Marshal(raw)
}

func (m *Maze) UnmarshalJSON(data []byte) error {
	var raw mazeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	n := raw.Width * raw.Height
	if raw.Width < 1 || raw.Height < 1 || len(raw.Right) != n || len(raw.Down) != n {
		return fmt.Errorf("malformed maze of size %dx%d", raw.Width, raw.Height)
	}

	b := NewBuilder(raw.Width, raw.Height)
	for _, c := range raw.Holes {
		if err := b.Remove(c); err != nil {
			return err
		}
	}
	for i := 0; i < n; i++ {
		c := b.maze.Cell(i)
		if raw.Right[i] != Wall {
			if err := b.Set(c, c.Apply(Right), raw.Right[i]); err != nil {
				return err
			}
		}
		if raw.Down[i] != Wall {
			if err := b.Set(c, c.Apply(Down), raw.Down[i]); err != nil {
				return err
			}
		}
	}
	*m = *b.Build()
	return nil
}

// Builder assembles a Maze.  All passages start out as walls.
type Builder struct {
	maze *Maze
}

func NewBuilder(width, height int) *Builder {
	if width < 1 || height < 1 {
		panic(fmt.Sprintf("Illegal maze size %dx%d", width, height))
	}
	return &Builder{maze: &Maze{
		width:  width,
		height: height,
		right:  make([]uint, width*height),
		down:   make([]uint, width*height),
	}}
}

// Set assigns the weight of the passage between the adjacent cells A
// and B.
func (b *Builder) Set(a, c Cell, w uint) error {
	m := b.maze
	if !m.Contains(a) || !m.Contains(c) {
		return fmt.Errorf("passage %s-%s leaves the maze", a, c)
	}
	if c.Row < a.Row || c.Col < a.Col {
		a, c = c, a
	}
	switch {
	case a.Row == c.Row && a.Col+1 == c.Col:
		m.right[m.index(a)] = w
	case a.Col == c.Col && a.Row+1 == c.Row:
		m.down[m.index(a)] = w
	default:
		return fmt.Errorf("cells %s and %s are not adjacent", a, c)
	}
	return nil
}

// Fill sets every passage inside the maze to W.
func (b *Builder) Fill(w uint) *Builder {
	m := b.maze
	for i := 0; i < m.Size(); i++ {
		c := m.Cell(i)
		if !m.Contains(c) {
			continue
		}
		if m.Contains(c.Apply(Right)) {
			m.right[i] = w
		}
		if m.Contains(c.Apply(Down)) {
			m.down[i] = w
		}
	}
	return b
}

// Remove takes C out of the maze and walls it in.
func (b *Builder) Remove(c Cell) error {
	m := b.maze
	if !m.onGrid(c) {
		return fmt.Errorf("cell %s is not on the grid", c)
	}
	if m.absent == nil {
		m.absent = make([]bool, m.Size())
	}
	i := m.index(c)
	m.absent[i] = true
	m.right[i], m.down[i] = Wall, Wall
	if l := c.Apply(Left); m.onGrid(l) {
		m.right[m.index(l)] = Wall
	}
	if u := c.Apply(Up); m.onGrid(u) {
		m.down[m.index(u)] = Wall
	}
	return nil
}

// Build returns the maze.  The builder must not be used afterwards.
func (b *Builder) Build() *Maze {
	m := b.maze
	b.maze = nil
	return m
}
