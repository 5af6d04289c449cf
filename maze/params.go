// Maze generation parameters
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
	"fmt"
	"math"

	"go-pyrat"
)

// Start selects where the players begin.
type Start uint8

const (
	// Player 1 in the top left, player 2 in the bottom right corner
	StartCorners Start = iota
	// Both players in the middle of the maze
	StartCenter
	// Each player on its own random cell
	StartRandom
	// Both players on the same random cell
	StartSame
	// The cells given in Params.Starts
	StartFixed
)

var starts = [...]string{
	StartCorners: "corners",
	StartCenter:  "center",
	StartRandom:  "random",
	StartSame:    "same",
	StartFixed:   "fixed",
}

func (s Start) String() string {
	if int(s) < len(starts) {
		return starts[s]
	}
	return fmt.Sprintf("start(%d)", uint8(s))
}

func (s Start) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Start) UnmarshalText(text []byte) error {
	for i, name := range starts {
		if name == string(text) {
			*s = Start(i)
			return nil
		}
	}
	return pyrat.Misconfigured("start", "unknown start policy %q", text)
}

// Params describe a maze and the initial placement of cheese and
// players.  Two calls to Generate with equal Params return equal
// setups.
type Params struct {
	Width, Height int
	// Percentage of the grid cells that are part of the maze.  The
	// maze grows from the center of the grid until it is reached.
	CellPercentage float64
	// Percentage of the passages outside of the spanning tree that
	// are turned into walls
	WallPercentage float64
	// Percentage of the remaining passages that are turned into mud
	MudPercentage float64
	// Inclusive range of mud weights
	MudRange [2]uint
	// Number of cheese to place, unless FixedCheese is set
	Cheese      int
	FixedCheese []pyrat.Cell
	Start       Start
	Starts      [2]pyrat.Cell
	Seeds       pyrat.Seeds
	// A maze to use instead of generating one.  Its dimensions
	// must match Width and Height.
	FixedMaze *pyrat.Maze
}

// MaxMud is the heaviest mud a maze may contain.
const MaxMud = math.MaxInt32

// Defaults returns the parameters of a standard game.  The seeds are
// all zero.
func Defaults() Params {
	return Params{
		Width:          15,
		Height:         13,
		CellPercentage: 100,
		WallPercentage: 60,
		MudPercentage:  20,
		MudRange:       [2]uint{4, 9},
		Cheese:         21,
		Start:          StartCorners,
	}
}

// Validate checks everything that can be checked without generating
// the maze.
func (p *Params) Validate() error {
	switch {
	case p.Width < 1:
		return pyrat.Misconfigured("width", "must be positive, got %d", p.Width)
	case p.Height < 1:
		return pyrat.Misconfigured("height", "must be positive, got %d", p.Height)
	case p.Width*p.Height < 2:
		return pyrat.Misconfigured("width", "a maze needs at least two cells")
	case p.FixedMaze == nil && (p.CellPercentage <= 0 || p.CellPercentage > 100):
		return pyrat.Misconfigured("cell_percentage", "%g is not a positive percentage", p.CellPercentage)
	case p.WallPercentage < 0 || p.WallPercentage > 100:
		return pyrat.Misconfigured("wall_percentage", "%g is not a percentage", p.WallPercentage)
	case p.MudPercentage < 0 || p.MudPercentage > 100:
		return pyrat.Misconfigured("mud_percentage", "%g is not a percentage", p.MudPercentage)
	case p.MudPercentage > 0 && p.MudRange[0] < 2:
		return pyrat.Misconfigured("mud_range", "mud must weigh at least 2, got %d", p.MudRange[0])
	case p.MudPercentage > 0 && p.MudRange[0] > p.MudRange[1]:
		return pyrat.Misconfigured("mud_range", "empty range [%d, %d]", p.MudRange[0], p.MudRange[1])
	case p.MudPercentage > 0 && p.MudRange[1] > MaxMud:
		return pyrat.Misconfigured("mud_range", "mud must weigh at most %d, got %d", MaxMud, p.MudRange[1])
	case len(p.FixedCheese) == 0 && p.Cheese < 1:
		return pyrat.Misconfigured("cheese", "must be positive, got %d", p.Cheese)
	case p.Start > StartFixed:
		return pyrat.Misconfigured("start", "unknown start policy %d", p.Start)
	}

	if m := p.FixedMaze; m != nil {
		switch {
		case m.Width() != p.Width || m.Height() != p.Height:
			return pyrat.Misconfigured("fixed_maze", "maze is %dx%d, expected %dx%d",
				m.Width(), m.Height(), p.Width, p.Height)
		case m.Cells() < 2:
			return pyrat.Misconfigured("fixed_maze", "a maze needs at least two cells")
		case !m.Connected():
			return pyrat.Misconfigured("fixed_maze", "maze is not connected")
		}
	}

	if p.Start == StartFixed {
		for _, c := range p.Starts {
			if !p.contains(c) {
				return pyrat.Misconfigured("starts", "%s is outside of the maze", c)
			}
		}
	}

	seen := make(map[pyrat.Cell]struct{}, len(p.FixedCheese))
	for _, c := range p.FixedCheese {
		if !p.contains(c) {
			return pyrat.Misconfigured("fixed_cheese", "%s is outside of the maze", c)
		}
		if _, dup := seen[c]; dup {
			return pyrat.Misconfigured("fixed_cheese", "%s is listed twice", c)
		}
		seen[c] = struct{}{}
	}

	return nil
}

func (p *Params) contains(c pyrat.Cell) bool {
	return c.Row >= 0 && c.Row < p.Height && c.Col >= 0 && c.Col < p.Width
}
