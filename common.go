// Common Interfaces and constants
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
	"context"
	"fmt"
	"strings"
)

type (
	Side    uint8
	Status  uint8
	Reason  uint8
	Outcome uint8
	Move    uint8
)

const (
	// Both players, usable as array indices
	Player1 Side = iota
	Player2
)

// Sides lists both players in index order.
var Sides = [2]Side{Player1, Player2}

const (
	Running Status = iota
	Finished
)

const (
	// Reasons a game may end for
	NoReason Reason = iota
	CheeseExhausted
	Decided
	TurnLimit
)

const (
	Ongoing Outcome = iota
	Player1Won
	Player2Won
	Draw
)

const (
	Stay Move = iota
	Up
	Down
	Left
	Right
)

// Moves lists every valid move.
var Moves = [...]Move{Stay, Up, Down, Left, Right}

func (s Side) String() string {
	switch s {
	case Player1:
		return "Player 1"
	case Player2:
		return "Player 2"
	}
	panic(fmt.Sprintf("Illegal side: %d", s))
}

// Other returns the opponent of s.
func (s Side) Other() Side {
	return 1 - s
}

func (s Status) String() string {
	switch s {
	case Running:
		return "Running"
	case Finished:
		return "Finished"
	}
	panic(fmt.Sprintf("Illegal status: %d", s))
}

func (r Reason) String() string {
	switch r {
	case NoReason:
		return "None"
	case CheeseExhausted:
		return "CheeseExhausted"
	case Decided:
		return "Decided"
	case TurnLimit:
		return "TurnLimit"
	}
	panic(fmt.Sprintf("Illegal reason: %d", r))
}

func (o Outcome) String() string {
	switch o {
	case Ongoing:
		return "Ongoing"
	case Player1Won:
		return "Player1Won"
	case Player2Won:
		return "Player2Won"
	case Draw:
		return "Draw"
	}
	panic(fmt.Sprintf("Illegal outcome: %d", o))
}

// Winner returns the winning side, if there is one.
func (o Outcome) Winner() (Side, bool) {
	switch o {
	case Player1Won:
		return Player1, true
	case Player2Won:
		return Player2, true
	}
	return 0, false
}

// Valid reports whether m is one of the five moves.
func (m Move) Valid() bool {
	return m <= Right
}

func (m Move) String() string {
	switch m {
	case Stay:
		return "stay"
	case Up:
		return "up"
	case Down:
		return "down"
	case Left:
		return "left"
	case Right:
		return "right"
	}
	return fmt.Sprintf("move(%d)", uint8(m))
}

// ParseMove accepts the names returned by String and the compass
// names used by older player programs.
func ParseMove(s string) (Move, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "stay", "nothing", "none":
		return Stay, nil
	case "up", "north":
		return Up, nil
	case "down", "south":
		return Down, nil
	case "left", "west":
		return Left, nil
	case "right", "east":
		return Right, nil
	}
	return Stay, fmt.Errorf("unknown move %q", s)
}

func (m Move) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("illegal move: %d", uint8(m))
	}
	return []byte(m.String()), nil
}

func (m *Move) UnmarshalText(text []byte) (err error) {
	*m, err = ParseMove(string(text))
	return
}

// Cell addresses a square of the maze.  Row 0 is at the top.
type Cell struct {
	Row int `json:"row" toml:"row"`
	Col int `json:"col" toml:"col"`
}

func (c Cell) String() string {
	return fmt.Sprintf("(%d,%d)", c.Row, c.Col)
}

// Apply returns the neighbour of c in direction m, ignoring walls
// and the borders of the maze.
func (c Cell) Apply(m Move) Cell {
	switch m {
	case Up:
		c.Row--
	case Down:
		c.Row++
	case Left:
		c.Col--
	case Right:
		c.Col++
	}
	return c
}

// Agent is the decision function of a player.  It is called once per
// turn (unless the player is stuck in mud) with a private copy of the
// game state.  Implementations should return before CTX is done:
// an agent that ignores CTX and never returns cannot be stopped, and
// its goroutine lives until the process exits.  Untrusted code should
// therefore be run through the isol package.
type Agent interface {
	Decide(ctx context.Context, me Side, s *Snapshot) (Move, error)
}

// DecisionFunc adapts an ordinary function to the Agent interface.
type DecisionFunc func(ctx context.Context, me Side, s *Snapshot) (Move, error)

func (f DecisionFunc) Decide(ctx context.Context, me Side, s *Snapshot) (Move, error) {
	return f(ctx, me, s)
}

// Preparer is implemented by agents that want to analyse the maze
// before the first turn.
type Preparer interface {
	Prepare(ctx context.Context, me Side, s *Snapshot) error
}

// Finisher is implemented by agents that want to be notified of the
// end of a game.
type Finisher interface {
	Finish(ctx context.Context, me Side, s *Snapshot, sum *Summary) error
}

// Killer is implemented by agents that can be forcibly terminated,
// e.g. because they run in a separate process.  Once Kill has been
// called, the agent is not asked to decide again.  Only agents that
// implement Killer are bounded by the hard limit of a turn.
type Killer interface {
	Kill() error
}
