// Game state and rule engine
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

package game

import (
	"sort"

	"go-pyrat"
)

// State is the single source of truth of a running game.  It is only
// modified by ApplyTurn and is not safe for concurrent use.
type State struct {
	maze    *pyrat.Maze
	rules   pyrat.Rules
	pos     [2]pyrat.Cell
	score   [2]float64
	mud     [2]pyrat.Mud
	cheese  map[pyrat.Cell]struct{}
	turn    int
	status  pyrat.Status
	reason  pyrat.Reason
	outcome pyrat.Outcome
}

// New creates the initial state of a game.
func New(m *pyrat.Maze, cheese []pyrat.Cell, starts [2]pyrat.Cell, rules pyrat.Rules) (*State, error) {
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	if m == nil {
		return nil, pyrat.Misconfigured("maze", "missing")
	}
	if !m.Connected() {
		return nil, pyrat.Broken("maze is not connected")
	}
	for _, c := range starts {
		if !m.Contains(c) {
			return nil, pyrat.Misconfigured("starts", "%s is outside of the maze", c)
		}
	}
	if rules.Sharing == pyrat.ExclusiveCells && starts[0] == starts[1] {
		return nil, pyrat.Misconfigured("starts",
			"players may not share %s with exclusive cells", starts[0])
	}
	if len(cheese) == 0 {
		return nil, pyrat.Misconfigured("cheese", "there is nothing to collect")
	}

	s := &State{
		maze:   m,
		rules:  rules,
		pos:    starts,
		cheese: make(map[pyrat.Cell]struct{}, len(cheese)),
	}
	for _, c := range cheese {
		if !m.Contains(c) {
			return nil, pyrat.Misconfigured("cheese", "%s is outside of the maze", c)
		}
		if c == starts[0] || c == starts[1] {
			return nil, pyrat.Misconfigured("cheese", "%s is a start cell", c)
		}
		if _, dup := s.cheese[c]; dup {
			return nil, pyrat.Misconfigured("cheese", "%s is listed twice", c)
		}
		s.cheese[c] = struct{}{}
	}

	return s, nil
}

func (s *State) Maze() *pyrat.Maze                   { return s.maze }
func (s *State) Rules() pyrat.Rules                  { return s.rules }
func (s *State) Position(side pyrat.Side) pyrat.Cell { return s.pos[side] }
func (s *State) Score(side pyrat.Side) float64       { return s.score[side] }
func (s *State) Mud(side pyrat.Side) pyrat.Mud       { return s.mud[side] }
func (s *State) Turn() int                           { return s.turn }
func (s *State) Status() pyrat.Status                { return s.status }
func (s *State) Reason() pyrat.Reason                { return s.reason }
func (s *State) Outcome() pyrat.Outcome              { return s.outcome }

// Cheese returns the remaining cheese in row-major order.
func (s *State) Cheese() []pyrat.Cell {
	cs := make([]pyrat.Cell, 0, len(s.cheese))
	for c := range s.cheese {
		cs = append(cs, c)
	}
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].Row != cs[j].Row {
			return cs[i].Row < cs[j].Row
		}
		return cs[i].Col < cs[j].Col
	})
	return cs
}

// Snapshot returns a copy of the state that shares nothing mutable
// with S.  Its Turn is the number of turns played so far.
func (s *State) Snapshot() *pyrat.Snapshot {
	return &pyrat.Snapshot{
		Maze:      s.maze,
		Turn:      s.turn,
		MaxTurns:  s.rules.MaxTurns,
		Positions: s.pos,
		Scores:    s.score,
		Mud:       s.mud,
		Cheese:    s.Cheese(),
	}
}

// Check the invariants that ApplyTurn relies on.
func (s *State) check() error {
	if s.status != pyrat.Running {
		return pyrat.Broken("turn applied to a %s game", s.status)
	}
	for i, c := range s.pos {
		if !s.maze.Contains(c) {
			return pyrat.Broken("%s is outside of the maze at %s", pyrat.Sides[i], c)
		}
		if m := s.mud[i]; m.Active() && s.maze.Weight(c, m.Target) == pyrat.Wall {
			return pyrat.Broken("%s is stuck in mud between %s and %s", pyrat.Sides[i], c, m.Target)
		}
	}
	if s.rules.Sharing == pyrat.ExclusiveCells && s.pos[0] == s.pos[1] {
		return pyrat.Broken("players share %s with exclusive cells", s.pos[0])
	}
	for c := range s.cheese {
		if !s.maze.Contains(c) {
			return pyrat.Broken("cheese outside of the maze at %s", c)
		}
	}
	return nil
}

// ApplyTurn moves both players simultaneously, collects cheese and
// checks whether the game is over.  Illegal moves are treated as
// Stay.  The only error is a *pyrat.InvariantError.
func (s *State) ApplyTurn(m1, m2 pyrat.Move) (*pyrat.TurnRecord, error) {
	if err := s.check(); err != nil {
		return nil, err
	}

	var (
		rec    = &pyrat.TurnRecord{Turn: s.turn + 1}
		origin = s.pos
		dest   = s.pos
		mud    = s.mud
		moved  [2]bool
	)

	// Compute the destination of both players before moving either.
	for i, m := range [2]pyrat.Move{m1, m2} {
		if mud[i].Active() {
			rec.Moves[i] = pyrat.Stay
			mud[i].Remaining--
			if !mud[i].Active() {
				dest[i] = mud[i].Target
				moved[i] = true
			}
			continue
		}

		to, w, ok := s.maze.Step(origin[i], m)
		if !ok {
			pyrat.Log.Debug().
				Stringer("side", pyrat.Sides[i]).
				Stringer("move", m).
				Msg("Downgrading illegal move")
			m, to, w = pyrat.Stay, origin[i], 0
		}
		rec.Moves[i] = m
		if w > pyrat.Open {
			mud[i] = pyrat.Mud{Target: to, Remaining: w - 1}
			continue
		}
		dest[i] = to
		moved[i] = to != origin[i]
	}

	if s.rules.Sharing == pyrat.ExclusiveCells && dest[0] == dest[1] {
		for i := range dest {
			if !moved[i] {
				continue
			}
			if s.mud[i].Active() {
				// Try to leave the mud again next turn
				mud[i] = pyrat.Mud{Target: dest[i], Remaining: 1}
			}
			dest[i] = origin[i]
		}
	}

	s.pos, s.mud = dest, mud
	s.collect(rec)
	s.turn++
	s.finish()

	rec.Positions = s.pos
	rec.Mud = s.mud
	rec.Scores = s.score
	rec.Remaining = len(s.cheese)
	rec.Status = s.status
	rec.Reason = s.reason
	rec.Outcome = s.outcome
	return rec, nil
}

// Collect the cheese under both players.
func (s *State) collect(rec *pyrat.TurnRecord) {
	for i, c := range s.pos {
		if _, ok := s.cheese[c]; !ok {
			continue
		}
		delete(s.cheese, c)

		if s.pos[0] != s.pos[1] {
			rec.Collected = append(rec.Collected, pyrat.Collection{
				Cell:  c,
				By:    []pyrat.Side{pyrat.Sides[i]},
				Value: 1,
			})
			rec.Gains[i] += 1
			continue
		}

		switch s.rules.Tie {
		case pyrat.TieShared:
			rec.Collected = append(rec.Collected, pyrat.Collection{
				Cell:  c,
				By:    []pyrat.Side{pyrat.Player1, pyrat.Player2},
				Value: 0.5,
			})
			rec.Gains[0] += 0.5
			rec.Gains[1] += 0.5
		case pyrat.TieFirst:
			rec.Collected = append(rec.Collected, pyrat.Collection{
				Cell:  c,
				By:    []pyrat.Side{pyrat.Player1},
				Value: 1,
			})
			rec.Gains[0] += 1
		case pyrat.TieDiscard:
			rec.Discarded = append(rec.Discarded, c)
		}
	}

	for i, g := range rec.Gains {
		s.score[i] += g
	}
}

// Decide whether the game has ended after the current turn.
func (s *State) finish() {
	switch {
	case len(s.cheese) == 0:
		s.reason = pyrat.CheeseExhausted
	case s.rules.StopWhenDecided && s.decided():
		s.reason = pyrat.Decided
	case s.rules.MaxTurns > 0 && s.turn >= s.rules.MaxTurns:
		s.reason = pyrat.TurnLimit
	default:
		return
	}

	s.status = pyrat.Finished
	switch {
	case s.score[0] > s.score[1]:
		s.outcome = pyrat.Player1Won
	case s.score[1] > s.score[0]:
		s.outcome = pyrat.Player2Won
	default:
		s.outcome = pyrat.Draw
	}
}

// The trailing player cannot catch up even with all remaining cheese.
func (s *State) decided() bool {
	lo, hi := s.score[0], s.score[1]
	if lo > hi {
		lo, hi = hi, lo
	}
	return lo+float64(len(s.cheese)) < hi
}
