// Random Player
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

// Package bot provides players that run inside of the engine.
package bot

import (
	"context"

	"go-pyrat"

	"golang.org/x/exp/rand"
)

type random struct {
	rng *rand.Rand
}

// Random returns a player that picks one of its legal moves at random,
// and only stays if it cannot move at all.  Its choices are
// determined by SEED.
func Random(seed uint64) pyrat.Agent {
	return &random{rng: rand.New(rand.NewSource(seed))}
}

func (r *random) Decide(_ context.Context, me pyrat.Side, s *pyrat.Snapshot) (pyrat.Move, error) {
	var legal []pyrat.Move
	for _, m := range pyrat.Moves[1:] {
		if _, _, ok := s.Maze.Step(s.Positions[me], m); ok {
			legal = append(legal, m)
		}
	}
	if len(legal) == 0 {
		return pyrat.Stay, nil
	}
	return legal[r.rng.Intn(len(legal))], nil
}

func (*random) String() string { return "random" }
