// Per-player statistics
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
	"go-pyrat"
)

// Keys of pyrat.Stats.Moves besides the names of the moves
const (
	StatWall  = "wall"
	StatMud   = "mud"
	StatMiss  = "miss"
	StatError = "error"
)

// Classify returns the statistics key a decision is counted under.
func Classify(d pyrat.Decision) string {
	switch d.Verdict {
	case pyrat.Accepted:
		return d.Move.String()
	case pyrat.Illegal:
		return StatWall
	case pyrat.Stuck:
		return StatMud
	case pyrat.Crashed:
		return StatError
	default:
		return StatMiss
	}
}

type tally struct {
	stats [2]pyrat.Stats
}

func (t *tally) init() {
	for i := range t.stats {
		if t.stats[i].Moves == nil {
			t.stats[i].Moves = make(map[string]int)
		}
	}
}

func (t *tally) prepare(dec [2]pyrat.Decision) {
	t.init()
	for i, d := range dec {
		t.stats[i].Preprocessing = d.Elapsed
	}
}

func (t *tally) record(rec *pyrat.TurnRecord) {
	t.init()
	for i, d := range rec.Decisions {
		s := &t.stats[i]
		s.Moves[Classify(d)]++
		if d.Verdict != pyrat.Stuck {
			s.TurnDurations = append(s.TurnDurations, d.Elapsed)
		}
	}
}

// Tally computes the statistics of a recorded game.
func Tally(prepare [2]pyrat.Decision, recs []*pyrat.TurnRecord) [2]pyrat.Stats {
	var t tally
	t.prepare(prepare)
	for _, rec := range recs {
		t.record(rec)
	}
	return t.stats
}
