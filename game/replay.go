// Reconstruction of recorded games
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
	"slices"

	"go-pyrat"
)

// Replay reconstructs every state of a recorded game without running
// any player code.  The first snapshot is the initial state, and the
// n'th snapshot the state after turn n.  Each record is checked
// against the reconstruction; a mismatch is an *pyrat.InvariantError.
func Replay(h *pyrat.Header, recs []*pyrat.TurnRecord) ([]*pyrat.Snapshot, error) {
	st, err := New(h.Maze, h.Cheese, h.Starts, h.Rules)
	if err != nil {
		return nil, err
	}

	states := make([]*pyrat.Snapshot, 0, len(recs)+1)
	states = append(states, st.Snapshot())
	for _, rec := range recs {
		if rec.Turn != st.Turn()+1 {
			return states, pyrat.Broken("expected turn %d, got %d", st.Turn()+1, rec.Turn)
		}

		got, err := st.ApplyTurn(rec.Moves[0], rec.Moves[1])
		if err != nil {
			return states, err
		}

		switch {
		case got.Positions != rec.Positions:
			return states, pyrat.Broken("turn %d: positions %v differ from %v",
				rec.Turn, got.Positions, rec.Positions)
		case got.Scores != rec.Scores:
			return states, pyrat.Broken("turn %d: scores %v differ from %v",
				rec.Turn, got.Scores, rec.Scores)
		case got.Mud != rec.Mud:
			return states, pyrat.Broken("turn %d: mud %v differs from %v",
				rec.Turn, got.Mud, rec.Mud)
		case got.Gains != rec.Gains:
			return states, pyrat.Broken("turn %d: gains %v differ from %v",
				rec.Turn, got.Gains, rec.Gains)
		case !slices.EqualFunc(got.Collected, rec.Collected, sameCollection):
			return states, pyrat.Broken("turn %d: collected %v instead of %v",
				rec.Turn, got.Collected, rec.Collected)
		case !slices.Equal(got.Discarded, rec.Discarded):
			return states, pyrat.Broken("turn %d: discarded %v instead of %v",
				rec.Turn, got.Discarded, rec.Discarded)
		case got.Remaining != rec.Remaining:
			return states, pyrat.Broken("turn %d: %d cheese left instead of %d",
				rec.Turn, got.Remaining, rec.Remaining)
		case got.Status != rec.Status || got.Reason != rec.Reason:
			return states, pyrat.Broken("turn %d: game ended differently", rec.Turn)
		case got.Outcome != rec.Outcome:
			return states, pyrat.Broken("turn %d: outcome %s differs from %s",
				rec.Turn, got.Outcome, rec.Outcome)
		}

		states = append(states, st.Snapshot())
	}

	return states, nil
}

func sameCollection(a, b pyrat.Collection) bool {
	return a.Cell == b.Cell && a.Value == b.Value && slices.Equal(a.By, b.By)
}
