// Game loop
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
	"context"
	"fmt"
	"time"

	"go-pyrat"
	"go-pyrat/maze"
	"go-pyrat/turn"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Game bundles everything needed to play one game.
type Game struct {
	ID      uuid.UUID
	Setup   *maze.Setup
	Rules   pyrat.Rules
	Timing  turn.Options
	Players [2]pyrat.Agent
	// Names of the players, for the event log
	Names [2]string
}

func (g *Game) String() string {
	return fmt.Sprintf("%s (%s vs. %s)", g.ID, g.Names[0], g.Names[1])
}

func (g *Game) header() *pyrat.Header {
	return &pyrat.Header{
		Game:    g.ID,
		Started: time.Now(),
		Players: g.Names,
		Seeds:   g.Setup.Seeds,
		Rules:   g.Rules,
		Maze:    g.Setup.Maze,
		Cheese:  g.Setup.Cheese,
		Starts:  g.Setup.Starts,
	}
}

// Play runs G until it is finished and writes every turn to J.  Faults
// of the players never end a game; Play only fails if the game cannot
// be set up, the engine is broken, the journal cannot be written or
// CTX is cancelled.
func Play(ctx context.Context, g *Game, j pyrat.Journal) (*pyrat.Summary, error) {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	log := pyrat.Log.With().Stringer("game", g.ID).Logger()

	st, err := New(g.Setup.Maze, g.Setup.Cheese, g.Setup.Starts, g.Rules)
	if err != nil {
		return nil, err
	}
	sched, err := turn.New(g.Players, g.Timing)
	if err != nil {
		return nil, err
	}
	defer sched.Close()

	err = j.Begin(ctx, g.header())
	if err != nil {
		return nil, errors.Wrap(err, "Failed to begin event log")
	}

	var t tally
	sum := &pyrat.Summary{Game: g.ID}
	sum.Prepare = sched.Prepare(ctx, st.Snapshot())
	t.prepare(sum.Prepare)
	log.Debug().Msg("Preprocessing done")

	for st.Status() == pyrat.Running {
		if err = ctx.Err(); err != nil {
			return nil, err
		}

		snap := st.Snapshot()
		dec := sched.Turn(ctx, snap)
		if err = ctx.Err(); err != nil {
			return nil, err
		}

		rec, err := st.ApplyTurn(dec[0].Move, dec[1].Move)
		if err != nil {
			return nil, err
		}
		rec.Decisions = dec
		t.record(rec)

		log.Debug().
			Int("turn", rec.Turn).
			Interface("positions", rec.Positions).
			Interface("scores", rec.Scores).
			Int("remaining", rec.Remaining).
			Msg("Turn")

		err = j.Record(ctx, g.ID, rec)
		if err != nil {
			return nil, errors.Wrapf(err, "Failed to record turn %d", rec.Turn)
		}
	}

	sum.Turns = st.Turn()
	sum.Scores = [2]float64{st.Score(pyrat.Player1), st.Score(pyrat.Player2)}
	sum.Reason = st.Reason()
	sum.Outcome = st.Outcome()
	sum.Stats = t.stats
	sum.Finished = time.Now()

	sched.Finish(ctx, st.Snapshot(), sum)

	err = j.End(ctx, sum)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to end event log")
	}

	log.Info().
		Int("turns", sum.Turns).
		Stringer("outcome", sum.Outcome).
		Stringer("reason", sum.Reason).
		Floats64("scores", sum.Scores[:]).
		Msg("Game finished")
	return sum, nil
}
