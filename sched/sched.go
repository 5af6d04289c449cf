// Match Series
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

// Package sched plays series of games between two players.
package sched

import (
	"context"
	"fmt"
	"io"
	"sync"
	"text/tabwriter"

	"go-pyrat"
	"go-pyrat/game"
	"go-pyrat/isol"
	"go-pyrat/maze"
	"go-pyrat/turn"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Contestant creates a fresh instance of a player for every game.
type Contestant struct {
	Name string
	// New is passed the seed for the random choices of the player
	New func(seed uint64) pyrat.Agent
}

// Series describes a number of games between the same two
// contestants, played with consecutive seeds.
type Series struct {
	Contestants [2]Contestant
	// Params returns the maze parameters for a global seed
	Params  func(seed uint64) maze.Params
	Rules   pyrat.Rules
	Timing  turn.Options
	Games   int
	Offset  uint64
	Workers int
	// Swap the sides of the contestants on every other game
	Alternate bool
	Journal   pyrat.Journal
}

// Result of a single game of a series.
type Result struct {
	Nr   int
	Seed uint64
	// The first contestant played as Player2
	Swapped bool
	Summary *pyrat.Summary
	// Set if the game could not take place
	Err error
}

// Scores returns the scores of the first and the second contestant.
func (r *Result) Scores() (a, b float64) {
	if r.Summary == nil {
		return 0, 0
	}
	a, b = r.Summary.Scores[0], r.Summary.Scores[1]
	if r.Swapped {
		a, b = b, a
	}
	return
}

// Tally of a series, from the perspective of the first contestant.
type Tally struct {
	Wins, Draws, Losses int
	// Games that could not take place
	Failed int
	// Mean of the score of the first contestant minus the score of
	// the second contestant
	Diff float64
}

func Count(results []*Result) (t Tally) {
	var sum float64
	for _, r := range results {
		if r.Summary == nil {
			t.Failed++
			continue
		}
		a, b := r.Scores()
		sum += a - b

		side, ok := r.Summary.Outcome.Winner()
		switch {
		case !ok:
			t.Draws++
		case (side == pyrat.Player1) != r.Swapped:
			t.Wins++
		default:
			t.Losses++
		}
	}
	if n := t.Wins + t.Draws + t.Losses; n > 0 {
		t.Diff = sum / float64(n)
	}
	return
}

func (s *Series) play(ctx context.Context, r *Result) error {
	p := s.Params(r.Seed)
	setup, err := maze.Generate(p)
	if err != nil {
		return errors.Wrapf(err, "Failed to generate maze for seed %d", r.Seed)
	}

	c := s.Contestants
	if r.Swapped {
		c[0], c[1] = c[1], c[0]
	}
	g := &game.Game{
		Setup:  setup,
		Rules:  s.Rules,
		Timing: s.Timing,
		Names:  [2]string{c[0].Name, c[1].Name},
	}
	for i := range c {
		g.Players[i] = c[i].New(setup.Seeds.Players + uint64(i))
	}

	defer func() {
		for _, a := range g.Players {
			if err := isol.Shutdown(a); err != nil {
				pyrat.Log.Warn().Err(err).Int("game", r.Nr).Msg("Failed to shut down player")
			}
		}
	}()
	for _, a := range g.Players {
		if r.Err = isol.Start(ctx, a); r.Err != nil {
			pyrat.Log.Error().Err(r.Err).Int("game", r.Nr).Msg("Failed to start player")
			return nil
		}
	}

	r.Summary, err = game.Play(ctx, g, s.Journal)
	return err
}

// Run plays all games of the series, at most Workers at a time.  A
// game whose players cannot be started is skipped; any other failure
// aborts the series.
func (s *Series) Run(ctx context.Context) ([]*Result, error) {
	if s.Games < 1 {
		return nil, pyrat.Misconfigured("games", "must be at least 1")
	}

	parent := ctx
	eg, ctx := errgroup.WithContext(ctx)
	if s.Workers > 0 {
		eg.SetLimit(s.Workers)
	}

	var (
		lock    sync.Mutex
		done    int
		results = make([]*Result, s.Games)
	)
	for i := range results {
		results[i] = &Result{
			Nr:      i + 1,
			Seed:    s.Offset + uint64(i),
			Swapped: s.Alternate && i%2 == 1,
		}
	}

	pyrat.Log.Debug().Int("games", s.Games).Msg("Starting series")
	for _, r := range results {
		if ctx.Err() != nil {
			break
		}

		r := r
		eg.Go(func() error {
			err := s.play(ctx, r)
			if err != nil {
				return errors.Wrapf(err, "Game %d", r.Nr)
			}

			lock.Lock()
			done++
			ev := pyrat.Log.Info().
				Int("done", done).
				Int("games", s.Games).
				Uint64("seed", r.Seed)
			if r.Summary != nil {
				ev = ev.Stringer("outcome", r.Summary.Outcome)
			}
			ev.Msg("Game over")
			lock.Unlock()
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return results, err
	}
	return results, parent.Err()
}

// PrintResults writes a table of all games and the totals to W.
func (s *Series) PrintResults(w io.Writer, results []*Result) error {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Nr.\tSeed\tPlayer 1\tPlayer 2\tScore 1\tScore 2\tTurns\tReason\t")
	for _, r := range results {
		first, second := s.Contestants[0].Name, s.Contestants[1].Name
		if r.Swapped {
			first, second = second, first
		}
		if r.Summary == nil {
			fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t-\t-\t-\t%s\t\n",
				r.Nr, r.Seed, first, second, failure(r))
			continue
		}
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%g\t%g\t%d\t%s\t\n",
			r.Nr, r.Seed, first, second,
			r.Summary.Scores[0], r.Summary.Scores[1],
			r.Summary.Turns, r.Summary.Reason)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	t := Count(results)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s against %s: %d won, %d drawn, %d lost",
		s.Contestants[0].Name, s.Contestants[1].Name,
		t.Wins, t.Draws, t.Losses)
	if t.Failed > 0 {
		fmt.Fprintf(w, ", %d failed", t.Failed)
	}
	_, err := fmt.Fprintf(w, "\nMean score difference: %+.2f\n", t.Diff)
	return err
}

func failure(r *Result) string {
	if r.Err != nil {
		return "failed"
	}
	return "skipped"
}
