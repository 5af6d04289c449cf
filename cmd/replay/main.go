// Event Log Verification
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

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"go-pyrat"
	"go-pyrat/conf"
	"go-pyrat/db"
	"go-pyrat/game"
	"go-pyrat/journal"

	"github.com/google/uuid"
)

var (
	list   = flag.Bool("list", false, "List the games in the database")
	forget = flag.Bool("forget", false, "Delete the given games from the database")
	limit  = flag.Int("limit", 20, "Number of games to list or verify")
	skip   = flag.Int("skip", 0, "Number of recent games to skip")
)

// Check that the turns of G reproduce its recorded outcome
func verify(g *journal.Game) error {
	states, err := game.Replay(g.Header, g.Turns)
	if err != nil {
		return err
	}
	last := states[len(states)-1]
	if g.Summary == nil {
		fmt.Printf("%s: unfinished after %d turns\n", g.Header.Game, last.Turn)
		return nil
	}
	if last.Turn != g.Summary.Turns || last.Scores != g.Summary.Scores {
		return pyrat.Broken("summary of %s does not match its turns", g.Header.Game)
	}
	fmt.Printf("%s: %s after %d turns, %g to %g\n", g.Header.Game,
		g.Summary.Outcome, g.Summary.Turns,
		g.Summary.Scores[0], g.Summary.Scores[1])
	return nil
}

func ids() (ids []uuid.UUID) {
	for _, arg := range flag.Args() {
		id, err := uuid.Parse(arg)
		if err != nil {
			pyrat.Log.Fatal().Err(err).Str("arg", arg).Msg("Not a game id")
		}
		ids = append(ids, id)
	}
	return
}

func fromFile(name string, want []uuid.UUID) (games []*journal.Game) {
	all, err := journal.ReadFile(name)
	if err != nil {
		pyrat.Log.Fatal().Err(err).Msg("Failed to read event log")
	}
	if len(want) == 0 {
		return all
	}
	for _, g := range all {
		for _, id := range want {
			if g.Header.Game == id {
				games = append(games, g)
			}
		}
	}
	return
}

func fromStore(ctx context.Context, s *db.Store, want []uuid.UUID) (games []*journal.Game) {
	if len(want) == 0 {
		entries, err := s.QueryGames(ctx, *limit, *skip)
		if err != nil {
			pyrat.Log.Fatal().Err(err).Msg("Failed to query games")
		}
		for _, e := range entries {
			want = append(want, e.ID)
		}
	}
	for _, id := range want {
		g, err := s.QueryGame(ctx, id)
		if err != nil {
			pyrat.Log.Error().Err(err).Stringer("game", id).Msg("Failed to load game")
			continue
		}
		games = append(games, g)
	}
	return
}

func listing(ctx context.Context, s *db.Store) error {
	entries, err := s.QueryGames(ctx, *limit, *skip)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "Game\tStarted\tPlayer 1\tPlayer 2\tTurns\tScores\tOutcome\t")
	for _, e := range entries {
		outcome := "-"
		if e.Finished {
			outcome = e.Outcome + " (" + e.Reason + ")"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%g:%g\t%s\t\n",
			e.ID, e.Started.Format("2006-01-02 15:04"),
			e.Players[0], e.Players[1], e.Turns,
			e.Scores[0], e.Scores[1], outcome)
	}
	return tw.Flush()
}

func main() {
	flag.Parse()

	config, err := conf.Load()
	if err != nil {
		pyrat.Log.Fatal().Err(err).Msg("Invalid configuration")
	}
	ctx := context.Background()
	want := ids()

	var games []*journal.Game
	if config.Journal.File != "" && !*list && !*forget {
		games = fromFile(config.Journal.File, want)
	} else {
		s, err := db.Open(config.Journal.Database)
		if err != nil {
			pyrat.Log.Fatal().Err(err).Msg("Failed to open database")
		}
		defer s.Close()

		switch {
		case *list:
			if err := listing(ctx, s); err != nil {
				pyrat.Log.Error().Err(err).Msg("Failed to list games")
			}
			return
		case *forget:
			for _, id := range want {
				if err := s.Forget(ctx, id); err != nil {
					pyrat.Log.Error().Err(err).Stringer("game", id).Msg("Failed to forget game")
				}
			}
			return
		}
		games = fromStore(ctx, s, want)
	}

	failed := 0
	for _, g := range games {
		if err := verify(g); err != nil {
			pyrat.Log.Error().Err(err).Stringer("game", g.Header.Game).Msg("Replay failed")
			failed++
		}
	}
	if failed > 0 {
		pyrat.Log.Error().Int("failed", failed).Int("games", len(games)).Msg("Verification failed")
		os.Exit(1)
	}
}
