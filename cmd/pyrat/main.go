// Single Game Entry Point
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

	"go-pyrat"
	"go-pyrat/conf"
	"go-pyrat/game"
	"go-pyrat/isol"
	"go-pyrat/maze"
)

func main() {
	flag.Parse()
	if flag.NArg() != 0 {
		fmt.Fprintf(flag.CommandLine.Output(),
			"Too many arguments passed to %s.\nUsage:\n",
			os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	// Load the configuration from disk (if available)
	config, err := conf.Load()
	if err != nil {
		pyrat.Log.Fatal().Err(err).Msg("Invalid configuration")
	}

	st := conf.MakeState()
	j, err := config.OpenJournal(st)
	if err != nil {
		pyrat.Log.Fatal().Err(err).Msg("Failed to open event log")
	}

	err = st.Run(func(ctx context.Context) error {
		setup, err := maze.Generate(config.Params(config.Seed.Seed))
		if err != nil {
			return err
		}

		pc := [2]*conf.PlayerConf{&config.Players.Player1, &config.Players.Player2}
		g := &game.Game{
			Setup:  setup,
			Rules:  config.Rules(),
			Timing: config.Timing(),
			Names:  [2]string{pc[0].String(), pc[1].String()},
		}
		for i := range pc {
			g.Players[i] = pc[i].Agent(setup.Seeds.Players + uint64(i))
			defer func(a pyrat.Agent, name string) {
				if err := isol.Shutdown(a); err != nil {
					pyrat.Log.Warn().Err(err).Str("player", name).Msg("Failed to shut down")
				}
			}(g.Players[i], g.Names[i])
			if err := isol.Start(ctx, g.Players[i]); err != nil {
				return err
			}
		}

		sum, err := game.Play(ctx, g, j)
		if err != nil {
			return err
		}
		fmt.Printf("%s: %s after %d turns (%s), %g to %g\n",
			g, sum.Outcome, sum.Turns, sum.Reason,
			sum.Scores[0], sum.Scores[1])
		return nil
	})
	if err != nil {
		pyrat.Log.Fatal().Err(err).Msg("Game failed")
	}
}
