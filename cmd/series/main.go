// Match Series Entry Point
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
	"go-pyrat/sched"
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

	config, err := conf.Load()
	if err != nil {
		pyrat.Log.Fatal().Err(err).Msg("Invalid configuration")
	}

	st := conf.MakeState()
	j, err := config.OpenJournal(st)
	if err != nil {
		pyrat.Log.Fatal().Err(err).Msg("Failed to open event log")
	}

	s := &sched.Series{
		Params:    config.Params,
		Rules:     config.Rules(),
		Timing:    config.Timing(),
		Games:     config.Series.Games,
		Offset:    config.Series.Offset,
		Workers:   config.Series.Workers,
		Alternate: config.Series.Alternate,
		Journal:   j,
	}
	for i, pc := range []conf.PlayerConf{config.Players.Player1, config.Players.Player2} {
		pc := pc
		s.Contestants[i] = sched.Contestant{Name: pc.String(), New: pc.Agent}
	}

	var results []*sched.Result
	err = st.Run(func(ctx context.Context) (err error) {
		results, err = s.Run(ctx)
		return err
	})
	if results != nil {
		if perr := s.PrintResults(os.Stdout, results); perr != nil {
			pyrat.Log.Error().Err(perr).Msg("Failed to print results")
		}
	}
	if err != nil {
		pyrat.Log.Fatal().Err(err).Msg("Series failed")
	}
}
