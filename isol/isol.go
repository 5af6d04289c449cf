// General Isolation
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

// Package isol runs players outside of the engine process, either as
// subprocesses or in Docker containers, and talks to them using a
// line protocol over their standard input and output.
package isol

import (
	"context"
	"fmt"

	"go-pyrat"
)

// Controlled players have to be started before and shut down after a
// game.
type Controlled interface {
	pyrat.Agent
	fmt.Stringer
	Start(context.Context) error
	Shutdown() error
}

// Start A, if it has to be started.
func Start(ctx context.Context, a pyrat.Agent) error {
	if ca, ok := a.(Controlled); ok {
		pyrat.Log.Debug().Stringer("player", ca).Msg("Starting")
		return ca.Start(ctx)
	}
	return nil
}

// Shutdown A, if it has to be shut down.
func Shutdown(a pyrat.Agent) error {
	if ca, ok := a.(Controlled); ok {
		pyrat.Log.Debug().Stringer("player", ca).Msg("Shutting down")
		return ca.Shutdown()
	}
	return nil
}
