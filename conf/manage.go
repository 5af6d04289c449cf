// Lifecycle Management
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

package conf

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"

	"go-pyrat"
)

// Manager is a long-lived resource that has to be released when a
// program shuts down, such as a database or an event log.
type Manager interface {
	fmt.Stringer
	Close() error
}

// State is shared by all the components of a program.  The context
// is cancelled on the first interrupt.
type State struct {
	Context context.Context
	Kill    context.CancelFunc

	lock     sync.Mutex
	running  bool
	managers []Manager
}

func MakeState() *State {
	ctx, kill := context.WithCancel(context.Background())
	return &State{Context: ctx, Kill: kill}
}

// Register M to be closed when the program shuts down.  Managers are
// closed in the reverse order of their registration.
func (st *State) Register(m Manager) {
	st.lock.Lock()
	defer st.lock.Unlock()
	if st.running {
		panic(fmt.Sprintf("Late register: %s", m))
	}
	st.managers = append(st.managers, m)
}

// Shutdown closes all registered managers and returns the first error.
func (st *State) Shutdown() (err error) {
	st.lock.Lock()
	defer st.lock.Unlock()

	pyrat.Log.Debug().Msg("Waiting for managers to shutdown...")
	for i := len(st.managers) - 1; i >= 0; i-- {
		m := st.managers[i]
		pyrat.Log.Debug().Stringer("manager", m).Msg("Shutting down")
		if cerr := m.Close(); cerr != nil {
			pyrat.Log.Error().Err(cerr).Stringer("manager", m).Msg("Failed to shut down")
			if err == nil {
				err = cerr
			}
		}
	}
	st.managers = nil
	return err
}

// Run JOB until it returns and shut everything down afterwards.  An
// interrupt cancels the context passed to JOB, a second one exits the
// program immediately.
func (st *State) Run(job func(context.Context) error) error {
	st.lock.Lock()
	st.running = true
	st.lock.Unlock()
	defer st.Kill()

	intr := make(chan os.Signal, 1)
	signal.Notify(intr, os.Interrupt)
	defer signal.Stop(intr)

	done := make(chan error, 1)
	go func() { done <- job(st.Context) }()

	var err error
	select {
	case err = <-done:
	case <-intr:
		pyrat.Log.Info().Msg("Caught interrupt")
		st.Kill()
		select {
		case err = <-done:
		case <-intr:
			pyrat.Log.Error().Msg("Forced shutdown")
			os.Exit(1)
		}
	}

	if serr := st.Shutdown(); err == nil {
		err = serr
	}
	return err
}
