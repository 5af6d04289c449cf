// Deadline-bounded invocation of player decisions
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

package turn

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go-pyrat"
)

// Options control how long players may think.
type Options struct {
	// Time budget T of a turn
	Budget time.Duration
	// Time budget of the preprocessing phase
	Preparation time.Duration
	// A call that is still running after HardLimit·T is
	// terminated
	HardLimit uint
	// Wait for every player, however long it takes
	Synchronous bool
}

// DefaultOptions mirror the timing of a standard game.
var DefaultOptions = Options{
	Budget:      100 * time.Millisecond,
	Preparation: 3 * time.Second,
	HardLimit:   5,
}

func (o *Options) Validate() error {
	switch {
	case o.Synchronous:
		return nil
	case o.Budget <= 0:
		return pyrat.Misconfigured("turn_time", "must be positive, got %s", o.Budget)
	case o.Preparation < 0:
		return pyrat.Misconfigured("preprocessing_time", "must not be negative")
	case o.HardLimit < 1:
		return pyrat.Misconfigured("hard_limit", "must be at least 1")
	}
	return nil
}

type answer struct {
	move    pyrat.Move
	err     error
	elapsed time.Duration
}

// A call that has been detached from.
type pending struct {
	done      <-chan answer
	cancel    context.CancelFunc
	kill      *time.Timer
	abandoned atomic.Bool
}

type worker struct {
	side  pyrat.Side
	agent pyrat.Agent
	busy  *pending
	// A killed player is never asked again
	dead bool
}

// Scheduler invokes the decision functions of both players.  It is
// not safe for concurrent use: the game loop calls it once per turn.
type Scheduler struct {
	opts    Options
	workers [2]*worker
}

func New(agents [2]pyrat.Agent, opts Options) (*Scheduler, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	s := &Scheduler{opts: opts}
	for i, a := range agents {
		if a == nil {
			return nil, pyrat.Misconfigured("players", "%s is missing", pyrat.Sides[i])
		}
		s.workers[i] = &worker{side: pyrat.Sides[i], agent: a}
	}
	return s, nil
}

// Start FN in its own goroutine.  The result is delivered on the
// returned channel, which never blocks the goroutine.
func (s *Scheduler) call(ctx context.Context, budget time.Duration,
	fn func(context.Context) (pyrat.Move, error)) (<-chan answer, context.CancelFunc) {
	var (
		done   = make(chan answer, 1)
		cancel context.CancelFunc
		start  = time.Now()
	)

	if s.opts.Synchronous || budget <= 0 {
		ctx, cancel = context.WithCancel(ctx)
	} else {
		ctx, cancel = context.WithTimeout(ctx, budget)
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- answer{
					err:     fmt.Errorf("panic: %v", r),
					elapsed: time.Since(start),
				}
			}
		}()

		m, err := fn(ctx)
		done <- answer{move: m, err: err, elapsed: time.Since(start)}
	}()

	return done, cancel
}

// Check whether a detached call of W has finished by now.
func (w *worker) available() bool {
	if w.dead {
		return false
	}
	if w.busy == nil {
		return true
	}
	select {
	case a := <-w.busy.done:
		pyrat.Log.Debug().
			Stringer("side", w.side).
			Dur("elapsed", a.elapsed).
			Msg("Discarding late answer")
		// Once the timer has fired, a killable player is
		// considered dead, even if Kill has not returned yet.
		fired := !w.busy.kill.Stop()
		w.busy.cancel()
		_, killable := w.agent.(pyrat.Killer)
		w.dead = fired && killable
		w.busy = nil
		return !w.dead
	default:
		return false
	}
}

// Detach from a call that exceeded its budget.  If it is still
// running after the hard limit, it is cancelled and, if possible,
// killed.
func (s *Scheduler) detach(w *worker, done <-chan answer, cancel context.CancelFunc, budget time.Duration) {
	p := &pending{done: done, cancel: cancel}
	limit := budget * time.Duration(s.opts.HardLimit)
	p.kill = time.AfterFunc(limit-budget, func() {
		p.abandoned.Store(true)
		p.cancel()
		pyrat.Log.Info().Stringer("side", w.side).Msg("Player exceeded hard limit")
		if k, ok := w.agent.(pyrat.Killer); ok {
			if err := k.Kill(); err != nil {
				pyrat.Log.Error().Err(err).Stringer("side", w.side).Msg("Failed to kill player")
			}
		}
	})
	w.busy = p
}

// Detach from every call that has not answered yet.
func (s *Scheduler) expire(res *[2]pyrat.Decision, done [2]<-chan answer,
	cancels [2]context.CancelFunc, budget time.Duration) {
	for i := range done {
		if done[i] != nil {
			res[i].Verdict = pyrat.Timeout
			res[i].Elapsed = budget
			s.detach(s.workers[i], done[i], cancels[i], budget)
		}
	}
}

// Run FN for every side in ASK and wait for the answers, at most
// BUDGET unless the scheduler is synchronous.
func (s *Scheduler) run(ctx context.Context, budget time.Duration, ask [2]bool,
	fn func(context.Context, *worker) (pyrat.Move, error)) (res [2]pyrat.Decision, raw [2]*answer) {
	var (
		done    [2]<-chan answer
		cancels [2]context.CancelFunc
		waiting int
	)

	for i, w := range s.workers {
		switch {
		case !ask[i]:
			continue
		case !w.available():
			res[i].Verdict = pyrat.Busy
			if w.dead || w.busy.abandoned.Load() {
				res[i].Verdict = pyrat.Abandoned
			}
		default:
			w := w
			done[i], cancels[i] = s.call(ctx, budget, func(ctx context.Context) (pyrat.Move, error) {
				return fn(ctx, w)
			})
			waiting++
		}
	}

	var deadline <-chan time.Time
	if !s.opts.Synchronous && budget > 0 {
		t := time.NewTimer(budget)
		defer t.Stop()
		deadline = t.C
	}

	for waiting > 0 {
		var (
			a    answer
			side int
		)
		select {
		case a = <-done[0]:
			side = 0
		case a = <-done[1]:
			side = 1
		case <-ctx.Done():
			s.expire(&res, done, cancels, budget)
			return
		case <-deadline:
			s.expire(&res, done, cancels, budget)
			return
		}

		cancels[side]()
		done[side] = nil
		waiting--

		raw[side] = &a
		res[side].Elapsed = a.elapsed
		switch {
		case a.err == nil:
			res[side].Verdict = pyrat.Accepted
		case errors.Is(a.err, context.DeadlineExceeded):
			res[side].Verdict = pyrat.Timeout
			res[side].Err = a.err.Error()
		default:
			res[side].Verdict = pyrat.Crashed
			res[side].Err = a.err.Error()
		}
	}

	return
}

// Turn asks both players for their next move in the state SNAP.
// Players stuck in mud are not asked.  The returned decisions always
// carry a legal move.
func (s *Scheduler) Turn(ctx context.Context, snap *pyrat.Snapshot) [2]pyrat.Decision {
	var ask [2]bool
	for i := range ask {
		ask[i] = !snap.Mud[i].Active()
	}

	res, raw := s.run(ctx, s.opts.Budget, ask, func(ctx context.Context, w *worker) (pyrat.Move, error) {
		// Every player receives its own copy, so that neither can
		// observe what the other one does with it.
		return w.agent.Decide(ctx, w.side, snap.Copy())
	})

	for i := range res {
		d := &res[i]
		d.Move = pyrat.Stay
		if !ask[i] {
			d.Verdict = pyrat.Stuck
			continue
		}
		if d.Verdict != pyrat.Accepted || raw[i] == nil {
			continue
		}

		m := raw[i].move
		if !m.Valid() {
			d.Verdict = pyrat.Illegal
			d.Err = fmt.Sprintf("invalid move %d", uint8(m))
			continue
		}
		d.Request = m
		if _, _, ok := snap.Maze.Step(snap.Positions[i], m); !ok {
			d.Verdict = pyrat.Illegal
			continue
		}
		d.Move = m
	}

	for i, d := range res {
		e := pyrat.Log.Debug()
		if d.Warning() != pyrat.NoWarning {
			e = pyrat.Log.Info()
		}
		e.Int("turn", snap.Turn).
			Stringer("side", pyrat.Sides[i]).
			Stringer("verdict", d.Verdict).
			Stringer("move", d.Move).
			Dur("elapsed", d.Elapsed).
			Str("error", d.Err).
			Msg("Decision")
	}

	return res
}

// Prepare gives players that implement pyrat.Preparer the chance to
// analyse the initial state.  A player that does not finish in time
// is treated like one that did not answer a turn in time, and stays
// busy until it is done.
func (s *Scheduler) Prepare(ctx context.Context, snap *pyrat.Snapshot) [2]pyrat.Decision {
	var ask [2]bool
	for i, w := range s.workers {
		_, ask[i] = w.agent.(pyrat.Preparer)
	}

	res, _ := s.run(ctx, s.opts.Preparation, ask, func(ctx context.Context, w *worker) (pyrat.Move, error) {
		return pyrat.Stay, w.agent.(pyrat.Preparer).Prepare(ctx, w.side, snap.Copy())
	})
	return res
}

// Finish notifies players that implement pyrat.Finisher about the end
// of the game.  Failures are only logged.
func (s *Scheduler) Finish(ctx context.Context, snap *pyrat.Snapshot, sum *pyrat.Summary) {
	var ask [2]bool
	for i, w := range s.workers {
		_, ask[i] = w.agent.(pyrat.Finisher)
	}

	res, _ := s.run(ctx, s.opts.Preparation, ask, func(ctx context.Context, w *worker) (pyrat.Move, error) {
		return pyrat.Stay, w.agent.(pyrat.Finisher).Finish(ctx, w.side, snap.Copy(), sum)
	})
	for i, d := range res {
		if ask[i] && d.Verdict != pyrat.Accepted {
			pyrat.Log.Info().
				Stringer("side", pyrat.Sides[i]).
				Stringer("verdict", d.Verdict).
				Str("error", d.Err).
				Msg("Postprocessing failed")
		}
	}
}

// Close terminates all calls that are still running.
func (s *Scheduler) Close() {
	for _, w := range s.workers {
		if w.available() || w.busy == nil {
			continue
		}
		stopped := w.busy.kill.Stop()
		w.busy.cancel()
		if k, ok := w.agent.(pyrat.Killer); ok && stopped {
			if err := k.Kill(); err != nil {
				pyrat.Log.Error().Err(err).Stringer("side", w.side).Msg("Failed to kill player")
			}
		}
		w.busy = nil
	}
}
