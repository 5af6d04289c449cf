// Isolated Players
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

package isol

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"go-pyrat"

	"github.com/pkg/errors"
)

// How long a player may take to exit after it was told goodbye
const shutdownGrace = time.Second

var errKilled = errors.New("player has been killed")

// A backend starts and stops the program behind a player.
type backend interface {
	fmt.Stringer
	start(ctx context.Context) (stdin io.WriteCloser, stdout, stderr io.Reader, err error)
	kill() error
	wait() error
}

// Player is an agent running in a separate program.  It is started
// by Start, or lazily by the first request.  Once it has been killed,
// it is not started again.
type Player struct {
	lock   sync.Mutex
	be     backend
	conn   *conn
	stdin  io.WriteCloser
	killed bool
}

func (p *Player) String() string { return p.be.String() }

func (p *Player) Start(ctx context.Context) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	_, err := p.start(ctx)
	return err
}

func (p *Player) start(ctx context.Context) (*conn, error) {
	if p.killed {
		return nil, errKilled
	}
	if p.conn != nil {
		return p.conn, nil
	}

	stdin, stdout, stderr, err := p.be.start(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to start %s", p.be)
	}
	go p.stderr(stderr)

	p.stdin = stdin
	p.conn = newConn(p.be.String(), stdout, stdin)
	return p.conn, p.conn.send("pyrat", majorVersion, minorVersion, patchVersion)
}

// Log everything the player writes to stderr
func (p *Player) stderr(r io.Reader) {
	scan := bufio.NewScanner(r)
	for scan.Scan() {
		pyrat.Log.Debug().
			Stringer("player", p.be).
			Str("stderr", scan.Text()).
			Msg("Player output")
	}
}

func (p *Player) connection(ctx context.Context) (*conn, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.start(ctx)
}

func (p *Player) Decide(ctx context.Context, me pyrat.Side, s *pyrat.Snapshot) (pyrat.Move, error) {
	c, err := p.connection(ctx)
	if err != nil {
		return pyrat.Stay, err
	}
	data, err := json.Marshal(s)
	if err != nil {
		return pyrat.Stay, err
	}

	r, err := c.request(ctx, "state", int(me)+1, json.RawMessage(data))
	if err != nil {
		return pyrat.Stay, err
	}
	if r.command != "move" {
		return pyrat.Stay, errors.Errorf("%s: expected a move, got %q", p, r.command)
	}

	var dir string
	if err = parse(r.args, &dir); err != nil {
		return pyrat.Stay, errors.Wrapf(err, "%s: malformed move %q", p, r.args)
	}
	return pyrat.ParseMove(dir)
}

// Expect an "ok" in response to COMMAND.
func (p *Player) confirm(ctx context.Context, command string, me pyrat.Side, v interface{}) error {
	c, err := p.connection(ctx)
	if err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	r, err := c.request(ctx, command, int(me)+1, json.RawMessage(data))
	if err != nil {
		return err
	}
	if r.command != "ok" {
		return errors.Errorf("%s: expected ok, got %q", p, r.command)
	}
	return nil
}

func (p *Player) Prepare(ctx context.Context, me pyrat.Side, s *pyrat.Snapshot) error {
	return p.confirm(ctx, "prepare", me, s)
}

func (p *Player) Finish(ctx context.Context, me pyrat.Side, _ *pyrat.Snapshot, sum *pyrat.Summary) error {
	return p.confirm(ctx, "finish", me, sum)
}

func (p *Player) Kill() error {
	p.lock.Lock()
	defer p.lock.Unlock()

	p.killed = true
	if p.conn == nil {
		return nil
	}
	return errors.Wrapf(p.be.kill(), "Failed to kill %s", p.be)
}

func (p *Player) Shutdown() error {
	p.lock.Lock()
	defer p.lock.Unlock()

	if p.conn == nil {
		return nil
	}
	if !p.killed {
		if err := p.conn.send("goodbye"); err != nil {
			pyrat.Log.Debug().Err(err).Msg("Failed to say goodbye")
		}
	}
	p.stdin.Close()

	done := make(chan error, 1)
	go func() { done <- p.be.wait() }()

	var err error
	select {
	case err = <-done:
	case <-time.After(shutdownGrace):
		pyrat.Log.Info().Stringer("player", p.be).Msg("Player did not exit in time")
		if kerr := p.be.kill(); kerr != nil {
			return errors.Wrapf(kerr, "Failed to kill %s", p.be)
		}
		p.killed = true
		err = <-done
	}
	p.conn = nil

	if p.killed {
		// The exit status of a killed program is of no interest
		return nil
	}
	return errors.Wrapf(err, "%s did not exit cleanly", p.be)
}

var _ Controlled = &Player{}
var _ pyrat.Preparer = &Player{}
var _ pyrat.Finisher = &Player{}
var _ pyrat.Killer = &Player{}
