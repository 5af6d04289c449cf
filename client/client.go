// Player Side of the Protocol
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

// Package client implements the player side of the line protocol, so
// that a pyrat.Agent can be run as a subprocess or container player.
package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"go-pyrat"

	"github.com/pkg/errors"
)

var (
	parser = regexp.MustCompile(`^[[:space:]]*` +
		`(?:([[:digit:]]+)(?:@([[:digit:]]+))?[[:space:]]+)?` +
		`([[:alnum:]]+)(?:[[:space:]]+(.*))?` +
		`[[:space:]]*$`)

	errVersion = errors.New("unsupported protocol version")
)

// Client answers the requests of the engine using an agent
type Client struct {
	agent pyrat.Agent
	w     io.Writer
	rid   uint64
	lock  sync.Mutex

	wait    sync.WaitGroup
	rlock   sync.Mutex
	running map[uint64]context.CancelFunc
}

// Serve reads requests from R and writes the answers of A to W until
// the engine says goodbye, R is exhausted or CTX is cancelled.
func Serve(ctx context.Context, r io.Reader, w io.Writer, a pyrat.Agent) error {
	cli := &Client{
		agent:   a,
		w:       w,
		rid:     1,
		running: make(map[uint64]context.CancelFunc),
	}
	defer cli.wait.Wait()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	errs := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 4096), 1024*1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
		errs <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return <-errs
			}
			done, err := cli.interpret(ctx, line)
			if err != nil || done {
				return err
			}
		}
	}
}

// Respond forwards a message referring to request TO
func (cli *Client) respond(to uint64, command string, args ...interface{}) {
	var buf strings.Builder

	fmt.Fprint(&buf, atomic.AddUint64(&cli.rid, 2))
	if to > 0 {
		fmt.Fprintf(&buf, "@%d", to)
	}
	fmt.Fprintf(&buf, " %s", command)
	for _, arg := range args {
		switch arg := arg.(type) {
		case string:
			fmt.Fprintf(&buf, " %q", arg)
		case fmt.Stringer:
			fmt.Fprintf(&buf, " %s", arg)
		default:
			panic("Unsupported type")
		}
	}
	buf.WriteString("\r\n")

	cli.lock.Lock()
	defer cli.lock.Unlock()
	if _, err := io.WriteString(cli.w, buf.String()); err != nil {
		pyrat.Log.Debug().Err(err).Msg("Failed to respond")
	}
}

// Run FN for request ID in the background, until it is done or the
// engine asks to stop.
func (cli *Client) start(ctx context.Context, id uint64, fn func(context.Context)) {
	ctx, cancel := context.WithCancel(ctx)

	cli.rlock.Lock()
	if _, dup := cli.running[id]; dup {
		cli.rlock.Unlock()
		cancel()
		pyrat.Log.Warn().Uint64("id", id).Msg("Duplicate request")
		return
	}
	cli.running[id] = cancel
	cli.rlock.Unlock()

	cli.wait.Add(1)
	go func() {
		defer cli.wait.Done()
		defer cli.stop(id)
		fn(ctx)
	}()
}

func (cli *Client) stop(id uint64) {
	cli.rlock.Lock()
	defer cli.rlock.Unlock()
	if cancel, ok := cli.running[id]; ok {
		cancel()
		delete(cli.running, id)
	}
}

// Split the arguments of a request into the side and the JSON object
func request(args string, v interface{}) (pyrat.Side, error) {
	num, data, ok := strings.Cut(strings.TrimSpace(args), " ")
	if !ok {
		return 0, errors.New("missing argument")
	}
	var side pyrat.Side
	switch num {
	case "1":
		side = pyrat.Player1
	case "2":
		side = pyrat.Player2
	default:
		return 0, errors.Errorf("no side %q", num)
	}
	return side, errors.Wrap(json.Unmarshal([]byte(data), v), "malformed object")
}

// Interpret parses and evaluates INPUT.  DONE is set once the engine
// has said goodbye.
func (cli *Client) interpret(ctx context.Context, input string) (done bool, err error) {
	matches := parser.FindStringSubmatch(input)
	if matches == nil {
		return false, nil
	}

	var (
		id, ref uint64

		cmd  = matches[3]
		args = matches[4]
	)
	if matches[1] != "" {
		id, err = strconv.ParseUint(matches[1], 10, 64)
		if err != nil {
			return false, nil
		}
	}
	if matches[2] != "" {
		ref, err = strconv.ParseUint(matches[2], 10, 64)
		if err != nil {
			return false, nil
		}
	}

	switch cmd {
	case "pyrat":
		var major, minor, patch int
		if _, err = fmt.Sscan(args, &major, &minor, &patch); err != nil {
			return true, errors.Wrap(err, "malformed greeting")
		}
		if major != 1 {
			return true, errVersion
		}
	case "state":
		var snap pyrat.Snapshot
		me, err := request(args, &snap)
		if err != nil {
			cli.respond(id, "error", err.Error())
			break
		}
		cli.start(ctx, id, func(ctx context.Context) {
			m, err := cli.agent.Decide(ctx, me, &snap)
			if err != nil {
				cli.respond(id, "error", err.Error())
				return
			}
			cli.respond(id, "move", m)
		})
	case "prepare":
		var snap pyrat.Snapshot
		me, err := request(args, &snap)
		if err != nil {
			cli.respond(id, "error", err.Error())
			break
		}
		cli.start(ctx, id, func(ctx context.Context) {
			if p, ok := cli.agent.(pyrat.Preparer); ok {
				if err := p.Prepare(ctx, me, &snap); err != nil {
					cli.respond(id, "error", err.Error())
					return
				}
			}
			cli.respond(id, "ok")
		})
	case "finish":
		var sum pyrat.Summary
		me, err := request(args, &sum)
		if err != nil {
			cli.respond(id, "error", err.Error())
			break
		}
		cli.start(ctx, id, func(ctx context.Context) {
			if f, ok := cli.agent.(pyrat.Finisher); ok {
				if err := f.Finish(ctx, me, nil, &sum); err != nil {
					cli.respond(id, "error", err.Error())
					return
				}
			}
			cli.respond(id, "ok")
		})
	case "stop":
		cli.stop(ref)
	case "goodbye":
		return true, nil
	}

	return false, nil
}
