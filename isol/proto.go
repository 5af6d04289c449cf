// Protocol Handling
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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"unicode"

	"go-pyrat"

	"github.com/pkg/errors"
)

const (
	majorVersion = 1
	minorVersion = 0
	patchVersion = 0
)

var (
	// Regular expression to destruct a command
	tokenizer = regexp.MustCompile(`^[[:space:]]*` +
		`(?:([[:digit:]]*)(?:@([[:digit:]]+))?[[:space:]]+)?` +
		`([[:alnum:]]+)(?:[[:space:]]+(.*))?` +
		`[[:space:]]*$`)

	// Regular expression to match escaped characters
	unescape = regexp.MustCompile(`\\.`)

	// Error to return if a message couldn't be parsed
	errArgumentMismatch = errors.New("argument mismatch")

	// Error to return if the player hung up
	errClosed = errors.New("connection closed")
)

func descape(str string) string {
	switch str[1] {
	case 'n':
		return "\n"
	case 't':
		return "\t"
	default:
		return str[1:]
	}
}

// parse destructs RAW and tries to assign the parts to PARAMS
func parse(raw string, params ...interface{}) error {
	var (
		inquotes bool
		escape   bool
		err      error

		i   = -1
		arg string
	)

	for i, arg = range strings.FieldsFunc(raw, func(c rune) bool {
		if inquotes {
			if escape {
				escape = false
				return false
			} else if c == '"' {
				inquotes = false
				return true
			} else {
				escape = c == '\\'
				return false
			}
		} else {
			inquotes = c == '"'
			return unicode.IsSpace(c) || inquotes
		}
	}) {
		if i >= len(params) {
			return errArgumentMismatch
		}

		switch param := params[i].(type) {
		case *string:
			*param = unescape.ReplaceAllStringFunc(arg, descape)
		case *uint64:
			*param, err = strconv.ParseUint(arg, 10, 64)
			if err != nil {
				return err
			}
		}
	}

	if i+1 != len(params) {
		return errArgumentMismatch
	}

	return nil
}

// A message the player sent in response to a request
type reply struct {
	command string
	args    string
}

// conn is the engine side of a connection to a player.  Every request
// carries a fresh id, and the player refers to it in its reply.
type conn struct {
	name string

	iolock sync.Mutex // IO Lock
	w      io.Writer
	rid    uint64

	lock   sync.Mutex
	wait   map[uint64]chan<- reply
	closed chan struct{}
	err    error
}

func newConn(name string, r io.Reader, w io.Writer) *conn {
	c := &conn{
		name:   name,
		w:      w,
		wait:   make(map[uint64]chan<- reply),
		closed: make(chan struct{}),
	}
	go c.handle(r)
	return c
}

func (c *conn) next() uint64 {
	return atomic.AddUint64(&c.rid, 1)
}

// Write a message with the id ID to the player
//
// Each element in ARGS is handled as an argument to COMMAND, and will
// use the concrete datatype for formatting.  Raw JSON is written as
// is, and has to be the last argument.
//
// If TO is 0, no reference will be added.
func (c *conn) write(id, to uint64, command string, args ...interface{}) error {
	var buf bytes.Buffer

	fmt.Fprint(&buf, id)
	if to > 0 {
		fmt.Fprintf(&buf, "@%d", to)
	}
	fmt.Fprintf(&buf, " %s", command)

	for _, arg := range args {
		fmt.Fprint(&buf, " ")
		switch v := arg.(type) {
		case string:
			fmt.Fprintf(&buf, "%#v", v)
		case int:
			fmt.Fprintf(&buf, "%d", v)
		case json.RawMessage:
			buf.Write(v)
		default:
			panic(fmt.Sprintf("Unsupported type: %T", arg))
		}
	}

	c.iolock.Lock()
	defer c.iolock.Unlock()

	pyrat.Log.Debug().Str("player", c.name).Str("line", buf.String()).Msg(">")
	fmt.Fprint(&buf, "\r\n")
	_, err := io.Copy(c.w, &buf)
	return errors.Wrapf(err, "Failed to write to %s", c.name)
}

// Send a message without expecting a reply
func (c *conn) send(command string, args ...interface{}) error {
	return c.write(c.next(), 0, command, args...)
}

// Send a message and wait for the reply.  If CTX expires first, the
// player is told to stop.
func (c *conn) request(ctx context.Context, command string, args ...interface{}) (reply, error) {
	var (
		id = c.next()
		ch = make(chan reply, 1)
	)

	c.lock.Lock()
	c.wait[id] = ch
	c.lock.Unlock()
	defer func() {
		c.lock.Lock()
		delete(c.wait, id)
		c.lock.Unlock()
	}()

	if err := c.write(id, 0, command, args...); err != nil {
		return reply{}, err
	}

	select {
	case r := <-ch:
		if r.command == "error" {
			return r, errors.Errorf("%s: %s", c.name, r.args)
		}
		return r, nil
	case <-c.closed:
		return reply{}, c.err
	case <-ctx.Done():
		if err := c.write(c.next(), id, "stop"); err != nil {
			pyrat.Log.Debug().Err(err).Msg("Failed to stop player")
		}
		return reply{}, ctx.Err()
	}
}

// Read and interpret lines until R is exhausted
func (c *conn) handle(r io.Reader) {
	scan := bufio.NewScanner(r)
	scan.Buffer(make([]byte, 4096), 1024*1024)
	for scan.Scan() {
		c.interpret(scan.Text())
	}

	err := scan.Err()
	if err == nil {
		err = errClosed
	}
	c.close(errors.Wrap(err, c.name))
}

func (c *conn) close(err error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.err != nil {
		return
	}
	c.err = err
	close(c.closed)
}

// Interpret parses and evaluates INPUT
func (c *conn) interpret(input string) {
	input = strings.TrimSpace(input)
	if input == "" { // Ignore empty lines
		return
	}
	log := pyrat.Log.With().Str("player", c.name).Logger()
	log.Debug().Str("line", input).Msg("<")

	matches := tokenizer.FindStringSubmatch(input)
	if matches == nil {
		log.Debug().Str("line", input).Msg("Malformed input")
		return
	}

	var (
		ref uint64
		err error

		cmd  = matches[3]
		args = strings.TrimSpace(matches[4])
	)
	if matches[2] != "" {
		ref, err = strconv.ParseUint(matches[2], 10, 64)
		if err != nil {
			return
		}
	}

	switch cmd {
	case "move", "ok", "error":
		if cmd == "error" {
			if s, err := strconv.Unquote(args); err == nil {
				args = s
			}
			log.Info().Str("error", args).Msg("Player reported an error")
		}

		c.lock.Lock()
		ch, ok := c.wait[ref]
		delete(c.wait, ref)
		c.lock.Unlock()
		if !ok {
			log.Debug().Uint64("ref", ref).Msg("Reply to nothing")
			return
		}
		ch <- reply{command: cmd, args: args}
	case "goodbye":
		c.close(errors.Wrap(errClosed, c.name))
	default:
		log.Debug().Str("command", cmd).Msg("Unknown command")
	}
}
