// JSON lines event log
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

package journal

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"

	"go-pyrat"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	kindHeader  = "header"
	kindTurn    = "turn"
	kindSummary = "summary"
)

// Every line of a file is one entry.
type entry struct {
	Kind    string            `json:"kind"`
	Game    uuid.UUID         `json:"game"`
	Header  *pyrat.Header     `json:"header,omitempty"`
	Turn    *pyrat.TurnRecord `json:"turn,omitempty"`
	Summary *pyrat.Summary    `json:"summary,omitempty"`
}

// File writes one JSON object per line.  Entries of concurrent games
// may be interleaved; every entry carries the id of its game.
type File struct {
	lock sync.Mutex
	name string
	w    io.Writer
	enc  *json.Encoder
}

func NewFile(w io.Writer) *File {
	return &File{w: w, enc: json.NewEncoder(w)}
}

// Create opens NAME for appending, creating it if necessary.
func Create(name string) (*File, error) {
	f, err := os.OpenFile(name, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to open event log %s", name)
	}
	file := NewFile(f)
	file.name = name
	return file, nil
}

func (f *File) String() string {
	if f.name == "" {
		return "event log"
	}
	return "event log " + f.name
}

func (f *File) write(e *entry) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	return errors.Wrapf(f.enc.Encode(e), "Failed to write %s", e.Kind)
}

func (f *File) Begin(_ context.Context, h *pyrat.Header) error {
	return f.write(&entry{Kind: kindHeader, Game: h.Game, Header: h})
}

func (f *File) Record(_ context.Context, id uuid.UUID, rec *pyrat.TurnRecord) error {
	return f.write(&entry{Kind: kindTurn, Game: id, Turn: rec})
}

func (f *File) End(_ context.Context, sum *pyrat.Summary) error {
	err := f.write(&entry{Kind: kindSummary, Game: sum.Game, Summary: sum})
	if err != nil {
		return err
	}
	if s, ok := f.w.(interface{ Sync() error }); ok {
		return s.Sync()
	}
	return nil
}

// Close closes the underlying writer, if it can be closed.
func (f *File) Close() error {
	if c, ok := f.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Read parses the games written by a File, in the order in which they
// began.
func Read(r io.Reader) ([]*Game, error) {
	var (
		mem  = NewMemory()
		scan = bufio.NewScanner(r)
		ctx  = context.Background()
		line int
	)
	scan.Buffer(make([]byte, 64*1024), 64*1024*1024)

	for scan.Scan() {
		line++
		if len(scan.Bytes()) == 0 {
			continue
		}

		var (
			e   entry
			err error
		)
		if err = json.Unmarshal(scan.Bytes(), &e); err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		switch e.Kind {
		case kindHeader:
			if e.Header == nil {
				return nil, errors.Errorf("line %d: header missing", line)
			}
			err = mem.Begin(ctx, e.Header)
		case kindTurn:
			if e.Turn == nil {
				return nil, errors.Errorf("line %d: turn missing", line)
			}
			err = mem.Record(ctx, e.Game, e.Turn)
		case kindSummary:
			if e.Summary == nil {
				return nil, errors.Errorf("line %d: summary missing", line)
			}
			err = mem.End(ctx, e.Summary)
		default:
			err = errors.Errorf("unknown entry %q", e.Kind)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
	}
	if err := scan.Err(); err != nil {
		return nil, errors.Wrap(err, "Failed to read event log")
	}

	return mem.Games(), nil
}

// ReadFile parses the event log NAME.
func ReadFile(name string) ([]*Game, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to open event log %s", name)
	}
	defer f.Close()
	return Read(f)
}
