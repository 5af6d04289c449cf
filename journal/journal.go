// Event logs
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
	"context"
	"fmt"
	"sync"

	"go-pyrat"

	"github.com/google/uuid"
)

// Game is everything the event log knows about one game.
type Game struct {
	Header  *pyrat.Header
	Turns   []*pyrat.TurnRecord
	Summary *pyrat.Summary
}

// Memory keeps the event logs of any number of games in memory.
type Memory struct {
	lock  sync.Mutex
	games map[uuid.UUID]*Game
	order []uuid.UUID
}

func NewMemory() *Memory {
	return &Memory{games: make(map[uuid.UUID]*Game)}
}

func (m *Memory) Begin(_ context.Context, h *pyrat.Header) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	if _, ok := m.games[h.Game]; ok {
		return fmt.Errorf("game %s has already begun", h.Game)
	}
	m.games[h.Game] = &Game{Header: h}
	m.order = append(m.order, h.Game)
	return nil
}

func (m *Memory) Record(_ context.Context, id uuid.UUID, rec *pyrat.TurnRecord) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	g, ok := m.games[id]
	if !ok {
		return fmt.Errorf("unknown game %s", id)
	}
	g.Turns = append(g.Turns, rec)
	return nil
}

func (m *Memory) End(_ context.Context, sum *pyrat.Summary) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	g, ok := m.games[sum.Game]
	if !ok {
		return fmt.Errorf("unknown game %s", sum.Game)
	}
	g.Summary = sum
	return nil
}

// Game returns the log of the game ID.
func (m *Memory) Game(id uuid.UUID) (*Game, bool) {
	m.lock.Lock()
	defer m.lock.Unlock()
	g, ok := m.games[id]
	return g, ok
}

// Games returns all logs in the order the games began.
func (m *Memory) Games() []*Game {
	m.lock.Lock()
	defer m.lock.Unlock()

	games := make([]*Game, 0, len(m.order))
	for _, id := range m.order {
		games = append(games, m.games[id])
	}
	return games
}

type discard struct{}

func (discard) Begin(context.Context, *pyrat.Header) error                { return nil }
func (discard) Record(context.Context, uuid.UUID, *pyrat.TurnRecord) error { return nil }
func (discard) End(context.Context, *pyrat.Summary) error                 { return nil }

// Discard is a journal that forgets everything.
var Discard pyrat.Journal = discard{}

// Tee writes to every journal in order and stops at the first error.
type Tee []pyrat.Journal

func (t Tee) Begin(ctx context.Context, h *pyrat.Header) error {
	for _, j := range t {
		if err := j.Begin(ctx, h); err != nil {
			return err
		}
	}
	return nil
}

func (t Tee) Record(ctx context.Context, id uuid.UUID, rec *pyrat.TurnRecord) error {
	for _, j := range t {
		if err := j.Record(ctx, id, rec); err != nil {
			return err
		}
	}
	return nil
}

func (t Tee) End(ctx context.Context, sum *pyrat.Summary) error {
	for _, j := range t {
		if err := j.End(ctx, sum); err != nil {
			return err
		}
	}
	return nil
}
