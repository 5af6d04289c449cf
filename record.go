// Snapshots, turn records and the event log interface
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

package pyrat

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Mud describes a player crossing a muddy passage.  The player stays
// on its cell until Remaining reaches zero, and then arrives at
// Target.
type Mud struct {
	Target    Cell `json:"target"`
	Remaining uint `json:"remaining"`
}

// Active reports whether the player is still crossing.
func (m Mud) Active() bool { return m.Remaining > 0 }

// Snapshot is a private copy of the game state handed to players.
type Snapshot struct {
	Maze      *Maze      `json:"maze"`
	Turn      int        `json:"turn"`
	MaxTurns  int        `json:"max_turns,omitempty"`
	Positions [2]Cell    `json:"positions"`
	Scores    [2]float64 `json:"scores"`
	Mud       [2]Mud     `json:"mud"`
	Cheese    []Cell     `json:"cheese"`
}

// Copy returns a deep copy of S.  The maze is immutable and shared.
func (s *Snapshot) Copy() *Snapshot {
	c := *s
	c.Cheese = append([]Cell(nil), s.Cheese...)
	return &c
}

type Verdict uint8

const (
	// The move was returned in time and is legal
	Accepted Verdict = iota
	// The move was returned in time but is not legal
	Illegal
	// The player did not answer in time
	Timeout
	// The player returned an error or panicked
	Crashed
	// The player was still busy with an earlier turn
	Busy
	// The player is crossing mud and was not asked
	Stuck
	// The player exceeded the hard limit and is no longer asked
	Abandoned
)

var verdicts = [...]string{
	Accepted:  "accepted",
	Illegal:   "illegal",
	Timeout:   "timeout",
	Crashed:   "crashed",
	Busy:      "busy",
	Stuck:     "mud",
	Abandoned: "abandoned",
}

func (v Verdict) String() string {
	if int(v) < len(verdicts) {
		return verdicts[v]
	}
	panic(fmt.Sprintf("Illegal verdict: %d", v))
}

func (v Verdict) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

func (v *Verdict) UnmarshalText(text []byte) error {
	for i, name := range verdicts {
		if name == string(text) {
			*v = Verdict(i)
			return nil
		}
	}
	return fmt.Errorf("unknown verdict %q", text)
}

// Warning classifies the faults a player can cause.
type Warning uint8

const (
	NoWarning Warning = iota
	IllegalMoveWarning
	TimeoutWarning
	PlayerCrashWarning
)

func (w Warning) String() string {
	switch w {
	case NoWarning:
		return "none"
	case IllegalMoveWarning:
		return "IllegalMoveWarning"
	case TimeoutWarning:
		return "TimeoutWarning"
	case PlayerCrashWarning:
		return "PlayerCrashWarning"
	}
	panic(fmt.Sprintf("Illegal warning: %d", w))
}

// Warning returns the fault a verdict stands for.
func (v Verdict) Warning() Warning {
	switch v {
	case Illegal:
		return IllegalMoveWarning
	case Timeout, Busy, Abandoned:
		return TimeoutWarning
	case Crashed:
		return PlayerCrashWarning
	}
	return NoWarning
}

// Decision is what the turn scheduler made of a player's answer.
type Decision struct {
	// Move handed to the rule engine
	Move Move `json:"move"`
	// Move the player asked for, if it answered in time
	Request Move          `json:"request"`
	Verdict Verdict       `json:"verdict"`
	Elapsed time.Duration `json:"elapsed"`
	Err     string        `json:"error,omitempty"`
}

func (d Decision) Warning() Warning {
	return d.Verdict.Warning()
}

// Collection records a cheese that was picked up.
type Collection struct {
	Cell Cell `json:"cell"`
	// Players who were credited
	By []Side `json:"by"`
	// Points each of them received
	Value float64 `json:"value"`
}

// TurnRecord is the unit of the event log.  Together with the Header
// it is sufficient to reconstruct every state of a game.
type TurnRecord struct {
	Turn      int         `json:"turn"`
	Decisions [2]Decision `json:"decisions"`
	// Moves as applied, after the legality re-check
	Moves     [2]Move      `json:"moves"`
	Positions [2]Cell      `json:"positions"`
	Mud       [2]Mud       `json:"mud"`
	Collected []Collection `json:"collected,omitempty"`
	Discarded []Cell       `json:"discarded,omitempty"`
	Gains     [2]float64   `json:"gains"`
	Scores    [2]float64   `json:"scores"`
	Remaining int          `json:"remaining"`
	Status    Status       `json:"status"`
	Reason    Reason       `json:"reason"`
	Outcome   Outcome      `json:"outcome"`
}

// Warnings lists the faults recorded for each player this turn.
func (r *TurnRecord) Warnings() (w [2]Warning) {
	for i, d := range r.Decisions {
		w[i] = d.Warning()
	}
	return
}

// Seeds of the independent random streams used to set up a game.
type Seeds struct {
	Maze    uint64 `json:"maze" toml:"maze"`
	Cheese  uint64 `json:"cheese" toml:"cheese"`
	Players uint64 `json:"players" toml:"players"`
}

// Header opens the event log of a game.
type Header struct {
	Game    uuid.UUID `json:"game"`
	Started time.Time `json:"started"`
	Players [2]string `json:"players"`
	Seeds   Seeds     `json:"seeds"`
	Rules   Rules     `json:"rules"`
	Maze    *Maze     `json:"maze"`
	Cheese  []Cell    `json:"cheese"`
	Starts  [2]Cell   `json:"starts"`
}

// Stats are the per-player counters of a game.
type Stats struct {
	Moves         map[string]int  `json:"moves"`
	TurnDurations []time.Duration `json:"turn_durations,omitempty"`
	Preprocessing time.Duration   `json:"preprocessing"`
}

// Summary closes the event log of a game.
type Summary struct {
	Game     uuid.UUID   `json:"game"`
	Turns    int         `json:"turns"`
	Scores   [2]float64  `json:"scores"`
	Reason   Reason      `json:"reason"`
	Outcome  Outcome     `json:"outcome"`
	Prepare  [2]Decision `json:"prepare"`
	Stats    [2]Stats    `json:"stats"`
	Finished time.Time   `json:"finished"`
}

// Journal is an append-only event log.  Begin is called once before
// the first turn, Record once per turn in order and End once after
// the game has finished.
type Journal interface {
	Begin(context.Context, *Header) error
	Record(context.Context, uuid.UUID, *TurnRecord) error
	End(context.Context, *Summary) error
}
