// Rule variants
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

import "fmt"

// Sharing decides whether both players may occupy one cell.
type Sharing uint8

const (
	SharedCells Sharing = iota
	ExclusiveCells
)

// Tie decides who gets a cheese both players reach on the same turn.
type Tie uint8

const (
	// Both players receive half of the cheese
	TieShared Tie = iota
	// Player 1 receives the whole cheese
	TieFirst
	// The cheese is removed without anyone scoring
	TieDiscard
)

// Rules select the variant of the game.  The zero value is the
// canonical rule set: shared cells, shared cheese and no turn limit.
type Rules struct {
	Sharing Sharing `json:"sharing"`
	Tie     Tie     `json:"tie"`
	// A MaxTurns of 0 means the game only ends when the cheese is
	// gone or the game is decided.
	MaxTurns int `json:"max_turns"`
	// End the game as soon as the trailing player cannot catch up.
	StopWhenDecided bool `json:"stop_when_decided"`
}

func (r Rules) Validate() error {
	if r.Sharing > ExclusiveCells {
		return Misconfigured("cell_sharing", "unknown policy %d", r.Sharing)
	}
	if r.Tie > TieDiscard {
		return Misconfigured("cheese_tie", "unknown policy %d", r.Tie)
	}
	if r.MaxTurns < 0 {
		return Misconfigured("max_turns", "must not be negative")
	}
	return nil
}

func (s Sharing) String() string {
	switch s {
	case SharedCells:
		return "shared"
	case ExclusiveCells:
		return "exclusive"
	}
	return fmt.Sprintf("sharing(%d)", uint8(s))
}

func (s Sharing) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Sharing) UnmarshalText(text []byte) error {
	switch string(text) {
	case "shared":
		*s = SharedCells
	case "exclusive":
		*s = ExclusiveCells
	default:
		return Misconfigured("cell_sharing", "unknown policy %q", text)
	}
	return nil
}

func (t Tie) String() string {
	switch t {
	case TieShared:
		return "shared"
	case TieFirst:
		return "first"
	case TieDiscard:
		return "discard"
	}
	return fmt.Sprintf("tie(%d)", uint8(t))
}

func (t Tie) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Tie) UnmarshalText(text []byte) error {
	switch string(text) {
	case "shared":
		*t = TieShared
	case "first":
		*t = TieFirst
	case "discard":
		*t = TieDiscard
	default:
		return Misconfigured("cheese_tie", "unknown policy %q", text)
	}
	return nil
}
