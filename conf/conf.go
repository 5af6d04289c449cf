// Configuration Sections
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
	"encoding/json"
	"os"
	"runtime"
	"strings"
	"time"

	"go-pyrat"
	"go-pyrat/bot"
	"go-pyrat/isol"
	"go-pyrat/maze"
	"go-pyrat/turn"
)

// Duration is a time.Duration written as a string like "100ms".
type Duration struct{ time.Duration }

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) (err error) {
	d.Duration, err = time.ParseDuration(string(text))
	return
}

type MazeConf struct {
	Width          int           `toml:"width"`
	Height         int           `toml:"height"`
	CellPercentage float64       `toml:"cell_percentage"`
	WallPercentage float64       `toml:"wall_percentage"`
	MudPercentage  float64       `toml:"mud_percentage"`
	MudRange       [2]uint       `toml:"mud_range"`
	Cheese         int           `toml:"cheese"`
	FixedCheese    []pyrat.Cell  `toml:"fixed_cheese,omitempty"`
	Start          maze.Start    `toml:"start"`
	Starts         [2]pyrat.Cell `toml:"starts"`
	// A JSON file with a maze to use instead of generating one, or
	// the JSON object itself
	FixedMaze string `toml:"fixed_maze,omitempty"`

	fixed *pyrat.Maze
}

// Load the maze named by FixedMaze, if any.
func (mc *MazeConf) load() error {
	if mc.FixedMaze == "" {
		mc.fixed = nil
		return nil
	}
	if mc.fixed != nil {
		return nil
	}

	data := []byte(mc.FixedMaze)
	if !strings.HasPrefix(strings.TrimSpace(mc.FixedMaze), "{") {
		var err error
		data, err = os.ReadFile(mc.FixedMaze)
		if err != nil {
			return pyrat.Misconfigured("fixed_maze", "%s", err)
		}
	}

	var m pyrat.Maze
	if err := json.Unmarshal(data, &m); err != nil {
		return pyrat.Misconfigured("fixed_maze", "%s", err)
	}
	mc.fixed = &m
	return nil
}

// SeedConf holds the global seed, and optionally the seeds of the
// individual random streams derived from it.
type SeedConf struct {
	Seed    uint64  `toml:"seed"`
	Maze    *uint64 `toml:"maze,omitempty"`
	Cheese  *uint64 `toml:"cheese,omitempty"`
	Players *uint64 `toml:"players,omitempty"`
}

type GameConf struct {
	TurnTime          Duration      `toml:"turn_time"`
	PreprocessingTime Duration      `toml:"preprocessing_time"`
	HardLimit         uint          `toml:"hard_limit"`
	Synchronous       bool          `toml:"synchronous"`
	MaxTurns          int           `toml:"max_turns"`
	CellSharing       pyrat.Sharing `toml:"cell_sharing"`
	CheeseTie         pyrat.Tie     `toml:"cheese_tie"`
	StopWhenDecided   bool          `toml:"stop_when_decided"`
}

// PlayerConf describes how to run a player.  Exactly one of Command,
// Image and Builtin has to be set.
type PlayerConf struct {
	Name    string   `toml:"name,omitempty"`
	Command []string `toml:"command,omitempty"`
	Dir     string   `toml:"dir,omitempty"`
	Image   string   `toml:"image,omitempty"`
	Builtin string   `toml:"builtin,omitempty"`
}

type PlayersConf struct {
	Player1 PlayerConf `toml:"player1"`
	Player2 PlayerConf `toml:"player2"`
}

type JournalConf struct {
	// JSON lines event log
	File string `toml:"file,omitempty"`
	// SQLite database
	Database string `toml:"database,omitempty"`
}

type SeriesConf struct {
	Games     int    `toml:"games"`
	Offset    uint64 `toml:"offset"`
	Workers   int    `toml:"workers"`
	Alternate bool   `toml:"alternate"`
}

type LogConf struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Conf is the complete configuration of a program.
type Conf struct {
	Maze    MazeConf    `toml:"maze"`
	Seed    SeedConf    `toml:"seed"`
	Game    GameConf    `toml:"game"`
	Players PlayersConf `toml:"players"`
	Journal JournalConf `toml:"journal"`
	Series  SeriesConf  `toml:"series"`
	Log     LogConf     `toml:"log"`
}

// Default returns the configuration used when nothing else is
// requested.
func Default() *Conf {
	p := maze.Defaults()
	return &Conf{
		Maze: MazeConf{
			Width:          p.Width,
			Height:         p.Height,
			CellPercentage: p.CellPercentage,
			WallPercentage: p.WallPercentage,
			MudPercentage:  p.MudPercentage,
			MudRange:       p.MudRange,
			Cheese:         p.Cheese,
			Start:          p.Start,
		},
		Game: GameConf{
			TurnTime:          Duration{turn.DefaultOptions.Budget},
			PreprocessingTime: Duration{turn.DefaultOptions.Preparation},
			HardLimit:         turn.DefaultOptions.HardLimit,
			CellSharing:       pyrat.SharedCells,
			CheeseTie:         pyrat.TieShared,
		},
		Players: PlayersConf{
			Player1: PlayerConf{Builtin: "random"},
			Player2: PlayerConf{Builtin: "random"},
		},
		Journal: JournalConf{
			Database: "pyrat.db",
		},
		Series: SeriesConf{
			Games:     10,
			Workers:   runtime.NumCPU(),
			Alternate: true,
		},
		Log: LogConf{
			Level:  "info",
			Format: "console",
		},
	}
}

// Seeds returns the seeds of all random streams, derived from SEED
// unless they were given explicitly.
func (c *Conf) Seeds(seed uint64) pyrat.Seeds {
	s := maze.Derive(seed)
	if c.Seed.Maze != nil {
		s.Maze = *c.Seed.Maze
	}
	if c.Seed.Cheese != nil {
		s.Cheese = *c.Seed.Cheese
	}
	if c.Seed.Players != nil {
		s.Players = *c.Seed.Players
	}
	return s
}

// Params returns the maze parameters for the game with the global
// seed SEED.
func (c *Conf) Params(seed uint64) maze.Params {
	p := maze.Params{
		Width:          c.Maze.Width,
		Height:         c.Maze.Height,
		CellPercentage: c.Maze.CellPercentage,
		WallPercentage: c.Maze.WallPercentage,
		MudPercentage:  c.Maze.MudPercentage,
		MudRange:       c.Maze.MudRange,
		Cheese:         c.Maze.Cheese,
		FixedCheese:    c.Maze.FixedCheese,
		Start:          c.Maze.Start,
		Starts:         c.Maze.Starts,
		Seeds:          c.Seeds(seed),
	}
	if m := c.Maze.fixed; m != nil {
		p.FixedMaze = m
		p.Width, p.Height = m.Width(), m.Height()
	}
	return p
}

func (c *Conf) Rules() pyrat.Rules {
	return pyrat.Rules{
		Sharing:         c.Game.CellSharing,
		Tie:             c.Game.CheeseTie,
		MaxTurns:        c.Game.MaxTurns,
		StopWhenDecided: c.Game.StopWhenDecided,
	}
}

func (c *Conf) Timing() turn.Options {
	return turn.Options{
		Budget:      c.Game.TurnTime.Duration,
		Preparation: c.Game.PreprocessingTime.Duration,
		HardLimit:   c.Game.HardLimit,
		Synchronous: c.Game.Synchronous,
	}
}

// Validate checks the configuration as a whole.
func (c *Conf) Validate() error {
	if err := c.Maze.load(); err != nil {
		return err
	}
	p := c.Params(c.Seed.Seed)
	if err := p.Validate(); err != nil {
		return err
	}
	if err := c.Rules().Validate(); err != nil {
		return err
	}
	o := c.Timing()
	if err := o.Validate(); err != nil {
		return err
	}
	for i, pc := range []*PlayerConf{&c.Players.Player1, &c.Players.Player2} {
		if err := pc.validate(); err != nil {
			return pyrat.Misconfigured(pyrat.Sides[i].String(), "%s", err.Msg)
		}
	}
	switch {
	case c.Series.Games < 1:
		return pyrat.Misconfigured("games", "must be at least 1")
	case c.Series.Workers < 1:
		return pyrat.Misconfigured("workers", "must be at least 1")
	}
	return nil
}

func (pc *PlayerConf) unset() bool {
	return len(pc.Command) == 0 && pc.Image == "" && pc.Builtin == ""
}

func (pc *PlayerConf) validate() *pyrat.ConfigurationError {
	n := 0
	if len(pc.Command) > 0 {
		n++
	}
	if pc.Image != "" {
		n++
	}
	if pc.Builtin != "" {
		n++
		if pc.Builtin != "random" {
			return &pyrat.ConfigurationError{Msg: "unknown builtin player " + pc.Builtin}
		}
	}
	if n != 1 {
		return &pyrat.ConfigurationError{Msg: "exactly one of command, image and builtin is required"}
	}
	return nil
}

// String returns the name of the player in logs and event logs.
func (pc *PlayerConf) String() string {
	switch {
	case pc.Name != "":
		return pc.Name
	case len(pc.Command) > 0:
		return strings.Join(pc.Command, " ")
	case pc.Image != "":
		return pc.Image
	default:
		return pc.Builtin
	}
}

// Agent creates a fresh instance of the player.  SEED is only used by
// builtin players.
func (pc *PlayerConf) Agent(seed uint64) pyrat.Agent {
	switch {
	case len(pc.Command) > 0:
		return isol.Process(pc.Dir, pc.Command...)
	case pc.Image != "":
		return isol.Docker(pc.Image)
	default:
		return bot.Random(seed)
	}
}
