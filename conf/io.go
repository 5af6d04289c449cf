// Configuration loading and dumping
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
	"flag"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"go-pyrat"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	defconf = "go-pyrat.toml"
	defenv  = ".env"
)

var (
	debug  = false
	silent = false
	dump   = false
	cfile  = defconf

	// Values of command line flags, applied if they were set
	flags = struct {
		seed     uint64
		turnTime time.Duration
		maxTurns int
		sync     bool
		db       string
		log      string
		p1, p2   string
		i1, i2   string
		games    int
		offset   uint64
		workers  int
	}{}
)

func init() {
	def := Default()

	flag.Uint64Var(&flags.seed, "seed", def.Seed.Seed,
		"Global seed of the maze, cheese and players")
	flag.DurationVar(&flags.turnTime, "turn-time", def.Game.TurnTime.Duration,
		"Time budget of a turn")
	flag.IntVar(&flags.maxTurns, "max-turns", def.Game.MaxTurns,
		"End a game after this many turns (0 is unlimited)")
	flag.BoolVar(&flags.sync, "sync", def.Game.Synchronous,
		"Wait for every player, however long it takes")

	flag.StringVar(&flags.db, "db", def.Journal.Database,
		"File to use for the database")
	flag.StringVar(&flags.log, "log", def.Journal.File,
		"File to append the JSON event log to")

	flag.StringVar(&flags.p1, "p1", "",
		"Command to run the first player")
	flag.StringVar(&flags.p2, "p2", "",
		"Command to run the second player")
	flag.StringVar(&flags.i1, "image1", "",
		"Docker image of the first player")
	flag.StringVar(&flags.i2, "image2", "",
		"Docker image of the second player")

	flag.IntVar(&flags.games, "games", def.Series.Games,
		"Number of games in a series")
	flag.Uint64Var(&flags.offset, "offset", def.Series.Offset,
		"Seed of the first game in a series")
	flag.IntVar(&flags.workers, "workers", def.Series.Workers,
		"Number of games to play at the same time")

	flag.BoolVar(&debug, "debug", debug, "Enable debug output")
	flag.BoolVar(&silent, "silent", silent, "Disable all output but errors")
	flag.BoolVar(&dump, "dump-config", dump, "Dump configuration to standard output")
	flag.StringVar(&cfile, "conf", cfile, "Path to configuration file")
}

// Decode a configuration file from R on top of the default
// configuration.
func Decode(r io.Reader) (*Conf, error) {
	c := Default()
	c.Players = PlayersConf{}
	md, err := toml.NewDecoder(r).Decode(c)
	if err != nil {
		return nil, errors.Wrap(err, "Malformed configuration")
	}
	for _, pc := range []*PlayerConf{&c.Players.Player1, &c.Players.Player2} {
		if pc.unset() {
			pc.Builtin = "random"
		}
	}
	if undec := md.Undecoded(); len(undec) > 0 {
		pyrat.Log.Warn().Stringer("key", undec[0]).Msg("Unknown configuration key")
	}
	return c, nil
}

// Environment applies the PYRAT_* variables, as looked up by GETENV.
func (c *Conf) Environment(getenv func(string) string) (err error) {
	if v := getenv("PYRAT_SEED"); v != "" {
		c.Seed.Seed, err = strconv.ParseUint(v, 10, 64)
		if err != nil {
			return pyrat.Misconfigured("PYRAT_SEED", "%s", err)
		}
	}
	if v := getenv("PYRAT_TURN_TIME"); v != "" {
		c.Game.TurnTime.Duration, err = time.ParseDuration(v)
		if err != nil {
			return pyrat.Misconfigured("PYRAT_TURN_TIME", "%s", err)
		}
	}
	if v := getenv("PYRAT_DB"); v != "" {
		c.Journal.Database = v
	}
	if v := getenv("PYRAT_LOG"); v != "" {
		c.Log.Level = v
	}
	return nil
}

// Apply the command line flags that were set explicitly
func (c *Conf) arguments(set *flag.FlagSet) {
	set.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "seed":
			c.Seed.Seed = flags.seed
		case "turn-time":
			c.Game.TurnTime.Duration = flags.turnTime
		case "max-turns":
			c.Game.MaxTurns = flags.maxTurns
		case "sync":
			c.Game.Synchronous = flags.sync
		case "db":
			c.Journal.Database = flags.db
		case "log":
			c.Journal.File = flags.log
		case "p1":
			c.Players.Player1 = PlayerConf{Command: strings.Fields(flags.p1)}
		case "p2":
			c.Players.Player2 = PlayerConf{Command: strings.Fields(flags.p2)}
		case "image1":
			c.Players.Player1 = PlayerConf{Image: flags.i1}
		case "image2":
			c.Players.Player2 = PlayerConf{Image: flags.i2}
		case "games":
			c.Series.Games = flags.games
		case "offset":
			c.Series.Offset = flags.offset
		case "workers":
			c.Series.Workers = flags.workers
		}
	})
	switch {
	case debug:
		c.Log.Level = zerolog.LevelDebugValue
	case silent:
		c.Log.Level = zerolog.LevelErrorValue
	}
}

// Logger creates the logger requested by the configuration.
func (c *Conf) Logger(w io.Writer) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil {
		return zerolog.Nop(), pyrat.Misconfigured("log.level", "%s", err)
	}

	switch c.Log.Format {
	case "json":
	case "console", "":
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	default:
		return zerolog.Nop(), pyrat.Misconfigured("log.format", "unknown format %q", c.Log.Format)
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}

// Open a configuration file and return it
func Open(name string) (*Conf, error) {
	file, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return Decode(file)
}

// Load the configuration requested on the command line, which has to
// be parsed first.  Defaults are overridden by the configuration
// file, which is overridden by the environment (and .env), which is
// overridden by flags.  The logger is set up as a side effect.
func Load() (*Conf, error) {
	c, err := Open(cfile)
	if err != nil {
		if !os.IsNotExist(err) || cfile != defconf {
			return nil, err
		}
		c = Default()
	}

	err = godotenv.Load(defenv)
	if err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "Failed to load %s", defenv)
	}
	if err = c.Environment(os.Getenv); err != nil {
		return nil, err
	}
	c.arguments(flag.CommandLine)

	log, err := c.Logger(os.Stderr)
	if err != nil {
		return nil, err
	}
	pyrat.Log = log
	pyrat.Log.Debug().Str("file", cfile).Msg("Configuration loaded")

	// Dump the configuration onto the disk if requested
	if dump {
		if err = c.Dump(os.Stdout); err != nil {
			return nil, errors.Wrap(err, "Failed to dump configuration")
		}
		os.Exit(0)
	}

	return c, c.Validate()
}

// Serialise the configuration into a writer
func (c *Conf) Dump(wr io.Writer) error {
	return toml.NewEncoder(wr).Encode(c)
}
