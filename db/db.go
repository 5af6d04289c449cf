// Database management
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

package db

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"io/fs"
	"path"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"go-pyrat"
	"go-pyrat/journal"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

//go:embed *.sql
var sqlDir embed.FS

// Store is a journal backed by a SQLite database.  Headers, turns and
// summaries are stored as JSON next to a few columns that can be
// queried directly.
type Store struct {
	// The database connections
	read  *sql.DB
	write *sql.DB

	// QUERIES are the statements handled by READ, and COMMANDS
	// the statements handled by WRITE.
	queries  map[string]*sql.Stmt
	commands map[string]*sql.Stmt
}

// Entry is the overview of a game returned by QueryGames.
type Entry struct {
	ID      uuid.UUID
	Players [2]string
	Started time.Time
	// The remaining fields are only valid once the game has ended
	Finished bool
	Turns    int
	Scores   [2]float64
	Outcome  string
	Reason   string
}

// Open the database FILE, creating the schema if necessary.
func Open(file string) (*Store, error) {
	read, err := sql.Open("sqlite3", file)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to open %s", file)
	}
	read.SetConnMaxLifetime(0)
	read.SetMaxIdleConns(1)

	write, err := sql.Open("sqlite3", file)
	if err != nil {
		read.Close()
		return nil, errors.Wrapf(err, "Failed to open %s", file)
	}
	write.SetConnMaxLifetime(0)
	write.SetMaxIdleConns(1)
	write.SetMaxOpenConns(1)

	s := &Store{
		queries:  make(map[string]*sql.Stmt),
		commands: make(map[string]*sql.Stmt),
		write:    write,
		read:     read,
	}
	if err = s.init(); err != nil {
		s.read.Close()
		s.write.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	for _, pragma := range []string{
		// https://www.sqlite.org/pragma.html#pragma_journal_mode
		"journal_mode = WAL",
		// https://www.sqlite.org/pragma.html#pragma_synchronous
		"synchronous = normal",
		// https://www.sqlite.org/pragma.html#pragma_temp_store
		"temp_store = memory",
		// https://www.sqlite.org/pragma.html#pragma_foreign_keys
		"foreign_keys = on",
	} {
		pyrat.Log.Debug().Str("pragma", pragma).Msg("Run PRAGMA")
		_, err := s.write.Exec("PRAGMA " + pragma + ";")
		if err != nil {
			return errors.Wrapf(err, "PRAGMA %s", pragma)
		}
	}

	entries, err := sqlDir.ReadDir(".")
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if !entry.Type().IsRegular() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		base := path.Base(entry.Name())
		data, err := fs.ReadFile(sqlDir, entry.Name())
		if err != nil {
			return err
		}

		if strings.HasPrefix(base, "create-") {
			_, err = s.write.Exec(string(data))
			pyrat.Log.Debug().Str("file", base).Msg("Executed query")
		} else {
			query := strings.TrimSuffix(base, ".sql")
			if strings.HasPrefix(query, "select-") {
				s.queries[query], err = s.read.Prepare(string(data))
				pyrat.Log.Debug().Str("query", query).Msg("Registered query")
			} else {
				s.commands[query], err = s.write.Prepare(string(data))
				pyrat.Log.Debug().Str("command", query).Msg("Registered command")
			}
		}
		if err != nil {
			return errors.Wrap(err, entry.Name())
		}
	}

	return nil
}

func (s *Store) Begin(ctx context.Context, h *pyrat.Header) error {
	data, err := json.Marshal(h)
	if err != nil {
		return errors.Wrap(err, "Failed to encode header")
	}
	_, err = s.commands["insert-game"].ExecContext(ctx,
		h.Game, h.Players[0], h.Players[1], string(data), h.Started)
	return errors.Wrapf(err, "Failed to save game %s", h.Game)
}

func (s *Store) Record(ctx context.Context, id uuid.UUID, rec *pyrat.TurnRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "Failed to encode turn")
	}
	_, err = s.commands["insert-turn"].ExecContext(ctx,
		id, rec.Turn,
		rec.Moves[0].String(), rec.Moves[1].String(),
		rec.Decisions[0].Verdict.String(), rec.Decisions[1].Verdict.String(),
		string(data))
	return errors.Wrapf(err, "Failed to save turn %d of %s", rec.Turn, id)
}

func (s *Store) End(ctx context.Context, sum *pyrat.Summary) error {
	data, err := json.Marshal(sum)
	if err != nil {
		return errors.Wrap(err, "Failed to encode summary")
	}

	tx, err := s.write.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	res, err := tx.Stmt(s.commands["update-game"]).ExecContext(ctx,
		sum.Turns, sum.Scores[0], sum.Scores[1],
		sum.Outcome.String(), sum.Reason.String(),
		string(data), sum.Finished, sum.Game)
	if err == nil {
		var n int64
		n, err = res.RowsAffected()
		if err == nil && n != 1 {
			err = errors.Errorf("unknown game %s", sum.Game)
		}
	}
	if err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			pyrat.Log.Error().Err(rerr).Msg("Failed to roll back")
		}
		return errors.Wrapf(err, "Failed to finish game %s", sum.Game)
	}

	return tx.Commit()
}

// Forget removes a game and all its turns.
func (s *Store) Forget(ctx context.Context, id uuid.UUID) error {
	res, err := s.commands["delete-game"].ExecContext(ctx, id)
	if err != nil {
		return errors.Wrapf(err, "Failed to delete %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.Wrapf(sql.ErrNoRows, "game %s", id)
	}
	return nil
}

// QueryGame loads the event log of the game ID.  If the game is
// unknown, the error wraps sql.ErrNoRows.
func (s *Store) QueryGame(ctx context.Context, id uuid.UUID) (*journal.Game, error) {
	var (
		header  string
		summary sql.NullString
		g       journal.Game
	)

	err := s.queries["select-game"].QueryRowContext(ctx, id).Scan(&header, &summary)
	if err != nil {
		return nil, errors.Wrapf(err, "game %s", id)
	}
	if err = json.Unmarshal([]byte(header), &g.Header); err != nil {
		return nil, errors.Wrapf(err, "Malformed header of %s", id)
	}
	if summary.Valid {
		if err = json.Unmarshal([]byte(summary.String), &g.Summary); err != nil {
			return nil, errors.Wrapf(err, "Malformed summary of %s", id)
		}
	}

	rows, err := s.queries["select-turns"].QueryContext(ctx, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			data string
			rec  pyrat.TurnRecord
		)
		if err = rows.Scan(&data); err != nil {
			return nil, err
		}
		if err = json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, errors.Wrapf(err, "Malformed turn %d of %s", len(g.Turns)+1, id)
		}
		g.Turns = append(g.Turns, &rec)
	}

	return &g, rows.Err()
}

// QueryGames lists at most LIMIT games, most recent first, skipping
// the first OFFSET.
func (s *Store) QueryGames(ctx context.Context, limit, offset int) ([]*Entry, error) {
	rows, err := s.queries["select-games"].QueryContext(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var games []*Entry
	for rows.Next() {
		var (
			e               Entry
			turns           sql.NullInt64
			score1, score2  sql.NullFloat64
			outcome, reason sql.NullString
		)

		err = rows.Scan(
			&e.ID,
			&e.Players[0], &e.Players[1],
			&turns,
			&score1, &score2,
			&outcome, &reason,
			&e.Started)
		if err != nil {
			return nil, err
		}

		e.Finished = turns.Valid
		e.Turns = int(turns.Int64)
		e.Scores = [2]float64{score1.Float64, score2.Float64}
		e.Outcome, e.Reason = outcome.String, reason.String
		games = append(games, &e)
	}

	return games, rows.Err()
}

// Close the database.
func (s *Store) Close() error {
	// https://www.sqlite.org/pragma.html#pragma_optimize
	_, err := s.write.Exec("PRAGMA optimize;")
	if err != nil {
		pyrat.Log.Error().Err(err).Msg("Failed to optimize database")
	}

	for _, stmt := range s.queries {
		stmt.Close()
	}
	for _, stmt := range s.commands {
		stmt.Close()
	}

	if err = s.write.Close(); err != nil {
		s.read.Close()
		return err
	}
	return s.read.Close()
}

func (*Store) String() string { return "SQLite journal" }
