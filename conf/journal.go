// Event Log Selection
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
	"go-pyrat"
	"go-pyrat/db"
	"go-pyrat/journal"
)

// OpenJournal opens every event log requested by the configuration
// and registers it with ST, so that it is closed on shutdown.
func (c *Conf) OpenJournal(st *State) (pyrat.Journal, error) {
	var tee journal.Tee

	if c.Journal.Database != "" {
		store, err := db.Open(c.Journal.Database)
		if err != nil {
			return nil, err
		}
		st.Register(store)
		tee = append(tee, store)
	}
	if c.Journal.File != "" {
		file, err := journal.Create(c.Journal.File)
		if err != nil {
			return nil, err
		}
		st.Register(file)
		tee = append(tee, file)
	}

	switch len(tee) {
	case 0:
		return journal.Discard, nil
	case 1:
		return tee[0], nil
	}
	return tee, nil
}
