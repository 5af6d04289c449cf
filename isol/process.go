// Subprocess Isolation
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
	"context"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/pkg/errors"
)

type process struct {
	dir  string
	argv []string
	run  *exec.Cmd
}

// Process returns a player that runs ARGV in the directory DIR.  An
// empty DIR is the current directory.
func Process(dir string, argv ...string) *Player {
	if len(argv) == 0 {
		panic("No command")
	}
	return &Player{be: &process{dir: dir, argv: argv}}
}

func (p *process) String() string {
	return strings.Join(p.argv, " ")
}

func (p *process) start(context.Context) (stdin io.WriteCloser, stdout, stderr io.Reader, err error) {
	p.run = exec.Command(p.argv[0], p.argv[1:]...)
	p.run.Dir = p.dir

	if stdin, err = p.run.StdinPipe(); err != nil {
		return
	}
	if stdout, err = p.run.StdoutPipe(); err != nil {
		return
	}
	if stderr, err = p.run.StderrPipe(); err != nil {
		return
	}
	err = errors.Wrapf(p.run.Start(), "Failed to run %s", p)
	return
}

func (p *process) kill() error {
	if p.run == nil || p.run.Process == nil {
		return nil
	}
	err := p.run.Process.Kill()
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

func (p *process) wait() error {
	if p.run == nil {
		return nil
	}
	return p.run.Wait()
}
