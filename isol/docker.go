// Docker-Based Player Isolation
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
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/pkg/errors"
)

type docker struct {
	image string
	id    string
	cont  *client.Client
	conn  *types.HijackedResponse
}

// Docker returns a player that runs in a fresh container of IMAGE.
// The container has no network access and is removed when it exits.
func Docker(image string) *Player {
	return &Player{be: &docker{image: image}}
}

func (d *docker) String() string { return d.image }

// The standard input of the container
type hijacked struct{ *types.HijackedResponse }

func (h hijacked) Write(p []byte) (int, error) { return h.Conn.Write(p) }
func (h hijacked) Close() error                { return h.CloseWrite() }

func (d *docker) start(ctx context.Context) (stdin io.WriteCloser, stdout, stderr io.Reader, err error) {
	d.cont, err = client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return
	}

	name := strings.Map(func(r rune) rune {
		switch {
		case 'a' <= r && r <= 'z', 'A' <= r && r <= 'Z', '0' <= r && r <= '9':
			return r
		default:
			return '-'
		}
	}, d.image)

	// The documentation for the library is sparse, but it is also
	// just a wrapper around a HTTP API.  To understand what this
	// configuration does, it is necessary to read
	// https://docs.docker.com/engine/api/v1.41/#operation/ContainerCreate
	resp, err := d.cont.ContainerCreate(ctx, &container.Config{
		Image:        d.image,
		AttachStdin:  true,
		AttachStdout: true,
		AttachStderr: true,
		OpenStdin:    true,
		StdinOnce:    true,
	}, &container.HostConfig{
		Resources: container.Resources{
			CPUCount: 1,
			NanoCPUs: 1e9,
			Memory:   1024 * 1024 * 1024,
		},
		NetworkMode:    "none",
		ReadonlyRootfs: true,
		AutoRemove:     true,
	}, nil, nil, fmt.Sprintf("pyrat-%s-%d", name, time.Now().UnixNano()))
	if err != nil {
		err = errors.Wrapf(err, "Failed to create container %s", d.image)
		return
	}
	d.id = resp.ID

	att, err := d.cont.ContainerAttach(ctx, d.id, types.ContainerAttachOptions{
		Stream: true,
		Stdin:  true,
		Stdout: true,
		Stderr: true,
	})
	if err != nil {
		err = errors.Wrapf(err, "Failed to attach to container %s", d.image)
		return
	}
	d.conn = &att

	// Without a TTY, stdout and stderr are multiplexed over one
	// stream.
	or, ow := io.Pipe()
	er, ew := io.Pipe()
	go func() {
		_, err := stdcopy.StdCopy(ow, ew, att.Reader)
		ow.CloseWithError(err)
		ew.CloseWithError(err)
	}()

	err = d.cont.ContainerStart(ctx, d.id, types.ContainerStartOptions{})
	if err != nil {
		att.Close()
		rerr := d.cont.ContainerRemove(ctx, d.id, types.ContainerRemoveOptions{Force: true})
		if rerr != nil {
			err = errors.Wrap(err, rerr.Error())
		}
		err = errors.Wrapf(err, "Failed to start container %s", d.image)
		return
	}

	return hijacked{d.conn}, or, er, nil
}

func (d *docker) kill() error {
	if d.cont == nil || d.id == "" {
		return nil
	}
	err := d.cont.ContainerKill(context.Background(), d.id, "SIGKILL")
	if err != nil && !client.IsErrNotFound(err) {
		return errors.Wrapf(err, "Failed to kill container %s", d.image)
	}
	return nil
}

func (d *docker) wait() error {
	if d.cont == nil || d.id == "" {
		return nil
	}
	defer d.cont.Close()
	if d.conn != nil {
		defer d.conn.Close()
	}

	okC, errC := d.cont.ContainerWait(context.Background(), d.id, container.WaitConditionNotRunning)
	select {
	case err := <-errC:
		if client.IsErrNotFound(err) {
			// already removed
			return nil
		}
		return errors.Wrapf(err, "Container %s signalled an error", d.image)
	case res := <-okC:
		if res.StatusCode != 0 {
			return errors.Errorf("Container %s exited with %d", d.image, res.StatusCode)
		}
		return nil
	}
}
