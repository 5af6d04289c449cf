// Turn Scheduler Tests
//
// Copyright (c) 2023  Philip Kaludercic

package turn

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go-pyrat"

	"github.com/stretchr/testify/require"
)

func snapshot() *pyrat.Snapshot {
	return &pyrat.Snapshot{
		Maze: pyrat.NewBuilder(3, 3).Fill(pyrat.Open).Build(),
		Positions: [2]pyrat.Cell{
			{Row: 0, Col: 0},
			{Row: 2, Col: 2},
		},
		Cheese: []pyrat.Cell{{Row: 1, Col: 1}},
	}
}

func always(m pyrat.Move) pyrat.Agent {
	return pyrat.DecisionFunc(func(context.Context, pyrat.Side, *pyrat.Snapshot) (pyrat.Move, error) {
		return m, nil
	})
}

// An agent that ignores its context until it is released
type hung struct {
	release chan struct{}
	killed  atomic.Bool
	calls   atomic.Int32
}

func (h *hung) Decide(context.Context, pyrat.Side, *pyrat.Snapshot) (pyrat.Move, error) {
	h.calls.Add(1)
	<-h.release
	return pyrat.Up, nil
}

func (h *hung) Kill() error {
	h.killed.Store(true)
	return nil
}

type preparer struct {
	pyrat.Agent
	prepared atomic.Bool
	finished atomic.Bool
}

func (p *preparer) Prepare(context.Context, pyrat.Side, *pyrat.Snapshot) error {
	p.prepared.Store(true)
	return nil
}

func (p *preparer) Finish(context.Context, pyrat.Side, *pyrat.Snapshot, *pyrat.Summary) error {
	p.finished.Store(true)
	return nil
}

func TestOptions(t *testing.T) {
	for _, opts := range []Options{
		{Budget: 0, HardLimit: 5},
		{Budget: time.Second, HardLimit: 0},
		{Budget: time.Second, HardLimit: 1, Preparation: -1},
	} {
		var cerr *pyrat.ConfigurationError
		require.True(t, errors.As(opts.Validate(), &cerr), "%+v", opts)
	}
	require.NoError(t, DefaultOptions.Validate())
	require.NoError(t, (&Options{Synchronous: true}).Validate())

	_, err := New([2]pyrat.Agent{always(pyrat.Stay), nil}, DefaultOptions)
	require.Error(t, err)
}

func TestVerdicts(t *testing.T) {
	for _, test := range []struct {
		name    string
		agent   pyrat.Agent
		verdict pyrat.Verdict
		request pyrat.Move
		move    pyrat.Move
	}{
		{"legal", always(pyrat.Down), pyrat.Accepted, pyrat.Down, pyrat.Down},
		{"stay", always(pyrat.Stay), pyrat.Accepted, pyrat.Stay, pyrat.Stay},
		{"border", always(pyrat.Up), pyrat.Illegal, pyrat.Up, pyrat.Stay},
		{"invalid", always(pyrat.Move(7)), pyrat.Illegal, pyrat.Stay, pyrat.Stay},
		{"error", pyrat.DecisionFunc(func(context.Context, pyrat.Side, *pyrat.Snapshot) (pyrat.Move, error) {
			return pyrat.Right, errors.New("no idea")
		}), pyrat.Crashed, pyrat.Stay, pyrat.Stay},
		{"panic", pyrat.DecisionFunc(func(context.Context, pyrat.Side, *pyrat.Snapshot) (pyrat.Move, error) {
			panic("oops")
		}), pyrat.Crashed, pyrat.Stay, pyrat.Stay},
		{"slow", pyrat.DecisionFunc(func(ctx context.Context, _ pyrat.Side, _ *pyrat.Snapshot) (pyrat.Move, error) {
			<-ctx.Done()
			return pyrat.Right, ctx.Err()
		}), pyrat.Timeout, pyrat.Stay, pyrat.Stay},
	} {
		t.Run(test.name, func(t *testing.T) {
			s, err := New([2]pyrat.Agent{test.agent, always(pyrat.Left)}, Options{
				Budget:    20 * time.Millisecond,
				HardLimit: 2,
			})
			require.NoError(t, err)
			defer s.Close()

			dec := s.Turn(context.Background(), snapshot())
			require.Equal(t, test.verdict, dec[0].Verdict)
			require.Equal(t, test.request, dec[0].Request)
			require.Equal(t, test.move, dec[0].Move)
			if test.verdict == pyrat.Crashed {
				require.NotEmpty(t, dec[0].Err)
			}

			require.Equal(t, pyrat.Accepted, dec[1].Verdict)
			require.Equal(t, pyrat.Left, dec[1].Move)
		})
	}
}

func TestHungPlayer(t *testing.T) {
	const budget = 20 * time.Millisecond

	h := &hung{release: make(chan struct{})}
	defer close(h.release)

	s, err := New([2]pyrat.Agent{always(pyrat.Right), h}, Options{
		Budget:    budget,
		HardLimit: 4,
	})
	require.NoError(t, err)
	defer s.Close()

	var (
		snap  = snapshot()
		ctx   = context.Background()
		start = time.Now()
	)

	dec := s.Turn(ctx, snap)
	require.Less(t, time.Since(start), 10*budget)
	require.Equal(t, pyrat.Timeout, dec[1].Verdict)
	require.Equal(t, pyrat.Stay, dec[1].Move)
	require.Equal(t, pyrat.Accepted, dec[0].Verdict)
	require.Equal(t, pyrat.Right, dec[0].Move)

	// The call has not been abandoned yet, but no new one is made
	dec = s.Turn(ctx, snap)
	require.Equal(t, pyrat.Busy, dec[1].Verdict)
	require.Equal(t, pyrat.Accepted, dec[0].Verdict)
	require.EqualValues(t, 1, h.calls.Load())
	require.False(t, h.killed.Load())

	time.Sleep(5 * budget)
	dec = s.Turn(ctx, snap)
	require.Equal(t, pyrat.Abandoned, dec[1].Verdict)
	require.Equal(t, pyrat.TimeoutWarning, dec[1].Warning())
	require.True(t, h.killed.Load())
	require.EqualValues(t, 1, h.calls.Load())
}

// An agent that ignores its context until it is killed
type killable struct {
	release chan struct{}
	once    sync.Once
	calls   atomic.Int32
	// Time Kill keeps running after the call was released
	linger time.Duration
}

func (k *killable) Decide(context.Context, pyrat.Side, *pyrat.Snapshot) (pyrat.Move, error) {
	k.calls.Add(1)
	<-k.release
	return pyrat.Stay, errors.New("killed")
}

func (k *killable) Kill() error {
	k.once.Do(func() { close(k.release) })
	time.Sleep(k.linger)
	return nil
}

func TestKilledPlayer(t *testing.T) {
	const budget = 10 * time.Millisecond

	for _, test := range []struct {
		name   string
		linger time.Duration
		wait   time.Duration
	}{
		{"instant", 0, 5 * budget},
		// The call returns while Kill is still running
		{"slow kill", 6 * budget, 3 * budget},
	} {
		t.Run(test.name, func(t *testing.T) {
			k := &killable{release: make(chan struct{}), linger: test.linger}
			s, err := New([2]pyrat.Agent{k, always(pyrat.Stay)}, Options{
				Budget:    budget,
				HardLimit: 2,
			})
			require.NoError(t, err)
			defer s.Close()

			snap := snapshot()
			dec := s.Turn(context.Background(), snap)
			require.Equal(t, pyrat.Timeout, dec[0].Verdict)

			time.Sleep(test.wait)
			for i := 0; i < 3; i++ {
				dec = s.Turn(context.Background(), snap)
				require.Equal(t, pyrat.Abandoned, dec[0].Verdict)
				require.Equal(t, pyrat.Accepted, dec[1].Verdict)
			}
			require.EqualValues(t, 1, k.calls.Load())
		})
	}
}

func TestLateAnswer(t *testing.T) {
	h := &hung{release: make(chan struct{})}
	s, err := New([2]pyrat.Agent{h, always(pyrat.Stay)}, Options{
		Budget:    10 * time.Millisecond,
		HardLimit: 100,
	})
	require.NoError(t, err)
	defer s.Close()

	snap := snapshot()
	dec := s.Turn(context.Background(), snap)
	require.Equal(t, pyrat.Timeout, dec[0].Verdict)

	close(h.release)
	require.Eventually(t, func() bool {
		// The late answer is discarded and the player is asked again
		dec = s.Turn(context.Background(), snap)
		return dec[0].Verdict == pyrat.Illegal
	}, time.Second, 10*time.Millisecond)
	require.Equal(t, pyrat.Up, dec[0].Request)
	require.False(t, h.killed.Load())
}

func TestStuck(t *testing.T) {
	var calls atomic.Int32
	agent := pyrat.DecisionFunc(func(context.Context, pyrat.Side, *pyrat.Snapshot) (pyrat.Move, error) {
		calls.Add(1)
		return pyrat.Left, nil
	})

	s, err := New([2]pyrat.Agent{agent, agent}, DefaultOptions)
	require.NoError(t, err)
	defer s.Close()

	snap := snapshot()
	snap.Mud[0] = pyrat.Mud{Target: pyrat.Cell{Row: 0, Col: 1}, Remaining: 2}

	dec := s.Turn(context.Background(), snap)
	require.Equal(t, pyrat.Stuck, dec[0].Verdict)
	require.Equal(t, pyrat.Stay, dec[0].Move)
	require.Equal(t, pyrat.NoWarning, dec[0].Warning())
	require.Equal(t, pyrat.Accepted, dec[1].Verdict)
	require.EqualValues(t, 1, calls.Load())
}

func TestSnapshotIsolation(t *testing.T) {
	vandal := pyrat.DecisionFunc(func(_ context.Context, _ pyrat.Side, s *pyrat.Snapshot) (pyrat.Move, error) {
		s.Cheese[0] = pyrat.Cell{Row: 2, Col: 0}
		s.Positions[1] = pyrat.Cell{Row: 0, Col: 2}
		return pyrat.Stay, nil
	})

	s, err := New([2]pyrat.Agent{vandal, vandal}, DefaultOptions)
	require.NoError(t, err)
	defer s.Close()

	snap := snapshot()
	s.Turn(context.Background(), snap)
	require.Equal(t, snapshot().Cheese, snap.Cheese)
	require.Equal(t, snapshot().Positions, snap.Positions)
}

func TestSynchronous(t *testing.T) {
	slow := pyrat.DecisionFunc(func(ctx context.Context, _ pyrat.Side, _ *pyrat.Snapshot) (pyrat.Move, error) {
		select {
		case <-time.After(30 * time.Millisecond):
			return pyrat.Right, nil
		case <-ctx.Done():
			return pyrat.Stay, ctx.Err()
		}
	})

	s, err := New([2]pyrat.Agent{slow, slow}, Options{
		Budget:      time.Millisecond,
		Synchronous: true,
	})
	require.NoError(t, err)
	defer s.Close()

	dec := s.Turn(context.Background(), snapshot())
	require.Equal(t, pyrat.Accepted, dec[0].Verdict)
	require.Equal(t, pyrat.Right, dec[0].Move)
	require.Equal(t, pyrat.Illegal, dec[1].Verdict)
}

func TestCancelled(t *testing.T) {
	h := &hung{release: make(chan struct{})}
	defer close(h.release)

	s, err := New([2]pyrat.Agent{h, h}, Options{Synchronous: true})
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	dec := s.Turn(ctx, snapshot())
	require.Equal(t, pyrat.Timeout, dec[0].Verdict)
	require.Equal(t, pyrat.Timeout, dec[1].Verdict)
}

func TestPrepareAndFinish(t *testing.T) {
	p := &preparer{Agent: always(pyrat.Stay)}
	s, err := New([2]pyrat.Agent{p, always(pyrat.Stay)}, DefaultOptions)
	require.NoError(t, err)
	defer s.Close()

	dec := s.Prepare(context.Background(), snapshot())
	require.Equal(t, pyrat.Accepted, dec[0].Verdict)
	require.True(t, p.prepared.Load())

	s.Finish(context.Background(), snapshot(), &pyrat.Summary{})
	require.True(t, p.finished.Load())
}
