// Rule Engine Tests
//
// Copyright (c) 2023  Philip Kaludercic

package game

import (
	"errors"
	"fmt"
	"testing"

	"go-pyrat"
	"go-pyrat/maze"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

func open(w, h int) *pyrat.Maze {
	return pyrat.NewBuilder(w, h).Fill(pyrat.Open).Build()
}

func cell(row, col int) pyrat.Cell {
	return pyrat.Cell{Row: row, Col: col}
}

func apply(t *testing.T, st *State, moves ...[2]pyrat.Move) (recs []*pyrat.TurnRecord) {
	for _, m := range moves {
		rec, err := st.ApplyTurn(m[0], m[1])
		require.NoError(t, err)
		recs = append(recs, rec)
	}
	return
}

func TestCenterCheese(t *testing.T) {
	var (
		U, D = pyrat.Up, pyrat.Down
		L, R = pyrat.Left, pyrat.Right
	)

	for _, test := range []struct {
		tie     pyrat.Tie
		scores  [2]float64
		outcome pyrat.Outcome
	}{
		{pyrat.TieShared, [2]float64{0.5, 0.5}, pyrat.Draw},
		{pyrat.TieFirst, [2]float64{1, 0}, pyrat.Player1Won},
		{pyrat.TieDiscard, [2]float64{0, 0}, pyrat.Draw},
	} {
		t.Run(test.tie.String(), func(t *testing.T) {
			st, err := New(open(5, 5), []pyrat.Cell{cell(2, 2)},
				[2]pyrat.Cell{cell(0, 0), cell(4, 4)},
				pyrat.Rules{Tie: test.tie})
			require.NoError(t, err)

			recs := apply(t, st, [2]pyrat.Move{D, U}, [2]pyrat.Move{D, U}, [2]pyrat.Move{R, L})
			for _, rec := range recs {
				require.Equal(t, pyrat.Running, rec.Status)
				require.Equal(t, 1, rec.Remaining)
			}
			require.Equal(t, [2]pyrat.Cell{cell(2, 1), cell(2, 3)}, recs[2].Positions)

			last := apply(t, st, [2]pyrat.Move{R, L})[0]
			require.Equal(t, [2]pyrat.Cell{cell(2, 2), cell(2, 2)}, last.Positions)
			require.Equal(t, test.scores, last.Scores)
			require.Equal(t, test.scores, last.Gains)
			require.Empty(t, st.Cheese())
			require.Equal(t, pyrat.Finished, st.Status())
			require.Equal(t, pyrat.Finished, last.Status)
			require.Equal(t, pyrat.CheeseExhausted, last.Reason)
			require.Equal(t, test.outcome, last.Outcome)
			require.Equal(t, 4, st.Turn())

			if test.tie == pyrat.TieDiscard {
				require.Equal(t, []pyrat.Cell{cell(2, 2)}, last.Discarded)
				require.Empty(t, last.Collected)
			}
		})
	}
}

func TestMoves(t *testing.T) {
	b := pyrat.NewBuilder(3, 3).Fill(pyrat.Open)
	require.NoError(t, b.Set(cell(1, 1), cell(1, 2), pyrat.Wall))
	m := b.Build()

	for i, test := range []struct {
		moves   [2]pyrat.Move
		after   [2]pyrat.Cell
		applied [2]pyrat.Move
	}{
		{
			[2]pyrat.Move{pyrat.Up, pyrat.Left},
			[2]pyrat.Cell{cell(0, 1), cell(2, 1)},
			[2]pyrat.Move{pyrat.Up, pyrat.Left},
		}, {
			// wall between (1,1) and (1,2)
			[2]pyrat.Move{pyrat.Right, pyrat.Up},
			[2]pyrat.Cell{cell(1, 1), cell(1, 2)},
			[2]pyrat.Move{pyrat.Stay, pyrat.Up},
		}, {
			// border of the maze, and an invalid move
			[2]pyrat.Move{pyrat.Left, pyrat.Move(9)},
			[2]pyrat.Cell{cell(1, 0), cell(2, 2)},
			[2]pyrat.Move{pyrat.Left, pyrat.Stay},
		}, {
			[2]pyrat.Move{pyrat.Stay, pyrat.Right},
			[2]pyrat.Cell{cell(1, 1), cell(2, 2)},
			[2]pyrat.Move{pyrat.Stay, pyrat.Stay},
		},
	} {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			start := [2]pyrat.Cell{cell(1, 1), cell(2, 2)}
			st, err := New(m, []pyrat.Cell{cell(0, 0)}, start, pyrat.Rules{})
			require.NoError(t, err)

			rec := apply(t, st, test.moves)[0]
			require.Equal(t, test.after, rec.Positions)
			require.Equal(t, test.applied, rec.Moves)
		})
	}
}

func TestIllegalMoveKeepsPosition(t *testing.T) {
	b := pyrat.NewBuilder(2, 2)
	require.NoError(t, b.Set(cell(0, 0), cell(0, 1), pyrat.Open))
	require.NoError(t, b.Set(cell(0, 1), cell(1, 1), pyrat.Open))
	require.NoError(t, b.Set(cell(1, 1), cell(1, 0), pyrat.Open))

	st, err := New(b.Build(), []pyrat.Cell{cell(0, 1)},
		[2]pyrat.Cell{cell(0, 0), cell(1, 0)}, pyrat.Rules{})
	require.NoError(t, err)

	rec := apply(t, st, [2]pyrat.Move{pyrat.Down, pyrat.Up})[0]
	require.Equal(t, [2]pyrat.Cell{cell(0, 0), cell(1, 0)}, rec.Positions)
	require.Equal(t, [2]pyrat.Move{pyrat.Stay, pyrat.Stay}, rec.Moves)
	require.Equal(t, [2]float64{0, 0}, rec.Scores)
}

func TestTurnLimit(t *testing.T) {
	st, err := New(open(3, 3), []pyrat.Cell{cell(1, 1)},
		[2]pyrat.Cell{cell(0, 0), cell(2, 2)},
		pyrat.Rules{MaxTurns: 3})
	require.NoError(t, err)

	stay := [2]pyrat.Move{pyrat.Stay, pyrat.Stay}
	recs := apply(t, st, stay, stay, stay)
	for _, rec := range recs[:2] {
		require.Equal(t, pyrat.Running, rec.Status)
		require.Equal(t, pyrat.NoReason, rec.Reason)
		require.Equal(t, pyrat.Ongoing, rec.Outcome)
	}

	last := recs[2]
	require.Equal(t, pyrat.Finished, last.Status)
	require.Equal(t, pyrat.TurnLimit, last.Reason)
	require.Equal(t, pyrat.Draw, last.Outcome)
	require.Equal(t, 1, last.Remaining)

	_, err = st.ApplyTurn(pyrat.Stay, pyrat.Stay)
	var ierr *pyrat.InvariantError
	require.True(t, errors.As(err, &ierr))
}

func TestMud(t *testing.T) {
	b := pyrat.NewBuilder(4, 1)
	require.NoError(t, b.Set(cell(0, 0), cell(0, 1), 3))
	require.NoError(t, b.Set(cell(0, 1), cell(0, 2), pyrat.Open))
	require.NoError(t, b.Set(cell(0, 2), cell(0, 3), pyrat.Open))

	st, err := New(b.Build(), []pyrat.Cell{cell(0, 1), cell(0, 2)},
		[2]pyrat.Cell{cell(0, 0), cell(0, 3)}, pyrat.Rules{})
	require.NoError(t, err)

	// Player 1 enters the mud; further moves are ignored
	recs := apply(t, st,
		[2]pyrat.Move{pyrat.Right, pyrat.Stay},
		[2]pyrat.Move{pyrat.Left, pyrat.Stay},
		[2]pyrat.Move{pyrat.Stay, pyrat.Stay})

	require.Equal(t, cell(0, 0), recs[0].Positions[0])
	require.Equal(t, pyrat.Mud{Target: cell(0, 1), Remaining: 2}, recs[0].Mud[0])
	require.Equal(t, pyrat.Right, recs[0].Moves[0])

	require.Equal(t, cell(0, 0), recs[1].Positions[0])
	require.Equal(t, pyrat.Mud{Target: cell(0, 1), Remaining: 1}, recs[1].Mud[0])
	require.Equal(t, pyrat.Stay, recs[1].Moves[0])

	require.Equal(t, cell(0, 1), recs[2].Positions[0])
	require.False(t, recs[2].Mud[0].Active())
	require.Equal(t, 1.0, recs[2].Scores[0])
	require.Equal(t, pyrat.Running, recs[2].Status)
}

func TestExclusiveCells(t *testing.T) {
	var (
		rules  = pyrat.Rules{Sharing: pyrat.ExclusiveCells}
		starts = [2]pyrat.Cell{cell(0, 1), cell(0, 3)}
		cheese = []pyrat.Cell{cell(0, 0), cell(0, 2), cell(0, 4)}
	)

	st, err := New(open(5, 1), cheese, starts, rules)
	require.NoError(t, err)

	// Both players head for the same cell and are sent back
	rec := apply(t, st, [2]pyrat.Move{pyrat.Right, pyrat.Left})[0]
	require.Equal(t, starts, rec.Positions)
	require.Equal(t, 3, rec.Remaining)
	require.Empty(t, rec.Collected)

	rec = apply(t, st, [2]pyrat.Move{pyrat.Right, pyrat.Stay})[0]
	require.Equal(t, [2]pyrat.Cell{cell(0, 2), cell(0, 3)}, rec.Positions)
	require.Equal(t, 2, rec.Remaining)

	// Player 2 may not enter the cell player 1 stays on
	rec = apply(t, st, [2]pyrat.Move{pyrat.Stay, pyrat.Left})[0]
	require.Equal(t, [2]pyrat.Cell{cell(0, 2), cell(0, 3)}, rec.Positions)

	_, err = New(open(5, 1), cheese, [2]pyrat.Cell{cell(0, 1), cell(0, 1)}, rules)
	var cerr *pyrat.ConfigurationError
	require.True(t, errors.As(err, &cerr))
}

func TestExclusiveMud(t *testing.T) {
	b := pyrat.NewBuilder(3, 1)
	require.NoError(t, b.Set(cell(0, 0), cell(0, 1), 2))
	require.NoError(t, b.Set(cell(0, 1), cell(0, 2), pyrat.Open))

	st, err := New(b.Build(), []pyrat.Cell{cell(0, 1)},
		[2]pyrat.Cell{cell(0, 0), cell(0, 2)},
		pyrat.Rules{Sharing: pyrat.ExclusiveCells})
	require.NoError(t, err)

	recs := apply(t, st,
		[2]pyrat.Move{pyrat.Right, pyrat.Stay},
		[2]pyrat.Move{pyrat.Stay, pyrat.Left},
		[2]pyrat.Move{pyrat.Stay, pyrat.Stay})

	// Player 1 leaves the mud into player 2 and has to try again
	require.Equal(t, [2]pyrat.Cell{cell(0, 0), cell(0, 2)}, recs[1].Positions)
	require.Equal(t, pyrat.Mud{Target: cell(0, 1), Remaining: 1}, recs[1].Mud[0])

	require.Equal(t, [2]pyrat.Cell{cell(0, 1), cell(0, 2)}, recs[2].Positions)
	require.Equal(t, [2]float64{1, 0}, recs[2].Scores)
	require.Equal(t, pyrat.CheeseExhausted, recs[2].Reason)
}

func TestSwapPositions(t *testing.T) {
	for _, sharing := range []pyrat.Sharing{pyrat.SharedCells, pyrat.ExclusiveCells} {
		st, err := New(open(2, 2), []pyrat.Cell{cell(1, 1)},
			[2]pyrat.Cell{cell(0, 0), cell(0, 1)},
			pyrat.Rules{Sharing: sharing})
		require.NoError(t, err)

		rec := apply(t, st, [2]pyrat.Move{pyrat.Right, pyrat.Left})[0]
		require.Equal(t, [2]pyrat.Cell{cell(0, 1), cell(0, 0)}, rec.Positions, sharing.String())
	}
}

func TestDecided(t *testing.T) {
	cheese := []pyrat.Cell{cell(0, 1), cell(0, 2), cell(0, 4)}
	st, err := New(open(6, 1), cheese, [2]pyrat.Cell{cell(0, 0), cell(0, 5)},
		pyrat.Rules{StopWhenDecided: true})
	require.NoError(t, err)

	recs := apply(t, st,
		[2]pyrat.Move{pyrat.Right, pyrat.Stay},
		[2]pyrat.Move{pyrat.Right, pyrat.Stay})
	require.Equal(t, pyrat.Running, recs[0].Status)
	require.Equal(t, pyrat.Finished, recs[1].Status)
	require.Equal(t, pyrat.Decided, recs[1].Reason)
	require.Equal(t, pyrat.Player1Won, recs[1].Outcome)
	require.Equal(t, 1, recs[1].Remaining)
}

func TestSetupErrors(t *testing.T) {
	starts := [2]pyrat.Cell{cell(0, 0), cell(1, 1)}
	for i, test := range []struct {
		maze   *pyrat.Maze
		cheese []pyrat.Cell
		starts [2]pyrat.Cell
		rules  pyrat.Rules
	}{
		{open(2, 2), nil, starts, pyrat.Rules{}},
		{open(2, 2), []pyrat.Cell{cell(0, 0)}, starts, pyrat.Rules{}},
		{open(2, 2), []pyrat.Cell{cell(0, 1), cell(0, 1)}, starts, pyrat.Rules{}},
		{open(2, 2), []pyrat.Cell{cell(0, 1)}, [2]pyrat.Cell{cell(0, 0), cell(2, 0)}, pyrat.Rules{}},
		{open(2, 2), []pyrat.Cell{cell(0, 1)}, starts, pyrat.Rules{MaxTurns: -1}},
		{nil, []pyrat.Cell{cell(0, 1)}, starts, pyrat.Rules{}},
	} {
		_, err := New(test.maze, test.cheese, test.starts, test.rules)
		var cerr *pyrat.ConfigurationError
		require.True(t, errors.As(err, &cerr), "case %d: %v", i, err)
	}

	_, err := New(pyrat.NewBuilder(2, 2).Build(), []pyrat.Cell{cell(0, 1)}, starts, pyrat.Rules{})
	var ierr *pyrat.InvariantError
	require.True(t, errors.As(err, &ierr))
}

// Random players on random mazes, under every rule variant: scores
// only grow by what is collected, and cheese never reappears.
func TestConservation(t *testing.T) {
	for _, tie := range []pyrat.Tie{pyrat.TieShared, pyrat.TieFirst, pyrat.TieDiscard} {
		for _, sharing := range []pyrat.Sharing{pyrat.SharedCells, pyrat.ExclusiveCells} {
			for seed := uint64(0); seed < 10; seed++ {
				p := maze.Defaults()
				p.Width, p.Height = 7, 5
				p.Cheese = 12
				p.Start = maze.StartRandom
				p.Seeds = maze.Derive(seed)
				setup, err := maze.Generate(p)
				require.NoError(t, err)

				rules := pyrat.Rules{Tie: tie, Sharing: sharing, MaxTurns: 300}
				st, err := New(setup.Maze, setup.Cheese, setup.Starts, rules)
				require.NoError(t, err)

				r := rand.New(rand.NewSource(seed))
				left := len(setup.Cheese)
				for st.Status() == pyrat.Running {
					before := [2]float64{st.Score(0), st.Score(1)}
					rec, err := st.ApplyTurn(pyrat.Moves[r.Intn(5)], pyrat.Moves[r.Intn(5)])
					require.NoError(t, err)

					var value float64
					for _, c := range rec.Collected {
						value += c.Value * float64(len(c.By))
					}
					require.Equal(t, value, rec.Gains[0]+rec.Gains[1])
					require.Equal(t, before[0]+rec.Gains[0], rec.Scores[0])
					require.Equal(t, before[1]+rec.Gains[1], rec.Scores[1])

					require.LessOrEqual(t, rec.Remaining, left)
					require.Equal(t, left-rec.Remaining, len(rec.Collected)+len(rec.Discarded))
					left = rec.Remaining

					if sharing == pyrat.ExclusiveCells {
						require.NotEqual(t, rec.Positions[0], rec.Positions[1])
					}
				}
			}
		}
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	st, err := New(open(3, 3), []pyrat.Cell{cell(1, 1), cell(0, 2)},
		[2]pyrat.Cell{cell(0, 0), cell(2, 2)}, pyrat.Rules{})
	require.NoError(t, err)

	snap := st.Snapshot()
	snap.Cheese[0] = cell(2, 0)
	snap.Positions[0] = cell(2, 1)
	snap.Scores[1] = 42

	require.Equal(t, []pyrat.Cell{cell(0, 2), cell(1, 1)}, st.Cheese())
	require.Equal(t, cell(0, 0), st.Position(pyrat.Player1))
	require.Equal(t, 0.0, st.Score(pyrat.Player2))
}
