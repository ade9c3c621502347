package session

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tick struct {
	roomID    string
	remaining int
}

func newTestEngine(t *testing.T) (*Engine, *clockwork.FakeClock, chan tick) {
	t.Helper()
	clk := clockwork.NewFakeClock()
	ticks := make(chan tick, 64)
	eng := NewEngine(clk, func(roomID string, remaining int) {
		ticks <- tick{roomID: roomID, remaining: remaining}
	})
	return eng, clk, ticks
}

// advanceAndCollect steps the fake clock one second at a time, waiting for
// the tick loop to consume each step before taking the next.
func advanceAndCollect(t *testing.T, clk *clockwork.FakeClock, ticks chan tick, steps int) []int {
	t.Helper()
	var got []int
	for i := 0; i < steps; i++ {
		clk.BlockUntil(1)
		clk.Advance(time.Second)
		select {
		case tk := <-ticks:
			got = append(got, tk.remaining)
		case <-time.After(2 * time.Second):
			t.Fatalf("no tick after advance %d, got %v so far", i+1, got)
		}
	}
	return got
}

func TestCountdownRunsToZeroThenIdle(t *testing.T) {
	eng, clk, ticks := newTestEngine(t)

	eng.Start("room1", 5)
	got := advanceAndCollect(t, clk, ticks, 5)

	require.Equal(t, []int{4, 3, 2, 1, 0}, got)
	assert.Equal(t, 0, eng.Remaining("room1"))

	// Expiry reset elapsed state, so a fresh start runs the full duration.
	eng.Start("room1", 3)
	assert.Equal(t, 3, eng.Remaining("room1"))
	got = advanceAndCollect(t, clk, ticks, 3)
	require.Equal(t, []int{2, 1, 0}, got)
}

func TestStopPreservesElapsedAndStartResumes(t *testing.T) {
	eng, clk, ticks := newTestEngine(t)

	eng.Start("room1", 10)
	got := advanceAndCollect(t, clk, ticks, 3)
	require.Equal(t, []int{9, 8, 7}, got)

	eng.Stop("room1")
	assert.Equal(t, 7, eng.Remaining("room1"))

	// Paused countdowns do not drain while the clock moves.
	clk.Advance(30 * time.Second)
	assert.Equal(t, 7, eng.Remaining("room1"))

	// Restarting resumes from the frozen elapsed time, not from scratch.
	eng.Start("room1", 10)
	assert.Equal(t, 7, eng.Remaining("room1"))
	got = advanceAndCollect(t, clk, ticks, 2)
	require.Equal(t, []int{6, 5}, got)
}

func TestStopThenImmediateStartKeepsTicking(t *testing.T) {
	eng, clk, ticks := newTestEngine(t)

	eng.Start("room1", 10)
	got := advanceAndCollect(t, clk, ticks, 1)
	require.Equal(t, []int{9}, got)

	// Stop must retire the old ticker before the restart registers its own,
	// otherwise the stale one keeps absorbing clock advances.
	eng.Stop("room1")
	eng.Start("room1", 10)

	got = advanceAndCollect(t, clk, ticks, 2)
	require.Equal(t, []int{8, 7}, got)
	assert.Equal(t, 7, eng.Remaining("room1"))
}

func TestDuplicateStartIsAbsorbed(t *testing.T) {
	eng, clk, ticks := newTestEngine(t)

	eng.Start("room1", 5)
	eng.Start("room1", 99)

	assert.Equal(t, 5, eng.Remaining("room1"))

	clk.BlockUntil(1)
	clk.Advance(time.Second)
	tk := <-ticks
	assert.Equal(t, 4, tk.remaining)

	// Exactly one tick loop is live: no second emission for the same second.
	select {
	case extra := <-ticks:
		t.Fatalf("unexpected extra tick %v", extra)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRedundantStopIsAbsorbed(t *testing.T) {
	eng, _, _ := newTestEngine(t)

	eng.Stop("room1")
	eng.Start("room1", 5)
	eng.Stop("room1")
	eng.Stop("room1")

	assert.Equal(t, 5, eng.Remaining("room1"))
}

func TestRemainingIsAnalyticBetweenTicks(t *testing.T) {
	eng, clk, ticks := newTestEngine(t)

	eng.Start("room1", 3)
	assert.Equal(t, 3, eng.Remaining("room1"))

	got := advanceAndCollect(t, clk, ticks, 1)
	require.Equal(t, []int{2}, got)

	// Half a second past the first tick: still whole-second resolution,
	// never negative, never above the starting value.
	clk.Advance(500 * time.Millisecond)
	rem := eng.Remaining("room1")
	assert.Contains(t, []int{1, 2}, rem)
}

func TestResetDiscardsCountdown(t *testing.T) {
	eng, clk, ticks := newTestEngine(t)

	eng.Start("room1", 5)
	eng.Reset("room1")

	assert.Equal(t, 0, eng.Remaining("room1"))

	clk.Advance(3 * time.Second)
	select {
	case tk := <-ticks:
		t.Fatalf("tick after reset: %v", tk)
	case <-time.After(50 * time.Millisecond):
	}

	// Resetting a room without a countdown is fine.
	eng.Reset("room2")
}

func TestCountdownsAreIndependentPerRoom(t *testing.T) {
	eng, clk, ticks := newTestEngine(t)

	eng.Start("room1", 5)
	eng.Start("room2", 8)

	clk.BlockUntil(2)
	clk.Advance(time.Second)

	byRoom := map[string]int{}
	for i := 0; i < 2; i++ {
		select {
		case tk := <-ticks:
			byRoom[tk.roomID] = tk.remaining
		case <-time.After(2 * time.Second):
			t.Fatal("missing tick")
		}
	}
	assert.Equal(t, map[string]int{"room1": 4, "room2": 7}, byRoom)

	eng.Stop("room1")
	assert.Equal(t, 4, eng.Remaining("room1"))
	assert.Equal(t, 7, eng.Remaining("room2"))
}

func TestStartWithNonPositiveSecondsIsNoOp(t *testing.T) {
	eng, _, _ := newTestEngine(t)

	eng.Start("room1", 0)
	eng.Start("room1", -3)

	assert.Equal(t, 0, eng.Remaining("room1"))
}
