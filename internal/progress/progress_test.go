package progress

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateDuration_Clamps(t *testing.T) {
	// Both boundaries clamp.
	assert.Equal(t, 10*time.Second, EstimateDuration(1, 1))
	assert.Equal(t, 300*time.Second, EstimateDuration(10_000_000, 365))

	// Interior values pass through: 5000 * 10 / 1000 = 50s.
	assert.Equal(t, 50*time.Second, EstimateDuration(5000, 10))
}

func TestStageFor(t *testing.T) {
	assert.Equal(t, "Validating building data", StageFor(0))
	assert.Equal(t, "Validating building data", StageFor(19.9))
	assert.Equal(t, "Preparing consumption profiles", StageFor(20))
	assert.Equal(t, "Generating time series", StageFor(45))
	assert.Equal(t, "Aggregating results", StageFor(60))
	assert.Equal(t, "Finalizing dataset", StageFor(85))
	// Last stage repeats for any overflow.
	assert.Equal(t, "Finalizing dataset", StageFor(100))
	assert.Equal(t, "Finalizing dataset", StageFor(250))
}

func TestSimulator_CeilingHolds(t *testing.T) {
	s := NewSimulator(time.Millisecond, nil)
	s.state = Simulating

	// Hammer the advance step far past the estimate; simulated progress
	// must never reach 95 without a completion signal.
	for i := 0; i < 100_000; i++ {
		s.advance(1.0)
	}

	p, state := s.Progress()
	assert.Equal(t, Simulating, state)
	assert.Less(t, p, 95.0)
	assert.Greater(t, p, 90.0)
}

func TestSimulator_AdvanceIsMonotonic(t *testing.T) {
	s := NewSimulator(time.Millisecond, nil)
	s.state = Simulating

	last := 0.0
	for i := 0; i < 1000; i++ {
		s.advance(0.1)
		p, _ := s.Progress()
		assert.GreaterOrEqual(t, p, last)
		last = p
	}
}

func TestSimulator_CompleteSetsHundredAndStopsTicks(t *testing.T) {
	var mu sync.Mutex
	var ticks []float64
	s := NewSimulator(time.Millisecond, func(p float64, _ string) {
		mu.Lock()
		ticks = append(ticks, p)
		mu.Unlock()
	})

	s.Start(10 * time.Second)
	time.Sleep(20 * time.Millisecond)
	s.Complete()

	p, state := s.Progress()
	assert.Equal(t, Completed, state)
	assert.Equal(t, 100.0, p)

	mu.Lock()
	n := len(ticks)
	require.NotZero(t, n)
	assert.Equal(t, 100.0, ticks[n-1])
	mu.Unlock()

	// No further ticks arrive after completion.
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	assert.Equal(t, n, len(ticks))
	mu.Unlock()
}

func TestSimulator_FailStopsTicksWithoutHundred(t *testing.T) {
	s := NewSimulator(time.Millisecond, nil)
	s.Start(10 * time.Second)
	time.Sleep(10 * time.Millisecond)
	s.Fail()

	p, state := s.Progress()
	assert.Equal(t, Failed, state)
	assert.Less(t, p, 95.0)

	// advance after Fail is a no-op.
	s.advance(50)
	p2, _ := s.Progress()
	assert.Equal(t, p, p2)
}

func TestSimulator_FinishIsTerminal(t *testing.T) {
	s := NewSimulator(time.Millisecond, nil)
	s.Start(10 * time.Second)
	s.Complete()
	s.Fail() // must not override the completed state

	_, state := s.Progress()
	assert.Equal(t, Completed, state)

	// Start after finish is a no-op too.
	s.Start(10 * time.Second)
	_, state = s.Progress()
	assert.Equal(t, Completed, state)
}

func TestSimulator_ResetAllowsRestart(t *testing.T) {
	s := NewSimulator(time.Millisecond, nil)
	s.Start(10 * time.Second)
	s.Complete()

	s.Reset()
	p, state := s.Progress()
	assert.Equal(t, Idle, state)
	assert.Equal(t, 0.0, p)

	// A reset simulator drives a second run normally.
	s.Start(10 * time.Second)
	_, state = s.Progress()
	assert.Equal(t, Simulating, state)
	s.advance(10)
	p, _ = s.Progress()
	assert.Greater(t, p, 0.0)
	s.Complete()

	p, state = s.Progress()
	assert.Equal(t, Completed, state)
	assert.Equal(t, 100.0, p)
}

func TestSimulator_ResetWhileSimulatingIsNoOp(t *testing.T) {
	s := NewSimulator(time.Millisecond, nil)
	s.Start(10 * time.Second)
	s.advance(10)

	before, _ := s.Progress()
	s.Reset()
	p, state := s.Progress()
	assert.Equal(t, Simulating, state)
	assert.Equal(t, before, p)

	s.Complete()
}

func TestSimulator_StartTwiceIsNoOp(t *testing.T) {
	s := NewSimulator(time.Millisecond, nil)
	s.Start(10 * time.Second)
	s.Start(10 * time.Second) // second call ignored
	s.Complete()

	_, state := s.Progress()
	assert.Equal(t, Completed, state)
}
