package progress

import (
	"log/slog"
	"math/rand"
	"sync"
	"time"
)

// Simulator states. The simulation and the real request race structurally;
// Complete or Fail must be called on every outcome so the tick source is
// always cancelled; a leaked ticker keeps updating stale progress forever.
type State int

const (
	Idle State = iota
	Simulating
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Simulating:
		return "simulating"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// DefaultTickInterval is the fixed simulation tick period.
const DefaultTickInterval = 500 * time.Millisecond

// simulatedCeiling holds simulated progress just shy of 95%; only the real
// completion event may push progress to 100.
const simulatedCeiling = 94.9

// TickFunc receives progress updates. Called from the ticker goroutine.
type TickFunc func(progress float64, stage string)

// Simulator drives a monotonic, capped progress simulation for one awaited
// operation.
type Simulator struct {
	mu       sync.Mutex
	state    State
	progress float64
	interval time.Duration
	onTick   TickFunc
	rng      *rand.Rand
	stop     chan struct{}
	logger   *slog.Logger
}

// NewSimulator creates a simulator ticking at interval; zero means
// DefaultTickInterval.
func NewSimulator(interval time.Duration, onTick TickFunc) *Simulator {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Simulator{
		state:    Idle,
		interval: interval,
		onTick:   onTick,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		logger:   slog.Default(),
	}
}

// Start begins ticking against the estimated duration. Starting from any
// state other than Idle is a no-op.
func (s *Simulator) Start(estimated time.Duration) {
	s.mu.Lock()
	if s.state != Idle {
		s.mu.Unlock()
		return
	}
	s.state = Simulating
	s.progress = 0
	s.stop = make(chan struct{})

	ticksPerSecond := float64(time.Second) / float64(s.interval)
	increment := 100 / (estimated.Seconds() * ticksPerSecond)
	stop := s.stop
	s.mu.Unlock()

	s.logger.Debug("progress simulation started",
		"estimated", estimated.String(),
		"tick_interval", s.interval.String(),
	)

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.advance(increment)
			}
		}
	}()
}

// advance moves progress by increment scaled with random(0.5, 1.0), clamped
// below the simulated ceiling.
func (s *Simulator) advance(increment float64) {
	s.mu.Lock()
	if s.state != Simulating {
		s.mu.Unlock()
		return
	}
	s.progress += increment * (0.5 + 0.5*s.rng.Float64())
	if s.progress > simulatedCeiling {
		s.progress = simulatedCeiling
	}
	progress, stage := s.progress, StageFor(s.progress)
	onTick := s.onTick
	s.mu.Unlock()

	if onTick != nil {
		onTick(progress, stage)
	}
}

// Complete transitions to Completed, sets progress to 100 and
// unconditionally cancels the tick source.
func (s *Simulator) Complete() {
	s.finish(Completed, 100)
}

// Fail transitions to Failed and unconditionally cancels the tick source.
// Progress is left where the simulation stopped.
func (s *Simulator) Fail() {
	s.mu.Lock()
	p := s.progress
	s.mu.Unlock()
	s.finish(Failed, p)
}

func (s *Simulator) finish(state State, progress float64) {
	s.mu.Lock()
	if s.state == Completed || s.state == Failed {
		s.mu.Unlock()
		return
	}
	s.state = state
	s.progress = progress
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
	onTick := s.onTick
	s.mu.Unlock()

	s.logger.Debug("progress simulation finished", "state", state.String(), "progress", progress)
	if onTick != nil && state == Completed {
		onTick(100, StageFor(100))
	}
}

// Reset returns a finished simulator to Idle so it can drive the next
// operation. Resetting while a simulation is still running is a no-op; the
// running simulation must be completed or failed first.
func (s *Simulator) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Simulating {
		return
	}
	s.state = Idle
	s.progress = 0
}

// Progress returns the current progress percentage and state.
func (s *Simulator) Progress() (float64, State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress, s.state
}

// Stage returns the label for the current progress band.
func (s *Simulator) Stage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StageFor(s.progress)
}
