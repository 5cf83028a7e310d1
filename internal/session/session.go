// Package session holds the process-wide state of one user session: the
// selected zone, the last rendered building set, the generated dataset and
// the in-flight request bookkeeping. All mutation goes through this type;
// there are no ambient globals.
package session

import (
	"log/slog"
	"sync"

	"github.com/MeKo-Tech/gridmap/internal/types"
)

// State is the owned, passed-in session store.
type State struct {
	mu         sync.Mutex
	zone       string
	buildings  []types.Building
	generated  *types.GenerationResult
	loading    bool
	active     map[int64]struct{}
	generation uint64
	logger     *slog.Logger
}

// New creates an empty session.
func New() *State {
	return &State{
		active: make(map[int64]struct{}),
		logger: slog.Default(),
	}
}

// SetZone selects a zone. Selecting a different zone implicitly resets
// buildings and generated data so stale results from a previous zone are
// never shown against the new selection.
func (s *State) SetZone(zone string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.zone == zone {
		return
	}
	if s.zone != "" {
		s.logger.Debug("zone changed, resetting session", "from", s.zone, "to", zone)
	}
	s.zone = zone
	s.resetLocked()
}

// Zone returns the currently selected zone.
func (s *State) Zone() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.zone
}

// Reset clears buildings and generated data, keeping the zone selection.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

func (s *State) resetLocked() {
	s.buildings = nil
	s.generated = nil
	// Invalidate responses from requests started before the reset.
	s.generation++
}

// Begin starts a new request generation and returns its token. A response
// carrying an older token than the latest Begin is stale and must be
// discarded by the caller.
func (s *State) Begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	return s.generation
}

// Current reports whether gen is still the latest request generation.
func (s *State) Current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return gen == s.generation
}

// SetBuildings stores the last rendered (possibly downsampled) building set.
// It is refused when a newer request generation has been started; callers
// needing the full fetched set must retain it themselves before sampling.
func (s *State) SetBuildings(gen uint64, buildings []types.Building) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		s.logger.Warn("discarding stale building response",
			"response_generation", gen,
			"current_generation", s.generation,
		)
		return false
	}
	s.buildings = buildings
	return true
}

// Buildings returns the last rendered building set.
func (s *State) Buildings() []types.Building {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buildings
}

// SetGeneratedData stores a generation result, refusing stale generations.
func (s *State) SetGeneratedData(gen uint64, result *types.GenerationResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		s.logger.Warn("discarding stale generation result",
			"response_generation", gen,
			"current_generation", s.generation,
		)
		return false
	}
	s.generated = result
	return true
}

// GeneratedData returns the stored generation result, or nil.
func (s *State) GeneratedData() *types.GenerationResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generated
}

// SetLoading flips the loading flag.
func (s *State) SetLoading(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = v
}

// Loading reports whether a load is in flight.
func (s *State) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// TrackRequest records an in-flight request token.
func (s *State) TrackRequest(token int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active[token] = struct{}{}
}

// UntrackRequest drops a request token.
func (s *State) UntrackRequest(token int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, token)
}

// ActiveRequests returns the number of tracked in-flight requests.
func (s *State) ActiveRequests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}
