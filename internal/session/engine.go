// Package session owns session lifecycle: it pulls inference results from
// the acquisition pipeline, routes observations through the kinematic
// classifier, buffers strike events for batched persistence, and detects
// combination sequences per fighter.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/strike.report/internal/capture"
	"github.com/banshee-data/strike.report/internal/db"
	"github.com/banshee-data/strike.report/internal/monitoring"
	"github.com/banshee-data/strike.report/internal/strike"
	"github.com/banshee-data/strike.report/internal/timeutil"
)

var (
	// ErrEmptyRoster rejects a session start with no fighters.
	ErrEmptyRoster = errors.New("session roster is empty")
	// ErrUnknownFighter rejects a roster referencing unregistered fighters.
	ErrUnknownFighter = errors.New("roster references unknown fighters")
	// ErrSessionNotFound reports an unknown or already-ended session. It is
	// an idempotent "nothing to do" signal, never fatal to the caller.
	ErrSessionNotFound = errors.New("session not found")
)

// Store is the persistence collaborator. *db.DB implements it; tests
// substitute a fake. Failures are reported to the caller, not retried here.
type Store interface {
	FightersExist(ids []int64) (bool, error)
	CreateSession(fighterIDs []int64, start time.Time) (int64, error)
	SetSessionDuration(id int64, d time.Duration) error
	InsertStrikes(strikes []db.Strike) error
	UpsertCombination(c db.Combination) error
}

// ResultSource is the acquisition pipeline as the engine sees it.
type ResultSource interface {
	Start(ctx context.Context) error
	Stop()
	LatestResult() (capture.Result, bool)
}

// Config holds session-engine tuning. The combination thresholds are a
// product decision; treat them as configuration.
type Config struct {
	// FlushThreshold flushes the pending strike buffer once it exceeds
	// this many events. Batching bounds write amplification only; it has
	// no correctness role.
	FlushThreshold int

	// ComboGapBreak segments combinations by silence: a gap longer than
	// this starts a new window.
	ComboGapBreak time.Duration
	// ComboWindowSpan is the maximum first-to-last span of a recorded
	// combination.
	ComboWindowSpan time.Duration
	// ComboMinLength is the strike count that closes a window mid-session.
	ComboMinLength int
	// ComboFinalizeMinLength is the minimum leftover length persisted when
	// the session ends.
	ComboFinalizeMinLength int

	// CycleInterval is the cadence of the Run helper.
	CycleInterval time.Duration

	// Classifier configures the per-session kinematic classifier.
	Classifier strike.Config
}

// DefaultConfig returns the tuned defaults.
func DefaultConfig() Config {
	return Config{
		FlushThreshold:         10,
		ComboGapBreak:          1500 * time.Millisecond,
		ComboWindowSpan:        3 * time.Second,
		ComboMinLength:         3,
		ComboFinalizeMinLength: 2,
		CycleInterval:          33 * time.Millisecond,
		Classifier:             strike.DefaultConfig(),
	}
}

// comboEntry is one strike in a fighter's open combination window.
type comboEntry struct {
	Label string
	Time  time.Time
}

// state is one active session. All mutation happens under the engine lock;
// the session-processing path is the single writer.
type state struct {
	id         int64
	startTime  time.Time
	fighters   []int64
	classifier *strike.Classifier
	pending    []db.Strike
	windows    map[int64][]comboEntry
}

// Engine manages active sessions over one camera pipeline.
type Engine struct {
	cfg      Config
	store    Store
	pipeline ResultSource
	clock    timeutil.Clock

	mu     sync.Mutex
	active map[int64]*state
}

// NewEngine creates an engine over the given store and pipeline.
func NewEngine(store Store, pipeline ResultSource, cfg Config) *Engine {
	if cfg.FlushThreshold <= 0 {
		cfg.FlushThreshold = 10
	}
	return &Engine{
		cfg:      cfg,
		store:    store,
		pipeline: pipeline,
		clock:    timeutil.RealClock{},
		active:   make(map[int64]*state),
	}
}

// Start validates the roster, creates the session record, and starts the
// acquisition pipeline. Startup failures (empty or unknown roster, camera
// not opening) are surfaced immediately; nothing is retried.
func (e *Engine) Start(ctx context.Context, fighterIDs []int64) (int64, error) {
	if len(fighterIDs) == 0 {
		return 0, ErrEmptyRoster
	}
	ok, err := e.store.FightersExist(fighterIDs)
	if err != nil {
		return 0, fmt.Errorf("failed to validate roster: %w", err)
	}
	if !ok {
		return 0, ErrUnknownFighter
	}

	// Acquisition starts before the session row is written, so a camera
	// that cannot open never leaves an empty session behind.
	if err := e.pipeline.Start(ctx); err != nil {
		return 0, fmt.Errorf("failed to start acquisition: %w", err)
	}

	start := e.clock.Now()
	id, err := e.store.CreateSession(fighterIDs, start)
	if err != nil {
		e.pipeline.Stop()
		return 0, fmt.Errorf("failed to create session: %w", err)
	}

	roster := make([]int64, len(fighterIDs))
	copy(roster, fighterIDs)

	e.mu.Lock()
	e.active[id] = &state{
		id:         id,
		startTime:  start,
		fighters:   roster,
		classifier: strike.New(e.cfg.Classifier),
		windows:    make(map[int64][]comboEntry),
	}
	e.mu.Unlock()

	monitoring.Logf("session %d started with roster %v", id, roster)
	return id, nil
}

// ProcessOneCycle pulls the latest acquisition result and routes it through
// the classifier. No result yet is a normal no-op; the caller polls again
// on its own cadence.
func (e *Engine) ProcessOneCycle(sessionID int64) error {
	started := e.clock.Now()
	defer func() { monitoring.CycleDuration.Observe(e.clock.Since(started).Seconds()) }()

	e.mu.Lock()
	defer e.mu.Unlock()

	st, ok := e.active[sessionID]
	if !ok {
		return ErrSessionNotFound
	}

	result, ok := e.pipeline.LatestResult()
	if !ok {
		return nil
	}

	for _, person := range result.Persons {
		ev, ok := st.classifier.Detect(person, result.Time)
		if !ok {
			continue
		}

		fighterID := st.fighters[ev.PersonID%len(st.fighters)]
		monitoring.StrikesDetected.WithLabelValues(string(ev.Type)).Inc()

		st.pending = append(st.pending, db.Strike{
			SessionID: st.id,
			FighterID: fighterID,
			PunchType: ev.Label(),
			Timestamp: unixSeconds(ev.Time),
			Speed:     ev.Speed,
			Power:     ev.Power,
			XPosition: ev.Wrist.X,
			YPosition: ev.Wrist.Y,
		})

		if err := e.updateCombinations(st, fighterID, ev.Label(), ev.Time); err != nil {
			return err
		}
	}

	if len(st.pending) > e.cfg.FlushThreshold {
		return e.flush(st)
	}
	return nil
}

// End computes the final duration, flushes pending strikes, finalizes
// leftover combination windows, stops acquisition, and retires the session.
// Ending an unknown or already-ended session returns ErrSessionNotFound and
// performs no writes.
func (e *Engine) End(sessionID int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, ok := e.active[sessionID]
	if !ok {
		return ErrSessionNotFound
	}

	duration := e.clock.Since(st.startTime)
	if err := e.store.SetSessionDuration(st.id, duration); err != nil {
		return fmt.Errorf("failed to record session duration: %w", err)
	}

	// Buffers survive a failed write so a retry resends the same batch:
	// at-least-once, with the combination merge absorbing double counts.
	if err := e.flush(st); err != nil {
		return err
	}
	if err := e.finalizeCombinations(st); err != nil {
		return err
	}

	e.pipeline.Stop()
	delete(e.active, sessionID)

	monitoring.Logf("session %d ended after %s", sessionID, duration.Round(time.Second))
	return nil
}

// Run drives ProcessOneCycle on the configured cadence until ctx is
// cancelled or the session ends.
func (e *Engine) Run(ctx context.Context, sessionID int64) {
	interval := e.cfg.CycleInterval
	if interval <= 0 {
		interval = 33 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := e.ProcessOneCycle(sessionID)
			if errors.Is(err, ErrSessionNotFound) {
				return
			}
			if err != nil {
				monitoring.Logf("session %d cycle error: %v", sessionID, err)
			}
		}
	}
}

// Active reports whether a session is currently running.
func (e *Engine) Active(sessionID int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.active[sessionID]
	return ok
}

// flush writes the pending buffer as one batch. The buffer is cleared only
// after the write is acknowledged.
func (e *Engine) flush(st *state) error {
	if len(st.pending) == 0 {
		return nil
	}
	if err := e.store.InsertStrikes(st.pending); err != nil {
		monitoring.FlushErrors.Inc()
		return fmt.Errorf("failed to flush %d strikes: %w", len(st.pending), err)
	}
	st.pending = st.pending[:0]
	return nil
}

// unixSeconds converts a time to float64 unix seconds, the timestamp unit
// used in persisted rows and combination sequences.
func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
