// Package monitor orchestrates the detection cycle: build a snapshot, diff
// it against the baseline, report change events to the sink, and persist
// the new baseline.
//
// Delivery is at-least-once: the baseline only advances after the sink
// accepts the cycle's batch, so a failed delivery is re-derived by
// re-diffing against the last accepted baseline on the next cycle. A failed
// persist does not re-deliver: the events already reached the sink, so the
// in-memory baseline advances and only the write is retried.
package monitor

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Sashwatreded/integrity-check/pkg/fim/baseline"
	"github.com/Sashwatreded/integrity-check/pkg/fim/diff"
	"github.com/Sashwatreded/integrity-check/pkg/fim/journal"
	"github.com/Sashwatreded/integrity-check/pkg/fim/logging"
	"github.com/Sashwatreded/integrity-check/pkg/fim/sink"
	"github.com/Sashwatreded/integrity-check/pkg/fim/snapshot"
	"github.com/Sashwatreded/integrity-check/pkg/fim/types"
)

// State identifies the phase the monitor is currently in.
type State string

// Monitor states. The loop cycles Idle -> Scanning -> Diffing -> Reporting
// -> Persisting -> Idle and only leaves it on cancellation.
const (
	StateIdle       State = "idle"
	StateScanning   State = "scanning"
	StateDiffing    State = "diffing"
	StateReporting  State = "reporting"
	StatePersisting State = "persisting"
)

// Options configures a Monitor.
type Options struct {
	// Snapshot configures the per-cycle tree walk.
	Snapshot snapshot.Options

	// Interval is the sleep between cycles.
	Interval time.Duration

	// Baseline persists the accepted snapshot. Required.
	Baseline *baseline.Store

	// Sink receives each cycle's event batch. Nil falls back to
	// sink.Discard.
	Sink sink.Sink

	// Journal optionally records cycles that produced events.
	Journal *journal.Journal

	// Trigger optionally wakes the loop ahead of the interval. Closing or
	// never signaling it is fine.
	Trigger <-chan struct{}
}

// CycleResult reports the outcome of one detection cycle.
type CycleResult struct {
	Snapshot  *types.Snapshot
	Events    []types.ChangeEvent
	Warnings  []types.ScanError
	Delivered bool
	Persisted bool
	Elapsed   time.Duration
}

// Monitor owns one monitored root and its baseline. One Monitor instance is
// the only reader and writer of its baseline; multiple roots run as fully
// independent instances with no shared state.
type Monitor struct {
	opts    Options
	builder *snapshot.Builder
	sink    sink.Sink

	// current is the in-memory baseline: the last snapshot accepted by the
	// sink. Only the cycle function touches it.
	current *types.Snapshot

	// persistPending is set when the on-disk baseline lags the in-memory
	// one after a failed save.
	persistPending bool

	state atomic.Value
}

// New creates a Monitor. The baseline store is required.
func New(opts Options) (*Monitor, error) {
	if opts.Baseline == nil {
		return nil, errors.New("monitor: baseline store is required")
	}
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Second
	}

	s := opts.Sink
	if s == nil {
		s = sink.Discard{}
	}

	m := &Monitor{
		opts:    opts,
		builder: snapshot.New(opts.Snapshot),
		sink:    s,
	}
	m.state.Store(StateIdle)
	return m, nil
}

// State returns the monitor's current phase.
func (m *Monitor) State() State {
	return m.state.Load().(State)
}

// Run executes detection cycles until ctx is cancelled. Cancellation is
// cooperative: it is checked between cycles, and an in-flight cycle runs to
// completion (including its persist) so the baseline is never left stale
// relative to a snapshot whose events were already delivered.
func (m *Monitor) Run(ctx context.Context) error {
	log := logging.Get("monitor")

	if err := m.loadBaseline(); err != nil {
		return err
	}

	timer := time.NewTimer(0) // First cycle runs immediately.
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		case <-m.opts.Trigger:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			log.Debug("scan triggered early")
		}

		// The cycle itself runs to completion even if ctx is cancelled
		// mid-hash; the next loop iteration observes the cancellation.
		result, err := m.Cycle(context.WithoutCancel(ctx))
		if err != nil {
			log.Error("cycle failed", "error", err)
		} else if len(result.Events) > 0 {
			log.Info("cycle complete",
				"files", result.Snapshot.Len(),
				"events", len(result.Events),
				"delivered", result.Delivered,
				"elapsed", result.Elapsed)
		} else {
			log.Debug("cycle complete, no changes",
				"files", result.Snapshot.Len(),
				"elapsed", result.Elapsed)
		}

		timer.Reset(m.opts.Interval)
	}
}

// RunOnce loads the baseline and executes a single detection cycle. It is
// the one-shot entry point for CLI scans.
func (m *Monitor) RunOnce(ctx context.Context) (*CycleResult, error) {
	if err := m.loadBaseline(); err != nil {
		return nil, err
	}
	return m.Cycle(ctx)
}

// loadBaseline reads the persisted baseline into memory. A corrupt or
// incompatible baseline is not fatal: the monitor logs a forced-rebaseline
// warning and starts from empty.
func (m *Monitor) loadBaseline() error {
	log := logging.Get("monitor")

	snap, err := m.opts.Baseline.Load()
	if err != nil {
		if errors.Is(err, types.ErrFormat) {
			log.Warn("baseline unreadable, forcing full re-baseline", "error", err)
			m.current = nil
			return nil
		}
		return err
	}

	if snap.Len() == 0 && snap.Root == "" {
		// First run: no baseline on disk yet.
		m.current = nil
		return nil
	}

	log.Info("baseline loaded", "files", snap.Len(), "taken_at", snap.TakenAt)
	m.current = snap
	return nil
}

// Cycle runs one full detection cycle and returns its outcome.
//
// On the very first cycle (no baseline existed), the snapshot seeds the
// baseline silently: pre-existing files are not reported as created.
func (m *Monitor) Cycle(ctx context.Context) (*CycleResult, error) {
	start := time.Now()
	log := logging.Get("monitor")
	defer m.state.Store(StateIdle)

	m.state.Store(StateScanning)
	snap, warnings, err := m.builder.Build(ctx)
	if err != nil {
		return nil, err
	}

	firstRun := m.current == nil

	m.state.Store(StateDiffing)
	var events []types.ChangeEvent
	if !firstRun {
		events = diff.Changes(m.current, snap, time.Now().UTC())
	} else {
		log.Info("no baseline found, creating one from current state", "files", snap.Len())
	}

	result := &CycleResult{
		Snapshot: snap,
		Events:   events,
		Warnings: warnings,
	}

	m.state.Store(StateReporting)
	if len(events) > 0 {
		batch := types.EventBatch{
			ID:        uuid.NewString(),
			Root:      snap.Root,
			ScannedAt: snap.TakenAt,
			Events:    events,
		}
		if err := m.sink.Deliver(ctx, batch); err != nil {
			// Do not advance the baseline: next cycle re-diffs against the
			// last accepted state and re-derives these events.
			log.Warn("event delivery failed, will re-derive next cycle",
				"events", len(events), "error", err)
			m.journalCycle(snap, result, start, false)
			result.Elapsed = time.Since(start)
			return result, err
		}
		result.Delivered = true
	}

	// Accepted: the new snapshot becomes the baseline.
	m.current = snap

	m.state.Store(StatePersisting)
	if err := m.opts.Baseline.Save(snap); err != nil {
		m.persistPending = true
		log.Warn("baseline persist failed, will retry next cycle", "error", err)
	} else {
		if m.persistPending {
			log.Info("baseline persisted after earlier failure")
		}
		m.persistPending = false
		result.Persisted = true
	}

	if len(events) > 0 || firstRun {
		m.journalCycle(snap, result, start, result.Delivered)
	}

	result.Elapsed = time.Since(start)
	return result, nil
}

// journalCycle records the cycle outcome, if journaling is enabled.
func (m *Monitor) journalCycle(snap *types.Snapshot, result *CycleResult, start time.Time, delivered bool) {
	if m.opts.Journal == nil {
		return
	}
	_, err := m.opts.Journal.LogCycle(
		snap.Root,
		time.Since(start),
		snap.Len(),
		result.Events,
		len(result.Warnings),
		delivered,
	)
	if err != nil {
		logging.Get("monitor").Warn("journal write failed", "error", err)
	}
}
