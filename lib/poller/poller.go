// Copyright 2026 The OBS Chat Bot Authors
// SPDX-License-Identifier: Apache-2.0

package poller

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/juju/clock"

	"github.com/msirringhaus/obs-chat-bot/lib/backend"
	"github.com/msirringhaus/obs-chat-bot/lib/entity"
	"github.com/msirringhaus/obs-chat-bot/lib/ref"
)

// Notifier delivers a change message to a set of rooms. Delivery
// failures are the notifier's problem; the poller fires and moves on.
type Notifier interface {
	Broadcast(ctx context.Context, rooms []ref.RoomID, markdown string)
}

// Config holds the parameters for constructing a Poller.
type Config struct {
	// Registry is the subscription registry to poll. Required.
	Registry Registry

	// Backends resolves entity references to their backend.
	// Required.
	Backends *backend.Set

	// Notifier receives change notifications. Required.
	Notifier Notifier

	// Interval is the pause between the end of one poll cycle and
	// the start of the next. Defaults to 5 minutes.
	Interval time.Duration

	// FetchTimeout bounds each individual state fetch. Defaults to
	// 30 seconds.
	FetchTimeout time.Duration

	// Parallel is the maximum number of concurrent fetches within a
	// cycle. Defaults to 4.
	Parallel int

	// Clock provides the cycle timer. Defaults to clock.WallClock.
	Clock clock.Clock

	// Logger receives operational messages. Defaults to
	// slog.Default().
	Logger *slog.Logger
}

// Registry is the subset of the subscription registry the poller
// depends on.
type Registry interface {
	Entities() []entity.Ref
	CommitState(ctx context.Context, entityRef entity.Ref, snapshot []byte) (previous []byte, rooms []ref.RoomID, tracked bool, err error)
}

// Poller periodically fetches the state of every tracked entity and
// notifies subscriber rooms of changes.
type Poller struct {
	registry     Registry
	backends     *backend.Set
	notifier     Notifier
	interval     time.Duration
	fetchTimeout time.Duration
	parallel     int
	clock        clock.Clock
	logger       *slog.Logger
}

// New constructs a Poller from the configuration.
func New(config Config) (*Poller, error) {
	if config.Registry == nil {
		return nil, fmt.Errorf("poller: Registry is required")
	}
	if config.Backends == nil {
		return nil, fmt.Errorf("poller: Backends is required")
	}
	if config.Notifier == nil {
		return nil, fmt.Errorf("poller: Notifier is required")
	}
	if config.Interval <= 0 {
		config.Interval = 5 * time.Minute
	}
	if config.FetchTimeout <= 0 {
		config.FetchTimeout = 30 * time.Second
	}
	if config.Parallel <= 0 {
		config.Parallel = 4
	}
	if config.Clock == nil {
		config.Clock = clock.WallClock
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Poller{
		registry:     config.Registry,
		backends:     config.Backends,
		notifier:     config.Notifier,
		interval:     config.Interval,
		fetchTimeout: config.FetchTimeout,
		parallel:     config.Parallel,
		clock:        config.Clock,
		logger:       config.Logger,
	}, nil
}

// Run polls until the context is cancelled. The first cycle starts
// immediately; subsequent cycles are spaced by the configured
// interval. Always returns the context's error.
func (p *Poller) Run(ctx context.Context) error {
	for {
		p.runCycle(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.clock.After(p.interval):
		}
	}
}

// runCycle fetches every tracked entity once, bounded by the
// configured parallelism.
func (p *Poller) runCycle(ctx context.Context) {
	entities := p.registry.Entities()
	if len(entities) == 0 {
		return
	}
	p.logger.Debug("poll cycle starting", "entities", len(entities))

	semaphore := make(chan struct{}, p.parallel)
	var wg sync.WaitGroup
	for _, entityRef := range entities {
		if ctx.Err() != nil {
			break
		}
		semaphore <- struct{}{}
		wg.Add(1)
		go func(entityRef entity.Ref) {
			defer wg.Done()
			defer func() { <-semaphore }()
			p.pollEntity(ctx, entityRef)
		}(entityRef)
	}
	wg.Wait()
}

// pollEntity fetches one entity's state, commits it, and notifies
// subscribers if the state changed since the previous commit.
func (p *Poller) pollEntity(ctx context.Context, entityRef entity.Ref) {
	b, ok := p.backends.ByName(entityRef.Backend)
	if !ok {
		p.logger.Warn("tracked entity references unknown backend",
			"entity", entityRef.Key())
		return
	}

	fetchCtx, cancel := context.WithTimeout(ctx, p.fetchTimeout)
	state, err := b.FetchState(fetchCtx, entityRef)
	cancel()
	if err != nil {
		p.logger.Warn("state fetch failed",
			"entity", entityRef.Key(), "error", err)
		return
	}

	snapshot, err := b.EncodeState(state)
	if err != nil {
		p.logger.Error("state encoding failed",
			"entity", entityRef.Key(), "error", err)
		return
	}

	previous, rooms, tracked, err := p.registry.CommitState(ctx, entityRef, snapshot)
	if err != nil {
		p.logger.Error("state commit failed",
			"entity", entityRef.Key(), "error", err)
		return
	}
	if !tracked {
		// Unsubscribed while the fetch was in flight.
		return
	}
	if previous == nil {
		p.logger.Info("baseline state recorded",
			"entity", entityRef.Key(), "state", state.Summary())
		return
	}
	if bytes.Equal(previous, snapshot) {
		// Deterministic encoding: identical bytes mean identical
		// state.
		return
	}

	previousState, err := b.DecodeState(entityRef, previous)
	if err != nil {
		// An undecodable stored snapshot (format change, corruption)
		// resets the baseline rather than producing a garbage diff.
		p.logger.Warn("stored snapshot undecodable, rebaselining",
			"entity", entityRef.Key(), "error", err)
		return
	}
	if state.Equal(previousState) {
		return
	}

	transition := entity.Transition{
		Ref:     entityRef,
		Old:     previousState,
		New:     state,
		Summary: state.ChangeSummary(previousState),
	}
	p.logger.Info("state change detected",
		"entity", entityRef.Key(),
		"change", transition.Summary,
		"rooms", len(rooms))
	p.notifier.Broadcast(ctx, rooms, formatChange(b, transition))
}

// formatChange renders a transition as a markdown notification line.
func formatChange(b backend.Backend, transition entity.Transition) string {
	url := b.EntityURL(transition.Ref)
	if url == "" {
		return fmt.Sprintf("**%s**: %s", transition.Ref, transition.Summary)
	}
	return fmt.Sprintf("[%s](%s): %s", transition.Ref, url, transition.Summary)
}
