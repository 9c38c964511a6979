// Copyright 2026 The OBS Chat Bot Authors
// SPDX-License-Identifier: Apache-2.0

package poller

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/juju/clock/testclock"

	"github.com/msirringhaus/obs-chat-bot/lib/backend"
	"github.com/msirringhaus/obs-chat-bot/lib/entity"
	"github.com/msirringhaus/obs-chat-bot/lib/ref"
	"github.com/msirringhaus/obs-chat-bot/lib/registry"
)

// fakeState implements entity.State over a plain string.
type fakeState struct {
	value string
}

func (s fakeState) Equal(other entity.State) bool {
	o, ok := other.(fakeState)
	return ok && o.value == s.value
}

func (s fakeState) Summary() string { return s.value }

func (s fakeState) ChangeSummary(previous entity.State) string {
	return fmt.Sprintf("%s -> %s", previous.Summary(), s.value)
}

// fakeBackend serves canned states keyed by entity, with optional
// per-entity fetch errors.
type fakeBackend struct {
	name string

	mu     sync.Mutex
	states map[entity.Ref]string
	errors map[entity.Ref]error
}

func newFakeBackend(name string) *fakeBackend {
	return &fakeBackend{
		name:   name,
		states: make(map[entity.Ref]string),
		errors: make(map[entity.Ref]error),
	}
}

func (b *fakeBackend) setState(entityRef entity.Ref, value string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.states[entityRef] = value
}

func (b *fakeBackend) setError(entityRef entity.Ref, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.errors[entityRef] = err
}

func (b *fakeBackend) Name() string    { return b.name }
func (b *fakeBackend) Hosts() []string { return []string{b.name + ".example.org"} }

func (b *fakeBackend) ParsePath(path string) (entity.Ref, bool) {
	return entity.Ref{}, false
}

func (b *fakeBackend) FetchState(ctx context.Context, entityRef entity.Ref) (entity.State, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.errors[entityRef]; err != nil {
		return nil, err
	}
	value, ok := b.states[entityRef]
	if !ok {
		return nil, fmt.Errorf("no state for %s", entityRef.Key())
	}
	return fakeState{value: value}, nil
}

func (b *fakeBackend) EncodeState(state entity.State) ([]byte, error) {
	return []byte(state.(fakeState).value), nil
}

func (b *fakeBackend) DecodeState(entityRef entity.Ref, snapshot []byte) (entity.State, error) {
	return fakeState{value: string(snapshot)}, nil
}

func (b *fakeBackend) EntityURL(entityRef entity.Ref) string {
	return "https://" + b.name + ".example.org/" + entityRef.Key()
}

// recordingNotifier collects every broadcast.
type recordingNotifier struct {
	mu       sync.Mutex
	messages []broadcast
}

type broadcast struct {
	rooms   []ref.RoomID
	message string
}

func (n *recordingNotifier) Broadcast(ctx context.Context, rooms []ref.RoomID, markdown string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, broadcast{rooms: rooms, message: markdown})
}

func (n *recordingNotifier) broadcasts() []broadcast {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]broadcast(nil), n.messages...)
}

type pollerFixture struct {
	registry *registry.Registry
	backend  *fakeBackend
	notifier *recordingNotifier
	poller   *Poller
}

func newPollerFixture(t *testing.T) *pollerFixture {
	t.Helper()
	reg, err := registry.Open(context.Background(), registry.Config{
		Path: filepath.Join(t.TempDir(), "registry.db"),
	})
	if err != nil {
		t.Fatalf("registry.Open: %v", err)
	}
	t.Cleanup(func() { reg.Close() })

	fake := newFakeBackend("obs")
	set, err := backend.NewSet(fake)
	if err != nil {
		t.Fatalf("backend.NewSet: %v", err)
	}
	notifier := &recordingNotifier{}

	p, err := New(Config{
		Registry: reg,
		Backends: set,
		Notifier: notifier,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &pollerFixture{registry: reg, backend: fake, notifier: notifier, poller: p}
}

func (f *pollerFixture) subscribe(t *testing.T, room ref.RoomID, entityRef entity.Ref) {
	t.Helper()
	if _, _, err := f.registry.Subscribe(context.Background(), room, entityRef); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
}

func TestFirstObservationIsBaseline(t *testing.T) {
	fixture := newPollerFixture(t)
	room := mustRoom(t, "!ops:example.org")
	pkg := entity.NewPackageRef("obs", "network", "curl")
	fixture.subscribe(t, room, pkg)
	fixture.backend.setState(pkg, "succeeded")

	fixture.poller.runCycle(context.Background())

	if got := fixture.notifier.broadcasts(); len(got) != 0 {
		t.Errorf("baseline cycle produced %d broadcasts, want 0", len(got))
	}
	if fixture.registry.Snapshot(pkg) == nil {
		t.Error("baseline cycle did not commit a snapshot")
	}
}

func TestChangeNotifiesSubscribers(t *testing.T) {
	fixture := newPollerFixture(t)
	roomA := mustRoom(t, "!a:example.org")
	roomB := mustRoom(t, "!b:example.org")
	pkg := entity.NewPackageRef("obs", "network", "curl")
	fixture.subscribe(t, roomA, pkg)
	fixture.subscribe(t, roomB, pkg)
	fixture.backend.setState(pkg, "succeeded")

	fixture.poller.runCycle(context.Background())
	fixture.backend.setState(pkg, "failed")
	fixture.poller.runCycle(context.Background())

	got := fixture.notifier.broadcasts()
	if len(got) != 1 {
		t.Fatalf("change produced %d broadcasts, want 1", len(got))
	}
	if len(got[0].rooms) != 2 {
		t.Errorf("broadcast reached %d rooms, want 2", len(got[0].rooms))
	}
	if !strings.Contains(got[0].message, "succeeded -> failed") {
		t.Errorf("broadcast message = %q, want change summary", got[0].message)
	}
	if !strings.Contains(got[0].message, "https://obs.example.org/") {
		t.Errorf("broadcast message = %q, want entity link", got[0].message)
	}
}

func TestUnsubscribedRoomMissesLaterChanges(t *testing.T) {
	fixture := newPollerFixture(t)
	roomA := mustRoom(t, "!a:example.org")
	roomB := mustRoom(t, "!b:example.org")
	pkg := entity.NewPackageRef("obs", "network", "curl")
	fixture.subscribe(t, roomA, pkg)
	fixture.subscribe(t, roomB, pkg)
	fixture.backend.setState(pkg, "succeeded")

	fixture.poller.runCycle(context.Background())

	if _, err := fixture.registry.Unsubscribe(context.Background(), roomA, pkg); err != nil {
		t.Fatalf("Unsubscribe: %v", err)
	}
	fixture.backend.setState(pkg, "failed")
	fixture.poller.runCycle(context.Background())

	got := fixture.notifier.broadcasts()
	if len(got) != 1 {
		t.Fatalf("change produced %d broadcasts, want 1", len(got))
	}
	if len(got[0].rooms) != 1 || got[0].rooms[0] != roomB {
		t.Errorf("broadcast rooms = %v, want only %v", got[0].rooms, roomB)
	}
}

func TestUnchangedStateStaysSilent(t *testing.T) {
	fixture := newPollerFixture(t)
	pkg := entity.NewPackageRef("obs", "network", "curl")
	fixture.subscribe(t, mustRoom(t, "!ops:example.org"), pkg)
	fixture.backend.setState(pkg, "succeeded")

	for range 3 {
		fixture.poller.runCycle(context.Background())
	}
	if got := fixture.notifier.broadcasts(); len(got) != 0 {
		t.Errorf("unchanged state produced %d broadcasts, want 0", len(got))
	}
}

func TestFetchErrorIsIsolated(t *testing.T) {
	fixture := newPollerFixture(t)
	room := mustRoom(t, "!ops:example.org")
	broken := entity.NewPackageRef("obs", "network", "broken")
	healthy := entity.NewPackageRef("obs", "network", "curl")
	fixture.subscribe(t, room, broken)
	fixture.subscribe(t, room, healthy)
	fixture.backend.setError(broken, fmt.Errorf("backend down"))
	fixture.backend.setState(healthy, "succeeded")

	fixture.poller.runCycle(context.Background())
	fixture.backend.setState(healthy, "failed")
	fixture.poller.runCycle(context.Background())

	// The broken entity never notifies; the healthy one still does.
	got := fixture.notifier.broadcasts()
	if len(got) != 1 {
		t.Fatalf("got %d broadcasts, want 1", len(got))
	}
	if !strings.Contains(got[0].message, "network/curl") {
		t.Errorf("broadcast message = %q, want the healthy entity", got[0].message)
	}
}

func TestFetchErrorPreservesBaseline(t *testing.T) {
	fixture := newPollerFixture(t)
	pkg := entity.NewPackageRef("obs", "network", "curl")
	fixture.subscribe(t, mustRoom(t, "!ops:example.org"), pkg)

	fixture.backend.setState(pkg, "succeeded")
	fixture.poller.runCycle(context.Background())

	// A failed fetch must not disturb the committed baseline, so the
	// change is still detected once the backend recovers.
	fixture.backend.setError(pkg, fmt.Errorf("backend down"))
	fixture.poller.runCycle(context.Background())
	fixture.backend.setError(pkg, nil)
	fixture.backend.setState(pkg, "failed")
	fixture.poller.runCycle(context.Background())

	got := fixture.notifier.broadcasts()
	if len(got) != 1 {
		t.Fatalf("got %d broadcasts, want 1", len(got))
	}
	if !strings.Contains(got[0].message, "succeeded -> failed") {
		t.Errorf("broadcast message = %q, want succeeded -> failed", got[0].message)
	}
}

func TestUnknownBackendIsSkipped(t *testing.T) {
	fixture := newPollerFixture(t)
	orphan := entity.NewPackageRef("retired", "network", "curl")
	fixture.subscribe(t, mustRoom(t, "!ops:example.org"), orphan)

	fixture.poller.runCycle(context.Background())

	if got := fixture.notifier.broadcasts(); len(got) != 0 {
		t.Errorf("unknown backend produced %d broadcasts, want 0", len(got))
	}
}

func TestRunHonoursInterval(t *testing.T) {
	fixture := newPollerFixture(t)
	pkg := entity.NewPackageRef("obs", "network", "curl")
	fixture.subscribe(t, mustRoom(t, "!ops:example.org"), pkg)
	fixture.backend.setState(pkg, "succeeded")

	clk := testclock.NewClock(time.Now())
	p, err := New(Config{
		Registry: fixture.registry,
		Backends: fixture.poller.backends,
		Notifier: fixture.notifier,
		Interval: time.Minute,
		Clock:    clk,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	// First cycle runs immediately and records the baseline; the
	// second fires after the interval elapses and sees the change.
	if err := clk.WaitAdvance(time.Minute, time.Second, 1); err != nil {
		t.Fatalf("WaitAdvance: %v", err)
	}
	fixture.backend.setState(pkg, "failed")
	if err := clk.WaitAdvance(time.Minute, time.Second, 1); err != nil {
		t.Fatalf("WaitAdvance: %v", err)
	}
	// Wait for the third cycle's timer, which guarantees the second
	// cycle has completed.
	if err := clk.WaitAdvance(0, time.Second, 1); err != nil {
		t.Fatalf("WaitAdvance: %v", err)
	}

	cancel()
	if err := <-done; err != context.Canceled {
		t.Errorf("Run returned %v, want context.Canceled", err)
	}

	got := fixture.notifier.broadcasts()
	if len(got) != 1 {
		t.Fatalf("got %d broadcasts, want 1", len(got))
	}
}

func mustRoom(t *testing.T, raw string) ref.RoomID {
	t.Helper()
	roomID, err := ref.ParseRoomID(raw)
	if err != nil {
		t.Fatalf("ParseRoomID(%q): %v", raw, err)
	}
	return roomID
}
