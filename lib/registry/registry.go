// Copyright 2026 The OBS Chat Bot Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/juju/clock"

	"github.com/msirringhaus/obs-chat-bot/lib/entity"
	"github.com/msirringhaus/obs-chat-bot/lib/ref"
	"github.com/msirringhaus/obs-chat-bot/lib/sqlitepool"
)

// Config holds the parameters for opening a Registry.
type Config struct {
	// Path is the SQLite database file. Required. Use ":memory:"
	// with PoolSize 1 in tests.
	Path string

	// PoolSize is the SQLite connection pool size. Defaults per
	// sqlitepool.
	PoolSize int

	// Clock provides timestamps for state commits. Defaults to
	// clock.WallClock.
	Clock clock.Clock

	// Logger receives operational messages. Defaults to
	// slog.Default().
	Logger *slog.Logger
}

// Registry is the durable subscription registry. All exported methods
// are safe for concurrent use; each is atomic with respect to the
// others.
type Registry struct {
	pool   *sqlitepool.Pool
	clock  clock.Clock
	logger *slog.Logger

	mu       sync.Mutex
	entities map[entity.Ref]*record
}

// record is the in-memory image of one tracked entity: its subscriber
// rooms (each with the subscription's insertion sequence, for stable
// user-facing listing) and the last committed state snapshot.
type record struct {
	rooms    map[ref.RoomID]int64
	snapshot []byte
}

// Open opens (creating if necessary) the registry database and loads
// all subscriptions and snapshots into memory. The caller must call
// Close when done.
func Open(ctx context.Context, config Config) (*Registry, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.WallClock
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:      config.Path,
		PoolSize:  config.PoolSize,
		Logger:    logger,
		OnConnect: createSchema,
	})
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}

	registry := &Registry{
		pool:     pool,
		clock:    clk,
		logger:   logger,
		entities: make(map[entity.Ref]*record),
	}

	if err := registry.load(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	total := 0
	for _, rec := range registry.entities {
		total += len(rec.rooms)
	}
	logger.Info("subscription registry loaded",
		"entities", len(registry.entities),
		"subscriptions", total,
	)
	return registry, nil
}

// Close releases the underlying database pool.
func (r *Registry) Close() error {
	return r.pool.Close()
}

// Subscribe adds a room's subscription to an entity. Idempotent:
// subscribing an already-subscribed pair changes nothing and is not an
// error. Returns whether a new subscription was created and the
// entity's last known state snapshot (nil if never polled), for the
// confirmation message.
//
// The subscription is durably committed before Subscribe returns
// success; on a persistence error nothing changes.
func (r *Registry) Subscribe(ctx context.Context, roomID ref.RoomID, entityRef entity.Ref) (added bool, snapshot []byte, err error) {
	if err := entityRef.Validate(); err != nil {
		return false, nil, fmt.Errorf("registry: subscribe: %w", err)
	}
	if roomID.IsZero() {
		return false, nil, fmt.Errorf("registry: subscribe: zero room ID")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec := r.entities[entityRef]
	if rec != nil {
		if _, subscribed := rec.rooms[roomID]; subscribed {
			return false, rec.snapshot, nil
		}
	}

	seq, err := r.insertSubscription(ctx, roomID, entityRef)
	if err != nil {
		return false, nil, err
	}

	if rec == nil {
		rec = &record{rooms: make(map[ref.RoomID]int64)}
		r.entities[entityRef] = rec
	}
	rec.rooms[roomID] = seq

	r.logger.Info("subscribed", "room_id", roomID, "entity", entityRef.Key())
	return true, rec.snapshot, nil
}

// Unsubscribe removes a room's subscription to an entity. Removing an
// absent pair is a no-op, not an error. When the last room
// unsubscribes, the entity record and its stored snapshot are deleted
// so the poller stops querying it.
func (r *Registry) Unsubscribe(ctx context.Context, roomID ref.RoomID, entityRef entity.Ref) (removed bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec := r.entities[entityRef]
	if rec == nil {
		return false, nil
	}
	if _, subscribed := rec.rooms[roomID]; !subscribed {
		return false, nil
	}

	lastRoom := len(rec.rooms) == 1
	if err := r.deleteSubscription(ctx, roomID, entityRef, lastRoom); err != nil {
		return false, err
	}

	delete(rec.rooms, roomID)
	if lastRoom {
		delete(r.entities, entityRef)
	}

	r.logger.Info("unsubscribed",
		"room_id", roomID,
		"entity", entityRef.Key(),
		"entity_removed", lastRoom,
	)
	return true, nil
}

// UnsubscribeRoom drops every subscription a room holds. Used when the
// bot leaves a room: a room the bot cannot post to must not keep
// entities alive for polling. Returns the number of subscriptions
// removed.
func (r *Registry) UnsubscribeRoom(ctx context.Context, roomID ref.RoomID) (removed int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var affected []entity.Ref
	for entityRef, rec := range r.entities {
		if _, subscribed := rec.rooms[roomID]; subscribed {
			affected = append(affected, entityRef)
		}
	}
	if len(affected) == 0 {
		return 0, nil
	}

	var orphaned []entity.Ref
	for _, entityRef := range affected {
		if len(r.entities[entityRef].rooms) == 1 {
			orphaned = append(orphaned, entityRef)
		}
	}

	if err := r.deleteRoom(ctx, roomID, orphaned); err != nil {
		return 0, err
	}

	for _, entityRef := range affected {
		delete(r.entities[entityRef].rooms, roomID)
	}
	for _, entityRef := range orphaned {
		delete(r.entities, entityRef)
	}

	r.logger.Info("room subscriptions dropped",
		"room_id", roomID,
		"removed", len(affected),
		"entities_removed", len(orphaned),
	)
	return len(affected), nil
}

// List returns the entities a room is subscribed to, in subscription
// insertion order.
func (r *Registry) List(roomID ref.RoomID) []entity.Ref {
	r.mu.Lock()
	defer r.mu.Unlock()

	type listed struct {
		entityRef entity.Ref
		seq       int64
	}
	var items []listed
	for entityRef, rec := range r.entities {
		if seq, subscribed := rec.rooms[roomID]; subscribed {
			items = append(items, listed{entityRef, seq})
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].seq < items[j].seq })

	refs := make([]entity.Ref, len(items))
	for i, item := range items {
		refs[i] = item.entityRef
	}
	return refs
}

// Entities returns the distinct tracked entities across all rooms —
// the poller's work list. Order is unspecified.
func (r *Registry) Entities() []entity.Ref {
	r.mu.Lock()
	defer r.mu.Unlock()

	refs := make([]entity.Ref, 0, len(r.entities))
	for entityRef := range r.entities {
		refs = append(refs, entityRef)
	}
	return refs
}

// RoomsFor returns the rooms currently subscribed to an entity.
func (r *Registry) RoomsFor(entityRef entity.Ref) []ref.RoomID {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec := r.entities[entityRef]
	if rec == nil {
		return nil
	}
	return roomList(rec)
}

// Snapshot returns the entity's last committed state snapshot, or nil.
func (r *Registry) Snapshot(entityRef entity.Ref) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec := r.entities[entityRef]
	if rec == nil {
		return nil
	}
	return rec.snapshot
}

// CommitState atomically replaces the entity's stored snapshot and
// reads its current subscriber set. It returns the previous snapshot
// (nil on first observation) and the rooms subscribed at commit time.
//
// The combined swap-and-read is deliberate: the change detector must
// see a subscriber set consistent with the state it is about to
// notify for. If the entity is no longer tracked (every room
// unsubscribed while the fetch was in flight), nothing is written and
// tracked is false.
func (r *Registry) CommitState(ctx context.Context, entityRef entity.Ref, snapshot []byte) (previous []byte, rooms []ref.RoomID, tracked bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec := r.entities[entityRef]
	if rec == nil {
		return nil, nil, false, nil
	}

	if err := r.upsertState(ctx, entityRef, snapshot); err != nil {
		return nil, nil, false, err
	}

	previous = rec.snapshot
	rec.snapshot = snapshot
	return previous, roomList(rec), true, nil
}

// roomList flattens a record's room set. Callers hold r.mu.
func roomList(rec *record) []ref.RoomID {
	rooms := make([]ref.RoomID, 0, len(rec.rooms))
	for roomID := range rec.rooms {
		rooms = append(rooms, roomID)
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].String() < rooms[j].String() })
	return rooms
}
