// Copyright 2026 The OBS Chat Bot Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"context"
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/msirringhaus/obs-chat-bot/lib/entity"
	"github.com/msirringhaus/obs-chat-bot/lib/ref"
)

// schema is created on every connection; IF NOT EXISTS makes it
// idempotent. The seq column records subscription insertion order for
// stable user-facing listing. entity_states rows exist only for
// entities with at least one subscription (enforced by the registry's
// mutation paths, not by a foreign key — subscriptions are keyed by
// (room, entity) while states are keyed by entity alone).
const schema = `
CREATE TABLE IF NOT EXISTS subscriptions (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	room_id    TEXT NOT NULL,
	entity_key TEXT NOT NULL,
	UNIQUE (room_id, entity_key)
);

CREATE TABLE IF NOT EXISTS entity_states (
	entity_key TEXT PRIMARY KEY,
	snapshot   BLOB NOT NULL,
	updated_at INTEGER NOT NULL
);
`

func createSchema(conn *sqlite.Conn) error {
	return sqlitex.ExecuteScript(conn, schema, nil)
}

// load populates the in-memory image from the database. Rows that no
// longer parse (a key format change, a hand-edited database) are
// skipped with a warning rather than failing startup — one bad row
// must not take the bot down.
func (r *Registry) load(ctx context.Context) error {
	conn, err := r.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("registry: load: %w", err)
	}
	defer r.pool.Put(conn)

	err = sqlitex.Execute(conn,
		"SELECT seq, room_id, entity_key FROM subscriptions ORDER BY seq",
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				seq := stmt.ColumnInt64(0)
				rawRoom := stmt.ColumnText(1)
				key := stmt.ColumnText(2)

				roomID, err := ref.ParseRoomID(rawRoom)
				if err != nil {
					r.logger.Warn("skipping subscription with bad room ID",
						"room_id", rawRoom, "error", err)
					return nil
				}
				entityRef, err := entity.ParseKey(key)
				if err != nil {
					r.logger.Warn("skipping subscription with bad entity key",
						"entity_key", key, "error", err)
					return nil
				}

				rec := r.entities[entityRef]
				if rec == nil {
					rec = &record{rooms: make(map[ref.RoomID]int64)}
					r.entities[entityRef] = rec
				}
				rec.rooms[roomID] = seq
				return nil
			},
		})
	if err != nil {
		return fmt.Errorf("registry: loading subscriptions: %w", err)
	}

	err = sqlitex.Execute(conn,
		"SELECT entity_key, snapshot FROM entity_states",
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				key := stmt.ColumnText(0)
				entityRef, err := entity.ParseKey(key)
				if err != nil {
					r.logger.Warn("skipping state with bad entity key",
						"entity_key", key, "error", err)
					return nil
				}

				rec := r.entities[entityRef]
				if rec == nil {
					// State without subscribers: leftover from an
					// interrupted unsubscribe. Harmless; ignored and
					// overwritten or deleted on the next mutation.
					r.logger.Warn("ignoring orphaned entity state", "entity_key", key)
					return nil
				}

				snapshot := make([]byte, stmt.ColumnLen(1))
				stmt.ColumnBytes(1, snapshot)
				rec.snapshot = snapshot
				return nil
			},
		})
	if err != nil {
		return fmt.Errorf("registry: loading entity states: %w", err)
	}
	return nil
}

// insertSubscription durably records one (room, entity) pair and
// returns its insertion sequence. Callers hold r.mu.
func (r *Registry) insertSubscription(ctx context.Context, roomID ref.RoomID, entityRef entity.Ref) (int64, error) {
	conn, err := r.pool.Take(ctx)
	if err != nil {
		return 0, fmt.Errorf("registry: subscribe: %w", err)
	}
	defer r.pool.Put(conn)

	err = sqlitex.Execute(conn,
		"INSERT INTO subscriptions (room_id, entity_key) VALUES (?, ?)",
		&sqlitex.ExecOptions{
			Args: []any{roomID.String(), entityRef.Key()},
		})
	if err != nil {
		return 0, fmt.Errorf("registry: persisting subscription: %w", err)
	}
	return conn.LastInsertRowID(), nil
}

// deleteSubscription durably removes one (room, entity) pair, and the
// entity's stored state when the last room goes. Callers hold r.mu.
func (r *Registry) deleteSubscription(ctx context.Context, roomID ref.RoomID, entityRef entity.Ref, lastRoom bool) (err error) {
	conn, err := r.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("registry: unsubscribe: %w", err)
	}
	defer r.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("registry: unsubscribe transaction: %w", err)
	}
	defer endTransaction(&err)

	err = sqlitex.Execute(conn,
		"DELETE FROM subscriptions WHERE room_id = ? AND entity_key = ?",
		&sqlitex.ExecOptions{
			Args: []any{roomID.String(), entityRef.Key()},
		})
	if err != nil {
		return fmt.Errorf("registry: removing subscription: %w", err)
	}

	if lastRoom {
		err = sqlitex.Execute(conn,
			"DELETE FROM entity_states WHERE entity_key = ?",
			&sqlitex.ExecOptions{
				Args: []any{entityRef.Key()},
			})
		if err != nil {
			return fmt.Errorf("registry: removing entity state: %w", err)
		}
	}
	return nil
}

// deleteRoom durably removes every subscription a room holds, plus the
// states of entities orphaned by the removal. Callers hold r.mu.
func (r *Registry) deleteRoom(ctx context.Context, roomID ref.RoomID, orphaned []entity.Ref) (err error) {
	conn, err := r.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("registry: unsubscribe room: %w", err)
	}
	defer r.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("registry: unsubscribe room transaction: %w", err)
	}
	defer endTransaction(&err)

	err = sqlitex.Execute(conn,
		"DELETE FROM subscriptions WHERE room_id = ?",
		&sqlitex.ExecOptions{
			Args: []any{roomID.String()},
		})
	if err != nil {
		return fmt.Errorf("registry: removing room subscriptions: %w", err)
	}

	for _, entityRef := range orphaned {
		err = sqlitex.Execute(conn,
			"DELETE FROM entity_states WHERE entity_key = ?",
			&sqlitex.ExecOptions{
				Args: []any{entityRef.Key()},
			})
		if err != nil {
			return fmt.Errorf("registry: removing entity state: %w", err)
		}
	}
	return nil
}

// upsertState durably replaces an entity's stored snapshot. Callers
// hold r.mu.
func (r *Registry) upsertState(ctx context.Context, entityRef entity.Ref, snapshot []byte) error {
	conn, err := r.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("registry: commit state: %w", err)
	}
	defer r.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`INSERT INTO entity_states (entity_key, snapshot, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT (entity_key) DO UPDATE SET snapshot = excluded.snapshot, updated_at = excluded.updated_at`,
		&sqlitex.ExecOptions{
			Args: []any{entityRef.Key(), snapshot, r.clock.Now().Unix()},
		})
	if err != nil {
		return fmt.Errorf("registry: persisting entity state: %w", err)
	}
	return nil
}
