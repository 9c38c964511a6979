// Copyright 2026 The OBS Chat Bot Authors
// SPDX-License-Identifier: Apache-2.0

// Package registry implements the durable per-room subscription
// registry — the bot's single source of truth.
//
// The registry owns one record per tracked entity: the set of rooms
// subscribed to it and the last observed state snapshot (absent until
// the first successful poll). The invariant is that every tracked
// entity has at least one subscribed room; when the last room
// unsubscribes, the entity record — snapshot included — is removed, so
// nothing orphaned is ever polled.
//
// Every mutation is written through to SQLite and durably committed
// before success is reported. A crash immediately after an
// acknowledged subscribe or unsubscribe never loses or resurrects a
// subscription relative to what the user was told. On startup the
// registry reloads everything, snapshots included, so polling resumes
// against prior baselines instead of re-notifying every entity as
// newly observed.
//
// All operations are atomic with respect to each other: chat-driven
// mutations and poll-driven state commits serialize on one registry
// mutex, and [Registry.CommitState] returns the previous snapshot and
// the current subscriber set in a single step, so a room that fully
// unsubscribed before a poll's state commit is never notified for it.
package registry
