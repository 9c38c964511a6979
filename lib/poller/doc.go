// Copyright 2026 The OBS Chat Bot Authors
// SPDX-License-Identifier: Apache-2.0

// Package poller drives periodic state collection for every tracked
// entity and turns observed differences into change notifications.
//
// Each cycle fetches the current state of every entity in the
// registry, commits the new snapshot, and compares it against the
// previously committed one. The first observation of an entity is its
// baseline and produces no notification. Fetch failures are logged
// and skipped; one unreachable backend never blocks the rest of the
// cycle.
package poller
