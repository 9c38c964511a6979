// Copyright 2026 The OBS Chat Bot Authors
// SPDX-License-Identifier: Apache-2.0

// Package entity defines the identity and state model for trackable
// build-service entities.
//
// A [Ref] names one entity on one configured backend: a package
// (project + package coordinates) or a submit request (numeric id).
// Refs are flat comparable values — two rooms subscribing to the same
// entity produce equal Refs, which is what makes a Ref the dedup key
// for polling: one poll per distinct entity, no matter how many rooms
// watch it.
//
// A [State] is an opaque, backend-defined snapshot of an entity's
// externally visible status. The interface demands structured equality
// (so a response that changes formatting but not meaning is a no-op)
// and human-readable summaries for notifications. Concrete state types
// live with their backend implementation (see lib/obs).
//
// A [Transition] pairs a Ref with the old and new states and a
// rendered change summary; it is what the poller hands to the
// notifier when a meaningful change is detected.
package entity
