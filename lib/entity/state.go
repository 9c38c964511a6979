// Copyright 2026 The OBS Chat Bot Authors
// SPDX-License-Identifier: Apache-2.0

package entity

// State is an opaque snapshot of an entity's externally visible
// status: build results per repository/architecture for a package,
// review state for a submit request. Concrete types live with their
// backend implementation.
//
// The interface is what change detection needs and nothing more.
// Backends are responsible for serialization (see
// backend.Backend.EncodeState / DecodeState) so the registry can store
// snapshots without knowing their shape.
type State interface {
	// Equal reports whether other represents the same observable
	// status. Implementations compare structurally, not textually:
	// a backend response that reorders or reformats without changing
	// meaning must compare equal.
	Equal(other State) bool

	// Summary returns a short human-readable description of the
	// state, used when confirming a subscription to an entity whose
	// state is already known.
	Summary() string

	// ChangeSummary describes the transition from previous to the
	// receiver (e.g. "openSUSE_Tumbleweed/x86_64: building → succeeded").
	// previous is never nil and always has the receiver's concrete
	// type.
	ChangeSummary(previous State) string
}

// Transition is a detected, notifiable state change for one entity.
type Transition struct {
	Ref     Ref
	Old     State
	New     State
	Summary string
}
