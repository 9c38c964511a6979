// Copyright 2026 The OBS Chat Bot Authors
// SPDX-License-Identifier: Apache-2.0

package backend

import (
	"context"

	"github.com/msirringhaus/obs-chat-bot/lib/entity"
)

// Backend is the capability a build-service backend provides to the
// rest of the bot. Implementations must be safe for concurrent use:
// FetchState is called from parallel poll goroutines while ParsePath
// serves chat commands.
type Backend interface {
	// Name returns the backend's configured name. It becomes the
	// Backend field of every entity.Ref parsed for this backend, and
	// is what the subscription database stores.
	Name() string

	// Hosts returns the web hostnames this backend answers for
	// (e.g. "build.opensuse.org"). Hostnames must be unique across
	// a Set.
	Hosts() []string

	// ParsePath matches a URL path against the backend's recognized
	// entity shapes and returns the corresponding Ref. Unrecognized
	// paths return ok=false — the caller treats the text as ordinary
	// conversation.
	ParsePath(path string) (ref entity.Ref, ok bool)

	// FetchState retrieves the entity's current observable state.
	// Read-only and idempotent; safe to retry on the next poll cycle.
	FetchState(ctx context.Context, ref entity.Ref) (entity.State, error)

	// EncodeState serializes a state produced by this backend into
	// the opaque snapshot form the registry stores.
	EncodeState(state entity.State) ([]byte, error)

	// DecodeState deserializes a stored snapshot for the given ref.
	// The inverse of EncodeState.
	DecodeState(ref entity.Ref, snapshot []byte) (entity.State, error)

	// EntityURL returns the web URL for an entity, used to link
	// notifications back to the build service.
	EntityURL(ref entity.Ref) string
}
