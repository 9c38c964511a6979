// Copyright 2026 The OBS Chat Bot Authors
// SPDX-License-Identifier: Apache-2.0

package obs

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/msirringhaus/obs-chat-bot/lib/codec"
	"github.com/msirringhaus/obs-chat-bot/lib/entity"
)

// BackendConfig holds the parameters for one configured OBS instance.
type BackendConfig struct {
	// Name is the backend's unique configured name; it identifies
	// the backend in entity refs and the subscription database.
	Name string

	// Hosts are the web frontend hostnames users paste links from
	// (e.g. "build.opensuse.org"). The first entry is the canonical
	// host used when the bot constructs links. At least one is
	// required.
	Hosts []string

	// Client is the API client for this instance. Required.
	Client *Client
}

// Backend implements backend.Backend for one OBS instance.
type Backend struct {
	name   string
	hosts  []string
	client *Client
}

// NewBackend creates a Backend from its configuration.
func NewBackend(config BackendConfig) (*Backend, error) {
	if config.Name == "" {
		return nil, fmt.Errorf("obs: backend Name is required")
	}
	if strings.ContainsRune(config.Name, '/') {
		return nil, fmt.Errorf("obs: backend name %q contains '/'", config.Name)
	}
	if len(config.Hosts) == 0 {
		return nil, fmt.Errorf("obs: backend %q has no hosts", config.Name)
	}
	if config.Client == nil {
		return nil, fmt.Errorf("obs: backend %q has no API client", config.Name)
	}
	return &Backend{
		name:   config.Name,
		hosts:  config.Hosts,
		client: config.Client,
	}, nil
}

// Name implements backend.Backend.
func (b *Backend) Name() string { return b.name }

// Hosts implements backend.Backend.
func (b *Backend) Hosts() []string { return b.hosts }

// ParsePath implements backend.Backend. Recognized shapes:
//
//	/package/show/{project}/{package}
//	/request/show/{id}
func (b *Backend) ParsePath(path string) (entity.Ref, bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")

	switch {
	case len(parts) == 4 && parts[0] == "package" && parts[1] == "show":
		ref := entity.NewPackageRef(b.name, parts[2], parts[3])
		if ref.Validate() != nil {
			return entity.Ref{}, false
		}
		return ref, true

	case len(parts) == 3 && parts[0] == "request" && parts[1] == "show":
		id, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil || id <= 0 {
			return entity.Ref{}, false
		}
		return entity.NewRequestRef(b.name, id), true
	}
	return entity.Ref{}, false
}

// FetchState implements backend.Backend.
func (b *Backend) FetchState(ctx context.Context, ref entity.Ref) (entity.State, error) {
	switch ref.Kind {
	case entity.KindPackage:
		return b.client.PackageResults(ctx, ref.Project, ref.Package)
	case entity.KindRequest:
		return b.client.Request(ctx, ref.Request)
	}
	return nil, fmt.Errorf("obs: cannot fetch state for kind %q", ref.Kind)
}

// EncodeState implements backend.Backend.
func (b *Backend) EncodeState(state entity.State) ([]byte, error) {
	switch state.(type) {
	case *PackageState, *RequestState:
		return codec.Marshal(state)
	}
	return nil, fmt.Errorf("obs: cannot encode state of type %T", state)
}

// DecodeState implements backend.Backend.
func (b *Backend) DecodeState(ref entity.Ref, snapshot []byte) (entity.State, error) {
	switch ref.Kind {
	case entity.KindPackage:
		var state PackageState
		if err := codec.Unmarshal(snapshot, &state); err != nil {
			return nil, fmt.Errorf("obs: decoding package snapshot for %s: %w", ref, err)
		}
		return &state, nil
	case entity.KindRequest:
		var state RequestState
		if err := codec.Unmarshal(snapshot, &state); err != nil {
			return nil, fmt.Errorf("obs: decoding request snapshot for %s: %w", ref, err)
		}
		return &state, nil
	}
	return nil, fmt.Errorf("obs: cannot decode snapshot for kind %q", ref.Kind)
}

// EntityURL implements backend.Backend, linking notifications back to
// the build service's web frontend.
func (b *Backend) EntityURL(ref entity.Ref) string {
	host := b.hosts[0]
	switch ref.Kind {
	case entity.KindPackage:
		return "https://" + host + "/package/show/" + ref.Project + "/" + ref.Package
	case entity.KindRequest:
		return "https://" + host + "/request/show/" + strconv.FormatInt(ref.Request, 10)
	}
	return "https://" + host
}
