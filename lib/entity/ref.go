// Copyright 2026 The OBS Chat Bot Authors
// SPDX-License-Identifier: Apache-2.0

package entity

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind distinguishes the two trackable entity types.
type Kind string

const (
	// KindPackage is a package build, identified by project and
	// package coordinates (e.g. "home:alice" / "foo").
	KindPackage Kind = "package"

	// KindRequest is a submit request, identified by its numeric id.
	KindRequest Kind = "request"
)

// Ref identifies one trackable entity on one configured backend.
//
// Backend is the backend's configured name (not a hostname — the same
// backend answers on several hostnames). Exactly one coordinate set is
// populated, selected by Kind: Project+Package for KindPackage,
// Request for KindRequest.
//
// Ref is a flat comparable value type: it is usable as a map key, and
// two Refs are equal iff all fields match.
type Ref struct {
	Backend string
	Kind    Kind
	Project string
	Package string
	Request int64
}

// NewPackageRef constructs a package Ref.
func NewPackageRef(backend, project, pkg string) Ref {
	return Ref{Backend: backend, Kind: KindPackage, Project: project, Package: pkg}
}

// NewRequestRef constructs a submit request Ref.
func NewRequestRef(backend string, request int64) Ref {
	return Ref{Backend: backend, Kind: KindRequest, Request: request}
}

// IsZero reports whether the Ref is the zero value (uninitialized).
func (r Ref) IsZero() bool { return r.Kind == "" }

// Validate checks structural consistency: backend name present and
// free of the key separator, coordinates matching the kind.
func (r Ref) Validate() error {
	if r.Backend == "" {
		return fmt.Errorf("entity ref has empty backend")
	}
	if strings.ContainsRune(r.Backend, '/') {
		return fmt.Errorf("backend name %q contains '/'", r.Backend)
	}
	switch r.Kind {
	case KindPackage:
		if r.Project == "" || r.Package == "" {
			return fmt.Errorf("package ref missing coordinates: project=%q package=%q", r.Project, r.Package)
		}
		if strings.ContainsRune(r.Project, '/') || strings.ContainsRune(r.Package, '/') {
			return fmt.Errorf("package coordinates contain '/': %q/%q", r.Project, r.Package)
		}
	case KindRequest:
		if r.Request <= 0 {
			return fmt.Errorf("request ref has non-positive id %d", r.Request)
		}
	default:
		return fmt.Errorf("unknown entity kind %q", r.Kind)
	}
	return nil
}

// Key returns the canonical persistence key for the Ref:
//
//	<backend>/package/<project>/<package>
//	<backend>/request/<id>
//
// Keys round-trip through ParseKey and are what the subscription
// database stores.
func (r Ref) Key() string {
	switch r.Kind {
	case KindPackage:
		return r.Backend + "/package/" + r.Project + "/" + r.Package
	case KindRequest:
		return r.Backend + "/request/" + strconv.FormatInt(r.Request, 10)
	}
	return ""
}

// ParseKey parses a canonical persistence key back into a Ref.
func ParseKey(key string) (Ref, error) {
	parts := strings.Split(key, "/")
	if len(parts) < 3 {
		return Ref{}, fmt.Errorf("malformed entity key %q", key)
	}

	backend := parts[0]
	switch Kind(parts[1]) {
	case KindPackage:
		if len(parts) != 4 {
			return Ref{}, fmt.Errorf("malformed package key %q", key)
		}
		parsed := NewPackageRef(backend, parts[2], parts[3])
		if err := parsed.Validate(); err != nil {
			return Ref{}, fmt.Errorf("invalid package key %q: %w", key, err)
		}
		return parsed, nil
	case KindRequest:
		if len(parts) != 3 {
			return Ref{}, fmt.Errorf("malformed request key %q", key)
		}
		request, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			return Ref{}, fmt.Errorf("invalid request id in key %q: %w", key, err)
		}
		parsed := NewRequestRef(backend, request)
		if err := parsed.Validate(); err != nil {
			return Ref{}, fmt.Errorf("invalid request key %q: %w", key, err)
		}
		return parsed, nil
	}
	return Ref{}, fmt.Errorf("unknown entity kind in key %q", key)
}

// String returns a human-oriented display form, used in log lines and
// chat replies: "home:alice/foo (opensuse)" or "request 1234 (opensuse)".
func (r Ref) String() string {
	switch r.Kind {
	case KindPackage:
		return fmt.Sprintf("%s/%s (%s)", r.Project, r.Package, r.Backend)
	case KindRequest:
		return fmt.Sprintf("request %d (%s)", r.Request, r.Backend)
	}
	return "(zero entity ref)"
}
