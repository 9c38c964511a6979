// Copyright 2026 The OBS Chat Bot Authors
// SPDX-License-Identifier: Apache-2.0

// Package backend defines the capability interface a build-service
// backend must provide, and the [Set] that routes by hostname.
//
// URL shapes and status vocabularies vary per backend, so each backend
// is a small polymorphic capability — identify your hostnames, parse
// your URL paths, fetch and serialize your states — rather than a
// conditional chain in the caller. The one concrete implementation
// today is lib/obs; a Set can hold several instances of it (e.g. a
// public and an internal build service) side by side.
//
// [Set.ParseRef] is the entity reference parser: it scans free-form
// chat text for a URL on a configured backend host and recognizes the
// package-show and request-show path shapes. Text that doesn't contain
// a recognizable entity URL is ordinary conversation, not an error,
// so the scan reports a bool instead of failing.
package backend
