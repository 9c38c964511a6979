// Copyright 2026 The OBS Chat Bot Authors
// SPDX-License-Identifier: Apache-2.0

// Package obs implements the backend capability for the Open Build
// Service.
//
// [Client] is a thin read-only client for the OBS REST API (XML over
// HTTPS with basic auth): per-repository/architecture build results
// for a package, and the review state of a submit request. All API
// errors are returned as [*APIError] with the HTTP status and the OBS
// error code from the response body.
//
// [PackageState] and [RequestState] are the concrete entity.State
// implementations. Build results are normalized (sorted by repository,
// then architecture) at construction so that two fetches of the same
// logical state always compare equal regardless of the order the
// server listed them in.
//
// [Backend] ties the client and states together into the
// backend.Backend capability: it recognizes the two OBS web URL
// shapes,
//
//	/package/show/{project}/{package}
//	/request/show/{id}
//
// and serializes states as deterministic CBOR snapshots for the
// subscription registry.
package obs
