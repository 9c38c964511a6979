// Copyright 2026 The OBS Chat Bot Authors
// SPDX-License-Identifier: Apache-2.0

// Package messaging wraps the Matrix client-server API for the bot's
// communication needs.
//
// [Client] is an unauthenticated Matrix client holding the homeserver
// URL and HTTP transport. [Client.Login] authenticates with username
// and password and returns a [Session] for room membership, message
// sending (plain and HTML), and incremental sync with long-polling.
//
// [Listener] runs the receive loop: it long-polls /sync, accepts room
// invites, and hands each inbound text message to a handler callback.
// Sync failures are logged and retried with a pause; the loop only
// stops when its context is cancelled.
//
// All API errors are returned as [*MatrixError] with the standard
// Matrix error code (M_FORBIDDEN, M_NOT_FOUND, etc.) and HTTP status
// code. [IsMatrixError] tests for a specific error code. Request URLs
// are built by string concatenation rather than url.URL to avoid
// double-encoding of path segments.
package messaging
