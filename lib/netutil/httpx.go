// Copyright 2026 The OBS Chat Bot Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil provides HTTP response reading helpers shared by the
// bot's API clients (the Matrix client-server API and the OBS status
// API). All response body reads are bounded at MaxResponseSize so a
// misbehaving server cannot exhaust memory. These helpers are for
// request/response API bodies, not for streaming downloads.
package netutil

import (
	"fmt"
	"io"
)

// MaxResponseSize is the bound on API response body reads: 32 MB.
// Matrix sync responses and OBS build result listings are orders of
// magnitude smaller; the limit only guards against a pathological
// response.
const MaxResponseSize int64 = 32 << 20

// ReadResponse reads an API response body up to MaxResponseSize bytes.
func ReadResponse(body io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(body, MaxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	return data, nil
}
