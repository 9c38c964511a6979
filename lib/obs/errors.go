// Copyright 2026 The OBS Chat Bot Authors
// SPDX-License-Identifier: Apache-2.0

package obs

import (
	"errors"
	"fmt"
)

// APIError represents a non-2xx response from the OBS API. OBS returns
// a structured XML error body with a machine-readable code and a
// human-readable summary:
//
//	<status code="unknown_package">
//	  <summary>unknown package 'foo'</summary>
//	</status>
type APIError struct {
	// StatusCode is the HTTP response status code.
	StatusCode int

	// Code is the OBS error code (e.g. "unknown_package",
	// "not_found"). Empty if the body was not parseable.
	Code string

	// Summary is the human-readable error description.
	Summary string
}

func (err *APIError) Error() string {
	if err.Code != "" {
		return fmt.Sprintf("obs: HTTP %d (%s): %s", err.StatusCode, err.Code, err.Summary)
	}
	return fmt.Sprintf("obs: HTTP %d: %s", err.StatusCode, err.Summary)
}

// IsNotFound reports whether err is an OBS 404 response — an unknown
// project, package, or request. The poller treats this like any other
// fetch failure (logged, retried next cycle): the entity may have been
// deleted, or may reappear.
func IsNotFound(err error) bool {
	var apiError *APIError
	return errors.As(err, &apiError) && apiError.StatusCode == 404
}
