// Copyright 2026 The OBS Chat Bot Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"fmt"
	"strings"
)

// UserID is a validated Matrix user ID (e.g., "@obsbot:matrix.org").
//
// A Matrix user ID always starts with '@' and contains a ':'
// separating the localpart from the server name. This type validates
// the structural format only — it accepts any well-formed Matrix user
// ID. The bot uses it for its own identity (to skip its own messages)
// and for message senders.
//
// UserID is an immutable value type. The zero value is not valid;
// use IsZero to check.
type UserID struct {
	id string
}

// ParseUserID validates and wraps a raw Matrix user ID string.
// Returns an error if the string is empty, doesn't start with '@',
// has an empty localpart, or is missing the ':server' suffix.
func ParseUserID(raw string) (UserID, error) {
	_, _, err := splitMatrixID(raw, '@')
	if err != nil {
		return UserID{}, err
	}
	return UserID{id: raw}, nil
}

// String returns the full user ID string (e.g., "@obsbot:matrix.org").
func (u UserID) String() string { return u.id }

// IsZero reports whether the UserID is the zero value (uninitialized).
func (u UserID) IsZero() bool { return u.id == "" }

// Localpart returns the localpart portion of the user ID (without the
// '@' prefix or ':server' suffix). Returns "" on a zero value.
func (u UserID) Localpart() string {
	localpart, _, err := splitMatrixID(u.id, '@')
	if err != nil {
		return ""
	}
	return localpart
}

// MarshalText implements encoding.TextMarshaler so UserID serializes
// as its canonical string form in JSON and CBOR.
func (u UserID) MarshalText() ([]byte, error) {
	return []byte(u.id), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, validating the
// incoming string.
func (u *UserID) UnmarshalText(text []byte) error {
	parsed, err := ParseUserID(string(text))
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

// splitMatrixID extracts the localpart and server from a Matrix
// identifier of the form <sigil>localpart:server.
func splitMatrixID(matrixID string, sigil byte) (localpart, server string, err error) {
	if matrixID == "" {
		return "", "", fmt.Errorf("empty Matrix ID")
	}
	if matrixID[0] != sigil {
		return "", "", fmt.Errorf("Matrix ID must start with %q: %q", string(sigil), matrixID)
	}

	rest := matrixID[1:]
	colonIndex := strings.IndexByte(rest, ':')
	if colonIndex < 0 {
		return "", "", fmt.Errorf("Matrix ID missing ':server' suffix: %q", matrixID)
	}
	if colonIndex == 0 {
		return "", "", fmt.Errorf("Matrix ID has empty localpart: %q", matrixID)
	}

	server = rest[colonIndex+1:]
	if server == "" {
		return "", "", fmt.Errorf("Matrix ID has empty server name: %q", matrixID)
	}

	return rest[:colonIndex], server, nil
}
