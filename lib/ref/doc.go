// Copyright 2026 The OBS Chat Bot Authors
// SPDX-License-Identifier: Apache-2.0

// Package ref provides strongly typed, immutable Matrix identifier
// values for the bot: room IDs and user IDs.
//
// Raw identifier strings arrive from three boundaries — the Matrix
// homeserver (/sync responses, join confirmations), the config file
// (default subscription rooms), and the subscription database. They
// are parsed into these types at the boundary and stay typed from
// then on, so the rest of the code never passes bare strings around
// and never has to re-validate.
//
// All types are immutable value types usable as map keys. The zero
// value is not valid; use IsZero to check. JSON marshaling uses the
// canonical Matrix string form via encoding.TextMarshaler.
package ref
