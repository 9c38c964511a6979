// Copyright 2026 The OBS Chat Bot Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides deterministic CBOR encoding for stored entity
// state snapshots.
//
// The subscription registry persists the last observed state of every
// tracked entity as an opaque CBOR blob. Deterministic encoding (RFC
// 8949 Core Deterministic Encoding: sorted map keys, smallest integer
// encoding, no indefinite-length items) guarantees that the same
// logical state always produces identical bytes, so snapshots written
// before a restart compare cleanly against snapshots written after.
package codec

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

var encMode cbor.EncMode
var decMode cbor.DecMode

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	// Types implementing encoding.TextMarshaler (ref.RoomID,
	// ref.UserID) serialize as CBOR text strings via MarshalText.
	// Without this, types with unexported fields would serialize as
	// empty CBOR maps, losing their identity.
	encOptions.TextMarshaler = cbor.TextMarshalerTextString
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		// Snapshot maps always use string keys. When decoding into
		// an any-typed target, produce map[string]any rather than
		// the CBOR default map[any]any.
		DefaultMapType:  reflect.TypeOf(map[string]any(nil)),
		TextUnmarshaler: cbor.TextUnmarshalerTextString,
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v to CBOR using Core Deterministic Encoding.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v. Unknown fields are ignored for
// forward compatibility, so old snapshots remain readable after a
// state struct gains fields.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}
