// Copyright 2026 The OBS Chat Bot Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"encoding/json"
	"testing"
)

func TestParseRoomID(t *testing.T) {
	valid := []string{
		"!abc123:matrix.org",
		"!x:example.com",
		"!opaque-part:build.opensuse.org",
	}
	for _, raw := range valid {
		roomID, err := ParseRoomID(raw)
		if err != nil {
			t.Errorf("ParseRoomID(%q): %v", raw, err)
			continue
		}
		if roomID.String() != raw {
			t.Errorf("ParseRoomID(%q).String() = %q", raw, roomID.String())
		}
		if roomID.IsZero() {
			t.Errorf("ParseRoomID(%q) returned zero value", raw)
		}
	}

	invalid := []string{
		"",
		"abc:matrix.org",    // missing sigil
		"!abc",              // missing server
		"!:matrix.org",      // empty local part
		"!abc:",             // empty server
		"@user:matrix.org",  // wrong sigil
	}
	for _, raw := range invalid {
		if _, err := ParseRoomID(raw); err == nil {
			t.Errorf("ParseRoomID(%q): expected error", raw)
		}
	}
}

func TestParseUserID(t *testing.T) {
	userID, err := ParseUserID("@obsbot:matrix.org")
	if err != nil {
		t.Fatalf("ParseUserID: %v", err)
	}
	if userID.Localpart() != "obsbot" {
		t.Errorf("Localpart() = %q, want %q", userID.Localpart(), "obsbot")
	}

	invalid := []string{"", "obsbot", "@obsbot", "@:matrix.org", "@obsbot:", "!room:matrix.org"}
	for _, raw := range invalid {
		if _, err := ParseUserID(raw); err == nil {
			t.Errorf("ParseUserID(%q): expected error", raw)
		}
	}
}

func TestRoomIDJSONRoundTrip(t *testing.T) {
	original, err := ParseRoomID("!abc123:matrix.org")
	if err != nil {
		t.Fatalf("ParseRoomID: %v", err)
	}

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != `"!abc123:matrix.org"` {
		t.Errorf("Marshal = %s", data)
	}

	var decoded RoomID
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded != original {
		t.Errorf("round trip: got %v, want %v", decoded, original)
	}
}

func TestUserIDJSONRejectsInvalid(t *testing.T) {
	var decoded UserID
	if err := json.Unmarshal([]byte(`"not-a-user-id"`), &decoded); err == nil {
		t.Fatal("expected unmarshal error for invalid user ID")
	}
}
