// Copyright 2026 The OBS Chat Bot Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/msirringhaus/obs-chat-bot/lib/ref"
	"github.com/msirringhaus/obs-chat-bot/lib/testutil"
)

// syncScript serves scripted /sync responses keyed by the since token
// and records join requests. Once the script is exhausted, syncs hang
// until the request context is cancelled, mimicking a long poll with
// no traffic.
type syncScript struct {
	mu        sync.Mutex
	responses map[string]string
	joined    []string
}

func (s *syncScript) handler(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/_matrix/client/v3/join/") {
		roomID := strings.TrimPrefix(r.URL.Path, "/_matrix/client/v3/join/")
		unescaped := strings.ReplaceAll(strings.ReplaceAll(roomID, "%21", "!"), "%3A", ":")
		s.mu.Lock()
		s.joined = append(s.joined, unescaped)
		s.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]string{"room_id": unescaped})
		return
	}
	if r.URL.Path != "/_matrix/client/v3/sync" {
		http.NotFound(w, r)
		return
	}

	since := r.URL.Query().Get("since")
	s.mu.Lock()
	response, ok := s.responses[since]
	delete(s.responses, since)
	s.mu.Unlock()
	if !ok {
		<-r.Context().Done()
		return
	}
	w.Write([]byte(response))
}

func (s *syncScript) joinedRooms() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.joined...)
}

func TestListenerDispatchesAndJoins(t *testing.T) {
	script := &syncScript{responses: map[string]string{
		// Initial sync: history that must NOT be dispatched.
		"": `{
			"next_batch": "s1",
			"rooms": {"join": {"!ops:example.org": {"timeline": {"events": [
				{"event_id": "$old", "type": "m.room.message",
				 "sender": "@alice:example.org",
				 "content": {"msgtype": "m.text", "body": "old history"}}
			]}}}}
		}`,
		// First incremental sync: an invite plus a text message and
		// a non-text event that must be skipped.
		"s1": `{
			"next_batch": "s2",
			"rooms": {
				"invite": {"!new:example.org": {"invite_state": {"events": []}}},
				"join": {"!ops:example.org": {"timeline": {"events": [
					{"event_id": "$e1", "type": "m.room.message",
					 "sender": "@alice:example.org",
					 "content": {"msgtype": "m.text", "body": "subscribe something"}},
					{"event_id": "$e2", "type": "m.room.message",
					 "sender": "@alice:example.org",
					 "content": {"msgtype": "m.image", "body": "cat.png"}},
					{"event_id": "$e3", "type": "m.room.member",
					 "sender": "@alice:example.org", "content": {}}
				]}}}
			}
		}`,
	}}
	server := httptest.NewServer(http.HandlerFunc(script.handler))
	defer server.Close()

	client, err := NewClient(ClientConfig{HomeserverURL: server.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	session, err := client.SessionFromToken("@bot:example.org", "token-1")
	if err != nil {
		t.Fatalf("SessionFromToken: %v", err)
	}

	type dispatched struct {
		room   ref.RoomID
		sender ref.UserID
		body   string
	}
	messages := make(chan dispatched, 8)
	listener, err := NewListener(ListenerConfig{
		Session: session,
		Handler: func(ctx context.Context, roomID ref.RoomID, sender ref.UserID, body string) {
			messages <- dispatched{room: roomID, sender: sender, body: body}
		},
		SyncTimeout: 100 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewListener: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- listener.Run(ctx) }()

	message := testutil.RequireReceive(t, messages, 5*time.Second, "waiting for dispatch")
	if message.body != "subscribe something" {
		t.Errorf("dispatched body = %q", message.body)
	}
	if message.room.String() != "!ops:example.org" {
		t.Errorf("dispatched room = %v", message.room)
	}
	if message.sender.String() != "@alice:example.org" {
		t.Errorf("dispatched sender = %v", message.sender)
	}

	// Neither the non-text events nor the initial-sync history may be
	// dispatched.
	testutil.RequireNoReceive(t, messages, 100*time.Millisecond, "only one text message was sent")

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Run returned %v, want context.Canceled", err)
	}

	joined := script.joinedRooms()
	if len(joined) != 1 || joined[0] != "!new:example.org" {
		t.Errorf("joined = %v, want the invited room", joined)
	}
}
