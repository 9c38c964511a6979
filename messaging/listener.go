// Copyright 2026 The OBS Chat Bot Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/juju/clock"

	"github.com/msirringhaus/obs-chat-bot/lib/ref"
)

// initialSyncFilter keeps the first sync cheap: the bot only needs
// the next_batch token, not room history.
const initialSyncFilter = `{"room":{"timeline":{"limit":1}}}`

// incrementalSyncFilter bounds per-room timeline chunks on the long
// poll.
const incrementalSyncFilter = `{"room":{"timeline":{"limit":50}}}`

// MessageHandler receives one inbound text message. Called from the
// listener's goroutine; implementations should not block for long.
type MessageHandler func(ctx context.Context, roomID ref.RoomID, sender ref.UserID, body string)

// ListenerConfig holds the parameters for constructing a Listener.
type ListenerConfig struct {
	// Session is the authenticated session to sync with. Required.
	Session *Session

	// Handler receives inbound text messages. Required.
	Handler MessageHandler

	// SyncTimeout is the long-poll wait per sync request. Defaults
	// to 30 seconds.
	SyncTimeout time.Duration

	// ErrorPause is the wait after a failed sync before retrying.
	// Defaults to 5 seconds.
	ErrorPause time.Duration

	// Clock times the error pause. Defaults to clock.WallClock.
	Clock clock.Clock

	// Logger receives operational messages. Defaults to
	// slog.Default().
	Logger *slog.Logger
}

// Listener long-polls /sync and dispatches inbound text messages.
// It accepts room invites so users can pull the bot into new rooms.
type Listener struct {
	session     *Session
	handler     MessageHandler
	syncTimeout time.Duration
	errorPause  time.Duration
	clock       clock.Clock
	logger      *slog.Logger
}

// NewListener constructs a Listener from the configuration.
func NewListener(config ListenerConfig) (*Listener, error) {
	if config.Session == nil {
		return nil, fmt.Errorf("messaging: Session is required")
	}
	if config.Handler == nil {
		return nil, fmt.Errorf("messaging: Handler is required")
	}
	if config.SyncTimeout <= 0 {
		config.SyncTimeout = 30 * time.Second
	}
	if config.ErrorPause <= 0 {
		config.ErrorPause = 5 * time.Second
	}
	if config.Clock == nil {
		config.Clock = clock.WallClock
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Listener{
		session:     config.Session,
		handler:     config.Handler,
		syncTimeout: config.SyncTimeout,
		errorPause:  config.ErrorPause,
		clock:       config.Clock,
		logger:      config.Logger,
	}, nil
}

// Run syncs until the context is cancelled. The initial sync
// establishes the batch token without replaying history, so messages
// sent while the bot was offline are not re-processed as commands.
// Always returns the context's error.
func (l *Listener) Run(ctx context.Context) error {
	since, err := l.initialSync(ctx)
	for err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		l.logger.Error("initial sync failed, retrying", "error", err)
		if pauseErr := l.pause(ctx); pauseErr != nil {
			return pauseErr
		}
		since, err = l.initialSync(ctx)
	}
	l.logger.Info("listening for messages")

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		response, err := l.session.Sync(ctx, SyncOptions{
			Since:      since,
			Timeout:    int(l.syncTimeout / time.Millisecond),
			SetTimeout: true,
			Filter:     incrementalSyncFilter,
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.logger.Error("sync failed", "error", err)
			// A poisoned pooled connection can make every subsequent
			// request fail; start fresh after the pause.
			l.session.CloseIdleConnections()
			if pauseErr := l.pause(ctx); pauseErr != nil {
				return pauseErr
			}
			continue
		}

		since = response.NextBatch
		l.acceptInvites(ctx, response)
		l.dispatchMessages(ctx, response)
	}
}

func (l *Listener) initialSync(ctx context.Context) (string, error) {
	response, err := l.session.Sync(ctx, SyncOptions{Filter: initialSyncFilter})
	if err != nil {
		return "", err
	}
	return response.NextBatch, nil
}

func (l *Listener) acceptInvites(ctx context.Context, response *SyncResponse) {
	for roomID := range response.Rooms.Invite {
		if _, err := l.session.JoinRoom(ctx, roomID); err != nil {
			l.logger.Warn("joining invited room failed",
				"room", roomID, "error", err)
			continue
		}
		l.logger.Info("joined room on invite", "room", roomID)
	}
}

func (l *Listener) dispatchMessages(ctx context.Context, response *SyncResponse) {
	for roomID, room := range response.Rooms.Join {
		for _, event := range room.Timeline.Events {
			if event.Type != "m.room.message" {
				continue
			}
			msgType, _ := event.Content["msgtype"].(string)
			if msgType != "m.text" {
				continue
			}
			body, _ := event.Content["body"].(string)
			if body == "" {
				continue
			}
			l.handler(ctx, roomID, event.Sender, body)
		}
	}
}

func (l *Listener) pause(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.clock.After(l.errorPause):
		return nil
	}
}
