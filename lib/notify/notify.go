// Copyright 2026 The OBS Chat Bot Authors
// SPDX-License-Identifier: Apache-2.0

package notify

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/juju/clock"
	"github.com/juju/retry"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/msirringhaus/obs-chat-bot/lib/ref"
)

// Sender posts one formatted message to one room. Implemented by the
// messaging session.
type Sender interface {
	SendHTML(ctx context.Context, roomID ref.RoomID, plain, html string) error
}

// Config holds the parameters for constructing a Notifier.
type Config struct {
	// Sender delivers rendered messages. Required.
	Sender Sender

	// Attempts is the number of delivery tries per room before the
	// message is dropped. Defaults to 3.
	Attempts int

	// RetryDelay is the pause before the first retry; it doubles on
	// each subsequent one. Defaults to 1 second.
	RetryDelay time.Duration

	// Clock times the retry backoff. Defaults to clock.WallClock.
	Clock clock.Clock

	// Logger receives operational messages. Defaults to
	// slog.Default().
	Logger *slog.Logger
}

// Notifier renders markdown messages and delivers them to rooms with
// bounded retry.
type Notifier struct {
	sender     Sender
	markdown   goldmark.Markdown
	attempts   int
	retryDelay time.Duration
	clock      clock.Clock
	logger     *slog.Logger
}

// New constructs a Notifier from the configuration.
func New(config Config) (*Notifier, error) {
	if config.Sender == nil {
		return nil, fmt.Errorf("notify: Sender is required")
	}
	if config.Attempts <= 0 {
		config.Attempts = 3
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = time.Second
	}
	if config.Clock == nil {
		config.Clock = clock.WallClock
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Notifier{
		sender:     config.Sender,
		// Change summaries carry inline HTML (underlined failure
		// codes), which goldmark strips unless told otherwise. All
		// markdown here is bot-generated, never echoed user input.
		markdown:   goldmark.New(goldmark.WithRendererOptions(html.WithUnsafe())),
		attempts:   config.Attempts,
		retryDelay: config.RetryDelay,
		clock:      config.Clock,
		logger:     config.Logger,
	}, nil
}

// Post renders the markdown and delivers it to a single room,
// retrying transient failures. Returns the last delivery error once
// the attempts are exhausted.
func (n *Notifier) Post(ctx context.Context, roomID ref.RoomID, markdown string) error {
	html, err := n.render(markdown)
	if err != nil {
		return fmt.Errorf("notify: rendering message: %w", err)
	}
	err = retry.Call(retry.CallArgs{
		Func: func() error {
			return n.sender.SendHTML(ctx, roomID, markdown, html)
		},
		Attempts:    n.attempts,
		Delay:       n.retryDelay,
		BackoffFunc: retry.DoubleDelay,
		Clock:       n.clock,
		Stop:        ctx.Done(),
		NotifyFunc: func(lastError error, attempt int) {
			n.logger.Warn("message delivery failed, retrying",
				"room", roomID, "attempt", attempt, "error", lastError)
		},
	})
	if err != nil {
		return fmt.Errorf("notify: delivering to %s: %w", roomID, retry.LastError(err))
	}
	return nil
}

// Broadcast delivers the markdown to every room. Rooms are handled
// independently; failures are logged and the remaining rooms still
// receive the message.
func (n *Notifier) Broadcast(ctx context.Context, rooms []ref.RoomID, markdown string) {
	for _, roomID := range rooms {
		if ctx.Err() != nil {
			return
		}
		if err := n.Post(ctx, roomID, markdown); err != nil {
			n.logger.Error("dropping undeliverable notification",
				"room", roomID, "error", err)
		}
	}
}

// render converts markdown to the HTML body clients display.
func (n *Notifier) render(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := n.markdown.Convert([]byte(markdown), &buf); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}
