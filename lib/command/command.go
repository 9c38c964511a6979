// Copyright 2026 The OBS Chat Bot Authors
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/msirringhaus/obs-chat-bot/lib/backend"
	"github.com/msirringhaus/obs-chat-bot/lib/entity"
	"github.com/msirringhaus/obs-chat-bot/lib/ref"
	"github.com/msirringhaus/obs-chat-bot/lib/registry"
)

// Replier posts a markdown reply to the room a command came from.
type Replier interface {
	Post(ctx context.Context, roomID ref.RoomID, markdown string) error
}

// RoomClient is the subset of the messaging session the interpreter
// needs for the leave command.
type RoomClient interface {
	LeaveRoom(ctx context.Context, roomID ref.RoomID) error
}

// Config holds the parameters for constructing an Interpreter.
type Config struct {
	// Registry receives subscription mutations. Required.
	Registry *registry.Registry

	// Backends parses entity references out of message text.
	// Required.
	Backends *backend.Set

	// Replier delivers command replies. Required.
	Replier Replier

	// Rooms performs room membership operations for the leave
	// command. Required.
	Rooms RoomClient

	// Prefix, when non-empty, must lead a message for it to be
	// examined at all. When empty every message is a candidate.
	Prefix string

	// Self is the bot's own user ID; its messages are ignored.
	Self ref.UserID

	// Logger receives operational messages. Defaults to
	// slog.Default().
	Logger *slog.Logger
}

// Interpreter dispatches chat messages to subscription operations.
type Interpreter struct {
	registry *registry.Registry
	backends *backend.Set
	replier  Replier
	rooms    RoomClient
	prefix   string
	self     ref.UserID
	logger   *slog.Logger
}

// New constructs an Interpreter from the configuration.
func New(config Config) (*Interpreter, error) {
	if config.Registry == nil {
		return nil, fmt.Errorf("command: Registry is required")
	}
	if config.Backends == nil {
		return nil, fmt.Errorf("command: Backends is required")
	}
	if config.Replier == nil {
		return nil, fmt.Errorf("command: Replier is required")
	}
	if config.Rooms == nil {
		return nil, fmt.Errorf("command: Rooms is required")
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Interpreter{
		registry: config.Registry,
		backends: config.Backends,
		replier:  config.Replier,
		rooms:    config.Rooms,
		prefix:   config.Prefix,
		self:     config.Self,
		logger:   config.Logger,
	}, nil
}

// HandleMessage examines one inbound room message. Messages from the
// bot itself, messages without the configured prefix, and ordinary
// conversation produce no reply.
func (i *Interpreter) HandleMessage(ctx context.Context, roomID ref.RoomID, sender ref.UserID, body string) {
	if sender == i.self {
		return
	}
	body = strings.TrimSpace(body)
	if i.prefix != "" {
		rest, ok := strings.CutPrefix(body, i.prefix)
		if !ok {
			return
		}
		body = strings.TrimSpace(rest)
	}
	if body == "" {
		return
	}

	verb, rest, _ := strings.Cut(body, " ")
	rest = strings.TrimSpace(rest)
	switch strings.ToLower(verb) {
	case "help":
		i.reply(ctx, roomID, i.helpText())
	case "subscribe", "sub":
		i.subscribe(ctx, roomID, rest, true)
	case "unsubscribe", "unsub":
		i.unsubscribe(ctx, roomID, rest)
	case "list":
		i.list(ctx, roomID)
	case "leave":
		i.leave(ctx, roomID)
	default:
		// No verb matched. A message containing a recognizable
		// build-service URL is an implicit subscribe; anything else
		// is conversation the bot stays out of.
		i.subscribe(ctx, roomID, body, false)
	}
}

// subscribe parses an entity reference out of text and adds the
// subscription. With explicit=false (the paste-a-URL fallback),
// unparseable text is silently ignored instead of drawing a usage
// hint.
func (i *Interpreter) subscribe(ctx context.Context, roomID ref.RoomID, text string, explicit bool) {
	entityRef, b, ok := i.backends.ParseRef(text)
	if !ok {
		if explicit {
			i.reply(ctx, roomID, "I could not find a package or request URL in that. Try pasting a link like `https://build.opensuse.org/package/show/<project>/<package>`.")
		}
		return
	}

	added, snapshot, err := i.registry.Subscribe(ctx, roomID, entityRef)
	if err != nil {
		i.logger.Error("subscribe failed",
			"room", roomID, "entity", entityRef.Key(), "error", err)
		i.reply(ctx, roomID, "Sorry, saving that subscription failed. Please try again.")
		return
	}
	if !added {
		i.reply(ctx, roomID, fmt.Sprintf("Already watching %s.", linkTo(b, entityRef)))
		return
	}

	message := fmt.Sprintf("Now watching %s.", linkTo(b, entityRef))
	if snapshot != nil {
		if state, err := b.DecodeState(entityRef, snapshot); err == nil {
			message += fmt.Sprintf(" Current state: %s.", state.Summary())
		}
	}
	i.reply(ctx, roomID, message)
}

func (i *Interpreter) unsubscribe(ctx context.Context, roomID ref.RoomID, text string) {
	entityRef, b, ok := i.backends.ParseRef(text)
	if !ok {
		i.reply(ctx, roomID, "I could not find a package or request URL in that. `unsubscribe` takes the same link that `subscribe` does.")
		return
	}

	removed, err := i.registry.Unsubscribe(ctx, roomID, entityRef)
	if err != nil {
		i.logger.Error("unsubscribe failed",
			"room", roomID, "entity", entityRef.Key(), "error", err)
		i.reply(ctx, roomID, "Sorry, removing that subscription failed. Please try again.")
		return
	}
	if !removed {
		i.reply(ctx, roomID, fmt.Sprintf("This room was not watching %s.", linkTo(b, entityRef)))
		return
	}
	i.reply(ctx, roomID, fmt.Sprintf("No longer watching %s.", linkTo(b, entityRef)))
}

func (i *Interpreter) list(ctx context.Context, roomID ref.RoomID) {
	entities := i.registry.List(roomID)
	if len(entities) == 0 {
		i.reply(ctx, roomID, "This room has no subscriptions.")
		return
	}

	var sb strings.Builder
	sb.WriteString("This room is watching:\n")
	for _, entityRef := range entities {
		sb.WriteString("- ")
		if b, ok := i.backends.ByName(entityRef.Backend); ok {
			sb.WriteString(linkTo(b, entityRef))
		} else {
			sb.WriteString(entityRef.String())
		}
		sb.WriteString("\n")
	}
	i.reply(ctx, roomID, strings.TrimRight(sb.String(), "\n"))
}

// leave says goodbye, drops the room's subscriptions, and leaves.
// The subscriptions go first so that a failed leave never strands a
// room the bot keeps polling for.
func (i *Interpreter) leave(ctx context.Context, roomID ref.RoomID) {
	i.reply(ctx, roomID, "Bye!")
	removed, err := i.registry.UnsubscribeRoom(ctx, roomID)
	if err != nil {
		i.logger.Error("dropping room subscriptions failed",
			"room", roomID, "error", err)
	} else if removed > 0 {
		i.logger.Info("dropped room subscriptions on leave",
			"room", roomID, "count", removed)
	}
	if err := i.rooms.LeaveRoom(ctx, roomID); err != nil {
		i.logger.Error("leaving room failed", "room", roomID, "error", err)
	}
}

func (i *Interpreter) helpText() string {
	p := i.prefix
	if p != "" {
		p += " "
	}
	return strings.TrimSpace(fmt.Sprintf(`I watch openSUSE Build Service packages and requests and report state changes.

- `+"`%[1]ssubscribe <url>`"+` — watch a package or request (pasting a bare URL works too)
- `+"`%[1]sunsubscribe <url>`"+` — stop watching it
- `+"`%[1]slist`"+` — show this room's subscriptions
- `+"`%[1]sleave`"+` — drop this room's subscriptions and leave
- `+"`%[1]shelp`"+` — this message`, p))
}

func (i *Interpreter) reply(ctx context.Context, roomID ref.RoomID, markdown string) {
	if err := i.replier.Post(ctx, roomID, markdown); err != nil {
		i.logger.Error("command reply delivery failed",
			"room", roomID, "error", err)
	}
}

func linkTo(b backend.Backend, entityRef entity.Ref) string {
	url := b.EntityURL(entityRef)
	if url == "" {
		return entityRef.String()
	}
	return fmt.Sprintf("[%s](%s)", entityRef, url)
}
