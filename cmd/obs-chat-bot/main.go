// Copyright 2026 The OBS Chat Bot Authors
// SPDX-License-Identifier: Apache-2.0

// obs-chat-bot is a Matrix chat bot that watches openSUSE Build
// Service packages and submit requests and reports state changes to
// subscribed rooms.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/msirringhaus/obs-chat-bot/lib/backend"
	"github.com/msirringhaus/obs-chat-bot/lib/command"
	"github.com/msirringhaus/obs-chat-bot/lib/config"
	"github.com/msirringhaus/obs-chat-bot/lib/notify"
	"github.com/msirringhaus/obs-chat-bot/lib/obs"
	"github.com/msirringhaus/obs-chat-bot/lib/poller"
	"github.com/msirringhaus/obs-chat-bot/lib/ref"
	"github.com/msirringhaus/obs-chat-bot/lib/registry"
	"github.com/msirringhaus/obs-chat-bot/messaging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "obs-chat-bot: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	var debug bool

	flagSet := pflag.NewFlagSet("obs-chat-bot", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to the YAML config file (default: $OBS_CHAT_BOT_CONFIG)")
	flagSet.BoolVar(&debug, "debug", false, "enable debug logging")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backends, err := buildBackends(cfg, logger)
	if err != nil {
		return err
	}

	reg, err := registry.Open(ctx, registry.Config{
		Path:   cfg.StatePath,
		Logger: logger,
	})
	if err != nil {
		return err
	}
	defer reg.Close()

	seedSubscriptions(ctx, cfg, reg, backends, logger)

	client, err := messaging.NewClient(messaging.ClientConfig{
		HomeserverURL: cfg.Matrix.Homeserver,
		Logger:        logger,
	})
	if err != nil {
		return err
	}
	session, err := client.Login(ctx, cfg.Matrix.User, cfg.Matrix.Password)
	if err != nil {
		return err
	}
	// Round-trip the fresh token through whoami; this both validates
	// the session and yields the canonical user ID for self-message
	// filtering.
	self, err := session.WhoAmI(ctx)
	if err != nil {
		return fmt.Errorf("verifying session: %w", err)
	}
	joined, err := session.JoinedRooms(ctx)
	if err != nil {
		return fmt.Errorf("listing joined rooms: %w", err)
	}

	notifier, err := notify.New(notify.Config{
		Sender: session,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	interpreter, err := command.New(command.Config{
		Registry: reg,
		Backends: backends,
		Replier:  notifier,
		Rooms:    session,
		Prefix:   cfg.Prefix,
		Self:     self,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	pollLoop, err := poller.New(poller.Config{
		Registry:     reg,
		Backends:     backends,
		Notifier:     notifier,
		Interval:     cfg.Poll.Interval.Std(),
		FetchTimeout: cfg.Poll.FetchTimeout.Std(),
		Parallel:     cfg.Poll.Parallel,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	listener, err := messaging.NewListener(messaging.ListenerConfig{
		Session: session,
		Handler: interpreter.HandleMessage,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	logger.Info("obs-chat-bot running",
		"user", self,
		"device", session.DeviceID(),
		"joined_rooms", len(joined),
		"backends", len(cfg.Backends),
		"poll_interval", cfg.Poll.Interval.Std(),
	)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		pollLoop.Run(ctx)
	}()

	listener.Run(ctx)
	wg.Wait()
	logger.Info("shut down")
	return nil
}

// buildBackends constructs the backend set from configuration.
func buildBackends(cfg *config.Config, logger *slog.Logger) (*backend.Set, error) {
	var list []backend.Backend
	for _, bc := range cfg.Backends {
		client, err := obs.NewClient(obs.Config{
			APIURL:   bc.APIURL,
			Username: bc.Username,
			Password: bc.Password,
			Logger:   logger,
		})
		if err != nil {
			return nil, fmt.Errorf("backend %q: %w", bc.Name, err)
		}
		b, err := obs.NewBackend(obs.BackendConfig{
			Name:   bc.Name,
			Hosts:  bc.Hosts,
			Client: client,
		})
		if err != nil {
			return nil, fmt.Errorf("backend %q: %w", bc.Name, err)
		}
		list = append(list, b)
	}
	return backend.NewSet(list...)
}

// seedSubscriptions applies the configured default subscriptions.
// Seeding is best effort: a malformed or unpersistable entry is
// logged and skipped, never fatal.
func seedSubscriptions(ctx context.Context, cfg *config.Config, reg *registry.Registry, backends *backend.Set, logger *slog.Logger) {
	for _, seed := range cfg.DefaultSubscriptions {
		roomID, err := ref.ParseRoomID(seed.Room)
		if err != nil {
			logger.Warn("skipping default subscription with bad room",
				"room", seed.Room, "error", err)
			continue
		}
		entityRef, _, ok := backends.ParseRef(seed.URL)
		if !ok {
			logger.Warn("skipping default subscription with unrecognized URL",
				"url", seed.URL)
			continue
		}
		added, _, err := reg.Subscribe(ctx, roomID, entityRef)
		if err != nil {
			logger.Warn("skipping default subscription that failed to persist",
				"url", seed.URL, "error", err)
			continue
		}
		if added {
			logger.Info("seeded default subscription",
				"room", roomID, "entity", entityRef.Key())
		}
	}
}
