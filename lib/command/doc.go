// Copyright 2026 The OBS Chat Bot Authors
// SPDX-License-Identifier: Apache-2.0

// Package command interprets chat messages directed at the bot.
//
// An optional prefix gates which messages are examined at all. The
// first word selects the command; a message with no recognized verb
// that contains a build-service URL is treated as an implicit
// subscribe, matching the original paste-a-URL workflow. Everything
// else is ordinary conversation and gets no reply.
package command
