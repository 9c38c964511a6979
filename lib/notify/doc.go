// Copyright 2026 The OBS Chat Bot Authors
// SPDX-License-Identifier: Apache-2.0

// Package notify delivers bot messages to chat rooms.
//
// Messages are authored in markdown. The notifier renders an HTML
// form for clients that display rich text and sends the markdown
// itself as the plain-text fallback. Transient delivery failures are
// retried with backoff; rooms are independent, so one undeliverable
// room never blocks the others.
package notify
