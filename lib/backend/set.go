// Copyright 2026 The OBS Chat Bot Authors
// SPDX-License-Identifier: Apache-2.0

package backend

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/msirringhaus/obs-chat-bot/lib/entity"
)

// Set holds the configured backends, indexed by name and by web
// hostname. A Set is immutable after construction and safe for
// concurrent use.
type Set struct {
	byName map[string]Backend
	byHost map[string]Backend
	order  []Backend
}

// NewSet builds a Set from the configured backends. Backend names and
// hostnames must be unique across the set — a duplicate is a
// configuration error, not something to resolve silently.
func NewSet(backends ...Backend) (*Set, error) {
	set := &Set{
		byName: make(map[string]Backend),
		byHost: make(map[string]Backend),
	}
	for _, b := range backends {
		name := b.Name()
		if name == "" {
			return nil, fmt.Errorf("backend with empty name")
		}
		if _, exists := set.byName[name]; exists {
			return nil, fmt.Errorf("duplicate backend name %q", name)
		}
		set.byName[name] = b

		for _, host := range b.Hosts() {
			host = strings.ToLower(host)
			if host == "" {
				return nil, fmt.Errorf("backend %q has an empty hostname", name)
			}
			if _, exists := set.byHost[host]; exists {
				return nil, fmt.Errorf("hostname %q claimed by two backends", host)
			}
			set.byHost[host] = b
		}
		set.order = append(set.order, b)
	}
	return set, nil
}

// ByName returns the backend with the given configured name.
func (s *Set) ByName(name string) (Backend, bool) {
	b, ok := s.byName[name]
	return b, ok
}

// Backends returns the backends in configuration order.
func (s *Set) Backends() []Backend {
	return s.order
}

// ParseRef scans free-form text for a URL on a configured backend host
// whose path matches a recognized entity shape, and returns the parsed
// ref together with the backend that owns it.
//
// Only the first recognized entity reference in the text is used; any
// further URLs in the same message are ignored. Text without a
// recognizable reference returns ok=false — it is ordinary
// conversation, not a malformed command.
func (s *Set) ParseRef(text string) (entity.Ref, Backend, bool) {
	for _, token := range strings.Fields(text) {
		token = trimPunctuation(token)
		if token == "" {
			continue
		}

		parsed, ok := parseURLToken(token)
		if !ok {
			continue
		}

		b, known := s.byHost[strings.ToLower(parsed.Hostname())]
		if !known {
			continue
		}

		if ref, matched := b.ParsePath(parsed.Path); matched {
			return ref, b, true
		}
	}
	return entity.Ref{}, nil, false
}

// trimPunctuation strips the wrapping characters chat clients and
// users attach to pasted URLs: Markdown link syntax, quotes, and
// trailing sentence punctuation.
func trimPunctuation(token string) string {
	token = strings.Trim(token, "<>()[]{}\"'`")
	return strings.TrimRight(token, ".,;!?")
}

// parseURLToken parses a token as a URL, tolerating a missing scheme
// ("build.opensuse.org/package/show/..." pasted without https://).
func parseURLToken(token string) (*url.URL, bool) {
	candidate := token
	if !strings.Contains(candidate, "://") {
		if !strings.Contains(candidate, "/") {
			return nil, false
		}
		candidate = "https://" + candidate
	}

	parsed, err := url.Parse(candidate)
	if err != nil || parsed.Hostname() == "" {
		return nil, false
	}
	return parsed, true
}
