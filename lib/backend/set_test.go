// Copyright 2026 The OBS Chat Bot Authors
// SPDX-License-Identifier: Apache-2.0

package backend

import (
	"context"
	"strings"
	"testing"

	"github.com/msirringhaus/obs-chat-bot/lib/entity"
)

// stubBackend recognizes /package/show/{project}/{package} paths, like
// the real OBS backend, without any network behavior behind it.
type stubBackend struct {
	name  string
	hosts []string
}

func (s *stubBackend) Name() string    { return s.name }
func (s *stubBackend) Hosts() []string { return s.hosts }

func (s *stubBackend) ParsePath(path string) (entity.Ref, bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) == 4 && parts[0] == "package" && parts[1] == "show" {
		return entity.NewPackageRef(s.name, parts[2], parts[3]), true
	}
	return entity.Ref{}, false
}

func (s *stubBackend) FetchState(ctx context.Context, ref entity.Ref) (entity.State, error) {
	panic("not used in parser tests")
}
func (s *stubBackend) EncodeState(state entity.State) ([]byte, error)  { panic("not used") }
func (s *stubBackend) DecodeState(entity.Ref, []byte) (entity.State, error) {
	panic("not used")
}
func (s *stubBackend) EntityURL(ref entity.Ref) string { return "" }

func newTestSet(t *testing.T) *Set {
	t.Helper()
	set, err := NewSet(
		&stubBackend{name: "opensuse", hosts: []string{"build.opensuse.org"}},
		&stubBackend{name: "internal", hosts: []string{"build.example.de", "obs.example.de"}},
	)
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}
	return set
}

func TestNewSetRejectsDuplicates(t *testing.T) {
	_, err := NewSet(
		&stubBackend{name: "a", hosts: []string{"build.example.org"}},
		&stubBackend{name: "a", hosts: []string{"other.example.org"}},
	)
	if err == nil {
		t.Error("expected error for duplicate backend name")
	}

	_, err = NewSet(
		&stubBackend{name: "a", hosts: []string{"build.example.org"}},
		&stubBackend{name: "b", hosts: []string{"build.example.org"}},
	)
	if err == nil {
		t.Error("expected error for duplicate hostname")
	}
}

func TestParseRef(t *testing.T) {
	set := newTestSet(t)

	tests := []struct {
		text string
		want entity.Ref
		ok   bool
	}{
		{
			text: "https://build.opensuse.org/package/show/home:alice/foo",
			want: entity.NewPackageRef("opensuse", "home:alice", "foo"),
			ok:   true,
		},
		{
			// Second hostname of the same backend.
			text: "watch this one https://obs.example.de/package/show/proj/pkg please",
			want: entity.NewPackageRef("internal", "proj", "pkg"),
			ok:   true,
		},
		{
			// Scheme-less paste.
			text: "build.opensuse.org/package/show/home:alice/foo",
			want: entity.NewPackageRef("opensuse", "home:alice", "foo"),
			ok:   true,
		},
		{
			// Markdown-wrapped with trailing punctuation.
			text: "see <https://build.opensuse.org/package/show/home:alice/foo>.",
			want: entity.NewPackageRef("opensuse", "home:alice", "foo"),
			ok:   true,
		},
		{
			// Unknown host.
			text: "https://build.elsewhere.org/package/show/home:alice/foo",
			ok:   false,
		},
		{
			// Known host, unrecognized path shape.
			text: "https://build.opensuse.org/project/show/home:alice",
			ok:   false,
		},
		{
			// Ordinary conversation.
			text: "did the build finish yet?",
			ok:   false,
		},
		{
			text: "",
			ok:   false,
		},
	}

	for _, test := range tests {
		ref, _, ok := set.ParseRef(test.text)
		if ok != test.ok {
			t.Errorf("ParseRef(%q): ok = %v, want %v", test.text, ok, test.ok)
			continue
		}
		if ok && ref != test.want {
			t.Errorf("ParseRef(%q) = %+v, want %+v", test.text, ref, test.want)
		}
	}
}

func TestParseRefFirstMatchWins(t *testing.T) {
	set := newTestSet(t)

	text := "https://build.opensuse.org/package/show/home:alice/first " +
		"https://build.example.de/package/show/home:bob/second"
	ref, b, ok := set.ParseRef(text)
	if !ok {
		t.Fatal("expected a match")
	}
	if ref.Package != "first" {
		t.Errorf("got %q, want the first reference in the message", ref.Package)
	}
	if b.Name() != "opensuse" {
		t.Errorf("matched backend %q, want opensuse", b.Name())
	}
}
