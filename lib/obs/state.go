// Copyright 2026 The OBS Chat Bot Authors
// SPDX-License-Identifier: Apache-2.0

package obs

import (
	"fmt"
	"sort"
	"strings"

	"github.com/msirringhaus/obs-chat-bot/lib/entity"
)

// BuildResult is the build status of one package in one repository on
// one architecture. Code is the OBS status vocabulary: succeeded,
// failed, building, scheduled, blocked, unresolvable, broken,
// excluded, disabled.
type BuildResult struct {
	Repository string `cbor:"repository"`
	Arch       string `cbor:"arch"`
	Code       string `cbor:"code"`
}

// PackageState is the observable build status of a package: one
// BuildResult per repository/architecture pair the project builds for.
// Results are kept sorted by repository, then architecture, so equal
// logical states encode to identical snapshots and compare equal
// regardless of server response ordering.
type PackageState struct {
	Results []BuildResult `cbor:"results"`
}

// NewPackageState normalizes and wraps a set of build results.
func NewPackageState(results []BuildResult) *PackageState {
	sorted := make([]BuildResult, len(results))
	copy(sorted, results)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Repository != sorted[j].Repository {
			return sorted[i].Repository < sorted[j].Repository
		}
		return sorted[i].Arch < sorted[j].Arch
	})
	return &PackageState{Results: sorted}
}

// Equal implements entity.State.
func (s *PackageState) Equal(other entity.State) bool {
	otherPackage, ok := other.(*PackageState)
	if !ok || len(s.Results) != len(otherPackage.Results) {
		return false
	}
	for i, result := range s.Results {
		if result != otherPackage.Results[i] {
			return false
		}
	}
	return true
}

// Summary implements entity.State: a count per status code, e.g.
// "succeeded: 3, failed: 1".
func (s *PackageState) Summary() string {
	if len(s.Results) == 0 {
		return "no build results"
	}

	counts := make(map[string]int)
	for _, result := range s.Results {
		counts[result.Code]++
	}

	codes := make([]string, 0, len(counts))
	for code := range counts {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	parts := make([]string, 0, len(codes))
	for _, code := range codes {
		parts = append(parts, fmt.Sprintf("%s: %d", code, counts[code]))
	}
	return strings.Join(parts, ", ")
}

// ChangeSummary implements entity.State: one clause per
// repository/architecture whose status changed, appeared, or
// disappeared, e.g. "openSUSE_Tumbleweed/x86_64: building → succeeded".
func (s *PackageState) ChangeSummary(previous entity.State) string {
	previousPackage, ok := previous.(*PackageState)
	if !ok {
		return s.Summary()
	}

	old := make(map[[2]string]string, len(previousPackage.Results))
	for _, result := range previousPackage.Results {
		old[[2]string{result.Repository, result.Arch}] = result.Code
	}

	var clauses []string
	seen := make(map[[2]string]bool, len(s.Results))
	for _, result := range s.Results {
		key := [2]string{result.Repository, result.Arch}
		seen[key] = true
		oldCode, existed := old[key]
		switch {
		case !existed:
			clauses = append(clauses, fmt.Sprintf("%s/%s: %s (new)", result.Repository, result.Arch, decorateCode(result.Code)))
		case oldCode != result.Code:
			clauses = append(clauses, fmt.Sprintf("%s/%s: %s → %s", result.Repository, result.Arch, decorateCode(oldCode), decorateCode(result.Code)))
		}
	}
	for _, result := range previousPackage.Results {
		key := [2]string{result.Repository, result.Arch}
		if !seen[key] {
			clauses = append(clauses, fmt.Sprintf("%s/%s: no longer built", result.Repository, result.Arch))
		}
	}

	if len(clauses) == 0 {
		return s.Summary()
	}
	return strings.Join(clauses, "; ")
}

// decorateCode underlines the build statuses that mean something went
// wrong, so they stand out in the rendered notification. The <u> tag
// survives markdown rendering because the notifier passes inline HTML
// through.
func decorateCode(code string) string {
	switch code {
	case "failed", "broken", "unresolvable":
		return "<u>" + code + "</u>"
	}
	return code
}

// RequestState is the observable status of a submit request.
//
// Equality covers State and Who — the fields that mean something
// changed in the review workflow. Description is carried for display
// only: a reworded description is not a notifiable transition.
type RequestState struct {
	State       string `cbor:"state"`
	Who         string `cbor:"who,omitempty"`
	Description string `cbor:"description,omitempty"`
}

// Equal implements entity.State.
func (s *RequestState) Equal(other entity.State) bool {
	otherRequest, ok := other.(*RequestState)
	if !ok {
		return false
	}
	return s.State == otherRequest.State && s.Who == otherRequest.Who
}

// Summary implements entity.State, e.g. "accepted (by dimstar)".
func (s *RequestState) Summary() string {
	if s.Who != "" {
		return fmt.Sprintf("%s (by %s)", s.State, s.Who)
	}
	return s.State
}

// ChangeSummary implements entity.State, e.g. "review → accepted (by dimstar)".
func (s *RequestState) ChangeSummary(previous entity.State) string {
	previousRequest, ok := previous.(*RequestState)
	if !ok {
		return s.Summary()
	}
	return fmt.Sprintf("%s → %s", previousRequest.State, s.Summary())
}
