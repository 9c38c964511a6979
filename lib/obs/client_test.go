// Copyright 2026 The OBS Chat Bot Authors
// SPDX-License-Identifier: Apache-2.0

package obs

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

const sampleResultList = `<resultlist state="abc123">
  <result project="home:alice" repository="openSUSE_Tumbleweed" arch="x86_64" code="published" state="published">
    <status package="foo" code="succeeded"/>
  </result>
  <result project="home:alice" repository="openSUSE_Tumbleweed" arch="aarch64" code="published" state="published">
    <status package="foo" code="building"/>
  </result>
  <result project="home:alice" repository="15.6" arch="x86_64" code="published" state="published">
    <status package="foo" code="failed"/>
  </result>
</resultlist>`

const sampleRequest = `<request id="987654" creator="alice">
  <state name="review" who="factory-auto" when="2026-08-30T10:00:00"/>
  <action type="submit"/>
  <description>update to 1.2.3</description>
</request>`

const sampleError = `<status code="unknown_package">
  <summary>unknown package 'nosuchpkg'</summary>
</status>`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{
		APIURL:   server.URL,
		Username: "bot",
		Password: "hunter2",
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestPackageResults(t *testing.T) {
	client := newTestClient(t, func(writer http.ResponseWriter, request *http.Request) {
		if request.URL.Path != "/build/home:alice/_result" {
			t.Errorf("unexpected path: %s", request.URL.Path)
			writer.WriteHeader(http.StatusNotFound)
			return
		}
		if request.URL.Query().Get("package") != "foo" {
			t.Errorf("unexpected package query: %s", request.URL.RawQuery)
		}
		if _, _, ok := request.BasicAuth(); !ok {
			t.Error("expected basic auth credentials")
		}
		writer.Write([]byte(sampleResultList))
	})

	state, err := client.PackageResults(context.Background(), "home:alice", "foo")
	if err != nil {
		t.Fatalf("PackageResults: %v", err)
	}

	// Normalized order: sorted by repository, then arch.
	want := []BuildResult{
		{Repository: "15.6", Arch: "x86_64", Code: "failed"},
		{Repository: "openSUSE_Tumbleweed", Arch: "aarch64", Code: "building"},
		{Repository: "openSUSE_Tumbleweed", Arch: "x86_64", Code: "succeeded"},
	}
	if len(state.Results) != len(want) {
		t.Fatalf("got %d results, want %d", len(state.Results), len(want))
	}
	for i, result := range want {
		if state.Results[i] != result {
			t.Errorf("result %d = %+v, want %+v", i, state.Results[i], result)
		}
	}
}

func TestRequest(t *testing.T) {
	client := newTestClient(t, func(writer http.ResponseWriter, request *http.Request) {
		if request.URL.Path != "/request/987654" {
			t.Errorf("unexpected path: %s", request.URL.Path)
			writer.WriteHeader(http.StatusNotFound)
			return
		}
		writer.Write([]byte(sampleRequest))
	})

	state, err := client.Request(context.Background(), 987654)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if state.State != "review" || state.Who != "factory-auto" {
		t.Errorf("state = %+v", state)
	}
	if state.Description != "update to 1.2.3" {
		t.Errorf("description = %q", state.Description)
	}
}

func TestAPIErrorMapping(t *testing.T) {
	client := newTestClient(t, func(writer http.ResponseWriter, request *http.Request) {
		writer.WriteHeader(http.StatusNotFound)
		writer.Write([]byte(sampleError))
	})

	_, err := client.PackageResults(context.Background(), "home:alice", "nosuchpkg")
	if err == nil {
		t.Fatal("expected error")
	}

	var apiError *APIError
	if !errors.As(err, &apiError) {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiError.StatusCode != 404 || apiError.Code != "unknown_package" {
		t.Errorf("apiError = %+v", apiError)
	}
	if !IsNotFound(err) {
		t.Error("IsNotFound should report true for a 404")
	}
}

func TestRequestMissingState(t *testing.T) {
	client := newTestClient(t, func(writer http.ResponseWriter, request *http.Request) {
		writer.Write([]byte(`<request id="1"></request>`))
	})

	if _, err := client.Request(context.Background(), 1); err == nil {
		t.Fatal("expected error for response without state")
	}
}
