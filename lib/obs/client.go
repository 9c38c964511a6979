// Copyright 2026 The OBS Chat Bot Authors
// SPDX-License-Identifier: Apache-2.0

package obs

import (
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/msirringhaus/obs-chat-bot/lib/netutil"
)

// Config holds configuration for creating an OBS API Client.
type Config struct {
	// APIURL is the base URL of the OBS API (e.g.
	// "https://api.opensuse.org"). Required.
	APIURL string

	// Username and Password authenticate against the API via HTTP
	// basic auth. OBS requires authentication even for read-only
	// status queries.
	Username string
	Password string

	// HTTPClient is used for all requests. If nil, http.DefaultClient
	// is used. Per-request deadlines come from the caller's context,
	// not from the client.
	HTTPClient *http.Client

	// Logger is used for structured logging. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
}

// Client is a read-only client for the OBS REST API. Safe for
// concurrent use.
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates an OBS API client.
func NewClient(config Config) (*Client, error) {
	if config.APIURL == "" {
		return nil, fmt.Errorf("obs: APIURL is required")
	}
	if _, err := url.Parse(config.APIURL); err != nil {
		return nil, fmt.Errorf("obs: invalid APIURL %q: %w", config.APIURL, err)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    strings.TrimRight(config.APIURL, "/"),
		username:   config.Username,
		password:   config.Password,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// PackageResults fetches the current build results for a package: one
// entry per repository/architecture pair. Uses the _result view
// filtered to the single package.
func (c *Client) PackageResults(ctx context.Context, project, pkg string) (*PackageState, error) {
	path := "/build/" + url.PathEscape(project) + "/_result"
	query := url.Values{"package": []string{pkg}}

	body, err := c.doRequest(ctx, path, query)
	if err != nil {
		return nil, fmt.Errorf("obs: build results for %s/%s: %w", project, pkg, err)
	}

	var list resultListXML
	if err := xml.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("obs: parsing build results for %s/%s: %w", project, pkg, err)
	}

	results := make([]BuildResult, 0, len(list.Results))
	for _, result := range list.Results {
		code, ok := result.packageCode(pkg)
		if !ok {
			continue
		}
		results = append(results, BuildResult{
			Repository: result.Repository,
			Arch:       result.Arch,
			Code:       code,
		})
	}
	return NewPackageState(results), nil
}

// Request fetches the current status of a submit request.
func (c *Client) Request(ctx context.Context, id int64) (*RequestState, error) {
	path := "/request/" + strconv.FormatInt(id, 10)

	body, err := c.doRequest(ctx, path, nil)
	if err != nil {
		return nil, fmt.Errorf("obs: request %d: %w", id, err)
	}

	var request requestXML
	if err := xml.Unmarshal(body, &request); err != nil {
		return nil, fmt.Errorf("obs: parsing request %d: %w", id, err)
	}
	if request.State.Name == "" {
		return nil, fmt.Errorf("obs: request %d response has no state", id)
	}

	return &RequestState{
		State:       request.State.Name,
		Who:         request.State.Who,
		Description: request.Description,
	}, nil
}

// doRequest performs a GET against the API and returns the response
// body. On non-2xx, returns a *APIError carrying the OBS error code
// from the XML body.
func (c *Client) doRequest(ctx context.Context, path string, query url.Values) ([]byte, error) {
	requestURL := c.baseURL + path
	if len(query) > 0 {
		requestURL += "?" + query.Encode()
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	request.Header.Set("Accept", "application/xml")
	if c.username != "" {
		request.SetBasicAuth(c.username, c.password)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	defer response.Body.Close()

	body, err := netutil.ReadResponse(response.Body)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}

	if response.StatusCode >= 200 && response.StatusCode < 300 {
		return body, nil
	}

	apiError := &APIError{StatusCode: response.StatusCode}
	var status statusXML
	if err := xml.Unmarshal(body, &status); err == nil {
		apiError.Code = status.Code
		apiError.Summary = status.Summary
	} else {
		apiError.Summary = strings.TrimSpace(string(body))
	}
	return nil, apiError
}

// resultListXML mirrors the /build/{project}/_result response.
type resultListXML struct {
	XMLName xml.Name    `xml:"resultlist"`
	Results []resultXML `xml:"result"`
}

type resultXML struct {
	Repository string      `xml:"repository,attr"`
	Arch       string      `xml:"arch,attr"`
	Statuses   []statusRef `xml:"status"`
}

type statusRef struct {
	Package string `xml:"package,attr"`
	Code    string `xml:"code,attr"`
}

// packageCode picks the status entry for the requested package. The
// query is filtered to one package, but multibuild flavors appear as
// "pkg:flavor" entries; the bare package entry wins, falling back to
// the sole entry when the server returns exactly one.
func (r resultXML) packageCode(pkg string) (string, bool) {
	for _, status := range r.Statuses {
		if status.Package == pkg {
			return status.Code, true
		}
	}
	if len(r.Statuses) == 1 {
		return r.Statuses[0].Code, true
	}
	return "", false
}

// requestXML mirrors the /request/{id} response.
type requestXML struct {
	XMLName xml.Name `xml:"request"`
	State   struct {
		Name string `xml:"name,attr"`
		Who  string `xml:"who,attr"`
	} `xml:"state"`
	Description string `xml:"description"`
}

// statusXML mirrors the OBS error response body.
type statusXML struct {
	XMLName xml.Name `xml:"status"`
	Code    string   `xml:"code,attr"`
	Summary string   `xml:"summary"`
}
