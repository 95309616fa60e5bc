package coordinator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/dicc/pkg/download"
	"github.com/cuemby/dicc/pkg/log"
	"github.com/cuemby/dicc/pkg/types"
)

// DefaultBaseURL is the public coordinator
const DefaultBaseURL = "https://api.microboinc.com"

// API paths
const (
	pathListPlatforms        = "/platforms/list"
	pathProjectsForPlatforms = "/projects/forPlatforms"
	pathRetrieveAssignments  = "/assignments/retrieve"
	pathSubmitResult         = "/results/submit"
)

// Config holds coordinator connection settings
type Config struct {
	BaseURL string
	APIKey  string
	// HTTPClient overrides the default instrumented client
	HTTPClient *http.Client
	// Timeout bounds each request when HTTPClient is nil
	Timeout time.Duration
}

// Client talks to the coordinator. A Client is safe for concurrent use,
// but each worker gets its own through Clone.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  zerolog.Logger
}

// New creates a coordinator client
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid coordinator URL %q", baseURL)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = download.NewHTTPClient(cfg.Timeout)
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    httpClient,
		logger:  log.WithComponent("coordinator"),
	}, nil
}

// Clone returns an independent handle to the same coordinator. Clones
// share the underlying connection pool.
func (c *Client) Clone() *Client {
	clone := *c
	return &clone
}

// BaseURL returns the coordinator address
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ListPlatforms returns the coordinator's platform catalog in the order
// it was served. Detectors are verified with sha256.
func (c *Client) ListPlatforms(ctx context.Context) ([]types.Platform, error) {
	var resp []platformInfo
	if err := c.do(ctx, http.MethodGet, pathListPlatforms, nil, &resp); err != nil {
		return nil, err
	}

	platforms := make([]types.Platform, 0, len(resp))
	for _, p := range resp {
		platforms = append(platforms, types.Platform{
			ID:       p.ID,
			Name:     p.Name,
			Detector: p.DetectorBinary.download(),
		})
	}
	return platforms, nil
}

// ProjectsForPlatforms asks which projects can run on the given platforms
// and assembles them, sorted by project ID. Bindings to platforms outside
// the given set are dropped.
func (c *Client) ProjectsForPlatforms(ctx context.Context, platforms []types.Platform) ([]types.Project, error) {
	byID := make(map[int64]types.Platform, len(platforms))
	req := projectsForPlatformsRequest{PlatformIDs: make([]int64, 0, len(platforms))}
	for _, p := range platforms {
		byID[p.ID] = p
		req.PlatformIDs = append(req.PlatformIDs, p.ID)
	}

	var resp projectsForPlatformsResponse
	if err := c.do(ctx, http.MethodPost, pathProjectsForPlatforms, req, &resp); err != nil {
		return nil, err
	}

	bindings := make([]types.ProjectBinding, 0, len(resp.ProjectBinaries))
	for _, pb := range resp.ProjectBinaries {
		bindings = append(bindings, types.ProjectBinding{
			ProjectID:   pb.Project.ID,
			ProjectName: pb.Project.Name,
			PlatformID:  pb.PlatformID,
			Binary:      pb.Binary.download(),
			Priority:    pb.Priority,
		})
	}
	return types.BuildProjects(bindings, byID), nil
}

// FetchAssignments requests up to count tasks for the given projects.
// Assignments for projects the caller did not offer are skipped.
func (c *Client) FetchAssignments(ctx context.Context, projects []types.Project, count int) ([]types.Assignment, error) {
	byID := make(map[int64]types.Project, len(projects))
	for _, p := range projects {
		byID[p.ID] = p
	}

	req := retrieveAssignmentsRequest{ProjectIDs: types.ProjectIDs(projects), TaskCount: count}
	var resp retrieveAssignmentsResponse
	if err := c.do(ctx, http.MethodPost, pathRetrieveAssignments, req, &resp); err != nil {
		return nil, err
	}

	assignments := make([]types.Assignment, 0, len(resp.Assignments))
	for _, a := range resp.Assignments {
		project, ok := byID[a.Task.ProjectID]
		if !ok {
			c.logger.Warn().
				Int64("assignment_id", a.ID).
				Int64("project_id", a.Task.ProjectID).
				Msg("Skipping assignment for unknown project")
			continue
		}
		assignments = append(assignments, types.Assignment{
			ID:      a.ID,
			Project: project.Clone(),
			Input:   []byte(a.Task.InputData),
		})
	}
	return assignments, nil
}

// SubmitResult reports a finished assignment and returns the
// coordinator's acknowledgement ID.
func (c *Client) SubmitResult(ctx context.Context, result types.AssignmentResult) (int64, error) {
	req := submitResultRequest{
		ExecutionTime: result.Duration.Milliseconds(),
		AssignmentID:  result.AssignmentID,
		StdErr:        result.Stderr,
		StdOut:        result.Stdout,
		ExitCode:      result.ExitCode,
	}

	var resp submitResultResponse
	if err := c.do(ctx, http.MethodPost, pathSubmitResult, req, &resp); err != nil {
		return 0, err
	}
	return resp.ID, nil
}

// do sends body as JSON (when non-nil) and decodes a 2xx answer into out
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create %s request: %w", path, err)
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &StatusError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(data)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		// A body cut short is a broken connection, not a malformed answer
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return &TransportError{Method: method, Path: path, Err: err}
		}
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (b binaryInfo) download() download.Download {
	return download.New(b.DownloadURL, download.SHA256(b.Checksum))
}
