package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/Cloudsky01/relstage/internal/apperr"
	"github.com/Cloudsky01/relstage/pkg/models"
)

const (
	DefaultTimeout = 30 * time.Second
	DefaultBaseURL = "https://api.github.com/"

	// artifactsPerPage is the largest page the artifacts endpoint serves
	artifactsPerPage = 100
)

type Client struct {
	owner   string
	name    string
	baseURL *url.URL
	timeout time.Duration
	base    *http.Client
	http    *http.Client
}

// Option configures a Client
type Option func(*Client) error

// WithBaseURL points the client at another API root (GitHub Enterprise, tests)
func WithBaseURL(raw string) Option {
	return func(c *Client) error {
		if !strings.HasSuffix(raw, "/") {
			raw += "/"
		}
		u, err := url.Parse(raw)
		if err != nil {
			return apperr.Configuration("invalid GitHub API URL %q: %v", raw, err)
		}
		c.baseURL = u
		return nil
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) error {
		if timeout > 0 {
			c.timeout = timeout
		}
		return nil
	}
}

// WithHTTPClient sets the client the token transport wraps
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		c.base = hc
		return nil
	}
}

// NewClient returns a client for repo (owner/name) authenticated with token.
// A missing token is a configuration error; nothing is sent without one.
func NewClient(repo, token string, opts ...Option) (*Client, error) {
	owner, name, ok := strings.Cut(repo, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return nil, apperr.Configuration("invalid repository %q, expected owner/repo", repo)
	}
	if strings.TrimSpace(token) == "" {
		return nil, apperr.Configuration("GitHub token is not set (export GITHUB_TOKEN)")
	}

	c := &Client{
		owner:   owner,
		name:    name,
		timeout: DefaultTimeout,
		base:    http.DefaultClient,
	}
	c.baseURL, _ = url.Parse(DefaultBaseURL)
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, c.base)
	c.http = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	return c, nil
}

// ListWorkflowRuns lists runs of workflow for commit on branch, excluding
// pull-request runs.
func (c *Client) ListWorkflowRuns(ctx context.Context, workflow string, commit models.CommitRef, branch string) ([]models.WorkflowRun, error) {
	q := url.Values{}
	q.Set("head_sha", commit.String())
	q.Set("branch", branch)
	q.Set("exclude_pull_requests", "true")

	var body models.WorkflowRuns
	endpoint := c.repoPath("actions", "workflows", workflow, "runs")
	if err := c.getJSON(ctx, endpoint, q, &body); err != nil {
		return nil, err
	}

	sort.SliceStable(body.WorkflowRuns, func(i, j int) bool {
		return body.WorkflowRuns[i].CreatedAt.After(body.WorkflowRuns[j].CreatedAt)
	})
	return body.WorkflowRuns, nil
}

// FindRunForCommit resolves the single workflow run that built commit
func (c *Client) FindRunForCommit(ctx context.Context, workflow string, commit models.CommitRef, branch string) (*models.WorkflowRun, error) {
	runs, err := c.ListWorkflowRuns(ctx, workflow, commit, branch)
	if err != nil {
		return nil, err
	}
	return SelectRun(runs, commit, branch)
}

// SelectRun picks the run for commit: a lone result is taken as is,
// otherwise the first run whose head commit and branch both match.
func SelectRun(runs []models.WorkflowRun, commit models.CommitRef, branch string) (*models.WorkflowRun, error) {
	if len(runs) == 1 {
		return &runs[0], nil
	}
	for i := range runs {
		if runs[i].HeadSHA == commit.String() && runs[i].HeadBranch == branch {
			return &runs[i], nil
		}
	}
	return nil, apperr.NotFound("run not found for commit %s on %s (%d candidates)", commit, branch, len(runs))
}

// ListRunArtifacts lists artifacts of a run filtered server-side by name
func (c *Client) ListRunArtifacts(ctx context.Context, runID int64, name string) ([]models.Artifact, error) {
	q := url.Values{}
	q.Set("name", name)
	q.Set("per_page", strconv.Itoa(artifactsPerPage))

	var body models.ArtifactList
	endpoint := c.repoPath("actions", "runs", strconv.FormatInt(runID, 10), "artifacts")
	if err := c.getJSON(ctx, endpoint, q, &body); err != nil {
		return nil, err
	}
	return body.Artifacts, nil
}

// FindArtifact resolves the artifact called name on run runID
func (c *Client) FindArtifact(ctx context.Context, runID int64, name string) (*models.Artifact, error) {
	artifacts, err := c.ListRunArtifacts(ctx, runID, name)
	if err != nil {
		return nil, err
	}
	a, err := SelectArtifact(artifacts, name)
	if err != nil {
		return nil, fmt.Errorf("run %d: %w", runID, err)
	}
	return a, nil
}

// SelectArtifact mirrors SelectRun for artifacts. Expired artifacts cannot be
// downloaded and are reported as missing.
func SelectArtifact(artifacts []models.Artifact, name string) (*models.Artifact, error) {
	var found *models.Artifact
	if len(artifacts) == 1 {
		found = &artifacts[0]
	} else {
		for i := range artifacts {
			if artifacts[i].Name == name {
				found = &artifacts[i]
				break
			}
		}
	}
	if found == nil {
		return nil, apperr.NotFound("no artifacts named %q for this run", name)
	}
	if found.Expired {
		return nil, apperr.NotFound("artifact %q (%d) has expired", found.Name, found.ID)
	}
	return found, nil
}

// DownloadURL resolves an artifact's archive URL to the storage location
// GitHub redirects to. The returned URL is pre-signed and needs no token.
func (c *Client) DownloadURL(ctx context.Context, a models.Artifact) (string, error) {
	if a.ArchiveDownloadURL == "" {
		return "", apperr.NotFound("artifact %q has no download URL", a.Name)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.ArchiveDownloadURL, nil)
	if err != nil {
		return "", apperr.Execution("GET "+a.ArchiveDownloadURL, err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	noRedirect := *c.http
	noRedirect.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	resp, err := noRedirect.Do(req)
	if err != nil {
		return "", c.requestError(ctx, "GET "+a.ArchiveDownloadURL, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 300 && resp.StatusCode < 400:
		loc, err := resp.Location()
		if err != nil {
			return "", apperr.Execution("GET "+a.ArchiveDownloadURL, fmt.Errorf("redirect without location: %w", err))
		}
		return loc.String(), nil
	case resp.StatusCode == http.StatusOK:
		// The body would need the token, which Fetch never sends.
		return "", apperr.Execution("GET "+a.ArchiveDownloadURL, errors.New("expected a redirect to artifact storage, got 200 OK"))
	default:
		return "", statusError("GET "+a.ArchiveDownloadURL, resp)
	}
}

// GetWorkflows returns the workflow file names defined in the repository
func (c *Client) GetWorkflows(ctx context.Context) ([]string, error) {
	var body struct {
		Workflows []struct {
			Path string `json:"path"`
		} `json:"workflows"`
	}
	q := url.Values{}
	q.Set("per_page", "100")
	if err := c.getJSON(ctx, c.repoPath("actions", "workflows"), q, &body); err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(body.Workflows))
	for _, wf := range body.Workflows {
		paths = append(paths, wf.Path)
	}
	return parseWorkflowPaths(strings.Join(paths, "\n")), nil
}

// RepositoryExists checks if the repository is visible with the token
func (c *Client) RepositoryExists(ctx context.Context) (bool, error) {
	var body json.RawMessage
	err := c.getJSON(ctx, c.repoPath(), nil, &body)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, apperr.ErrNotFound) {
		return false, nil
	}
	return false, err
}

func (c *Client) repoPath(parts ...string) string {
	escaped := []string{"repos", url.PathEscape(c.owner), url.PathEscape(c.name)}
	for _, p := range parts {
		escaped = append(escaped, url.PathEscape(p))
	}
	return path.Join(escaped...)
}

func (c *Client) getJSON(ctx context.Context, endpoint string, query url.Values, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u := c.baseURL.JoinPath(endpoint)
	if query != nil {
		u.RawQuery = query.Encode()
	}
	op := "GET /" + endpoint

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return apperr.Execution(op, err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")

	resp, err := c.http.Do(req)
	if err != nil {
		return c.requestError(ctx, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(op, resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperr.Execution(op, fmt.Errorf("failed to parse response: %w", err))
	}
	return nil
}

func (c *Client) requestError(ctx context.Context, op string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperr.Execution(op, fmt.Errorf("timed out after %v", c.timeout))
	}
	return apperr.Execution(op, err)
}

func statusError(op string, resp *http.Response) error {
	var body struct {
		Message string `json:"message"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := strings.TrimSpace(string(data))
	if json.Unmarshal(data, &body) == nil && body.Message != "" {
		msg = body.Message
	}

	if resp.StatusCode == http.StatusNotFound {
		return &apperr.Error{Kind: apperr.KindNotFound, Op: op, Msg: msg}
	}
	return apperr.Execution(op, fmt.Errorf("%s: %s", resp.Status, msg))
}

func parseWorkflowPaths(output string) []string {
	workflows := []string{}
	const prefix = ".github/workflows/"

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, prefix) {
			workflows = append(workflows, line[len(prefix):])
		}
	}

	sort.Strings(workflows)
	return workflows
}
