package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/cli/go-gh/v2/pkg/api"

	checkerr "github.com/kyleking/gh-checkstatus/internal/errors"
)

// ErrMalformedPayload is returned when a response body does not have the expected shape.
var ErrMalformedPayload = errors.New("malformed API payload")

const (
	perPage = 100

	// DefaultTimeout bounds a single HTTP request.
	DefaultTimeout = 30 * time.Second
)

var linkRE = regexp.MustCompile(`<([^>]+)>;\s*rel="([^"]+)"`)

// ClientOptions configures the REST transport.
type ClientOptions struct {
	Token     string
	Host      string
	Timeout   time.Duration
	Transport http.RoundTripper
}

// Client wraps the GitHub REST API client.
type Client struct {
	rest  *api.RESTClient
	owner string
	repo  string
}

// NewClient creates a new GitHub API client for the specified repository.
func NewClient(repoFullName string, opts ClientOptions) (*Client, error) {
	repo, err := ParseRepository(repoFullName)
	if err != nil {
		return nil, err
	}

	if opts.Token == "" {
		return nil, errors.New("a GitHub token is required")
	}

	host := opts.Host
	if host == "" {
		host = repo.Host
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	rest, err := api.NewRESTClient(api.ClientOptions{
		AuthToken: opts.Token,
		Host:      host,
		Timeout:   timeout,
		Transport: opts.Transport,
		Headers: map[string]string{
			"Accept": "application/vnd.github+json",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create REST client: %w", err)
	}

	return &Client{
		rest:  rest,
		owner: repo.Owner,
		repo:  repo.Name,
	}, nil
}

// GetWorkflowRunJobs fetches every job of a workflow run, following pagination.
func (c *Client) GetWorkflowRunJobs(ctx context.Context, runID int64) ([]Job, error) {
	path := fmt.Sprintf("repos/%s/%s/actions/runs/%d/jobs?per_page=%d", c.owner, c.repo, runID, perPage)

	var jobs []Job

	for path != "" {
		var page JobsResponse

		next, err := c.getPage(ctx, path, &page)
		if err != nil {
			return nil, &checkerr.APIError{Operation: "failed to get workflow jobs", RunID: runID, Err: err}
		}

		jobs = append(jobs, page.Jobs...)
		path = next
	}

	return jobs, nil
}

// ListPullRequestFiles returns the paths changed by a pull request, following
// pagination. A page that is not a JSON list yields ErrMalformedPayload.
func (c *Client) ListPullRequestFiles(ctx context.Context, number int) ([]string, error) {
	path := fmt.Sprintf("repos/%s/%s/pulls/%d/files?per_page=%d", c.owner, c.repo, number, perPage)

	var files []string

	for path != "" {
		var raw json.RawMessage

		next, err := c.getPage(ctx, path, &raw)
		if err != nil {
			if errors.Is(err, ErrMalformedPayload) {
				return nil, fmt.Errorf("pull request %d files: %w", number, err)
			}

			return nil, &checkerr.APIError{Operation: fmt.Sprintf("failed to list files of pull request %d", number), Err: err}
		}

		if !bytes.HasPrefix(bytes.TrimSpace(raw), []byte("[")) {
			return nil, fmt.Errorf("pull request %d files: expected a list: %w", number, ErrMalformedPayload)
		}

		var page []PullRequestFile
		if err := json.Unmarshal(raw, &page); err != nil {
			return nil, fmt.Errorf("pull request %d files: %v: %w", number, err, ErrMalformedPayload)
		}

		for _, f := range page {
			files = append(files, f.Filename)
		}

		path = next
	}

	return files, nil
}

// getPage performs a GET and decodes the body into v. It returns the URL of
// the next page, or "" when there is none.
func (c *Client) getPage(ctx context.Context, path string, v any) (string, error) {
	resp, err := c.rest.RequestWithContext(ctx, http.MethodGet, path, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return "", fmt.Errorf("failed to parse response: %v: %w", err, ErrMalformedPayload)
	}

	return nextPage(resp.Header.Get("Link")), nil
}

func nextPage(link string) string {
	for _, m := range linkRE.FindAllStringSubmatch(link, -1) {
		if len(m) > 2 && m[2] == "next" {
			return m[1]
		}
	}

	return ""
}
