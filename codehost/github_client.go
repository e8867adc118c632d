package codehost

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-bounty/core"
	goerrors "github.com/goliatone/go-errors"
)

const (
	defaultGitHubBaseURL = "https://api.github.com"
	defaultRequestLimit  = 1 << 20 // 1 MiB
)

// GitHubClient implements the code host boundary over the REST transport.
// Every call carries the installation token and the JSON accept header the
// GitHub v3 API expects.
type GitHubClient struct {
	transport core.TransportAdapter
	baseURL   string
	token     string
	userAgent string
	timeout   time.Duration
	logger    core.Logger
}

type GitHubOption func(*GitHubClient)

func WithBaseURL(baseURL string) GitHubOption {
	return func(c *GitHubClient) {
		trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

func WithUserAgent(agent string) GitHubOption {
	return func(c *GitHubClient) {
		if trimmed := strings.TrimSpace(agent); trimmed != "" {
			c.userAgent = trimmed
		}
	}
}

func WithTimeout(timeout time.Duration) GitHubOption {
	return func(c *GitHubClient) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

func WithLogger(logger core.Logger) GitHubOption {
	return func(c *GitHubClient) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func NewGitHubClient(transport core.TransportAdapter, token string, options ...GitHubOption) (*GitHubClient, error) {
	if transport == nil {
		return nil, fmt.Errorf("codehost: transport adapter is required")
	}
	client := &GitHubClient{
		transport: transport,
		baseURL:   defaultGitHubBaseURL,
		token:     strings.TrimSpace(token),
		userAgent: "go-bounty",
		timeout:   15 * time.Second,
	}
	for _, option := range options {
		if option != nil {
			option(client)
		}
	}
	return client, nil
}

type checkRunsResponse struct {
	CheckRuns []struct {
		Name       string `json:"name"`
		Conclusion string `json:"conclusion"`
	} `json:"check_runs"`
}

func (c *GitHubClient) ListChecksForCommit(ctx context.Context, repository string, sha string) ([]core.CheckRun, error) {
	repository = strings.TrimSpace(repository)
	sha = strings.TrimSpace(sha)
	if repository == "" || sha == "" {
		return nil, fmt.Errorf("codehost: repository and commit sha are required")
	}

	body, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/repos/%s/commits/%s/check-runs", repository, sha), nil)
	if err != nil {
		return nil, err
	}
	var payload checkRunsResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryExternal, "codehost: decode check runs response")
	}
	checks := make([]core.CheckRun, 0, len(payload.CheckRuns))
	for _, run := range payload.CheckRuns {
		checks = append(checks, core.CheckRun{
			Name:       run.Name,
			Conclusion: core.CheckConclusion(run.Conclusion),
		})
	}
	return checks, nil
}

type pullRequestResponse struct {
	Number  int    `json:"number"`
	Body    string `json:"body"`
	HTMLURL string `json:"html_url"`
	Merged  bool   `json:"merged"`
	User    struct {
		Login string `json:"login"`
	} `json:"user"`
	Head struct {
		SHA string `json:"sha"`
	} `json:"head"`
}

func (c *GitHubClient) GetPullRequest(ctx context.Context, repository string, number int) (core.PullRequest, error) {
	repository = strings.TrimSpace(repository)
	if repository == "" || number <= 0 {
		return core.PullRequest{}, fmt.Errorf("codehost: repository and pull number are required")
	}

	body, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/repos/%s/pulls/%d", repository, number), nil)
	if err != nil {
		return core.PullRequest{}, err
	}
	var payload pullRequestResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return core.PullRequest{}, goerrors.Wrap(err, goerrors.CategoryExternal, "codehost: decode pull request response")
	}
	return core.PullRequest{
		Number:  payload.Number,
		Body:    payload.Body,
		HeadSHA: payload.Head.SHA,
		HTMLURL: payload.HTMLURL,
		Author:  payload.User.Login,
		Merged:  payload.Merged,
	}, nil
}

func (c *GitHubClient) CreateComment(ctx context.Context, repository string, issueNumber int, body string) error {
	repository = strings.TrimSpace(repository)
	if repository == "" || issueNumber <= 0 {
		return fmt.Errorf("codehost: repository and issue number are required")
	}
	if strings.TrimSpace(body) == "" {
		return fmt.Errorf("codehost: comment body is required")
	}

	payload, err := json.Marshal(map[string]string{"body": body})
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "codehost: encode comment payload")
	}
	_, err = c.do(ctx, http.MethodPost, fmt.Sprintf("/repos/%s/issues/%d/comments", repository, issueNumber), payload)
	return err
}

func (c *GitHubClient) CloseIssue(ctx context.Context, repository string, issueNumber int) error {
	repository = strings.TrimSpace(repository)
	if repository == "" || issueNumber <= 0 {
		return fmt.Errorf("codehost: repository and issue number are required")
	}

	payload, err := json.Marshal(map[string]string{"state": "closed"})
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "codehost: encode issue state payload")
	}
	_, err = c.do(ctx, http.MethodPatch, fmt.Sprintf("/repos/%s/issues/%d", repository, issueNumber), payload)
	return err
}

func (c *GitHubClient) do(ctx context.Context, method string, path string, body []byte) ([]byte, error) {
	if c == nil || c.transport == nil {
		return nil, fmt.Errorf("codehost: github client is not configured")
	}

	headers := map[string]string{
		"Accept":               "application/vnd.github+json",
		"User-Agent":           c.userAgent,
		"X-GitHub-Api-Version": "2022-11-28",
	}
	if c.token != "" {
		headers["Authorization"] = "Bearer " + c.token
	}
	if len(body) > 0 {
		headers["Content-Type"] = "application/json"
	}

	res, err := c.transport.Do(ctx, core.TransportRequest{
		Method:               method,
		URL:                  c.baseURL + path,
		Headers:              headers,
		Body:                 body,
		Timeout:              c.timeout,
		MaxResponseBodyBytes: defaultRequestLimit,
	})
	if err != nil {
		return nil, err
	}
	if res.StatusCode >= http.StatusBadRequest {
		return nil, githubStatusError(method, path, res)
	}
	return res.Body, nil
}

func githubStatusError(method string, path string, res core.TransportResponse) error {
	message := fmt.Sprintf("codehost: github %s %s returned %d", method, path, res.StatusCode)
	category := goerrors.CategoryExternal
	switch {
	case res.StatusCode == http.StatusUnauthorized:
		category = goerrors.CategoryAuth
	case res.StatusCode == http.StatusForbidden:
		category = goerrors.CategoryAuthz
	case res.StatusCode == http.StatusNotFound:
		category = goerrors.CategoryNotFound
	case res.StatusCode == http.StatusUnprocessableEntity:
		category = goerrors.CategoryBadInput
	}
	err := goerrors.New(message, category).WithCode(res.StatusCode)
	if len(res.Body) > 0 {
		var detail struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(res.Body, &detail) == nil && strings.TrimSpace(detail.Message) != "" {
			err.WithMetadata(map[string]any{"github_message": detail.Message})
		}
	}
	return err
}

var _ core.CodeHostClient = (*GitHubClient)(nil)
