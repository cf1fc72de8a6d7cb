package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/go-github/v57/github"
	"github.com/wesm/ghsync/internal/models"
	"golang.org/x/oauth2"
)

// RateLimitError reports that GitHub refused a call until ResetTime
type RateLimitError struct {
	ResetTime time.Time
	Err       error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("GitHub rate limit exceeded, resets at %s: %v", e.ResetTime.Format(time.RFC3339), e.Err)
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}

// GitHubClient represents a client for the GitHub REST API
type GitHubClient struct {
	client *github.Client
}

// newHTTPClient returns an oauth2 client for token, or nil for anonymous access
func newHTTPClient(token string) *http.Client {
	if token == "" {
		return nil
	}
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	return oauth2.NewClient(context.Background(), ts)
}

// NewGitHubClient creates a new GitHub API client
func NewGitHubClient(token string) *GitHubClient {
	return &GitHubClient{client: github.NewClient(newHTTPClient(token))}
}

// NewGitHubClientWithBaseURL creates a client against a GitHub Enterprise or test server
func NewGitHubClientWithBaseURL(token, baseURL string) (*GitHubClient, error) {
	client := github.NewClient(newHTTPClient(token))
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Path == "" || u.Path[len(u.Path)-1] != '/' {
		u.Path += "/"
	}
	client.BaseURL = u
	return &GitHubClient{client: client}, nil
}

// GetRepository gets a repository by owner and name
func (c *GitHubClient) GetRepository(ctx context.Context, owner, name string) (*models.Repository, error) {
	repo, _, err := c.client.Repositories.Get(ctx, owner, name)
	if err != nil {
		return nil, fmt.Errorf("failed to get repository: %w", wrapRateLimit(err))
	}

	return &models.Repository{
		ID:       repo.GetID(),
		NodeID:   repo.GetNodeID(),
		Owner:    repo.GetOwner().GetLogin(),
		Name:     repo.GetName(),
		FullName: repo.GetFullName(),
	}, nil
}

// ListIssues gets every issue in a repository with the given state
// ("open", "closed" or "all"), following all pages
func (c *GitHubClient) ListIssues(ctx context.Context, owner, name, state string) ([]*models.RemoteIssue, error) {
	if state == "" {
		state = "all"
	}
	var allIssues []*models.RemoteIssue
	opts := &github.IssueListByRepoOptions{
		State:     state,
		Sort:      "created",
		Direction: "asc",
		ListOptions: github.ListOptions{
			PerPage: 100,
		},
	}

	for {
		issues, resp, err := c.client.Issues.ListByRepo(ctx, owner, name, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list issues: %w", wrapRateLimit(err))
		}

		for _, issue := range issues {
			allIssues = append(allIssues, ConvertGitHubIssue(issue))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return allIssues, nil
}

// GetIssue gets a single issue by number
func (c *GitHubClient) GetIssue(ctx context.Context, owner, name string, number int) (*models.RemoteIssue, error) {
	issue, _, err := c.client.Issues.Get(ctx, owner, name, number)
	if err != nil {
		return nil, fmt.Errorf("failed to get issue #%d: %w", number, wrapRateLimit(err))
	}
	return ConvertGitHubIssue(issue), nil
}

// CreateIssue creates an issue and returns it as stored by GitHub
func (c *GitHubClient) CreateIssue(ctx context.Context, owner, name string, req models.IssueCreate) (*models.RemoteIssue, error) {
	labels := nonNilStrings(req.Labels)
	assignees := nonNilStrings(req.Assignees)
	issue, _, err := c.client.Issues.Create(ctx, owner, name, &github.IssueRequest{
		Title:     github.String(req.Title),
		Body:      github.String(req.Body),
		Labels:    &labels,
		Assignees: &assignees,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create issue: %w", wrapRateLimit(err))
	}
	return ConvertGitHubIssue(issue), nil
}

// UpdateIssue applies a partial update; only non-nil fields are sent
func (c *GitHubClient) UpdateIssue(ctx context.Context, owner, name string, number int, upd models.IssueUpdate) (*models.RemoteIssue, error) {
	req := &github.IssueRequest{
		Title:     upd.Title,
		Body:      upd.Body,
		Labels:    upd.Labels,
		Assignees: upd.Assignees,
		State:     upd.State,
	}
	issue, _, err := c.client.Issues.Edit(ctx, owner, name, number, req)
	if err != nil {
		return nil, fmt.Errorf("failed to update issue #%d: %w", number, wrapRateLimit(err))
	}
	return ConvertGitHubIssue(issue), nil
}

// ListIssueComments gets comments for an issue
func (c *GitHubClient) ListIssueComments(ctx context.Context, owner, name string, issueNumber int) ([]models.Comment, error) {
	var allComments []models.Comment
	opts := &github.IssueListCommentsOptions{
		ListOptions: github.ListOptions{
			PerPage: 100,
		},
	}

	for {
		comments, resp, err := c.client.Issues.ListComments(ctx, owner, name, issueNumber, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list comments: %w", wrapRateLimit(err))
		}

		for _, comment := range comments {
			allComments = append(allComments, ConvertGitHubComment(comment))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return allComments, nil
}

// ConvertGitHubIssue converts a GitHub issue to our model
func ConvertGitHubIssue(issue *github.Issue) *models.RemoteIssue {
	labels := make([]string, 0, len(issue.Labels))
	for _, label := range issue.Labels {
		labels = append(labels, label.GetName())
	}

	assignees := make([]string, 0, len(issue.Assignees))
	for _, user := range issue.Assignees {
		assignees = append(assignees, user.GetLogin())
	}

	return &models.RemoteIssue{
		Number:        issue.GetNumber(),
		Title:         issue.GetTitle(),
		Body:          issue.GetBody(),
		State:         issue.GetState(),
		Labels:        labels,
		Assignees:     assignees,
		UpdatedAt:     formatTime(issue.GetUpdatedAt().Time),
		IsPullRequest: issue.IsPullRequest(),
	}
}

// ConvertGitHubComment converts a GitHub comment to our model
func ConvertGitHubComment(comment *github.IssueComment) models.Comment {
	return models.Comment{
		ID:        strconv.FormatInt(comment.GetID(), 10),
		Author:    comment.GetUser().GetLogin(),
		CreatedAt: formatTime(comment.GetCreatedAt().Time),
		Body:      comment.GetBody(),
	}
}

// wrapRateLimit turns go-github rate limit errors into RateLimitError
func wrapRateLimit(err error) error {
	var rle *github.RateLimitError
	if errors.As(err, &rle) {
		return &RateLimitError{ResetTime: rle.Rate.Reset.Time, Err: err}
	}
	var arle *github.AbuseRateLimitError
	if errors.As(err, &arle) {
		reset := time.Now()
		if arle.RetryAfter != nil {
			reset = reset.Add(*arle.RetryAfter)
		}
		return &RateLimitError{ResetTime: reset, Err: err}
	}
	return err
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
