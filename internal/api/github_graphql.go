package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shurcooL/githubv4"
	"github.com/wesm/ghsync/internal/models"
)

// GraphQLClient represents a client for the GitHub GraphQL API. Discussions
// are only reachable through GraphQL.
type GraphQLClient struct {
	client *githubv4.Client
	limits *limitRecorder
}

// NewGraphQLClient creates a new GraphQL client
func NewGraphQLClient(token string) *GraphQLClient {
	httpClient, limits := recordLimits(newHTTPClient(token))
	return &GraphQLClient{client: githubv4.NewClient(httpClient), limits: limits}
}

// NewGraphQLClientWithURL creates a client against a GitHub Enterprise or test endpoint
func NewGraphQLClientWithURL(token, url string) *GraphQLClient {
	httpClient, limits := recordLimits(newHTTPClient(token))
	return &GraphQLClient{client: githubv4.NewEnterpriseClient(url, httpClient), limits: limits}
}

// limitRecorder is a transport that remembers the rate limit reset announced
// by the latest response. githubv4 errors do not carry response headers.
type limitRecorder struct {
	base http.RoundTripper

	mu    sync.Mutex
	reset time.Time
}

func recordLimits(c *http.Client) (*http.Client, *limitRecorder) {
	base := http.DefaultTransport
	if c != nil && c.Transport != nil {
		base = c.Transport
	}
	r := &limitRecorder{base: base}
	return &http.Client{Transport: r}, r
}

func (r *limitRecorder) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := r.base.RoundTrip(req)
	if err != nil {
		return resp, err
	}
	if reset, ok := resetFromHeader(resp.Header); ok {
		r.mu.Lock()
		r.reset = reset
		r.mu.Unlock()
	}
	return resp, nil
}

// resetTime is the last announced reset, or now when none was seen
func (r *limitRecorder) resetTime() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reset.IsZero() {
		return time.Now()
	}
	return r.reset
}

func resetFromHeader(h http.Header) (time.Time, bool) {
	if secs, err := strconv.Atoi(h.Get("Retry-After")); err == nil {
		return time.Now().Add(time.Duration(secs) * time.Second), true
	}
	if unix, err := strconv.ParseInt(h.Get("X-RateLimit-Reset"), 10, 64); err == nil {
		return time.Unix(unix, 0), true
	}
	return time.Time{}, false
}

// rateLimited turns GraphQL rate limit failures into RateLimitError. GitHub
// reports them either as a RATE_LIMITED entry in the response errors or as a
// 403 whose body mentions the limit; githubv4 surfaces both as plain text.
func (c *GraphQLClient) rateLimited(err error) error {
	if !strings.Contains(strings.ToLower(err.Error()), "rate limit") {
		return err
	}
	return &RateLimitError{ResetTime: c.limits.resetTime(), Err: err}
}

// Actor represents a GitHub user in GraphQL
type Actor struct {
	Login githubv4.String
}

// DiscussionCategory represents a discussion category in GraphQL
type DiscussionCategory struct {
	ID   githubv4.ID
	Name githubv4.String
	Slug githubv4.String
}

// Comment represents a discussion comment in GraphQL
type Comment struct {
	ID        githubv4.ID
	Body      githubv4.String
	CreatedAt githubv4.DateTime
	Author    Actor
}

// Discussion represents a GitHub discussion in GraphQL
type Discussion struct {
	ID        githubv4.ID
	Number    githubv4.Int
	Title     githubv4.String
	Body      githubv4.String
	UpdatedAt githubv4.DateTime
	Category  DiscussionCategory
	Comments  struct {
		Nodes    []Comment
		PageInfo pageInfo
	} `graphql:"comments(first: $commentsPerPage)"`
}

// discussionFields is the subset returned by mutations
type discussionFields struct {
	ID        githubv4.ID
	Number    githubv4.Int
	Title     githubv4.String
	Body      githubv4.String
	UpdatedAt githubv4.DateTime
	Category  DiscussionCategory
}

type pageInfo struct {
	EndCursor   githubv4.String
	HasNextPage githubv4.Boolean
}

type rateLimit struct {
	Limit     githubv4.Int
	Cost      githubv4.Int
	Remaining githubv4.Int
	ResetAt   githubv4.DateTime
}

// convertDateTime renders a githubv4.DateTime as an RFC 3339 string
func convertDateTime(dt githubv4.DateTime) string {
	return formatTime(dt.Time)
}

// GetRepositoryID gets the node id of a repository
func (c *GraphQLClient) GetRepositoryID(ctx context.Context, owner, name string) (string, error) {
	var query struct {
		Repository struct {
			ID githubv4.ID
		} `graphql:"repository(owner: $owner, name: $name)"`
	}

	variables := map[string]interface{}{
		"owner": githubv4.String(owner),
		"name":  githubv4.String(name),
	}

	if err := c.client.Query(ctx, &query, variables); err != nil {
		return "", fmt.Errorf("failed to query repository: %w", c.rateLimited(err))
	}

	return fmt.Sprint(query.Repository.ID), nil
}

// ListDiscussions gets every discussion in a repository with its category
// and first page of comments
func (c *GraphQLClient) ListDiscussions(ctx context.Context, owner, name string) ([]*models.RemoteDiscussion, error) {
	var all []*models.RemoteDiscussion

	var cursor *githubv4.String
	for {
		batch, hasNext, endCursor, err := c.fetchDiscussionsBatch(ctx, owner, name, cursor)
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)

		if !hasNext {
			break
		}
		cursor = endCursor
	}

	log.Printf("Fetched %d discussions for %s/%s", len(all), owner, name)
	return all, nil
}

// fetchDiscussionsBatch fetches one page of discussions
func (c *GraphQLClient) fetchDiscussionsBatch(
	ctx context.Context,
	owner, name string,
	afterCursor *githubv4.String,
) ([]*models.RemoteDiscussion, bool, *githubv4.String, error) {
	var query struct {
		RateLimit  rateLimit
		Repository struct {
			Discussions struct {
				Nodes    []Discussion
				PageInfo pageInfo
			} `graphql:"discussions(first: $discussionsPerPage, after: $discussionsEndCursor)"`
		} `graphql:"repository(owner: $owner, name: $name)"`
	}

	variables := map[string]interface{}{
		"owner":                githubv4.String(owner),
		"name":                 githubv4.String(name),
		"discussionsPerPage":   githubv4.Int(50),
		"discussionsEndCursor": afterCursor,
		"commentsPerPage":      githubv4.Int(100),
	}

	if err := c.client.Query(ctx, &query, variables); err != nil {
		return nil, false, nil, fmt.Errorf("failed to query discussions: %w", c.rateLimited(err))
	}

	remaining := int(query.RateLimit.Remaining)
	if remaining < 1000 && query.RateLimit.Limit > 0 {
		log.Printf("GraphQL rate limit status: %d/%d remaining, resets at %s",
			remaining, int(query.RateLimit.Limit), convertDateTime(query.RateLimit.ResetAt))
	}

	var result []*models.RemoteDiscussion
	for _, d := range query.Repository.Discussions.Nodes {
		rd := convertDiscussion(discussionFields{
			ID:        d.ID,
			Number:    d.Number,
			Title:     d.Title,
			Body:      d.Body,
			UpdatedAt: d.UpdatedAt,
			Category:  d.Category,
		})
		for _, comment := range d.Comments.Nodes {
			rd.Comments = append(rd.Comments, models.Comment{
				ID:        fmt.Sprint(comment.ID),
				Author:    string(comment.Author.Login),
				CreatedAt: convertDateTime(comment.CreatedAt),
				Body:      string(comment.Body),
			})
		}
		if bool(d.Comments.PageInfo.HasNextPage) {
			log.Printf("Warning: discussion #%d has more than 100 comments; only the first 100 are mirrored", int(d.Number))
		}
		result = append(result, rd)
	}

	page := query.Repository.Discussions.PageInfo
	if !bool(page.HasNextPage) {
		return result, false, nil, nil
	}
	endCursor := page.EndCursor
	return result, true, &endCursor, nil
}

// GetDiscussionID resolves a discussion number to its node id
func (c *GraphQLClient) GetDiscussionID(ctx context.Context, owner, name string, number int) (string, error) {
	var query struct {
		Repository struct {
			Discussion struct {
				ID githubv4.ID
			} `graphql:"discussion(number: $number)"`
		} `graphql:"repository(owner: $owner, name: $name)"`
	}

	variables := map[string]interface{}{
		"owner":  githubv4.String(owner),
		"name":   githubv4.String(name),
		"number": githubv4.Int(number),
	}

	if err := c.client.Query(ctx, &query, variables); err != nil {
		return "", fmt.Errorf("failed to query discussion #%d: %w", number, c.rateLimited(err))
	}
	if query.Repository.Discussion.ID == nil {
		return "", fmt.Errorf("discussion #%d not found in %s/%s", number, owner, name)
	}
	return fmt.Sprint(query.Repository.Discussion.ID), nil
}

// ListDiscussionCategories gets the discussion categories of a repository
func (c *GraphQLClient) ListDiscussionCategories(ctx context.Context, owner, name string) ([]models.DiscussionCategory, error) {
	var query struct {
		Repository struct {
			DiscussionCategories struct {
				Nodes []DiscussionCategory
			} `graphql:"discussionCategories(first: 100)"`
		} `graphql:"repository(owner: $owner, name: $name)"`
	}

	variables := map[string]interface{}{
		"owner": githubv4.String(owner),
		"name":  githubv4.String(name),
	}

	if err := c.client.Query(ctx, &query, variables); err != nil {
		return nil, fmt.Errorf("failed to query discussion categories: %w", c.rateLimited(err))
	}

	categories := make([]models.DiscussionCategory, 0, len(query.Repository.DiscussionCategories.Nodes))
	for _, cat := range query.Repository.DiscussionCategories.Nodes {
		categories = append(categories, models.DiscussionCategory{
			ID:   fmt.Sprint(cat.ID),
			Name: string(cat.Name),
			Slug: string(cat.Slug),
		})
	}
	return categories, nil
}

// CreateDiscussion creates a discussion in the given category
func (c *GraphQLClient) CreateDiscussion(ctx context.Context, repoID, categoryID, title, body string) (*models.RemoteDiscussion, error) {
	var mutation struct {
		CreateDiscussion struct {
			Discussion discussionFields
		} `graphql:"createDiscussion(input: $input)"`
	}

	input := githubv4.CreateDiscussionInput{
		RepositoryID: githubv4.ID(repoID),
		CategoryID:   githubv4.ID(categoryID),
		Title:        githubv4.String(title),
		Body:         githubv4.String(body),
	}

	if err := c.client.Mutate(ctx, &mutation, input, nil); err != nil {
		return nil, fmt.Errorf("failed to create discussion: %w", c.rateLimited(err))
	}
	return convertDiscussion(mutation.CreateDiscussion.Discussion), nil
}

// UpdateDiscussion changes the title and/or body of a discussion; nil
// fields are left untouched
func (c *GraphQLClient) UpdateDiscussion(ctx context.Context, id string, title, body *string) (*models.RemoteDiscussion, error) {
	var mutation struct {
		UpdateDiscussion struct {
			Discussion discussionFields
		} `graphql:"updateDiscussion(input: $input)"`
	}

	input := githubv4.UpdateDiscussionInput{
		DiscussionID: githubv4.ID(id),
	}
	if title != nil {
		input.Title = githubv4.NewString(githubv4.String(*title))
	}
	if body != nil {
		input.Body = githubv4.NewString(githubv4.String(*body))
	}

	if err := c.client.Mutate(ctx, &mutation, input, nil); err != nil {
		return nil, fmt.Errorf("failed to update discussion %s: %w", id, c.rateLimited(err))
	}
	return convertDiscussion(mutation.UpdateDiscussion.Discussion), nil
}

func convertDiscussion(d discussionFields) *models.RemoteDiscussion {
	return &models.RemoteDiscussion{
		ID:        fmt.Sprint(d.ID),
		Number:    int(d.Number),
		Title:     string(d.Title),
		Body:      string(d.Body),
		Category:  string(d.Category.Slug),
		UpdatedAt: convertDateTime(d.UpdatedAt),
	}
}
