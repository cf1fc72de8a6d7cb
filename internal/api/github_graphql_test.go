package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wesm/ghsync/internal/models"
)

type graphqlRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables"`
}

// newTestGraphQL serves canned responses chosen by respond from the decoded request.
func newTestGraphQL(t *testing.T, respond func(req graphqlRequest) string) *GraphQLClient {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req graphqlRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, respond(req))
	}))
	t.Cleanup(server.Close)
	return NewGraphQLClientWithURL("", server.URL)
}

func TestListDiscussionsFollowsPages(t *testing.T) {
	calls := 0
	client := newTestGraphQL(t, func(req graphqlRequest) string {
		calls++
		assert.Contains(t, req.Query, "discussions(first: $discussionsPerPage, after: $discussionsEndCursor)")
		if req.Variables["discussionsEndCursor"] == nil {
			return `{"data": {"rateLimit": {"limit": 5000, "cost": 1, "remaining": 4999, "resetAt": "2024-01-01T00:00:00Z"},
				"repository": {"discussions": {
					"nodes": [{"id": "D_1", "number": 1, "title": "One", "body": "b1", "updatedAt": "2024-05-01T10:00:00Z",
						"category": {"id": "C_1", "name": "Ideas", "slug": "ideas"},
						"comments": {"nodes": [{"id": "DC_1", "body": "nice", "createdAt": "2024-05-01T11:00:00Z", "author": {"login": "ann"}}],
							"pageInfo": {"endCursor": "", "hasNextPage": false}}}],
					"pageInfo": {"endCursor": "c1", "hasNextPage": true}}}}}`
		}
		assert.Equal(t, "c1", req.Variables["discussionsEndCursor"])
		return `{"data": {"rateLimit": {"limit": 5000, "cost": 1, "remaining": 4998, "resetAt": "2024-01-01T00:00:00Z"},
			"repository": {"discussions": {
				"nodes": [{"id": "D_2", "number": 2, "title": "Two", "body": "", "updatedAt": "2024-05-02T10:00:00Z",
					"category": {"id": "C_2", "name": "Q&A", "slug": "q-a"},
					"comments": {"nodes": [], "pageInfo": {"endCursor": "", "hasNextPage": false}}}],
				"pageInfo": {"endCursor": "c2", "hasNextPage": false}}}}}`
	})

	discussions, err := client.ListDiscussions(context.Background(), "o", "r")
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	require.Len(t, discussions, 2)

	assert.Equal(t, &models.RemoteDiscussion{
		ID:        "D_1",
		Number:    1,
		Title:     "One",
		Body:      "b1",
		Category:  "ideas",
		UpdatedAt: "2024-05-01T10:00:00Z",
		Comments:  []models.Comment{{ID: "DC_1", Author: "ann", CreatedAt: "2024-05-01T11:00:00Z", Body: "nice"}},
	}, discussions[0])
	assert.Equal(t, "q-a", discussions[1].Category)
}

func TestCreateDiscussion(t *testing.T) {
	client := newTestGraphQL(t, func(req graphqlRequest) string {
		assert.True(t, strings.HasPrefix(strings.TrimSpace(req.Query), "mutation"))
		input, ok := req.Variables["input"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "R_1", input["repositoryId"])
		assert.Equal(t, "C_1", input["categoryId"])
		assert.Equal(t, "Hello", input["title"])
		return `{"data": {"createDiscussion": {"discussion": {"id": "D_9", "number": 9, "title": "Hello", "body": "b",
			"updatedAt": "2024-06-01T00:00:00Z", "category": {"id": "C_1", "name": "Ideas", "slug": "ideas"}}}}}`
	})

	d, err := client.CreateDiscussion(context.Background(), "R_1", "C_1", "Hello", "b")
	require.NoError(t, err)
	assert.Equal(t, "D_9", d.ID)
	assert.Equal(t, 9, d.Number)
	assert.Equal(t, "ideas", d.Category)
}

func TestUpdateDiscussionOmitsNilFields(t *testing.T) {
	client := newTestGraphQL(t, func(req graphqlRequest) string {
		input := req.Variables["input"].(map[string]interface{})
		assert.Equal(t, "D_9", input["discussionId"])
		assert.Equal(t, "new body", input["body"])
		_, hasTitle := input["title"]
		assert.False(t, hasTitle)
		return `{"data": {"updateDiscussion": {"discussion": {"id": "D_9", "number": 9, "title": "Hello", "body": "new body",
			"updatedAt": "2024-06-02T00:00:00Z", "category": {"id": "C_1", "name": "Ideas", "slug": "ideas"}}}}}`
	})

	body := "new body"
	d, err := client.UpdateDiscussion(context.Background(), "D_9", nil, &body)
	require.NoError(t, err)
	assert.Equal(t, "new body", d.Body)
	assert.Equal(t, "2024-06-02T00:00:00Z", d.UpdatedAt)
}

func TestDiscussionCategoriesAndIDs(t *testing.T) {
	client := newTestGraphQL(t, func(req graphqlRequest) string {
		switch {
		case strings.Contains(req.Query, "discussionCategories"):
			return `{"data": {"repository": {"discussionCategories": {"nodes": [
				{"id": "C_1", "name": "Ideas", "slug": "ideas"}, {"id": "C_2", "name": "Q&A", "slug": "q-a"}]}}}}`
		case strings.Contains(req.Query, "discussion(number: $number)"):
			return `{"data": {"repository": {"discussion": {"id": "D_4"}}}}`
		default:
			return `{"data": {"repository": {"id": "R_1"}}}`
		}
	})
	ctx := context.Background()

	cats, err := client.ListDiscussionCategories(ctx, "o", "r")
	require.NoError(t, err)
	assert.Equal(t, []models.DiscussionCategory{
		{ID: "C_1", Name: "Ideas", Slug: "ideas"},
		{ID: "C_2", Name: "Q&A", Slug: "q-a"},
	}, cats)

	id, err := client.GetDiscussionID(ctx, "o", "r", 4)
	require.NoError(t, err)
	assert.Equal(t, "D_4", id)

	repoID, err := client.GetRepositoryID(ctx, "o", "r")
	require.NoError(t, err)
	assert.Equal(t, "R_1", repoID)
}

func TestGraphQLRateLimitErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		header map[string]string
		body   string
		reset  func(t *testing.T, reset time.Time)
	}{
		{
			name:   "primary limit in response errors",
			status: http.StatusOK,
			header: map[string]string{"X-RateLimit-Reset": "1714557600"},
			body:   `{"data": null, "errors": [{"type": "RATE_LIMITED", "message": "API rate limit exceeded for user ID 1."}]}`,
			reset:  func(t *testing.T, reset time.Time) {
				assert.True(t, reset.Equal(time.Unix(1714557600, 0)), "got %s", reset)
			},
		},
		{
			name:   "secondary limit as 403",
			status: http.StatusForbidden,
			header: map[string]string{"Retry-After": "60"},
			body:   `{"message": "You have exceeded a secondary rate limit."}`,
			reset:  func(t *testing.T, reset time.Time) {
				assert.WithinDuration(t, time.Now().Add(time.Minute), reset, 10*time.Second)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				for k, v := range tt.header {
					w.Header().Set(k, v)
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			t.Cleanup(server.Close)
			client := NewGraphQLClientWithURL("", server.URL)

			_, err := client.GetRepositoryID(context.Background(), "o", "r")
			var rle *RateLimitError
			require.ErrorAs(t, err, &rle)
			tt.reset(t, rle.ResetTime)
		})
	}
}

func TestGraphQLOtherErrorsPassThrough(t *testing.T) {
	client := newTestGraphQL(t, func(graphqlRequest) string {
		return `{"data": null, "errors": [{"type": "NOT_FOUND", "message": "Could not resolve to a Repository with the name 'o/r'."}]}`
	})

	_, err := client.GetRepositoryID(context.Background(), "o", "r")
	require.Error(t, err)
	var rle *RateLimitError
	assert.False(t, errors.As(err, &rle))
	assert.ErrorContains(t, err, "Could not resolve")
}
