package sync

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wesm/ghsync/internal/models"
)

// ErrCategoryNotFound is returned when an idea names a discussion category
// the repository does not have.
var ErrCategoryNotFound = errors.New("discussion category not found")

// runCache holds remote lookups shared by the records of one push run. Each
// value is fetched at most once.
type runCache struct {
	client      DiscussionClient
	owner, name string

	repoID      string
	categories  []models.DiscussionCategory
	catsLoaded  bool
	discussions map[string]*models.RemoteDiscussion
}

func newRunCache(client DiscussionClient, owner, name string) *runCache {
	return &runCache{client: client, owner: owner, name: name}
}

func (c *runCache) repositoryID(ctx context.Context) (string, error) {
	if c.repoID != "" {
		return c.repoID, nil
	}
	id, err := c.client.GetRepositoryID(ctx, c.owner, c.name)
	if err != nil {
		return "", fmt.Errorf("failed to get repository id: %w", err)
	}
	c.repoID = id
	return id, nil
}

// category resolves want by slug, then by case-insensitive name.
func (c *runCache) category(ctx context.Context, want string) (models.DiscussionCategory, error) {
	if !c.catsLoaded {
		cats, err := c.client.ListDiscussionCategories(ctx, c.owner, c.name)
		if err != nil {
			return models.DiscussionCategory{}, fmt.Errorf("failed to list discussion categories: %w", err)
		}
		c.categories = cats
		c.catsLoaded = true
	}

	if want != "" {
		for _, cat := range c.categories {
			if cat.Slug == want {
				return cat, nil
			}
		}
		for _, cat := range c.categories {
			if strings.EqualFold(cat.Name, want) {
				return cat, nil
			}
		}
	}
	return models.DiscussionCategory{}, fmt.Errorf("%q: %w", want, ErrCategoryNotFound)
}

// discussion returns the remote discussion with the given id, or nil if the
// repository has none.
func (c *runCache) discussion(ctx context.Context, id string) (*models.RemoteDiscussion, error) {
	if c.discussions == nil {
		list, err := c.client.ListDiscussions(ctx, c.owner, c.name)
		if err != nil {
			return nil, fmt.Errorf("failed to list discussions: %w", err)
		}
		c.discussions = make(map[string]*models.RemoteDiscussion, len(list))
		for _, d := range list {
			c.discussions[d.ID] = d
		}
	}
	return c.discussions[id], nil
}

// remember keeps the index current after a create or update.
func (c *runCache) remember(d *models.RemoteDiscussion) {
	if c.discussions != nil && d != nil {
		c.discussions[d.ID] = d
	}
}
