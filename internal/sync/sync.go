package sync

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/wesm/ghsync/internal/models"
)

// IssueClient is the REST side of the remote tracker.
type IssueClient interface {
	ListIssues(ctx context.Context, owner, name, state string) ([]*models.RemoteIssue, error)
	GetIssue(ctx context.Context, owner, name string, number int) (*models.RemoteIssue, error)
	CreateIssue(ctx context.Context, owner, name string, req models.IssueCreate) (*models.RemoteIssue, error)
	UpdateIssue(ctx context.Context, owner, name string, number int, upd models.IssueUpdate) (*models.RemoteIssue, error)
	ListIssueComments(ctx context.Context, owner, name string, number int) ([]models.Comment, error)
}

// DiscussionClient is the GraphQL side of the remote tracker.
type DiscussionClient interface {
	ListDiscussions(ctx context.Context, owner, name string) ([]*models.RemoteDiscussion, error)
	GetDiscussionID(ctx context.Context, owner, name string, number int) (string, error)
	CreateDiscussion(ctx context.Context, repoID, categoryID, title, body string) (*models.RemoteDiscussion, error)
	UpdateDiscussion(ctx context.Context, id string, title, body *string) (*models.RemoteDiscussion, error)
	ListDiscussionCategories(ctx context.Context, owner, name string) ([]models.DiscussionCategory, error)
	GetRepositoryID(ctx context.Context, owner, name string) (string, error)
}

// Options controls a pull or push run.
type Options struct {
	// DryRun performs every read but no local write or remote mutation.
	DryRun bool
	// PreferLocal resolves title/body conflicts to the local value on push.
	PreferLocal bool
	// State filters the issues fetched by pull: "open", "closed" or "all".
	State string
	// SkipDiscussions leaves idea records alone, for repositories without
	// discussions enabled.
	SkipDiscussions bool
}

// Syncer runs pull and push between a record directory and a repository.
// Records are processed one at a time; the first remote or filesystem
// error ends the run.
type Syncer struct {
	issues      IssueClient
	discussions DiscussionClient
	out         io.Writer
}

// New creates a new syncer
func New(issues IssueClient, discussions DiscussionClient) *Syncer {
	return &Syncer{
		issues:      issues,
		discussions: discussions,
		out:         os.Stdout,
	}
}

// SetOutput sets where per-record progress lines are written
func (s *Syncer) SetOutput(w io.Writer) {
	s.out = w
}

func (s *Syncer) progress(dryRun bool, outcome Outcome, rec *models.SyncRecord, detail string) {
	verb := string(outcome)
	if dryRun && (outcome == OutcomeCreated || outcome == OutcomeUpdated) {
		verb = "would " + strings.TrimSuffix(verb, "d")
	}
	line := fmt.Sprintf("%-12s %s %q", verb, describe(rec), rec.Title)
	if detail != "" {
		line += " (" + detail + ")"
	}
	fmt.Fprintln(s.out, line)
}

func (s *Syncer) progressError(rec *models.SyncRecord, err error) {
	fmt.Fprintf(s.out, "%-12s %s %q: %v\n", "error", describe(rec), rec.Title, err)
}

// describe names a record for progress output, e.g. "issue #12" or "idea (new)".
func describe(rec *models.SyncRecord) string {
	if rec.IsNew() {
		return string(rec.Kind) + " (new)"
	}
	return fmt.Sprintf("%s #%d", rec.Kind, rec.RemoteNumber())
}

// ParseRepositoryString parses a repository string in the format "owner/name"
func ParseRepositoryString(repoStr string) (string, string, error) {
	parts := strings.Split(repoStr, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repository format, expected 'owner/name', got '%s'", repoStr)
	}
	return parts[0], parts[1], nil
}
