package models

import (
	"github.com/wesm/ghsync/internal/merge"
)

// ItemKind distinguishes issues from discussion threads ("ideas").
type ItemKind string

const (
	KindIssue ItemKind = "issue"
	KindIdea  ItemKind = "idea"
)

// ParseItemKind maps a file's type value to a kind. Unknown values are
// treated as issues.
func ParseItemKind(s string) ItemKind {
	switch s {
	case "idea", "discussion":
		return KindIdea
	default:
		return KindIssue
	}
}

// Repository represents a GitHub repository
type Repository struct {
	ID       int64
	NodeID   string
	Owner    string
	Name     string
	FullName string
}

// Comment is a read-only mirror of a remote comment
type Comment struct {
	ID        string `yaml:"id"`
	Author    string `yaml:"author"`
	CreatedAt string `yaml:"created_at"`
	Body      string `yaml:"body"`
}

// LastSynced is the state both sides last agreed on. It is the base of the
// three-way merge.
type LastSynced struct {
	Title     string
	Body      string
	Labels    []string
	UpdatedAt string
	// Assignees is nil when the base predates assignee tracking.
	Assignees []string
}

// SyncRecord is one tracked issue or discussion thread.
type SyncRecord struct {
	Title     string
	Body      string
	Labels    []string
	Assignees []string
	State     string
	Category  string
	Kind      ItemKind

	IssueNumber      int
	DiscussionID     string
	DiscussionNumber int
	UpdatedAt        string

	Comments   []Comment
	LastSynced *LastSynced

	// Path is the file the record was read from or last written to.
	Path string
}

// IsNew reports whether the record has never been created remotely.
func (r *SyncRecord) IsNew() bool {
	if r.Kind == KindIdea {
		return r.DiscussionID == "" && r.DiscussionNumber == 0
	}
	return r.IssueNumber == 0
}

// RemoteNumber returns the issue or discussion number.
func (r *SyncRecord) RemoteNumber() int {
	if r.Kind == KindIdea {
		return r.DiscussionNumber
	}
	return r.IssueNumber
}

// Fields returns the mergeable content of the record.
func (r *SyncRecord) Fields() merge.Fields {
	return merge.Fields{
		Title:     r.Title,
		Body:      r.Body,
		Labels:    r.Labels,
		Assignees: r.Assignees,
	}
}

// BaseFields returns the merge base. Without a LastSynced snapshot the
// remote state is the base, and a snapshot without assignees takes the
// remote assignees.
func (r *SyncRecord) BaseFields(remote merge.Fields) merge.Fields {
	if r.LastSynced == nil {
		return remote
	}
	base := merge.Fields{
		Title:     r.LastSynced.Title,
		Body:      r.LastSynced.Body,
		Labels:    r.LastSynced.Labels,
		Assignees: r.LastSynced.Assignees,
	}
	if base.Assignees == nil {
		base.Assignees = remote.Assignees
	}
	return base
}

// DivergedFromBase reports local edits since the last sync: title, body and
// labels, plus assignees when the snapshot recorded them. A record without a
// snapshot has not diverged.
func (r *SyncRecord) DivergedFromBase() bool {
	if r.LastSynced == nil {
		return false
	}
	if r.Title != r.LastSynced.Title || r.Body != r.LastSynced.Body {
		return true
	}
	if !merge.EqualSets(r.Labels, r.LastSynced.Labels) {
		return true
	}
	return r.LastSynced.Assignees != nil && !merge.EqualSets(r.Assignees, r.LastSynced.Assignees)
}

// Snapshot records fields as the new agreed state.
func Snapshot(fields merge.Fields, updatedAt string) *LastSynced {
	return &LastSynced{
		Title:     fields.Title,
		Body:      fields.Body,
		Labels:    merge.Normalize(fields.Labels),
		UpdatedAt: updatedAt,
		Assignees: merge.Normalize(fields.Assignees),
	}
}

// RemoteIssue is an issue as returned by the REST API
type RemoteIssue struct {
	Number        int
	Title         string
	Body          string
	State         string
	Labels        []string
	Assignees     []string
	UpdatedAt     string
	IsPullRequest bool
}

// Fields returns the mergeable content of the issue.
func (i *RemoteIssue) Fields() merge.Fields {
	return merge.Fields{
		Title:     i.Title,
		Body:      i.Body,
		Labels:    i.Labels,
		Assignees: i.Assignees,
	}
}

// IssueCreate is the payload of an issue create call
type IssueCreate struct {
	Title     string
	Body      string
	Labels    []string
	Assignees []string
}

// IssueUpdate is a partial issue update; nil fields are not sent.
type IssueUpdate struct {
	Title     *string
	Body      *string
	Labels    *[]string
	Assignees *[]string
	State     *string
}

// RemoteDiscussion is a discussion as returned by the GraphQL API
type RemoteDiscussion struct {
	ID        string
	Number    int
	Title     string
	Body      string
	Category  string // category slug
	UpdatedAt string
	Comments  []Comment
}

// DiscussionCategory is a repository discussion category
type DiscussionCategory struct {
	ID   string
	Name string
	Slug string
}
