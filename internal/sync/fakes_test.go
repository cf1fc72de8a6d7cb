package sync

import (
	"context"
	"fmt"
	"sort"

	"github.com/wesm/ghsync/internal/models"
)

const (
	ts1 = "2024-05-01T10:00:00Z"
	ts2 = "2024-05-02T10:00:00Z"
	ts3 = "2024-05-03T10:00:00Z"
)

type issueUpdateCall struct {
	Number int
	Update models.IssueUpdate
}

// fakeIssues is an in-memory issue tracker.
type fakeIssues struct {
	issues       map[int]*models.RemoteIssue
	comments     map[int][]models.Comment
	nextNumber   int
	created      []models.IssueCreate
	updates      []issueUpdateCall
	commentCalls int
	listState    string

	// failOn makes a call fail; keys are "<op> <number or title>"
	failOn map[string]error
}

func newFakeIssues(issues ...*models.RemoteIssue) *fakeIssues {
	f := &fakeIssues{
		issues:     map[int]*models.RemoteIssue{},
		comments:   map[int][]models.Comment{},
		nextNumber: 100,
		failOn:     map[string]error{},
	}
	for _, i := range issues {
		f.issues[i.Number] = i
	}
	return f
}

func (f *fakeIssues) ListIssues(_ context.Context, _, _, state string) ([]*models.RemoteIssue, error) {
	f.listState = state
	numbers := make([]int, 0, len(f.issues))
	for n := range f.issues {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)
	out := make([]*models.RemoteIssue, 0, len(numbers))
	for _, n := range numbers {
		c := *f.issues[n]
		out = append(out, &c)
	}
	return out, nil
}

func (f *fakeIssues) GetIssue(_ context.Context, _, _ string, number int) (*models.RemoteIssue, error) {
	if err := f.failOn[fmt.Sprintf("get %d", number)]; err != nil {
		return nil, err
	}
	i, ok := f.issues[number]
	if !ok {
		return nil, fmt.Errorf("issue #%d not found", number)
	}
	c := *i
	return &c, nil
}

func (f *fakeIssues) CreateIssue(_ context.Context, _, _ string, req models.IssueCreate) (*models.RemoteIssue, error) {
	if err := f.failOn["create "+req.Title]; err != nil {
		return nil, err
	}
	f.created = append(f.created, req)
	issue := &models.RemoteIssue{
		Number:    f.nextNumber,
		Title:     req.Title,
		Body:      req.Body,
		State:     "open",
		Labels:    req.Labels,
		Assignees: req.Assignees,
		UpdatedAt: ts3,
	}
	f.nextNumber++
	f.issues[issue.Number] = issue
	c := *issue
	return &c, nil
}

func (f *fakeIssues) UpdateIssue(_ context.Context, _, _ string, number int, upd models.IssueUpdate) (*models.RemoteIssue, error) {
	if err := f.failOn[fmt.Sprintf("update %d", number)]; err != nil {
		return nil, err
	}
	f.updates = append(f.updates, issueUpdateCall{Number: number, Update: upd})
	i, ok := f.issues[number]
	if !ok {
		return nil, fmt.Errorf("issue #%d not found", number)
	}
	if upd.Title != nil {
		i.Title = *upd.Title
	}
	if upd.Body != nil {
		i.Body = *upd.Body
	}
	if upd.Labels != nil {
		i.Labels = *upd.Labels
	}
	if upd.Assignees != nil {
		i.Assignees = *upd.Assignees
	}
	i.UpdatedAt = ts3
	c := *i
	return &c, nil
}

func (f *fakeIssues) ListIssueComments(_ context.Context, _, _ string, number int) ([]models.Comment, error) {
	f.commentCalls++
	if err := f.failOn[fmt.Sprintf("comments %d", number)]; err != nil {
		return nil, err
	}
	return f.comments[number], nil
}

type discussionUpdateCall struct {
	ID    string
	Title *string
	Body  *string
}

// fakeDiscussions is an in-memory discussion board.
type fakeDiscussions struct {
	discussions   []*models.RemoteDiscussion
	categories    []models.DiscussionCategory
	nextNumber    int
	created       []string
	updates       []discussionUpdateCall
	listCalls     int
	categoryCalls int
	repoIDCalls   int
	idCalls       int

	// failOn makes a call fail; keys are "list", "create <title>" and
	// "update <id>"
	failOn map[string]error
}

func newFakeDiscussions(discussions ...*models.RemoteDiscussion) *fakeDiscussions {
	return &fakeDiscussions{
		discussions: discussions,
		categories: []models.DiscussionCategory{
			{ID: "C_1", Name: "Ideas", Slug: "ideas"},
			{ID: "C_2", Name: "Q&A", Slug: "q-a"},
		},
		nextNumber: 50,
		failOn:     map[string]error{},
	}
}

func (f *fakeDiscussions) find(id string) *models.RemoteDiscussion {
	for _, d := range f.discussions {
		if d.ID == id {
			return d
		}
	}
	return nil
}

func (f *fakeDiscussions) ListDiscussions(context.Context, string, string) ([]*models.RemoteDiscussion, error) {
	f.listCalls++
	if err := f.failOn["list"]; err != nil {
		return nil, err
	}
	out := make([]*models.RemoteDiscussion, 0, len(f.discussions))
	for _, d := range f.discussions {
		c := *d
		out = append(out, &c)
	}
	return out, nil
}

func (f *fakeDiscussions) GetDiscussionID(_ context.Context, _, _ string, number int) (string, error) {
	f.idCalls++
	for _, d := range f.discussions {
		if d.Number == number {
			return d.ID, nil
		}
	}
	return "", fmt.Errorf("discussion #%d not found", number)
}

func (f *fakeDiscussions) CreateDiscussion(_ context.Context, repoID, categoryID, title, body string) (*models.RemoteDiscussion, error) {
	if repoID != "R_1" {
		return nil, fmt.Errorf("unexpected repository id %q", repoID)
	}
	if err := f.failOn["create "+title]; err != nil {
		return nil, err
	}
	slug := ""
	for _, c := range f.categories {
		if c.ID == categoryID {
			slug = c.Slug
		}
	}
	f.created = append(f.created, title)
	d := &models.RemoteDiscussion{
		ID:        fmt.Sprintf("D_%d", f.nextNumber),
		Number:    f.nextNumber,
		Title:     title,
		Body:      body,
		Category:  slug,
		UpdatedAt: ts3,
	}
	f.nextNumber++
	f.discussions = append(f.discussions, d)
	c := *d
	return &c, nil
}

func (f *fakeDiscussions) UpdateDiscussion(_ context.Context, id string, title, body *string) (*models.RemoteDiscussion, error) {
	if err := f.failOn["update "+id]; err != nil {
		return nil, err
	}
	f.updates = append(f.updates, discussionUpdateCall{ID: id, Title: title, Body: body})
	d := f.find(id)
	if d == nil {
		return nil, fmt.Errorf("discussion %s not found", id)
	}
	if title != nil {
		d.Title = *title
	}
	if body != nil {
		d.Body = *body
	}
	d.UpdatedAt = ts3
	c := *d
	return &c, nil
}

func (f *fakeDiscussions) ListDiscussionCategories(context.Context, string, string) ([]models.DiscussionCategory, error) {
	f.categoryCalls++
	return f.categories, nil
}

func (f *fakeDiscussions) GetRepositoryID(context.Context, string, string) (string, error) {
	f.repoIDCalls++
	return "R_1", nil
}
