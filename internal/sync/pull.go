package sync

import (
	"context"
	"fmt"
	"log"

	"github.com/wesm/ghsync/internal/merge"
	"github.com/wesm/ghsync/internal/models"
	"github.com/wesm/ghsync/internal/store"
)

// Pull mirrors remote issues and discussions into st. Records edited locally
// since their last sync are left untouched.
func (s *Syncer) Pull(ctx context.Context, owner, name string, st *store.Store, opts Options) (*Summary, error) {
	st.SetDryRun(opts.DryRun)
	summary := newSummary("pull", opts.DryRun)

	state := opts.State
	if state == "" {
		state = "all"
	}
	issues, err := s.issues.ListIssues(ctx, owner, name, state)
	if err != nil {
		return summary, fmt.Errorf("failed to list issues: %w", err)
	}
	log.Printf("Pulling %d issues from %s/%s into %s", len(issues), owner, name, st.Dir())

	for _, issue := range issues {
		if issue.IsPullRequest {
			continue
		}
		outcome, rec, detail, err := s.pullIssue(ctx, owner, name, st, issue)
		if err != nil {
			return summary, err
		}
		summary.add(models.KindIssue, outcome)
		s.progress(opts.DryRun, outcome, rec, detail)
	}

	if opts.SkipDiscussions {
		return summary, nil
	}

	discussions, err := s.discussions.ListDiscussions(ctx, owner, name)
	if err != nil {
		return summary, fmt.Errorf("failed to list discussions: %w", err)
	}
	for _, d := range discussions {
		outcome, rec, detail, err := s.pullDiscussion(st, d)
		if err != nil {
			return summary, err
		}
		summary.add(models.KindIdea, outcome)
		s.progress(opts.DryRun, outcome, rec, detail)
	}

	return summary, nil
}

func (s *Syncer) pullIssue(ctx context.Context, owner, name string, st *store.Store, issue *models.RemoteIssue) (Outcome, *models.SyncRecord, string, error) {
	rec, err := st.FindByIssueNumber(issue.Number)
	if err == nil {
		if rec.DivergedFromBase() {
			return OutcomeSkipped, rec, "local changes, push first", nil
		}
		if issueUpToDate(rec, issue) {
			return OutcomeUnchanged, rec, "", nil
		}
		comments, err := s.issues.ListIssueComments(ctx, owner, name, issue.Number)
		if err != nil {
			return "", rec, "", fmt.Errorf("failed to list comments for issue #%d: %w", issue.Number, err)
		}
		applyIssue(rec, issue, comments)
		changed, err := st.Save(rec)
		if err != nil {
			return "", rec, "", err
		}
		if !changed {
			return OutcomeUnchanged, rec, "", nil
		}
		return OutcomeUpdated, rec, "", nil
	}

	comments, err := s.issues.ListIssueComments(ctx, owner, name, issue.Number)
	if err != nil {
		return "", nil, "", fmt.Errorf("failed to list comments for issue #%d: %w", issue.Number, err)
	}

	if rec, err := st.FindByTitle(models.KindIssue, issue.Title); err == nil {
		// Keep the local content; the remote state becomes the base so the
		// next push sends whatever the draft added.
		rec.IssueNumber = issue.Number
		rec.State = issue.State
		rec.UpdatedAt = issue.UpdatedAt
		rec.Comments = comments
		rec.LastSynced = models.Snapshot(issue.Fields(), issue.UpdatedAt)
		if _, err := st.SaveRenamed(rec); err != nil {
			return "", rec, "", err
		}
		return OutcomeUpdated, rec, "linked local draft", nil
	}

	rec = &models.SyncRecord{Kind: models.KindIssue}
	applyIssue(rec, issue, comments)
	if _, err := st.Save(rec); err != nil {
		return "", rec, "", err
	}
	st.Add(rec)
	return OutcomeCreated, rec, "", nil
}

// issueUpToDate reports whether rec already mirrors issue, so comments need
// not be fetched.
func issueUpToDate(rec *models.SyncRecord, issue *models.RemoteIssue) bool {
	if rec.LastSynced == nil || rec.LastSynced.Assignees == nil {
		return false
	}
	return rec.UpdatedAt == issue.UpdatedAt &&
		rec.LastSynced.UpdatedAt == issue.UpdatedAt &&
		rec.Title == issue.Title &&
		rec.Body == issue.Body &&
		rec.State == issue.State &&
		merge.EqualSets(rec.Labels, issue.Labels) &&
		merge.EqualSets(rec.Assignees, issue.Assignees)
}

func applyIssue(rec *models.SyncRecord, issue *models.RemoteIssue, comments []models.Comment) {
	rec.Title = issue.Title
	rec.Body = issue.Body
	rec.Labels = merge.Normalize(issue.Labels)
	rec.Assignees = merge.Normalize(issue.Assignees)
	rec.State = issue.State
	rec.IssueNumber = issue.Number
	rec.UpdatedAt = issue.UpdatedAt
	rec.Comments = comments
	rec.LastSynced = models.Snapshot(rec.Fields(), issue.UpdatedAt)
}

func (s *Syncer) pullDiscussion(st *store.Store, d *models.RemoteDiscussion) (Outcome, *models.SyncRecord, string, error) {
	rec, err := st.FindByDiscussionID(d.ID)
	if err != nil {
		rec, err = st.FindByDiscussionNumber(d.Number)
	}
	if err == nil {
		if rec.DivergedFromBase() {
			return OutcomeSkipped, rec, "local changes, push first", nil
		}
		applyDiscussion(rec, d)
		changed, err := st.Save(rec)
		if err != nil {
			return "", rec, "", err
		}
		if !changed {
			return OutcomeUnchanged, rec, "", nil
		}
		return OutcomeUpdated, rec, "", nil
	}

	if rec, err := st.FindByTitle(models.KindIdea, d.Title); err == nil {
		rec.DiscussionID = d.ID
		rec.DiscussionNumber = d.Number
		rec.Category = d.Category
		rec.UpdatedAt = d.UpdatedAt
		rec.Comments = d.Comments
		rec.LastSynced = models.Snapshot(merge.Fields{
			Title:  d.Title,
			Body:   d.Body,
			Labels: rec.Labels,
		}, d.UpdatedAt)
		if _, err := st.SaveRenamed(rec); err != nil {
			return "", rec, "", err
		}
		return OutcomeUpdated, rec, "linked local draft", nil
	}

	rec = &models.SyncRecord{Kind: models.KindIdea, Labels: []string{}}
	applyDiscussion(rec, d)
	if _, err := st.Save(rec); err != nil {
		return "", rec, "", err
	}
	st.Add(rec)
	return OutcomeCreated, rec, "", nil
}

// applyDiscussion copies remote state into rec. Labels have no remote
// counterpart and are kept.
func applyDiscussion(rec *models.SyncRecord, d *models.RemoteDiscussion) {
	rec.Title = d.Title
	rec.Body = d.Body
	rec.Category = d.Category
	rec.DiscussionID = d.ID
	rec.DiscussionNumber = d.Number
	rec.UpdatedAt = d.UpdatedAt
	rec.Comments = d.Comments
	rec.LastSynced = models.Snapshot(merge.Fields{
		Title:  d.Title,
		Body:   d.Body,
		Labels: rec.Labels,
	}, d.UpdatedAt)
}
