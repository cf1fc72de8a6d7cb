package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/wesm/ghsync/internal/merge"
	"github.com/wesm/ghsync/internal/models"
	"github.com/wesm/ghsync/internal/store"
)

// Push sends local records to the repository. New records are created;
// synced records are three-way merged against their last agreed state and
// the merged result is written to both sides.
func (s *Syncer) Push(ctx context.Context, owner, name string, st *store.Store, opts Options) (*Summary, error) {
	st.SetDryRun(opts.DryRun)
	summary := newSummary("push", opts.DryRun)
	run := newRunCache(s.discussions, owner, name)

	records := append([]*models.SyncRecord(nil), st.Records()...)
	log.Printf("Pushing %d records from %s to %s/%s", len(records), st.Dir(), owner, name)

	for _, rec := range records {
		var err error
		switch rec.Kind {
		case models.KindIdea:
			if opts.SkipDiscussions {
				continue
			}
			err = s.pushIdea(ctx, owner, name, st, run, rec, opts, summary)
		default:
			err = s.pushIssue(ctx, owner, name, st, rec, opts, summary)
		}
		if err != nil {
			s.progressError(rec, err)
			return summary, err
		}
	}
	return summary, nil
}

func (s *Syncer) pushIssue(ctx context.Context, owner, name string, st *store.Store, rec *models.SyncRecord, opts Options, summary *Summary) error {
	if rec.IsNew() {
		if opts.DryRun {
			s.finish(summary, opts, OutcomeCreated, rec, "")
			return nil
		}
		created, err := s.issues.CreateIssue(ctx, owner, name, models.IssueCreate{
			Title:     rec.Title,
			Body:      rec.Body,
			Labels:    merge.Normalize(rec.Labels),
			Assignees: merge.Normalize(rec.Assignees),
		})
		if err != nil {
			return fmt.Errorf("failed to create issue: %w", err)
		}
		rec.IssueNumber = created.Number
		rec.State = created.State
		rec.UpdatedAt = created.UpdatedAt
		rec.LastSynced = models.Snapshot(created.Fields(), created.UpdatedAt)
		if _, err := st.SaveRenamed(rec); err != nil {
			return err
		}
		s.finish(summary, opts, OutcomeCreated, rec, "")
		return nil
	}

	remote, err := s.issues.GetIssue(ctx, owner, name, rec.IssueNumber)
	if err != nil {
		return fmt.Errorf("failed to get issue #%d: %w", rec.IssueNumber, err)
	}
	remoteFields := remote.Fields()
	local, base := rec.Fields(), rec.BaseFields(remoteFields)
	merged, diff := merge.MergeWithDiff(local, remoteFields, base, opts.PreferLocal)
	s.reportConflicts(summary, opts, rec, diff)
	s.reportUnions(rec, local, remoteFields, base)

	wroteRemote := false
	state, updatedAt := remote.State, remote.UpdatedAt
	if merge.NeedsWrite(merged, remoteFields) {
		wroteRemote = true
		if !opts.DryRun {
			updated, err := s.issues.UpdateIssue(ctx, owner, name, rec.IssueNumber, issueUpdate(merge.UpdatePatch(merged, remoteFields)))
			if err != nil {
				return fmt.Errorf("failed to update issue #%d: %w", rec.IssueNumber, err)
			}
			state, updatedAt = updated.State, updated.UpdatedAt
		}
	}

	rec.Title = merged.Title
	rec.Body = merged.Body
	rec.Labels = merged.Labels
	rec.Assignees = merged.Assignees
	rec.State = state
	rec.UpdatedAt = updatedAt
	rec.LastSynced = models.Snapshot(merged.Fields(), updatedAt)

	wroteLocal, err := st.Save(rec)
	if err != nil {
		return err
	}
	s.finish(summary, opts, outcomeOf(wroteRemote, wroteLocal), rec, diff.Summary())
	return nil
}

func (s *Syncer) pushIdea(ctx context.Context, owner, name string, st *store.Store, run *runCache, rec *models.SyncRecord, opts Options, summary *Summary) error {
	if rec.IsNew() {
		category, err := run.category(ctx, rec.Category)
		if errors.Is(err, ErrCategoryNotFound) {
			s.finish(summary, opts, OutcomeSkipped, rec, err.Error())
			return nil
		}
		if err != nil {
			return err
		}
		if opts.DryRun {
			s.finish(summary, opts, OutcomeCreated, rec, "category "+category.Slug)
			return nil
		}
		repoID, err := run.repositoryID(ctx)
		if err != nil {
			return err
		}
		created, err := s.discussions.CreateDiscussion(ctx, repoID, category.ID, rec.Title, rec.Body)
		if err != nil {
			return fmt.Errorf("failed to create discussion: %w", err)
		}
		run.remember(created)

		rec.DiscussionID = created.ID
		rec.DiscussionNumber = created.Number
		rec.Category = category.Slug
		rec.UpdatedAt = created.UpdatedAt
		rec.LastSynced = models.Snapshot(ideaFields(created, rec.Labels), created.UpdatedAt)
		if _, err := st.SaveRenamed(rec); err != nil {
			return err
		}
		s.finish(summary, opts, OutcomeCreated, rec, "")
		return nil
	}

	if rec.DiscussionID == "" {
		id, err := s.discussions.GetDiscussionID(ctx, owner, name, rec.DiscussionNumber)
		if err != nil {
			return fmt.Errorf("failed to resolve discussion #%d: %w", rec.DiscussionNumber, err)
		}
		rec.DiscussionID = id
	}
	remote, err := run.discussion(ctx, rec.DiscussionID)
	if err != nil {
		return err
	}
	if remote == nil {
		s.finish(summary, opts, OutcomeSkipped, rec, "discussion no longer exists")
		return nil
	}

	// Labels are local-only: the same value on every side merges to itself.
	remoteFields := ideaFields(remote, rec.Labels)
	local := merge.Fields{Title: rec.Title, Body: rec.Body, Labels: rec.Labels}
	base := rec.BaseFields(remoteFields)
	base.Labels, base.Assignees = rec.Labels, nil
	merged, diff := merge.MergeWithDiff(local, remoteFields, base, opts.PreferLocal)
	s.reportConflicts(summary, opts, rec, diff)

	wroteRemote := false
	updatedAt, category := remote.UpdatedAt, remote.Category
	if merge.ShouldUpdate(merged, remoteFields) {
		wroteRemote = true
		if !opts.DryRun {
			patch := merge.UpdatePatch(merged, remoteFields)
			updated, err := s.discussions.UpdateDiscussion(ctx, rec.DiscussionID, patch.Title, patch.Body)
			if err != nil {
				return fmt.Errorf("failed to update discussion #%d: %w", rec.DiscussionNumber, err)
			}
			run.remember(updated)
			updatedAt = updated.UpdatedAt
			if updated.Category != "" {
				category = updated.Category
			}
		}
	}

	rec.Title = merged.Title
	rec.Body = merged.Body
	rec.Category = category
	rec.DiscussionNumber = remote.Number
	rec.UpdatedAt = updatedAt
	rec.LastSynced = models.Snapshot(merge.Fields{
		Title:  merged.Title,
		Body:   merged.Body,
		Labels: rec.Labels,
	}, updatedAt)

	wroteLocal, err := st.Save(rec)
	if err != nil {
		return err
	}
	s.finish(summary, opts, outcomeOf(wroteRemote, wroteLocal), rec, diff.Summary())
	return nil
}

func ideaFields(d *models.RemoteDiscussion, labels []string) merge.Fields {
	return merge.Fields{Title: d.Title, Body: d.Body, Labels: labels}
}

// issueUpdate converts a merge patch into the REST partial update.
func issueUpdate(p merge.Patch) models.IssueUpdate {
	upd := models.IssueUpdate{Title: p.Title, Body: p.Body}
	if p.SetLabels {
		labels := p.Labels
		upd.Labels = &labels
	}
	if p.SetAssignees {
		assignees := p.Assignees
		upd.Assignees = &assignees
	}
	return upd
}

func outcomeOf(wroteRemote, wroteLocal bool) Outcome {
	if wroteRemote || wroteLocal {
		return OutcomeUpdated
	}
	return OutcomeUnchanged
}

// finish tallies and prints one record's outcome. Unchanged records get no
// detail.
func (s *Syncer) finish(summary *Summary, opts Options, outcome Outcome, rec *models.SyncRecord, detail string) {
	summary.add(rec.Kind, outcome)
	if outcome == OutcomeUnchanged {
		detail = ""
	}
	s.progress(opts.DryRun, outcome, rec, detail)
}

func (s *Syncer) reportConflicts(summary *Summary, opts Options, rec *models.SyncRecord, diff merge.DiffResult) {
	fields := diff.Conflicts()
	if len(fields) == 0 {
		return
	}
	kept := "remote"
	if opts.PreferLocal {
		kept = "local"
	}
	summary.addConflict(rec.Kind, Conflict{Record: describe(rec), Fields: fields, Kept: kept})
	fmt.Fprintf(s.out, "%-12s %s %q: %s changed on both sides, kept %s\n",
		"conflict", describe(rec), rec.Title, strings.Join(fields, ", "), kept)
}

// reportUnions notes collections both sides changed. They are merged, not
// conflicts, but the result is neither side's list.
func (s *Syncer) reportUnions(rec *models.SyncRecord, local, remote, base merge.Fields) {
	var fields []string
	if merge.Diverged(local.Labels, remote.Labels, base.Labels) {
		fields = append(fields, "labels")
	}
	if merge.Diverged(local.Assignees, remote.Assignees, base.Assignees) {
		fields = append(fields, "assignees")
	}
	if len(fields) == 0 {
		return
	}
	fmt.Fprintf(s.out, "%-12s %s %q: %s changed on both sides, merged\n",
		"union", describe(rec), rec.Title, strings.Join(fields, ", "))
}
