package sync

import (
	"fmt"
	"strings"

	"github.com/wesm/ghsync/internal/models"
)

// Outcome is what happened to one record during a run.
type Outcome string

const (
	OutcomeCreated   Outcome = "created"
	OutcomeUpdated   Outcome = "updated"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeSkipped   Outcome = "skipped"
)

// Tally counts outcomes for one record kind.
type Tally struct {
	Created   int
	Updated   int
	Unchanged int
	Skipped   int
	Conflicts int
}

// Total returns the number of records processed.
func (t Tally) Total() int {
	return t.Created + t.Updated + t.Unchanged + t.Skipped
}

// Conflict describes a title or body that changed differently on both sides
// and how it was resolved.
type Conflict struct {
	Record string   // e.g. "issue #12"
	Fields []string // conflicting field names
	Kept   string   // "local" or "remote"
}

// Summary is the result of one pull or push run.
type Summary struct {
	Direction string // "pull" or "push"
	DryRun    bool
	Issues    Tally
	Ideas     Tally
	Conflicts []Conflict
}

func newSummary(direction string, dryRun bool) *Summary {
	return &Summary{Direction: direction, DryRun: dryRun}
}

func (s *Summary) tally(kind models.ItemKind) *Tally {
	if kind == models.KindIdea {
		return &s.Ideas
	}
	return &s.Issues
}

func (s *Summary) add(kind models.ItemKind, outcome Outcome) {
	t := s.tally(kind)
	switch outcome {
	case OutcomeCreated:
		t.Created++
	case OutcomeUpdated:
		t.Updated++
	case OutcomeUnchanged:
		t.Unchanged++
	case OutcomeSkipped:
		t.Skipped++
	}
}

func (s *Summary) addConflict(kind models.ItemKind, c Conflict) {
	s.tally(kind).Conflicts++
	s.Conflicts = append(s.Conflicts, c)
}

// String renders the per-kind counts, e.g.
// "push: issues 1 created, 2 updated, 5 unchanged, 0 skipped; ideas ...".
func (s *Summary) String() string {
	var b strings.Builder
	b.WriteString(s.Direction)
	if s.DryRun {
		b.WriteString(" (dry run)")
	}
	b.WriteString(": ")
	parts := []string{
		formatTally("issues", s.Issues),
		formatTally("ideas", s.Ideas),
	}
	b.WriteString(strings.Join(parts, "; "))
	return b.String()
}

func formatTally(label string, t Tally) string {
	out := fmt.Sprintf("%s %d created, %d updated, %d unchanged, %d skipped",
		label, t.Created, t.Updated, t.Unchanged, t.Skipped)
	if t.Conflicts > 0 {
		out += fmt.Sprintf(", %d conflicts", t.Conflicts)
	}
	return out
}
