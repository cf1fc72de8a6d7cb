package merge

import "strings"

// Fields is the mergeable content of a record as seen by one side.
type Fields struct {
	Title     string
	Body      string
	Labels    []string
	Assignees []string
}

// DiffResult holds the classification of every mergeable field.
type DiffResult struct {
	Title     FieldChange[string]
	Body      FieldChange[string]
	Labels    FieldChange[[]string]
	Assignees FieldChange[[]string]
}

// Diff classifies each field of local and remote against base. Collections
// compare as sets.
func Diff(local, remote, base Fields) DiffResult {
	return DiffResult{
		Title:     Classify(local.Title, remote.Title, base.Title),
		Body:      Classify(local.Body, remote.Body, base.Body),
		Labels:    ClassifyFunc(local.Labels, remote.Labels, base.Labels, EqualSets[string]),
		Assignees: ClassifyFunc(local.Assignees, remote.Assignees, base.Assignees, EqualSets[string]),
	}
}

type namedKind struct {
	name string
	kind Kind
}

func (d DiffResult) kinds() []namedKind {
	return []namedKind{
		{"title", d.Title.Kind()},
		{"body", d.Body.Kind()},
		{"labels", d.Labels.Kind()},
		{"assignees", d.Assignees.Kind()},
	}
}

// HasChanges reports whether any field moved on either side.
func (d DiffResult) HasChanges() bool {
	for _, f := range d.kinds() {
		if f.kind != KindUnchanged {
			return true
		}
	}
	return false
}

// HasConflicts reports whether any field changed differently on both sides.
func (d DiffResult) HasConflicts() bool {
	return len(d.Conflicts()) > 0
}

// Conflicts returns the names of conflicting fields in field order.
func (d DiffResult) Conflicts() []string {
	var names []string
	for _, f := range d.kinds() {
		if f.kind == KindConflict {
			names = append(names, f.name)
		}
	}
	return names
}

// Summary renders the classification of every field, e.g.
// "title: remote, body: unchanged, labels: CONFLICT, assignees: unchanged".
func (d DiffResult) Summary() string {
	parts := make([]string, 0, 4)
	for _, f := range d.kinds() {
		parts = append(parts, f.name+": "+f.kind.String())
	}
	return strings.Join(parts, ", ")
}
