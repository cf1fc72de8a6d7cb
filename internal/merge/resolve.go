package merge

// MergedState is the agreed content written to both sides after a merge.
type MergedState struct {
	Title     string
	Body      string
	Labels    []string
	Assignees []string
}

// Fields returns the merged state in the shape Diff consumes.
func (m MergedState) Fields() Fields {
	return Fields{
		Title:     m.Title,
		Body:      m.Body,
		Labels:    m.Labels,
		Assignees: m.Assignees,
	}
}

// textResolver picks the value for a scalar text field. Only a conflict
// needs the policy.
type textResolver struct {
	preferLocal bool
}

func (textResolver) Unchanged(c Unchanged[string]) string   { return c.Value }
func (textResolver) LocalOnly(c LocalOnly[string]) string   { return c.Value }
func (textResolver) RemoteOnly(c RemoteOnly[string]) string { return c.Value }
func (textResolver) BothSame(c BothSame[string]) string     { return c.Value }

func (r textResolver) Conflict(c Conflict[string]) string {
	if r.preferLocal {
		return c.Local
	}
	return c.Remote
}

// Merge resolves local and remote against base. Labels and assignees are
// union-merged; title and body conflicts go to local when preferLocal is set
// and to remote otherwise. The boolean reports a title or body conflict.
func Merge(local, remote, base Fields, preferLocal bool) (MergedState, bool) {
	merged, diff := MergeWithDiff(local, remote, base, preferLocal)
	return merged, diff.Title.Kind() == KindConflict || diff.Body.Kind() == KindConflict
}

// MergeWithDiff is Merge returning the per-field classification instead of
// the conflict flag.
func MergeWithDiff(local, remote, base Fields, preferLocal bool) (MergedState, DiffResult) {
	diff := Diff(local, remote, base)
	resolver := textResolver{preferLocal: preferLocal}

	merged := MergedState{
		Title:     Match[string, string](diff.Title, resolver),
		Body:      Match[string, string](diff.Body, resolver),
		Labels:    MergeLabels(local.Labels, remote.Labels, base.Labels),
		Assignees: MergeAssignees(local.Assignees, remote.Assignees, base.Assignees),
	}
	return merged, diff
}

// ShouldUpdate reports whether the merged title or body differs from the
// current remote.
func ShouldUpdate(merged MergedState, remote Fields) bool {
	return merged.Title != remote.Title || merged.Body != remote.Body
}

// NeedsWrite reports whether any merged field differs from the current
// remote, collections compared as sets.
func NeedsWrite(merged MergedState, remote Fields) bool {
	return ShouldUpdate(merged, remote) ||
		!EqualSets(merged.Labels, remote.Labels) ||
		!EqualSets(merged.Assignees, remote.Assignees)
}

// Patch is a partial update; nil fields are left as they are remotely.
type Patch struct {
	Title     *string
	Body      *string
	Labels    []string
	Assignees []string

	SetLabels    bool
	SetAssignees bool
}

// UpdatePatch returns the fields of merged that differ from remote.
func UpdatePatch(merged MergedState, remote Fields) Patch {
	var p Patch
	if merged.Title != remote.Title {
		title := merged.Title
		p.Title = &title
	}
	if merged.Body != remote.Body {
		body := merged.Body
		p.Body = &body
	}
	if !EqualSets(merged.Labels, remote.Labels) {
		p.Labels = merged.Labels
		p.SetLabels = true
	}
	if !EqualSets(merged.Assignees, remote.Assignees) {
		p.Assignees = merged.Assignees
		p.SetAssignees = true
	}
	return p
}
