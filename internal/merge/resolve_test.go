package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeLabelsBothAdd(t *testing.T) {
	base := Fields{Title: "T", Labels: []string{"bug"}}
	local := Fields{Title: "T", Labels: []string{"bug", "x"}}
	remote := Fields{Title: "T", Labels: []string{"bug", "y"}}

	merged, conflicts := Merge(local, remote, base, false)
	assert.Equal(t, []string{"bug", "x", "y"}, merged.Labels)
	assert.False(t, conflicts)
}

func TestMergeRemoteOnlyTitle(t *testing.T) {
	base := Fields{Title: "A"}
	local := Fields{Title: "A"}
	remote := Fields{Title: "B"}

	assert.Equal(t, RemoteOnly[string]{Value: "B"}, Diff(local, remote, base).Title)

	merged, conflicts := Merge(local, remote, base, true)
	assert.Equal(t, "B", merged.Title)
	assert.False(t, conflicts)
}

func TestMergeConflictPolicy(t *testing.T) {
	base := Fields{Title: "A", Body: "same"}
	local := Fields{Title: "L", Body: "same"}
	remote := Fields{Title: "R", Body: "same"}

	assert.Equal(t, KindConflict, Diff(local, remote, base).Title.Kind())

	merged, conflicts := Merge(local, remote, base, true)
	assert.Equal(t, "L", merged.Title)
	assert.True(t, conflicts)

	merged, conflicts = Merge(local, remote, base, false)
	assert.Equal(t, "R", merged.Title)
	assert.True(t, conflicts)
}

func TestMergeBodyConflict(t *testing.T) {
	merged, diff := MergeWithDiff(
		Fields{Title: "T", Body: "mine"},
		Fields{Title: "T2", Body: "theirs"},
		Fields{Title: "T", Body: "orig"},
		false,
	)
	assert.Equal(t, "T2", merged.Title)
	assert.Equal(t, "theirs", merged.Body)
	assert.Equal(t, []string{"body"}, diff.Conflicts())
	assert.Equal(t, "title: remote, body: CONFLICT, labels: unchanged, assignees: unchanged", diff.Summary())
}

func TestMergeNeverFlagsCollectionConflicts(t *testing.T) {
	subsets := powerSet([]string{"a", "b"})
	for _, base := range subsets {
		for _, local := range subsets {
			for _, remote := range subsets {
				_, conflicts := Merge(
					Fields{Title: "t", Body: "b", Labels: local, Assignees: remote},
					Fields{Title: "t", Body: "b", Labels: remote, Assignees: local},
					Fields{Title: "t", Body: "b", Labels: base, Assignees: base},
					false,
				)
				assert.False(t, conflicts)
			}
		}
	}
}

func TestMergeRoundTrip(t *testing.T) {
	merged, _ := Merge(
		Fields{Title: "L", Body: "local body", Labels: []string{"bug", "x"}, Assignees: []string{"ann"}},
		Fields{Title: "R", Body: "base body", Labels: []string{"bug", "y"}, Assignees: []string{"bob"}},
		Fields{Title: "A", Body: "base body", Labels: []string{"bug"}, Assignees: []string{}},
		true,
	)

	f := merged.Fields()
	diff := Diff(f, f, f)
	assert.False(t, diff.HasChanges())
	for _, k := range []Kind{diff.Title.Kind(), diff.Body.Kind(), diff.Labels.Kind(), diff.Assignees.Kind()} {
		assert.Equal(t, KindUnchanged, k)
	}

	again, conflicts := Merge(f, f, f, false)
	assert.Equal(t, merged, again)
	assert.False(t, conflicts)
	assert.False(t, NeedsWrite(again, f))
}

func TestShouldUpdateAndNeedsWrite(t *testing.T) {
	remote := Fields{Title: "T", Body: "B", Labels: []string{"a"}, Assignees: []string{"x"}}

	same := MergedState{Title: "T", Body: "B", Labels: []string{"a"}, Assignees: []string{"x"}}
	assert.False(t, ShouldUpdate(same, remote))
	assert.False(t, NeedsWrite(same, remote))

	labelsOnly := MergedState{Title: "T", Body: "B", Labels: []string{"a", "b"}, Assignees: []string{"x"}}
	assert.False(t, ShouldUpdate(labelsOnly, remote))
	assert.True(t, NeedsWrite(labelsOnly, remote))

	titled := MergedState{Title: "T2", Body: "B", Labels: []string{"a"}, Assignees: []string{"x"}}
	assert.True(t, ShouldUpdate(titled, remote))
}

func TestUpdatePatch(t *testing.T) {
	remote := Fields{Title: "T", Body: "B", Labels: []string{"a"}, Assignees: []string{"x"}}

	p := UpdatePatch(MergedState{Title: "T", Body: "B", Labels: []string{"a"}, Assignees: []string{"x"}}, remote)
	assert.Equal(t, Patch{}, p)

	p = UpdatePatch(MergedState{Title: "T", Body: "B2", Labels: []string{"a", "b"}, Assignees: []string{"x"}}, remote)
	assert.Nil(t, p.Title)
	require.NotNil(t, p.Body)
	assert.Equal(t, "B2", *p.Body)
	assert.True(t, p.SetLabels)
	assert.Equal(t, []string{"a", "b"}, p.Labels)
	assert.False(t, p.SetAssignees)
}
