package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name                string
		local, remote, base string
		want                FieldChange[string]
	}{
		{"unchanged", "A", "A", "A", Unchanged[string]{Value: "A"}},
		{"local only", "L", "A", "A", LocalOnly[string]{Value: "L"}},
		{"remote only", "A", "B", "A", RemoteOnly[string]{Value: "B"}},
		{"both same", "X", "X", "A", BothSame[string]{Value: "X"}},
		{"conflict", "L", "R", "A", Conflict[string]{Local: "L", Remote: "R", Base: "A"}},
		{"empty base", "L", "", "", LocalOnly[string]{Value: "L"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.local, tt.remote, tt.base))
		})
	}
}

// Every triple over a small alphabet lands in exactly one variant, and
// Unchanged holds exactly when all three values agree.
func TestClassifyTotality(t *testing.T) {
	values := []string{"a", "b", "c"}
	for _, local := range values {
		for _, remote := range values {
			for _, base := range values {
				c := Classify(local, remote, base)

				matched := 0
				switch c.(type) {
				case Unchanged[string]:
					matched++
				case LocalOnly[string]:
					matched++
				case RemoteOnly[string]:
					matched++
				case BothSame[string]:
					matched++
				case Conflict[string]:
					matched++
				}
				assert.Equal(t, 1, matched, "local=%s remote=%s base=%s", local, remote, base)

				allEqual := local == base && remote == base
				assert.Equal(t, allEqual, c.Kind() == KindUnchanged,
					"local=%s remote=%s base=%s", local, remote, base)
			}
		}
	}
}

func TestClassifyFuncSets(t *testing.T) {
	c := ClassifyFunc([]string{"b", "a"}, []string{"a", "b"}, []string{"a", "b"}, EqualSets[string])
	assert.Equal(t, KindUnchanged, c.Kind())

	c = ClassifyFunc([]string{"a", "x"}, []string{"a", "y"}, []string{"a"}, EqualSets[string])
	assert.Equal(t, KindConflict, c.Kind())
}

type kindCounter struct{}

func (kindCounter) Unchanged(Unchanged[int]) string   { return "unchanged" }
func (kindCounter) LocalOnly(LocalOnly[int]) string   { return "local" }
func (kindCounter) RemoteOnly(RemoteOnly[int]) string { return "remote" }
func (kindCounter) BothSame(BothSame[int]) string     { return "both" }
func (kindCounter) Conflict(Conflict[int]) string     { return "CONFLICT" }

func TestMatchUsesKindNames(t *testing.T) {
	cases := []FieldChange[int]{
		Classify(1, 1, 1),
		Classify(2, 1, 1),
		Classify(1, 2, 1),
		Classify(2, 2, 1),
		Classify(2, 3, 1),
	}
	for _, c := range cases {
		assert.Equal(t, c.Kind().String(), Match[int, string](c, kindCounter{}))
	}
}
