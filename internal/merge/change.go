// Package merge implements the three-way diff, union merge and resolution
// used by push to reconcile a local record with its remote counterpart.
package merge

import "fmt"

// Kind names the variant of a FieldChange.
type Kind int

const (
	KindUnchanged Kind = iota
	KindLocalOnly
	KindRemoteOnly
	KindBothSame
	KindConflict
)

// String returns the label used in diff summaries.
func (k Kind) String() string {
	switch k {
	case KindUnchanged:
		return "unchanged"
	case KindLocalOnly:
		return "local"
	case KindRemoteOnly:
		return "remote"
	case KindBothSame:
		return "both"
	case KindConflict:
		return "CONFLICT"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// FieldChange is the classification of one field given its local, remote
// and base values. The interface is sealed: the only implementations are
// Unchanged, LocalOnly, RemoteOnly, BothSame and Conflict.
type FieldChange[T any] interface {
	Kind() Kind
	fieldChange()
}

// Unchanged means neither side moved away from base. Value is the base value.
type Unchanged[T any] struct{ Value T }

// LocalOnly means only the local side changed.
type LocalOnly[T any] struct{ Value T }

// RemoteOnly means only the remote side changed.
type RemoteOnly[T any] struct{ Value T }

// BothSame means both sides changed to the same value.
type BothSame[T any] struct{ Value T }

// Conflict means both sides changed to different values.
type Conflict[T any] struct {
	Local  T
	Remote T
	Base   T
}

func (Unchanged[T]) Kind() Kind  { return KindUnchanged }
func (LocalOnly[T]) Kind() Kind  { return KindLocalOnly }
func (RemoteOnly[T]) Kind() Kind { return KindRemoteOnly }
func (BothSame[T]) Kind() Kind   { return KindBothSame }
func (Conflict[T]) Kind() Kind   { return KindConflict }

func (Unchanged[T]) fieldChange()  {}
func (LocalOnly[T]) fieldChange()  {}
func (RemoteOnly[T]) fieldChange() {}
func (BothSame[T]) fieldChange()   {}
func (Conflict[T]) fieldChange()   {}

// Visitor handles every FieldChange variant. Adding a variant adds a method
// here, which breaks every visitor until it handles the new case.
type Visitor[T, R any] interface {
	Unchanged(c Unchanged[T]) R
	LocalOnly(c LocalOnly[T]) R
	RemoteOnly(c RemoteOnly[T]) R
	BothSame(c BothSame[T]) R
	Conflict(c Conflict[T]) R
}

// Match dispatches c to the visitor method for its variant.
func Match[T, R any](c FieldChange[T], v Visitor[T, R]) R {
	switch c := c.(type) {
	case Unchanged[T]:
		return v.Unchanged(c)
	case LocalOnly[T]:
		return v.LocalOnly(c)
	case RemoteOnly[T]:
		return v.RemoteOnly(c)
	case BothSame[T]:
		return v.BothSame(c)
	case Conflict[T]:
		return v.Conflict(c)
	default:
		panic(fmt.Sprintf("merge: unknown field change %T", c))
	}
}

// Classify compares local and remote against base with ==.
func Classify[T comparable](local, remote, base T) FieldChange[T] {
	return ClassifyFunc(local, remote, base, func(a, b T) bool { return a == b })
}

// ClassifyFunc is Classify for values that need a custom equality, such as
// label sets.
func ClassifyFunc[T any](local, remote, base T, equal func(a, b T) bool) FieldChange[T] {
	localChanged := !equal(local, base)
	remoteChanged := !equal(remote, base)

	switch {
	case !localChanged && !remoteChanged:
		return Unchanged[T]{Value: base}
	case localChanged && !remoteChanged:
		return LocalOnly[T]{Value: local}
	case !localChanged && remoteChanged:
		return RemoteOnly[T]{Value: remote}
	case equal(local, remote):
		return BothSame[T]{Value: local}
	default:
		return Conflict[T]{Local: local, Remote: remote, Base: base}
	}
}
