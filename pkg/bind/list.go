package bind

import (
	"fmt"

	"github.com/mesh-intelligence/bindery/pkg/types"
)

// List is the mutable view of one link-to-many property: an ordered
// sequence of row references stored at one column of one row. Lists are
// transient and re-creatable; they hold no state beyond the binding and
// stay valid exactly as long as their row is attached.
//
// Every mutation resolves its value through link coercion (unmanaged
// objects are promoted into the store) and runs inside one
// willChange/didChange pair whose indices are computed before storage is
// touched.
type List struct {
	st     *Store
	schema *types.Schema // owning schema
	prop   *types.Property
	target *types.Schema
	row    int64
}

// Property returns the name of the bound link-to-many property.
func (l *List) Property() string { return l.prop.Name }

func (l *List) engineList() types.LinkList {
	return l.st.tables[l.schema.Name()].LinkList(l.row, l.prop.Column)
}

func (l *List) checkRead() error {
	if err := l.st.check(); err != nil {
		return err
	}
	if !l.st.tables[l.schema.Name()].RowExists(l.row) {
		return fmt.Errorf("%w: property %q of %q", types.ErrInvalidatedAccess, l.prop.Name, l.schema.Name())
	}
	return nil
}

func (l *List) checkMutate() error {
	if err := l.checkRead(); err != nil {
		return err
	}
	return l.st.checkWrite()
}

func (l *List) outOfRange(index, size int) error {
	return fmt.Errorf("%w: index %d in list %q of %q (size %d)",
		types.ErrIndexOutOfRange, index, l.prop.Name, l.schema.Name(), size)
}

// resolve coerces a list element to a target row, rejecting null.
func (l *List) resolve(v any) (int64, error) {
	ctx := newCreateCtx(ModePromote, false)
	target, null, err := l.st.resolveLink(l.schema.Name(), l.prop.Name, l.target, v, ctx)
	if err != nil {
		return 0, err
	}
	if null {
		return 0, fmt.Errorf("%w: null element in list %q of %q",
			types.ErrTypeMismatch, l.prop.Name, l.schema.Name())
	}
	return target, nil
}

func (l *List) wrap(err error) error {
	return wrapAccess(l.schema.Name(), l.prop.Name, err)
}

func (l *List) change(kind ChangeKind, indices []int) Change {
	return Change{
		Schema:   l.schema.Name(),
		Row:      l.row,
		Property: l.prop.Name,
		Kind:     kind,
		Indices:  indices,
	}
}

// Size returns the number of entries.
func (l *List) Size() (int, error) {
	if err := l.checkRead(); err != nil {
		return 0, err
	}
	n, err := l.engineList().Size()
	return n, l.wrap(err)
}

// Get returns the managed object at index.
func (l *List) Get(index int) (*Object, error) {
	if err := l.checkRead(); err != nil {
		return nil, err
	}
	row, err := l.engineList().Get(index)
	if err != nil {
		return nil, l.wrap(err)
	}
	return &Object{schema: l.target, store: l.st, row: row}, nil
}

// Objects returns every entry as a managed object.
func (l *List) Objects() ([]*Object, error) {
	n, err := l.Size()
	if err != nil {
		return nil, err
	}
	out := make([]*Object, n)
	for i := range n {
		out[i], err = l.Get(i)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Add appends a value; equivalent to Insert at Size.
func (l *List) Add(v any) error {
	if err := l.checkMutate(); err != nil {
		return err
	}
	n, err := l.engineList().Size()
	if err != nil {
		return l.wrap(err)
	}
	return l.insertAt(v, n)
}

// Insert places a value at index, valid for [0, size]. An out-of-range
// index fails before any coercion, leaving the collection unchanged.
func (l *List) Insert(v any, index int) error {
	if err := l.checkMutate(); err != nil {
		return err
	}
	n, err := l.engineList().Size()
	if err != nil {
		return l.wrap(err)
	}
	if index < 0 || index > n {
		return l.outOfRange(index, n)
	}
	return l.insertAt(v, index)
}

func (l *List) insertAt(v any, index int) error {
	target, err := l.resolve(v)
	if err != nil {
		return err
	}
	return l.st.notify(l.change(ChangeInsert, []int{index}), func() error {
		return l.wrap(l.engineList().Insert(index, target))
	})
}

// Remove erases the entry at index, valid for [0, size).
func (l *List) Remove(index int) error {
	if err := l.checkMutate(); err != nil {
		return err
	}
	n, err := l.engineList().Size()
	if err != nil {
		return l.wrap(err)
	}
	if index < 0 || index >= n {
		return l.outOfRange(index, n)
	}
	return l.st.notify(l.change(ChangeRemove, []int{index}), func() error {
		return l.wrap(l.engineList().Erase(index))
	})
}

// RemoveRange erases the entries in [from, to), one notification pair
// covering the whole range.
func (l *List) RemoveRange(from, to int) error {
	if err := l.checkMutate(); err != nil {
		return err
	}
	n, err := l.engineList().Size()
	if err != nil {
		return l.wrap(err)
	}
	if from < 0 || to < from || to > n {
		return fmt.Errorf("%w: range [%d, %d) in list %q of %q (size %d)",
			types.ErrIndexOutOfRange, from, to, l.prop.Name, l.schema.Name(), n)
	}
	if from == to {
		return nil
	}
	return l.st.notify(l.change(ChangeRemove, indexRange(from, to)), func() error {
		for i := to - 1; i >= from; i-- {
			if err := l.engineList().Erase(i); err != nil {
				return l.wrap(err)
			}
		}
		return nil
	})
}

// RemoveAll empties the list.
func (l *List) RemoveAll() error {
	if err := l.checkMutate(); err != nil {
		return err
	}
	n, err := l.engineList().Size()
	if err != nil {
		return l.wrap(err)
	}
	return l.st.notify(l.change(ChangeClear, indexRange(0, n)), func() error {
		return l.wrap(l.engineList().Clear())
	})
}

// Replace substitutes the entry at index, reported as a single
// replacement rather than a remove plus insert.
func (l *List) Replace(index int, v any) error {
	if err := l.checkMutate(); err != nil {
		return err
	}
	n, err := l.engineList().Size()
	if err != nil {
		return l.wrap(err)
	}
	if index < 0 || index >= n {
		return l.outOfRange(index, n)
	}
	target, err := l.resolve(v)
	if err != nil {
		return err
	}
	return l.st.notify(l.change(ChangeReplace, []int{index}), func() error {
		return l.wrap(l.engineList().Set(index, target))
	})
}

// Exchange swaps the entries at i and j, reported as one replacement
// covering both indices.
func (l *List) Exchange(i, j int) error {
	if err := l.checkMutate(); err != nil {
		return err
	}
	n, err := l.engineList().Size()
	if err != nil {
		return l.wrap(err)
	}
	if i < 0 || i >= n {
		return l.outOfRange(i, n)
	}
	if j < 0 || j >= n {
		return l.outOfRange(j, n)
	}
	if i == j {
		return nil
	}
	return l.st.notify(l.change(ChangeReplace, []int{i, j}), func() error {
		return l.wrap(l.engineList().Swap(i, j))
	})
}

// Move relocates the entry at from to position to.
func (l *List) Move(from, to int) error {
	if err := l.checkMutate(); err != nil {
		return err
	}
	n, err := l.engineList().Size()
	if err != nil {
		return l.wrap(err)
	}
	if from < 0 || from >= n {
		return l.outOfRange(from, n)
	}
	if to < 0 || to >= n {
		return l.outOfRange(to, n)
	}
	if from == to {
		return nil
	}
	return l.st.notify(l.change(ChangeMove, []int{from, to}), func() error {
		target, err := l.engineList().Get(from)
		if err != nil {
			return l.wrap(err)
		}
		if err := l.engineList().Erase(from); err != nil {
			return l.wrap(err)
		}
		return l.wrap(l.engineList().Insert(to, target))
	})
}

// SetAll replaces every entry with the same coerced value, one
// notification pair covering all indices.
func (l *List) SetAll(v any) error {
	if err := l.checkMutate(); err != nil {
		return err
	}
	n, err := l.engineList().Size()
	if err != nil {
		return l.wrap(err)
	}
	if n == 0 {
		return nil
	}
	target, err := l.resolve(v)
	if err != nil {
		return err
	}
	return l.st.notify(l.change(ChangeReplace, indexRange(0, n)), func() error {
		for i := range n {
			if err := l.engineList().Set(i, target); err != nil {
				return l.wrap(err)
			}
		}
		return nil
	})
}

// ReplaceAll assigns the whole collection from a foreign sequence.
// Every element is resolved before storage is touched, so a coercion
// failure leaves the collection unchanged rather than partially
// replaced.
func (l *List) ReplaceAll(values []any) error {
	if err := l.checkMutate(); err != nil {
		return err
	}
	targets := make([]int64, 0, len(values))
	for _, v := range values {
		target, err := l.resolve(v)
		if err != nil {
			return err
		}
		targets = append(targets, target)
	}
	return l.st.replaceList(l.schema, l.row, l.prop, targets)
}
