package bind

import (
	"fmt"
	"slices"

	"github.com/mesh-intelligence/bindery/pkg/types"
)

// ChangeKind classifies the mutation reported by a Change.
type ChangeKind int

const (
	// ChangeSet is a scalar or link-to-one property write.
	ChangeSet ChangeKind = iota
	// ChangeInsert is a link-list insertion at Indices.
	ChangeInsert
	// ChangeRemove is a link-list removal covering Indices.
	ChangeRemove
	// ChangeReplace is a link-list replacement covering Indices; an
	// exchange of two entries reports both as one replacement.
	ChangeReplace
	// ChangeMove is a link-list move; Indices holds {from, to}.
	ChangeMove
	// ChangeClear empties a link list; Indices covers the prior entries.
	ChangeClear
	// ChangeInvalidate reports row deletion; Property is empty.
	ChangeInvalidate
)

var changeKindNames = map[ChangeKind]string{
	ChangeSet:        "set",
	ChangeInsert:     "insert",
	ChangeRemove:     "remove",
	ChangeReplace:    "replace",
	ChangeMove:       "move",
	ChangeClear:      "clear",
	ChangeInvalidate: "invalidate",
}

func (k ChangeKind) String() string {
	if name, ok := changeKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Change describes one logical mutation of one row. Collection changes
// carry the affected indices, computed before the mutation touches
// storage so they describe pre-mutation positions.
type Change struct {
	Schema   string
	Row      int64
	Property string
	Kind     ChangeKind
	Indices  []int
}

// Observer receives a matched WillChange/DidChange pair for every
// logical mutation of the observed row. DidChange fires even when the
// mutation fails, so pairs are always balanced. Callbacks run
// synchronously on the store's goroutine.
type Observer interface {
	WillChange(Change)
	DidChange(Change)
}

type obsKey struct {
	schema string
	row    int64
}

// Token is the deregistration handle returned by Observe.
type Token struct {
	st  *Store
	key obsKey
	obs Observer
}

// Cancel detaches the observer. The registration is dropped when the
// last observer of the row detaches. Safe to call more than once.
func (t *Token) Cancel() {
	if t.st == nil || t.st.closed {
		return
	}
	list := t.st.observers[t.key]
	for i, other := range list {
		if other == t {
			list = slices.Delete(list, i, i+1)
			break
		}
	}
	if len(list) == 0 {
		delete(t.st.observers, t.key)
	} else {
		t.st.observers[t.key] = list
	}
	t.st = nil
}

// Observe registers an observer for a managed row and returns its
// deregistration token. Observing a detached row fails with
// ErrInvalidatedAccess.
func (st *Store) Observe(schemaName string, row int64, obs Observer) (*Token, error) {
	if err := st.check(); err != nil {
		return nil, err
	}
	if _, err := st.schema(schemaName); err != nil {
		return nil, err
	}
	if !st.tables[schemaName].RowExists(row) {
		return nil, fmt.Errorf("%w: row %d of %q", types.ErrInvalidatedAccess, row, schemaName)
	}
	tok := &Token{st: st, key: obsKey{schemaName, row}, obs: obs}
	st.observers[tok.key] = append(st.observers[tok.key], tok)
	return tok, nil
}

// notify runs mutate inside a willChange/didChange pair for the change's
// row. Without a registered observer it degrades to calling mutate
// directly. didChange is deferred so the pair stays matched when mutate
// fails; the failure still propagates. The observer list is snapshot so
// an observer cancelling itself mid-callback does not skip its pair.
func (st *Store) notify(c Change, mutate func() error) error {
	toks := st.observers[obsKey{c.Schema, c.Row}]
	if len(toks) == 0 {
		return mutate()
	}
	snapshot := slices.Clone(toks)
	for _, tk := range snapshot {
		tk.obs.WillChange(c)
	}
	defer func() {
		for _, tk := range snapshot {
			tk.obs.DidChange(c)
		}
	}()
	return mutate()
}
