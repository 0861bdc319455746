package bind

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/bindery/pkg/types"
)

// Store pairs a storage engine with a frozen schema registry and owns
// the synthesized accessors and observation state for one open store.
// A Store is confined to the goroutine that opened it: every access is
// checked and fails with ErrWrongThread from anywhere else.
type Store struct {
	id        string
	engine    types.Engine
	registry  *types.Registry
	tables    map[string]types.Table
	bindings  map[string]*bindings
	observers map[obsKey][]*Token
	owner     uint64
	closed    bool
}

// Open freezes the registry, resolves one engine table per schema, and
// synthesizes the accessor dispatch tables. The calling goroutine
// becomes the store's owner.
func Open(engine types.Engine, registry *types.Registry) (*Store, error) {
	if err := registry.Freeze(); err != nil {
		return nil, err
	}

	st := &Store{
		id:        uuid.NewString(),
		engine:    engine,
		registry:  registry,
		tables:    make(map[string]types.Table),
		bindings:  make(map[string]*bindings),
		observers: make(map[obsKey][]*Token),
		owner:     curGoroutineID(),
	}

	for _, name := range registry.Names() {
		schema, err := registry.Get(name)
		if err != nil {
			return nil, err
		}
		tbl, err := engine.Table(name)
		if err != nil {
			return nil, fmt.Errorf("opening store: %w", err)
		}
		st.tables[name] = tbl
		st.bindings[name] = st.synthesize(schema)
	}
	return st, nil
}

// ID returns the store's unique identity, distinguishing open stores for
// the cross-store link rules.
func (st *Store) ID() string { return st.id }

// Registry returns the store's frozen schema registry.
func (st *Store) Registry() *types.Registry { return st.registry }

// check verifies the store is open and the caller is the owning
// goroutine.
func (st *Store) check() error {
	if st.closed {
		return types.ErrStoreClosed
	}
	if curGoroutineID() != st.owner {
		return types.ErrWrongThread
	}
	return nil
}

// checkWrite is check plus the open-write-transaction requirement every
// mutation carries.
func (st *Store) checkWrite() error {
	if err := st.check(); err != nil {
		return err
	}
	if !st.engine.InWriteTransaction() {
		return types.ErrNotInWriteTransaction
	}
	return nil
}

func (st *Store) schema(name string) (*types.Schema, error) {
	return st.registry.Get(name)
}

// BeginWrite opens a write transaction on the engine.
func (st *Store) BeginWrite() error {
	if err := st.check(); err != nil {
		return err
	}
	return st.engine.BeginWrite()
}

// Commit commits the open write transaction.
func (st *Store) Commit() error {
	if err := st.check(); err != nil {
		return err
	}
	return st.engine.Commit()
}

// Rollback discards the open write transaction. This layer performs no
// partial-mutation rollback of its own; whatever the engine restores is
// the store's state.
func (st *Store) Rollback() error {
	if err := st.check(); err != nil {
		return err
	}
	return st.engine.Rollback()
}

// InWriteTransaction reports whether a write transaction is open.
func (st *Store) InWriteTransaction() bool {
	return st.engine.InWriteTransaction()
}

// Write runs fn inside a write transaction, committing on success and
// rolling back when fn returns an error.
func (st *Store) Write(fn func() error) error {
	if err := st.BeginWrite(); err != nil {
		return err
	}
	if err := fn(); err != nil {
		if rbErr := st.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}
	return st.Commit()
}

// Close releases the engine and all observation state. Idempotent.
// Every handle into the store fails with ErrStoreClosed afterward.
func (st *Store) Close() error {
	if st.closed {
		return nil
	}
	if err := st.check(); err != nil {
		return err
	}
	st.closed = true
	st.observers = nil
	st.bindings = nil
	return st.engine.Close()
}
