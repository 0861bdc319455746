package types

import "time"

// Engine is the storage collaborator consumed by the bind layer: a
// transactional, columnar row store. Implementations are expected to be
// used from a single goroutine; the bind layer enforces confinement above
// this interface. Engines raise ErrNotInWriteTransaction for mutations
// outside BeginWrite/Commit and ErrRowNotFound for detached rows; the
// bind layer translates engine errors into the accessor taxonomy.
type Engine interface {
	// Table returns the table backing the named schema, or
	// ErrTableNotFound.
	Table(name string) (Table, error)

	// BeginWrite opens a write transaction. Transactions do not nest.
	BeginWrite() error

	// Commit makes the open write transaction's changes durable.
	Commit() error

	// Rollback discards the open write transaction's changes.
	Rollback() error

	// InWriteTransaction reports whether a write transaction is open.
	InWriteTransaction() bool

	// Close releases all engine resources. Idempotent.
	Close() error
}

// Table is one schema's row set: typed per-column get/set operations
// keyed by (row, column). Rows are identified by engine-assigned int64
// ids that are never reused within an open store.
type Table interface {
	// InsertRow appends a new row with every column null/zero and
	// returns its id.
	InsertRow() (int64, error)

	// DeleteRow removes a row. Inbound references from other rows are
	// cleared: object links become null and link-list entries are
	// erased. Returns ErrRowNotFound for a detached row.
	DeleteRow(row int64) error

	// RowExists reports whether the row is attached.
	RowExists(row int64) bool

	// Rows enumerates all attached row ids in insertion order.
	Rows() ([]int64, error)

	GetInt(row int64, col int) (int64, error)
	SetInt(row int64, col int, v int64) error
	// AddInt adds delta to an integer column in place.
	AddInt(row int64, col int, delta int64) error

	GetFloat(row int64, col int) (float64, error)
	SetFloat(row int64, col int, v float64) error

	GetBool(row int64, col int) (bool, error)
	SetBool(row int64, col int, v bool) error

	GetString(row int64, col int) (string, error)
	SetString(row int64, col int, v string) error

	GetBinary(row int64, col int) ([]byte, error)
	SetBinary(row int64, col int, v []byte) error

	GetTime(row int64, col int) (time.Time, error)
	SetTime(row int64, col int, v time.Time) error

	// IsNull reports whether the column holds the engine null.
	IsNull(row int64, col int) (bool, error)
	// SetNull stores the engine null in the column.
	SetNull(row int64, col int) error

	// GetLink returns the target row of an object-link column. The
	// second return value is false when the link is null.
	GetLink(row int64, col int) (int64, bool, error)
	SetLink(row int64, col int, target int64) error

	// LinkList returns the ordered link list stored at the column. The
	// returned view is transient and re-creatable; it holds no state
	// beyond the (row, column) binding.
	LinkList(row int64, col int) LinkList

	// FindInt returns the first row whose integer column equals v.
	// The second return value reports whether a row was found.
	FindInt(col int, v int64) (int64, bool, error)

	// FindString is FindInt for string columns.
	FindString(col int, v string) (int64, bool, error)

	// BacklinkRows returns the ids of rows in this table whose column
	// col (an object link or link list) references target, in row
	// order. Used to materialize reverse-link views.
	BacklinkRows(col int, target int64) ([]int64, error)
}

// LinkList is an ordered sequence of row references stored at one column
// of one row. Indices are zero-based; implementations report
// ErrIndexOutOfRange for indices outside the documented ranges.
type LinkList interface {
	// Size returns the number of entries.
	Size() (int, error)

	// Get returns the target row at index, valid for [0, size).
	Get(index int) (int64, error)

	// Insert places target at index, valid for [0, size].
	Insert(index int, target int64) error

	// Set replaces the entry at index, valid for [0, size).
	Set(index int, target int64) error

	// Erase removes the entry at index, valid for [0, size).
	Erase(index int) error

	// Swap exchanges the entries at i and j, both valid for [0, size).
	Swap(i, j int) error

	// Clear removes every entry.
	Clear() error
}
