package types

import "errors"

// Accessor-layer error taxonomy. Every failure surfaced by the bind layer
// wraps one of these sentinels, so callers can match with errors.Is while
// the message carries the offending property and schema name.
var (
	// ErrTypeMismatch reports a value that does not conform to the
	// property's declared type, including null written to a non-optional
	// property.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrInvalidatedAccess reports access through a managed record whose
	// row has been deleted, or whose store has been closed.
	ErrInvalidatedAccess = errors.New("record has been deleted or invalidated")

	// ErrWrongThread reports store access from a goroutine other than
	// the one that opened the store.
	ErrWrongThread = errors.New("store accessed from incorrect thread")

	// ErrNotInWriteTransaction reports a mutation attempted outside a
	// write transaction.
	ErrNotInWriteTransaction = errors.New("not in a write transaction")

	// ErrImmutablePrimaryKey reports a write to a primary-key property
	// of an already-inserted record.
	ErrImmutablePrimaryKey = errors.New("primary key is immutable after insertion")

	// ErrIndexOutOfRange reports a collection index outside the valid
	// range for the attempted operation.
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrCrossStoreLink reports an attempt to link or promote a record
	// that is already managed by a different open store.
	ErrCrossStoreLink = errors.New("record belongs to a different store")

	// ErrUnsupportedOperation reports use of a property kind this layer
	// does not support, such as writes to an "any" property.
	ErrUnsupportedOperation = errors.New("unsupported operation")
)

// Schema and registry errors.
var (
	ErrSchemaNotFound   = errors.New("schema not found")
	ErrPropertyNotFound = errors.New("property not found")
	ErrInvalidSchema    = errors.New("invalid schema")
	ErrRegistryFrozen   = errors.New("registry is frozen")
	ErrDuplicateName    = errors.New("duplicate name")
)

// Engine and store lifecycle errors.
var (
	ErrRowNotFound   = errors.New("row not found")
	ErrTableNotFound = errors.New("table not found")
	ErrStoreClosed   = errors.New("store is closed")
)
