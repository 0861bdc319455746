// Package types defines the schema model, the error taxonomy, and the
// narrow storage-engine interfaces for the Bindery accessor layer.
//
// A Schema describes one record type as an ordered set of named, typed
// properties. Schemas are collected in a Registry, which is frozen once at
// store-open time; freezing assigns column indices, resolves link targets,
// and builds the per-schema default-value tables. The Engine, Table, and
// LinkList interfaces describe everything the accessor layer needs from a
// storage engine; engine implementations live under internal/.
package types
