// Package bind is the accessor and change-notification layer of Bindery.
//
// It maps record objects onto rows of a columnar storage engine: a Store
// pairs an engine with a frozen schema registry and synthesizes, once per
// schema, the read and write operations for every declared property.
// Reading a field pulls the engine value through the coercion layer into
// the dynamic representation; writing validates and coerces the dynamic
// value, then applies it inside a willChange/didChange notification pair.
// Link-to-one properties surface as object references, link-to-many as
// ordered mutable Lists, and reverse links as read-only Backlinks views.
//
// Objects start unmanaged (free-standing, values held in memory) and
// become managed by promotion (Store.Add) or creation (Store.Create).
// Managed access is confined to the goroutine that opened the store, and
// mutations require an open write transaction.
package bind
