// Package codec converts rule-function arguments to and from the plain-value
// tree stored with each logged action.
//
// Persisted entities are stored by reference (type and id) and re-fetched on
// decode, so a replayed action always sees the row as it exists after the
// snapshot restore. Enumeration members are stored by set path and member
// name. Everything else must already be a plain value: nil, bool, string,
// integers, slices and string-keyed maps. Floats are rejected.
//
// Decoding a reference to a row that no longer exists yields nil. Decoding
// an enum reference whose set or member is unknown is a fatal *Error.
package codec
