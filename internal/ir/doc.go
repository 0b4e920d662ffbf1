// Package ir provides the plain-value tree used for snapshots and encoded
// action arguments.
//
// This package contains value types and their serializations only. All other
// internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - NO float types anywhere - use int64 for numbers
//   - Persisted-entity and enum references are first-class variants
//     (IREntity, IREnum), never ordinary objects
//   - Stored bytes keep strings exactly as given (MarshalIRValue); RFC 8785
//     canonical JSON with NFC strings (MarshalCanonical) is for traces only
package ir
