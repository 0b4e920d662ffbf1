package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content digests.
// Version suffix enables future algorithm migration.
const (
	DomainSnapshot = "chronicle/snapshot/v1"
	DomainArgs     = "chronicle/args/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// SnapshotHash computes the digest stored next to a checkpoint snapshot.
// It covers the stored encoding (MarshalIRValue), which keeps strings byte
// for byte, so two snapshots are equal exactly when their digests are equal.
// This is how replay determinism is verified.
func SnapshotHash(snapshot IRObject) (string, error) {
	data, err := MarshalIRValue(snapshot)
	if err != nil {
		return "", fmt.Errorf("SnapshotHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainSnapshot, data), nil
}

// SnapshotHashBytes computes the snapshot digest over already-encoded bytes.
func SnapshotHashBytes(data []byte) string {
	return hashWithDomain(DomainSnapshot, data)
}

// ArgsHash computes a digest of encoded action arguments.
// The history command prints it so identical calls are easy to spot.
func ArgsHash(args IRArray) (string, error) {
	data, err := MarshalIRValue(args)
	if err != nil {
		return "", fmt.Errorf("ArgsHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainArgs, data), nil
}

// MustSnapshotHash is like SnapshotHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustSnapshotHash(snapshot IRObject) string {
	h, err := SnapshotHash(snapshot)
	if err != nil {
		panic(err)
	}
	return h
}
