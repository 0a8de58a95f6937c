package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// SnapshotKey returns the store key for a named snapshot.
func SnapshotKey(name string) string {
	return "snapshot:" + name
}

// Hash computes a SHA-256 hash of the input data.
// Returns the full 64-character hex string.
func Hash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// HashJSON hashes the JSON encoding of v. Equal snapshots hash equally
// because their module and call lists are sorted.
func HashJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return Hash(data), nil
}
