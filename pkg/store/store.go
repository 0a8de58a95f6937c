// Package store persists module graph snapshots.
//
// # Overview
//
// A [Store] is a byte-oriented key/value store with optional expiry. The
// backends are:
//
//   - [FileStore]: JSON entry files below a directory, for CLI usage
//   - [NullStore]: stores nothing, for tests or when persistence is disabled
//   - [RedisStore]: Redis, for servers sharing snapshots between instances
//   - [MongoStore]: a MongoDB collection with a TTL index
//
// [Open] selects a backend from a location string:
//
//	s, err := store.Open(ctx, "redis://localhost:6379/0")
//	s, err := store.Open(ctx, "mongodb://localhost:27017/modgraph")
//	s, err := store.Open(ctx, "/home/me/.cache/modgraph")
//
// [Snapshots] layers snapshot encoding and observability hooks on top of any
// Store.
//
//	snaps := store.NewSnapshots(s, "file")
//	err := snaps.Save(ctx, "spheres", g.Snapshot(), 0)
//	snap, err := snaps.Load(ctx, "spheres")
package store

import (
	"context"
	"net/url"
	"strings"
	"time"

	errs "github.com/matzehuels/modgraph/pkg/errors"
)

// Store is a key/value store for serialized snapshots.
type Store interface {
	// Get returns the data stored under key and whether it was found.
	// Expired entries are reported as missing.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of zero never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend connections.
	Close() error
}

// Open returns the backend for location and its short name.
//
// "redis://" and "rediss://" URLs select Redis, "mongodb://" and
// "mongodb+srv://" URLs select MongoDB, "null" or the empty string select
// NullStore, and anything else is treated as a directory for FileStore.
func Open(ctx context.Context, location string) (Store, string, error) {
	switch {
	case location == "" || location == "null":
		return NewNullStore(), "null", nil
	case strings.HasPrefix(location, "redis://"), strings.HasPrefix(location, "rediss://"):
		s, err := NewRedisStore(ctx, RedisConfig{URL: location})
		if err != nil {
			return nil, "", err
		}
		return s, "redis", nil
	case strings.HasPrefix(location, "mongodb://"), strings.HasPrefix(location, "mongodb+srv://"):
		u, err := url.Parse(location)
		if err != nil {
			return nil, "", errs.Wrap(errs.ErrCodeInvalidInput, err, "invalid store location")
		}
		s, err := NewMongoStore(ctx, MongoConfig{URI: location, Database: strings.TrimPrefix(u.Path, "/")})
		if err != nil {
			return nil, "", err
		}
		return s, "mongo", nil
	default:
		s, err := NewFileStore(strings.TrimPrefix(location, "file://"))
		if err != nil {
			return nil, "", err
		}
		return s, "file", nil
	}
}
