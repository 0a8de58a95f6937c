package store

import (
	"context"
	"encoding/json"
	"time"

	errs "github.com/matzehuels/modgraph/pkg/errors"
	"github.com/matzehuels/modgraph/pkg/modgraph"
	"github.com/matzehuels/modgraph/pkg/observability"
)

// Snapshots saves and loads named module graph snapshots.
type Snapshots struct {
	store   Store
	backend string
}

// NewSnapshots wraps s. backend names the store in observability hooks.
func NewSnapshots(s Store, backend string) *Snapshots {
	return &Snapshots{store: s, backend: backend}
}

// Store returns the underlying store.
func (s *Snapshots) Store() Store { return s.store }

// Save stores snap under name and returns the content hash.
func (s *Snapshots) Save(ctx context.Context, name string, snap *modgraph.Snapshot, ttl time.Duration) (string, error) {
	if err := errs.ValidateSegment(name); err != nil {
		return "", err
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return "", errs.Wrap(errs.ErrCodeInternal, err, "encode snapshot")
	}
	if err := s.store.Set(ctx, SnapshotKey(name), data, ttl); err != nil {
		return "", err
	}
	observability.Store().OnSnapshotSet(ctx, s.backend, len(data))
	return Hash(data), nil
}

// Load returns the snapshot stored under name. A missing snapshot is a
// NOT_FOUND error.
func (s *Snapshots) Load(ctx context.Context, name string) (*modgraph.Snapshot, error) {
	if err := errs.ValidateSegment(name); err != nil {
		return nil, err
	}
	data, ok, err := s.store.Get(ctx, SnapshotKey(name))
	if err != nil {
		return nil, err
	}
	if !ok {
		observability.Store().OnSnapshotMiss(ctx, s.backend)
		return nil, errs.New(errs.ErrCodeNotFound, "no snapshot named %q", name)
	}
	observability.Store().OnSnapshotHit(ctx, s.backend)
	var snap modgraph.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidFormat, err, "decode snapshot %q", name)
	}
	return &snap, nil
}

// Delete removes the snapshot stored under name.
func (s *Snapshots) Delete(ctx context.Context, name string) error {
	if err := errs.ValidateSegment(name); err != nil {
		return err
	}
	return s.store.Delete(ctx, SnapshotKey(name))
}
