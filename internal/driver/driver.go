// Package driver defines the contract every storage backend satisfies.
//
// A driver stores objects grouped by type and keyed by the configured id
// field. Drivers must:
//   - treat a missing record as a nil object (Get) or a zero count
//     (Delete), never as an error
//   - implement Put as an upsert keyed by the id field, so retries are
//     idempotent
//   - copy objects on the way in and out; callers own what they pass and
//     what they receive
//
// Which reads a driver serves is not part of the driver itself. It is
// declared when the driver is registered with a store, as an Authority
// parsed from a tag such as "get,query".
package driver

import (
	"context"

	"github.com/roach88/objgate/internal/ir"
	"github.com/roach88/objgate/internal/queryir"
)

// Options carries per-call settings.
type Options struct {
	// IDField names the identifier field. Empty means ir.DefaultIDField.
	IDField string

	// View restricts returned objects to these fields (plus the id).
	View []string

	// Sort orders Query and Search results. Drivers break ties by id.
	Sort []queryir.SortKey

	// Limit caps the number of results. 0 means unlimited.
	Limit int
}

// ID returns the effective id field.
func (o Options) ID() string {
	if o.IDField == "" {
		return ir.DefaultIDField
	}
	return o.IDField
}

// Driver is a storage backend.
type Driver interface {
	// Get returns the object or nil if it does not exist.
	Get(ctx context.Context, typ, id string, opts Options) (ir.Object, error)

	// Put inserts or replaces obj, keyed by its id field.
	Put(ctx context.Context, typ string, obj ir.Object, opts Options) error

	// Delete removes the object and reports how many records were removed.
	Delete(ctx context.Context, typ, id string, opts Options) (int, error)

	// Query returns the objects matching query. The query value is passed
	// through from the caller unmodified.
	Query(ctx context.Context, typ string, query any, opts Options) ([]ir.Object, error)

	// Search returns the objects matching a free-text query.
	Search(ctx context.Context, typ, text string, opts Options) ([]ir.Object, error)
}
