// Package store narrows the document-store contract the pipeline needs
// down to the CRUD/aggregate operations named in spec §6, so every other
// component programs against an interface instead of the Mongo driver
// directly (mirroring the teacher's sink.Sink seam).
package store

import "context"

// IndexSpec describes one index to create on a collection.
type IndexSpec struct {
	Keys     map[string]int // field -> 1 (asc) or -1 (desc)
	Unique   bool
	Sparse   bool
	Name     string
}

// FindOptions controls a Find call's sort/skip/limit.
type FindOptions struct {
	Sort  map[string]int
	Skip  int64
	Limit int64
}

// Store is the narrow contract the pipeline consumes. One implementation
// (Mongo) backs it in production; a second (in-memory) backs tests.
type Store interface {
	// InsertMany inserts docs unordered: one failing document (e.g. a
	// duplicate key) does not prevent the others from persisting. It
	// returns the number of documents actually inserted and the duplicate
	// key errors encountered, if any.
	InsertMany(ctx context.Context, collection string, docs []interface{}) (inserted int, dupErrs []error, err error)

	// UpdateOne applies an upsert-with-filter update. When upsert is
	// true and no document matches filter, one is created from filter
	// merged with update's $set fields.
	UpdateOne(ctx context.Context, collection string, filter map[string]interface{}, update map[string]interface{}, upsert bool) error

	// FindOne returns a single document matching filter into out, or
	// ErrNoDocuments if none match.
	FindOne(ctx context.Context, collection string, filter map[string]interface{}, out interface{}) error

	// Find returns every document matching filter into out (a pointer to
	// a slice).
	Find(ctx context.Context, collection string, filter map[string]interface{}, opts FindOptions, out interface{}) error

	// Count returns the number of documents matching filter.
	Count(ctx context.Context, collection string, filter map[string]interface{}) (int64, error)

	// Aggregate runs a pipeline and decodes the results into out (a
	// pointer to a slice).
	Aggregate(ctx context.Context, collection string, pipeline []map[string]interface{}, out interface{}) error

	// CreateIndex is idempotent: creating the same index twice is a
	// no-op.
	CreateIndex(ctx context.Context, collection string, spec IndexSpec) error

	// Ping verifies connectivity, used at startup.
	Ping(ctx context.Context) error

	// Close releases the underlying connection pool.
	Close(ctx context.Context) error
}

// ErrNoDocuments is returned by FindOne when nothing matches the filter.
var ErrNoDocuments = errNoDocuments{}

type errNoDocuments struct{}

func (errNoDocuments) Error() string { return "store: no documents match filter" }

// IsDuplicateKey reports whether err represents a unique-index violation.
// Implementations translate their driver-specific error into this
// predicate so callers never import the driver directly.
func IsDuplicateKey(err error) bool {
	type duplicateKeyer interface{ IsDuplicateKey() bool }
	if dk, ok := err.(duplicateKeyer); ok {
		return dk.IsDuplicateKey()
	}
	return false
}
