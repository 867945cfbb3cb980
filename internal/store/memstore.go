package store

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
)

// MemStore is an in-memory Store used by tests in place of a live Mongo
// instance, following the same lazy per-key map pattern as the teacher's
// CSVSink (internal/sink/csv.go): one bucket per collection, guarded by a
// single mutex.
type MemStore struct {
	mu          sync.Mutex
	collections map[string][]map[string]interface{}
	indexes     map[string][]IndexSpec
}

// NewMemStore builds an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		collections: make(map[string][]map[string]interface{}),
		indexes:     make(map[string][]IndexSpec),
	}
}

func toDoc(v interface{}) map[string]interface{} {
	// Round-trip through bson so struct field access honors the same
	// `bson:"..."` tags MongoStore uses, regardless of whether callers
	// pass structs or maps.
	b, _ := bson.Marshal(v)
	var doc bson.M
	_ = bson.Unmarshal(b, &doc)
	return map[string]interface{}(doc)
}

func matches(doc map[string]interface{}, filter map[string]interface{}) bool {
	for k, want := range filter {
		if inClause, ok := want.(map[string]interface{}); ok {
			if inList, ok := inClause["$in"].([]interface{}); ok {
				found := false
				for _, v := range inList {
					if fmt_equal(doc[k], v) {
						found = true
						break
					}
				}
				if !found {
					return false
				}
				continue
			}
		}
		if !fmt_equal(doc[k], want) {
			return false
		}
	}
	return true
}

func fmt_equal(a, b interface{}) bool {
	_, ab, _ := bson.MarshalValue(a)
	_, bb, _ := bson.MarshalValue(b)
	return string(ab) == string(bb)
}

func (s *MemStore) uniqueKeyFields(collection string) [][]string {
	s_ := s.indexes[collection]
	var out [][]string
	for _, spec := range s_ {
		if !spec.Unique {
			continue
		}
		var fields []string
		for f := range spec.Keys {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		out = append(out, fields)
	}
	return out
}

func (s *MemStore) violatesUnique(collection string, doc map[string]interface{}) bool {
	for _, fields := range s.uniqueKeyFields(collection) {
		for _, existing := range s.collections[collection] {
			same := true
			for _, f := range fields {
				if !fmt_equal(existing[f], doc[f]) {
					same = false
					break
				}
			}
			if same {
				return true
			}
		}
	}
	return false
}

func (s *MemStore) InsertMany(ctx context.Context, collection string, docs []interface{}) (int, []error, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := 0
	var dupErrs []error
	for _, raw := range docs {
		doc := toDoc(raw)
		if s.violatesUnique(collection, doc) {
			dupErrs = append(dupErrs, dupErr{inner: errDuplicateKey})
			continue
		}
		s.collections[collection] = append(s.collections[collection], doc)
		inserted++
	}
	return inserted, dupErrs, nil
}

var errDuplicateKey = &simpleErr{"memstore: duplicate key"}

type simpleErr struct{ msg string }

func (e *simpleErr) Error() string { return e.msg }

func (s *MemStore) UpdateOne(ctx context.Context, collection string, filter map[string]interface{}, update map[string]interface{}, upsert bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, _ := update["$set"].(map[string]interface{})
	maxFields, _ := update["$max"].(map[string]interface{})
	setOnInsert, _ := update["$setOnInsert"].(map[string]interface{})

	for i, doc := range s.collections[collection] {
		if matches(doc, filter) {
			for k, v := range set {
				doc[k] = v
			}
			for k, v := range maxFields {
				if existing, ok := doc[k]; !ok || less(existing, v) {
					doc[k] = v
				}
			}
			s.collections[collection][i] = doc
			return nil
		}
	}

	if !upsert {
		return ErrNoDocuments
	}

	doc := map[string]interface{}{}
	for k, v := range filter {
		doc[k] = v
	}
	for k, v := range set {
		doc[k] = v
	}
	for k, v := range maxFields {
		doc[k] = v
	}
	for k, v := range setOnInsert {
		doc[k] = v
	}
	s.collections[collection] = append(s.collections[collection], doc)
	return nil
}

func less(a, b interface{}) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af < bf
	}
	return false
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

func (s *MemStore) FindOne(ctx context.Context, collection string, filter map[string]interface{}, out interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, doc := range s.collections[collection] {
		if matches(doc, filter) {
			return remarshalOne(doc, out)
		}
	}
	return ErrNoDocuments
}

func (s *MemStore) Find(ctx context.Context, collection string, filter map[string]interface{}, opts FindOptions, out interface{}) error {
	s.mu.Lock()
	var matched []map[string]interface{}
	for _, doc := range s.collections[collection] {
		if matches(doc, filter) {
			matched = append(matched, doc)
		}
	}
	s.mu.Unlock()

	// Sorting compares numeric fields only; with more than one sort key,
	// the precedence among keys is not defined.
	for field, dir := range opts.Sort {
		sort.SliceStable(matched, func(i, j int) bool {
			if dir < 0 {
				return less(matched[j][field], matched[i][field])
			}
			return less(matched[i][field], matched[j][field])
		})
	}

	if opts.Skip > 0 && int64(len(matched)) > opts.Skip {
		matched = matched[opts.Skip:]
	} else if opts.Skip > 0 {
		matched = nil
	}
	if opts.Limit > 0 && int64(len(matched)) > opts.Limit {
		matched = matched[:opts.Limit]
	}
	return remarshalMany(matched, out)
}

func (s *MemStore) Count(ctx context.Context, collection string, filter map[string]interface{}) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, doc := range s.collections[collection] {
		if matches(doc, filter) {
			n++
		}
	}
	return n, nil
}

// Aggregate supports only the trivial passthrough pipeline; tests that
// need real aggregation semantics should assert against Find instead.
func (s *MemStore) Aggregate(ctx context.Context, collection string, pipeline []map[string]interface{}, out interface{}) error {
	return s.Find(ctx, collection, map[string]interface{}{}, FindOptions{}, out)
}

func (s *MemStore) CreateIndex(ctx context.Context, collection string, spec IndexSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.indexes[collection] = append(s.indexes[collection], spec)
	return nil
}

func (s *MemStore) Ping(ctx context.Context) error   { return nil }
func (s *MemStore) Close(ctx context.Context) error  { return nil }

// remarshalOne decodes a single document into out (a pointer to a
// struct or to a map[string]interface{}) via a bson round-trip, so the
// target's `bson:"..."` tags are honored the same way MongoStore's
// driver-native decode honors them.
func remarshalOne(doc map[string]interface{}, out interface{}) error {
	b, err := bson.Marshal(doc)
	if err != nil {
		return err
	}
	return bson.Unmarshal(b, out)
}

// remarshalMany decodes docs into out (a pointer to a slice), appending
// one bson-decoded element per document via reflection — mongo-driver's
// cursor.All does the same element-at-a-time decode under the hood.
func remarshalMany(docs []map[string]interface{}, out interface{}) error {
	outVal := reflect.ValueOf(out)
	if outVal.Kind() != reflect.Ptr || outVal.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("memstore: Find output must be a pointer to a slice")
	}
	sliceVal := outVal.Elem()
	elemType := sliceVal.Type().Elem()

	result := reflect.MakeSlice(sliceVal.Type(), 0, len(docs))
	for _, doc := range docs {
		elemPtr := reflect.New(elemType)
		if err := remarshalOne(doc, elemPtr.Interface()); err != nil {
			return err
		}
		result = reflect.Append(result, elemPtr.Elem())
	}
	sliceVal.Set(result)
	return nil
}
