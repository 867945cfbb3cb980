package types

import "time"

// EventMeta is carried by every DecodedEvent variant in addition to its
// own domain fields (spec §3).
type EventMeta struct {
	Signature   Signature `bson:"signature"`
	Slot        Slot      `bson:"slot"`
	ProcessedAt time.Time `bson:"processed_at"`
}

// DecodedEvent is the tagged-union contract every registered event type
// implements. There is no shared base type beyond EventMeta; dispatch is
// always by discriminator, never by type assertion chains.
type DecodedEvent interface {
	// EventType is the registered name used to derive the discriminator.
	EventType() string
	// Meta returns the signature/slot/processed_at common to all events.
	Meta() EventMeta
	// Collection is the target collection name this event persists to.
	Collection() string
	// NaturalKey returns the field/tuple that makes this event unique
	// within its collection, as a Mongo filter document.
	NaturalKey() map[string]interface{}
	// SourceProgramID is the program that emitted this event, used to key
	// the checkpoint advanced once the event is durably persisted.
	SourceProgramID() string
	// Document renders the event as the flat field-name/value map the
	// Writer persists, the same generic row-of-fields shape the teacher's
	// sink.Event uses, so every backend (MongoStore, MemStore) can
	// store any event without a type switch.
	Document() map[string]interface{}
}

// metaFields returns the EventMeta fields every document shares.
func (m EventMeta) metaFields() map[string]interface{} {
	return map[string]interface{}{
		"signature":    m.Signature.String(),
		"slot":         m.Slot,
		"processed_at": m.ProcessedAt,
	}
}

// RawLogBatch is what the Subscriber (and the Backfill Scheduler, for
// replayed transactions) feeds into the Parser Registry.
type RawLogBatch struct {
	Signature Signature
	Slot      Slot
	Logs      []string
	Err       error
}
