package types

import "time"

// Checkpoint is the durable memory of "how far we've processed" for one
// (program, event) pair. Unique on (ProgramID, EventName); slot is never
// overwritten with an older value.
type Checkpoint struct {
	ProgramID     string    `bson:"program_id"`
	EventName     string    `bson:"event_name"`
	LastSignature string    `bson:"last_signature"`
	Slot          Slot      `bson:"slot"`
	UpdatedAt     time.Time `bson:"updated_at"`
	CreatedAt     time.Time `bson:"created_at"`
}

// Key identifies a checkpoint in the in-memory cache.
type CheckpointKey struct {
	ProgramID string
	EventName string
}
