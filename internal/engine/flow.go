package engine

import "github.com/google/uuid"

// IDGenerator produces audit tokens for challenges the player confirms
// without machine-checkable input (the mosaic). Tests inject
// testutil.SequenceIDs.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator issues time-sortable tokens, so a journal of confirmed
// challenges sorts in the order the player finished them.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
