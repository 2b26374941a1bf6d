package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequenceIDs_Generate(t *testing.T) {
	g := NewSequenceIDs("")
	assert.Equal(t, "evt-0001", g.Generate())
	assert.Equal(t, "evt-0002", g.Generate())

	tok := NewSequenceIDs("tok")
	assert.Equal(t, "tok-0001", tok.Generate())
}
