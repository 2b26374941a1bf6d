package testutil

import (
	_ "embed"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/waypoint/internal/story"
)

//go:embed testdata/lantern.yaml
var lanternYAML []byte

// LanternYAML returns the raw sample quest document.
func LanternYAML() []byte {
	out := make([]byte, len(lanternYAML))
	copy(out, lanternYAML)
	return out
}

// LanternGraph decodes the four-act sample quest used across tests.
func LanternGraph(t testing.TB) *story.Graph {
	t.Helper()
	g, err := story.Decode(lanternYAML, story.FormatYAML)
	require.NoError(t, err)
	return g
}
