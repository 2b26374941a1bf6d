package story

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format is the encoding of a story document.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatFor guesses the format from a file extension.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	default:
		return FormatYAML
	}
}

// Load reads and decodes a story file. The graph is not validated.
func Load(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read story %s: %w", path, err)
	}
	g, err := Decode(data, FormatFor(path))
	if err != nil {
		return nil, fmt.Errorf("decode story %s: %w", path, err)
	}
	return g, nil
}

// Decode parses a story document. Fields the graph does not define are an
// error, so a misspelled key fails loudly instead of dropping content.
func Decode(data []byte, format Format) (*Graph, error) {
	var g Graph
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&g); err != nil {
			return nil, err
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&g); err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown story format %q", format)
	}
	fillSceneIDs(&g)
	return &g, nil
}

// fillSceneIDs lets authors omit the id inside a scene keyed by that id.
func fillSceneIDs(g *Graph) {
	for key, sc := range g.Scenes {
		if sc.ID == "" {
			sc.ID = key
			g.Scenes[key] = sc
		}
	}
}
