package story

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var schemaCUE string

// ValidationError describes one problem found in a story graph.
type ValidationError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// Validate checks g against the story schema and for referential integrity.
// An empty result means the graph is usable.
func Validate(g *Graph) []ValidationError {
	errs := validateSchema(g)
	if len(errs) > 0 {
		return errs
	}
	return validateReferences(g)
}

// validateSchema unifies the JSON form of g with the #Graph definition.
// JSON is valid CUE, so the document compiles directly.
func validateSchema(g *Graph) []ValidationError {
	data, err := json.Marshal(g)
	if err != nil {
		return []ValidationError{{Message: fmt.Sprintf("encode graph: %v", err)}}
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return []ValidationError{{Message: fmt.Sprintf("compile schema: %v", err)}}
	}
	doc := ctx.CompileBytes(data, cue.Filename("story.json"))
	if err := doc.Err(); err != nil {
		return []ValidationError{{Message: fmt.Sprintf("compile story: %v", err)}}
	}

	unified := schema.LookupPath(cue.ParsePath("#Graph")).Unify(doc)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		var out []ValidationError
		for _, e := range cueerrors.Errors(err) {
			format, args := e.Msg()
			out = append(out, ValidationError{
				Path:    strings.Join(e.Path(), "."),
				Message: fmt.Sprintf(format, args...),
			})
		}
		if len(out) == 0 {
			out = append(out, ValidationError{Message: err.Error()})
		}
		return out
	}
	return nil
}

func validateReferences(g *Graph) []ValidationError {
	var errs []ValidationError
	add := func(path, format string, args ...any) {
		errs = append(errs, ValidationError{Path: path, Message: fmt.Sprintf(format, args...)})
	}

	seen := make(map[int]bool, len(g.Acts))
	for i, a := range g.Acts {
		path := fmt.Sprintf("acts.%d", i)
		if seen[a.ID] {
			add(path+".id", "duplicate act id %d", a.ID)
		}
		seen[a.ID] = true
		for j, sid := range a.SceneIDs {
			if _, ok := g.Scenes[sid]; !ok {
				add(fmt.Sprintf("%s.scene_ids.%d", path, j), "unknown scene %q", sid)
			}
		}
	}
	for i, a := range g.Acts {
		if a.NextAct != nil && !seen[*a.NextAct] {
			add(fmt.Sprintf("acts.%d.next_act", i), "unknown act %d", *a.NextAct)
		}
	}
	for target := range g.RequiredFlags {
		if !seen[target] {
			add(fmt.Sprintf("required_flags.%d", target), "unknown act %d", target)
		}
	}

	for id, sc := range g.Scenes {
		if sc.ID != id {
			add("scenes."+id+".id", "scene id %q does not match key", sc.ID)
		}
		if sc.Minigame != nil {
			errs = append(errs, validateMinigame("scenes."+id+".minigame", sc.Minigame)...)
		}
	}
	return errs
}

func validateMinigame(path string, m *Minigame) []ValidationError {
	var errs []ValidationError
	switch m.Kind {
	case KindLocation:
		if m.Lat == nil || m.Lng == nil {
			errs = append(errs, ValidationError{Path: path, Message: "location requires lat and lng"})
		}
		if m.Radius <= 0 {
			errs = append(errs, ValidationError{Path: path + ".radius", Message: "location requires a positive radius"})
		}
	case KindQuiz:
		if len(m.Questions) == 0 {
			errs = append(errs, ValidationError{Path: path + ".questions", Message: "quiz requires at least one question"})
		}
	case KindRiddle, KindEndingChoice:
		if len(m.Options) == 0 {
			errs = append(errs, ValidationError{Path: path + ".options", Message: fmt.Sprintf("%s requires options", m.Kind)})
		}
	case KindPattern:
		if len(m.Symbols) == 1 {
			errs = append(errs, ValidationError{Path: path + ".symbols", Message: "pattern alphabet needs at least two symbols"})
		}
	}
	return errs
}
