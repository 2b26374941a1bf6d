// Package story holds the read-only story graph: acts, scenes and the
// minigame descriptors attached to scenes.
//
// Graphs are authored as YAML or served as JSON by the authority. Load and
// Decode parse them; Validate checks them against an embedded CUE schema and
// for referential integrity.
package story

import "sort"

// Kind identifies a minigame challenge kind.
type Kind string

const (
	KindLocation     Kind = "location"
	KindArtifactCode Kind = "artifact_code"
	KindMosaic       Kind = "mosaic"
	KindReflex       Kind = "reflex"
	KindPattern      Kind = "pattern"
	KindQuiz         Kind = "quiz"
	KindRiddle       Kind = "riddle"
	KindEndingChoice Kind = "ending_choice"
)

// Kinds lists every known minigame kind.
var Kinds = []Kind{
	KindLocation, KindArtifactCode, KindMosaic, KindReflex,
	KindPattern, KindQuiz, KindRiddle, KindEndingChoice,
}

// Graph is the immutable act/scene structure of a quest.
type Graph struct {
	Acts   []Act            `yaml:"acts" json:"acts"`
	Scenes map[string]Scene `yaml:"scenes" json:"scenes"`

	// RequiredFlags optionally overrides the built-in act gate table,
	// keyed by target act number.
	RequiredFlags map[int][]string `yaml:"required_flags,omitempty" json:"required_flags,omitempty"`
}

// Act is a chapter containing an ordered list of scenes.
type Act struct {
	ID         int      `yaml:"id" json:"id"`
	Title      string   `yaml:"title" json:"title"`
	Objectives []string `yaml:"objectives,omitempty" json:"objectives,omitempty"`
	SceneIDs   []string `yaml:"scene_ids" json:"scene_ids"`
	NextAct    *int     `yaml:"next_act,omitempty" json:"next_act,omitempty"`
}

// Scene is a single narrative beat.
type Scene struct {
	ID       string    `yaml:"id" json:"id"`
	Type     string    `yaml:"type,omitempty" json:"type,omitempty"`
	Text     []string  `yaml:"text,omitempty" json:"text,omitempty"`
	Minigame *Minigame `yaml:"minigame,omitempty" json:"minigame,omitempty"`
}

// Minigame describes the challenge embedded in a scene. Which parameters
// apply depends on Kind.
type Minigame struct {
	Kind        Kind   `yaml:"kind" json:"kind"`
	SuccessFlag string `yaml:"success_flag" json:"success_flag"`
	Prompt      string `yaml:"prompt,omitempty" json:"prompt,omitempty"`

	// artifact_code
	Code string `yaml:"code,omitempty" json:"code,omitempty"`

	// location
	Lat    *float64 `yaml:"lat,omitempty" json:"lat,omitempty"`
	Lng    *float64 `yaml:"lng,omitempty" json:"lng,omitempty"`
	Radius float64  `yaml:"radius,omitempty" json:"radius,omitempty"`

	// reflex and pattern
	Rounds   int      `yaml:"rounds,omitempty" json:"rounds,omitempty"`
	WindowMS int      `yaml:"window_ms,omitempty" json:"window_ms,omitempty"`
	Symbols  []string `yaml:"symbols,omitempty" json:"symbols,omitempty"`

	// quiz
	Questions []Question `yaml:"questions,omitempty" json:"questions,omitempty"`

	// riddle and ending_choice
	Options []Choice `yaml:"options,omitempty" json:"options,omitempty"`
}

// Question is one question of a quiz.
type Question struct {
	ID      string   `yaml:"id" json:"id"`
	Prompt  string   `yaml:"prompt,omitempty" json:"prompt,omitempty"`
	Choices []Choice `yaml:"choices" json:"choices"`
}

// Choice is a selectable answer or option.
type Choice struct {
	ID       string `yaml:"id" json:"id"`
	Text     string `yaml:"text,omitempty" json:"text,omitempty"`
	Correct  bool   `yaml:"correct,omitempty" json:"correct,omitempty"`
	Category string `yaml:"category,omitempty" json:"category,omitempty"`
}

// Act returns the act with the given id.
func (g *Graph) Act(id int) (Act, bool) {
	for _, a := range g.Acts {
		if a.ID == id {
			return a, true
		}
	}
	return Act{}, false
}

// FirstAct returns the first declared act.
func (g *Graph) FirstAct() (Act, bool) {
	if len(g.Acts) == 0 {
		return Act{}, false
	}
	return g.Acts[0], true
}

// Scene returns the scene with the given id.
func (g *Graph) Scene(id string) (Scene, bool) {
	s, ok := g.Scenes[id]
	return s, ok
}

// MinigameByFlag finds the scene whose minigame sets flag.
func (g *Graph) MinigameByFlag(flag string) (Scene, bool) {
	ids := make([]string, 0, len(g.Scenes))
	for id := range g.Scenes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		sc := g.Scenes[id]
		if sc.Minigame != nil && sc.Minigame.SuccessFlag == flag {
			return sc, true
		}
	}
	return Scene{}, false
}

// Choice returns the option with the given id.
func (m *Minigame) Choice(id string) (Choice, bool) {
	for _, c := range m.Options {
		if c.ID == id {
			return c, true
		}
	}
	return Choice{}, false
}

// IndexOf returns the position of sceneID within the act, or -1.
func (a Act) IndexOf(sceneID string) int {
	for i, id := range a.SceneIDs {
		if id == sceneID {
			return i
		}
	}
	return -1
}
