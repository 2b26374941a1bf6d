package nav

import (
	"fmt"

	"github.com/roach88/waypoint/internal/session"
	"github.com/roach88/waypoint/internal/story"
)

// Direction is a within-act scene step.
type Direction int

const (
	Prev Direction = -1
	Next Direction = 1
)

// Position is the player's resolved location in the graph.
type Position struct {
	Act   story.Act
	Scene story.Scene
	Index int

	// Prev and Next are neighbour scene ids within the act, "" at the ends.
	Prev string
	Next string

	// NextAct is the declared successor of Act, nil for the last act.
	NextAct *int

	// ContentUpdated is set when the session referenced an act or scene
	// that is no longer in the graph and the position fell back to the
	// first scene of the first act.
	ContentUpdated bool
}

// Controller navigates a story graph. It holds no session state.
type Controller struct {
	graph *story.Graph
	gates Gates
}

// NewController builds a controller. The graph's required_flags table, when
// present, replaces DefaultGates.
func NewController(g *story.Graph) *Controller {
	gates := DefaultGates
	if len(g.RequiredFlags) > 0 {
		gates = Gates(g.RequiredFlags)
	}
	return &Controller{graph: g, gates: gates}
}

// Graph returns the controller's story graph.
func (c *Controller) Graph() *story.Graph {
	return c.graph
}

// Gates returns the gate table in use.
func (c *Controller) Gates() Gates {
	return c.gates
}

// Locate resolves the session's act and scene.
func (c *Controller) Locate(s session.Session) (Position, error) {
	first, ok := c.graph.FirstAct()
	if !ok {
		return Position{}, fmt.Errorf("story has no acts")
	}

	var pos Position
	act, ok := c.graph.Act(s.CurrentAct)
	if !ok {
		act = first
		pos.ContentUpdated = true
	}

	idx := 0
	if s.LastScene != nil && !pos.ContentUpdated {
		idx = act.IndexOf(*s.LastScene)
		if idx < 0 {
			if _, exists := c.graph.Scene(*s.LastScene); exists {
				// A known scene from another act: start this act over.
				idx = 0
			} else {
				act, idx = first, 0
				pos.ContentUpdated = true
			}
		}
	}

	pos.Act = act
	pos.Index = idx
	pos.NextAct = act.NextAct
	if len(act.SceneIDs) == 0 {
		return pos, nil
	}
	sc, ok := c.graph.Scene(act.SceneIDs[idx])
	if !ok {
		return pos, fmt.Errorf("act %d references unknown scene %q", act.ID, act.SceneIDs[idx])
	}
	pos.Scene = sc
	if idx > 0 {
		pos.Prev = act.SceneIDs[idx-1]
	}
	if idx+1 < len(act.SceneIDs) {
		pos.Next = act.SceneIDs[idx+1]
	}
	return pos, nil
}

// Step returns the update that moves to the neighbouring scene, or false at
// the edge of the act.
func (c *Controller) Step(s session.Session, dir Direction) (session.Update, bool, error) {
	pos, err := c.Locate(s)
	if err != nil {
		return session.Update{}, false, err
	}
	target := pos.Next
	if dir == Prev {
		target = pos.Prev
	}
	if target == "" {
		return session.Update{}, false, nil
	}
	return session.Update{LastScene: session.String(target)}, true, nil
}

// Advance returns the update that enters the next act, checked against
// the gate table.
func (c *Controller) Advance(s session.Session) (session.Update, error) {
	pos, err := c.Locate(s)
	if err != nil {
		return session.Update{}, err
	}
	if pos.NextAct == nil {
		return session.Update{}, fmt.Errorf("act %d is the last act", pos.Act.ID)
	}
	return c.AdvanceTo(s, *pos.NextAct)
}

// AdvanceTo returns the update that enters act target.
func (c *Controller) AdvanceTo(s session.Session, target int) (session.Update, error) {
	next, ok := c.graph.Act(target)
	if !ok {
		return session.Update{}, fmt.Errorf("unknown act %d", target)
	}
	if missing := c.gates.Missing(target, s.FlagKeys()); len(missing) > 0 {
		return session.Update{}, &GateError{Target: target, Missing: missing}
	}
	u := session.Update{CurrentAct: session.Int(target)}
	if len(next.SceneIDs) > 0 {
		u.LastScene = session.String(next.SceneIDs[0])
	}
	return u, nil
}

// CanAdvanceToAct checks target against this controller's gate table.
func (c *Controller) CanAdvanceToAct(target int, flags map[string]bool) bool {
	return c.gates.CanAdvanceToAct(target, flags)
}
