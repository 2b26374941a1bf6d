package nav

import (
	"github.com/roach88/waypoint/internal/session"
	"github.com/roach88/waypoint/internal/story"
)

// RenderModel is everything a presentation layer needs to draw the current
// scene. It is derived purely from the session and the graph.
type RenderModel struct {
	ActID      int             `json:"act_id"`
	ActTitle   string          `json:"act_title"`
	Objectives []string        `json:"objectives,omitempty"`
	SceneID    string          `json:"scene_id"`
	SceneType  string          `json:"scene_type,omitempty"`
	Text       []string        `json:"text,omitempty"`
	Minigame   *MinigameView   `json:"minigame,omitempty"`
	CanPrev    bool            `json:"can_prev"`
	CanNext    bool            `json:"can_next"`
	Advance    *AdvanceView    `json:"advance,omitempty"`
	Ending     string          `json:"ending,omitempty"`
	Notice     string          `json:"notice,omitempty"`
	Flags      map[string]bool `json:"flags,omitempty"`
}

// MinigameView describes the scene's challenge.
type MinigameView struct {
	Kind      story.Kind     `json:"kind"`
	Flag      string         `json:"flag"`
	Completed bool           `json:"completed"`
	Prompt    string         `json:"prompt,omitempty"`
	Options   []story.Choice `json:"options,omitempty"`
	Questions []QuestionView `json:"questions,omitempty"`
}

// QuestionView is a quiz question without scoring data.
type QuestionView struct {
	ID      string         `json:"id"`
	Prompt  string         `json:"prompt"`
	Choices []story.Choice `json:"choices"`
}

// AdvanceView describes the next-act action.
type AdvanceView struct {
	Target  int      `json:"target"`
	Enabled bool     `json:"enabled"`
	Missing []string `json:"missing,omitempty"`
}

// NoticeContentUpdated is shown when the session pointed at content that no
// longer exists.
const NoticeContentUpdated = "content updated"

// Render builds the view model for s.
func (c *Controller) Render(s session.Session) (RenderModel, error) {
	pos, err := c.Locate(s)
	if err != nil {
		return RenderModel{}, err
	}
	flags := s.FlagKeys()
	m := RenderModel{
		ActID:      pos.Act.ID,
		ActTitle:   pos.Act.Title,
		Objectives: pos.Act.Objectives,
		SceneID:    pos.Scene.ID,
		SceneType:  pos.Scene.Type,
		Text:       pos.Scene.Text,
		CanPrev:    pos.Prev != "",
		CanNext:    pos.Next != "",
		Flags:      flags,
	}
	if mg := pos.Scene.Minigame; mg != nil {
		view := &MinigameView{
			Kind:      mg.Kind,
			Flag:      mg.SuccessFlag,
			Completed: flags[mg.SuccessFlag],
			Prompt:    mg.Prompt,
		}
		// Riddle answers stay hidden.
		for _, o := range mg.Options {
			view.Options = append(view.Options, story.Choice{ID: o.ID, Text: o.Text})
		}
		for _, q := range mg.Questions {
			qv := QuestionView{ID: q.ID, Prompt: q.Prompt}
			for _, ch := range q.Choices {
				qv.Choices = append(qv.Choices, story.Choice{ID: ch.ID, Text: ch.Text})
			}
			view.Questions = append(view.Questions, qv)
		}
		m.Minigame = view
	}
	if pos.NextAct != nil {
		missing := c.gates.Missing(*pos.NextAct, flags)
		m.Advance = &AdvanceView{Target: *pos.NextAct, Enabled: len(missing) == 0, Missing: missing}
	}
	if s.EndingChoice != nil {
		m.Ending = *s.EndingChoice
	}
	if pos.ContentUpdated {
		m.Notice = NoticeContentUpdated
	}
	return m, nil
}
