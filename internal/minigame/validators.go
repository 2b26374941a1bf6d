package minigame

import (
	"strings"
	"time"

	"github.com/roach88/waypoint/internal/geo"
	"github.com/roach88/waypoint/internal/session"
	"github.com/roach88/waypoint/internal/story"
)

type artifactCode struct{}

func (artifactCode) Kind() story.Kind { return story.KindArtifactCode }

// Validate accepts any non-empty code when none is configured, otherwise
// an exact, case-sensitive match of the trimmed input.
func (artifactCode) Validate(desc story.Minigame, in Input, now time.Time) (Outcome, error) {
	code := strings.TrimSpace(in.Code)
	if code == "" {
		return Outcome{}, reject(desc.Kind, CodeEmptyInput, "enter the code")
	}
	if desc.Code != "" && code != desc.Code {
		return Outcome{}, reject(desc.Kind, CodeWrongCode, "that code does not fit")
	}
	rec := newRecord(session.StatusValidated, now)
	rec["code"] = code
	return outcome(desc, rec, now), nil
}

type mosaic struct {
	tokens TokenSource
}

func (mosaic) Kind() story.Kind { return story.KindMosaic }

// Validate always succeeds; the player asserts completion of a physical task.
func (m mosaic) Validate(desc story.Minigame, _ Input, now time.Time) (Outcome, error) {
	rec := newRecord(session.StatusCompleted, now)
	rec["token"] = m.tokens()
	return outcome(desc, rec, now), nil
}

type location struct{}

func (location) Kind() story.Kind { return story.KindLocation }

func (location) Validate(desc story.Minigame, in Input, now time.Time) (Outcome, error) {
	if in.Position == nil {
		return Outcome{}, reject(desc.Kind, CodeNoFix, "no location fix")
	}
	target := geo.NewPoint(desc.Lat, desc.Lng)
	dist, ok := geo.Within(in.Position, target, desc.Radius)
	if !ok {
		if target == nil {
			return Outcome{}, reject(desc.Kind, CodeOutOfRange, "checkpoint has no coordinates")
		}
		return Outcome{}, reject(desc.Kind, CodeOutOfRange, "%.0fm from the checkpoint", dist)
	}
	rec := newRecord(session.StatusValidated, now)
	rec["lat"] = in.Position.Lat
	rec["lng"] = in.Position.Lng
	rec["distance"] = dist
	return outcome(desc, rec, now), nil
}

type reflexValidator struct{}

func (reflexValidator) Kind() story.Kind { return story.KindReflex }

func (reflexValidator) Validate(desc story.Minigame, in Input, now time.Time) (Outcome, error) {
	g, ok := in.Game.(*Reflex)
	if !ok || g == nil || !g.Done() {
		return Outcome{}, reject(desc.Kind, CodeNotFinished, "finish every round first")
	}
	return outcome(desc, g.Record(now), now), nil
}

type patternValidator struct{}

func (patternValidator) Kind() story.Kind { return story.KindPattern }

func (patternValidator) Validate(desc story.Minigame, in Input, now time.Time) (Outcome, error) {
	g, ok := in.Game.(*Pattern)
	if !ok || g == nil || !g.Done() {
		return Outcome{}, reject(desc.Kind, CodeNotFinished, "repeat the whole sequence first")
	}
	return outcome(desc, g.Record(now), now), nil
}

type riddle struct{}

func (riddle) Kind() story.Kind { return story.KindRiddle }

func (riddle) Validate(desc story.Minigame, in Input, now time.Time) (Outcome, error) {
	if in.ChoiceID == "" {
		return Outcome{}, reject(desc.Kind, CodeEmptyInput, "pick an answer")
	}
	c, ok := desc.Choice(in.ChoiceID)
	if !ok {
		return Outcome{}, reject(desc.Kind, CodeUnknownOption, "unknown answer %q", in.ChoiceID)
	}
	if !c.Correct {
		return Outcome{}, reject(desc.Kind, CodeWrongChoice, "that is not it")
	}
	rec := newRecord(session.StatusValidated, now)
	rec["choice_id"] = c.ID
	return outcome(desc, rec, now), nil
}

type quiz struct{}

func (quiz) Kind() story.Kind { return story.KindQuiz }

// Validate requires every question answered, then records the dominant
// answer category. It grades completion, not correctness.
func (quiz) Validate(desc story.Minigame, in Input, now time.Time) (Outcome, error) {
	var categories []string
	for _, q := range desc.Questions {
		choiceID, answered := in.Answers[q.ID]
		if !answered || choiceID == "" {
			return Outcome{}, reject(desc.Kind, CodeIncomplete, "question %q is unanswered", q.ID)
		}
		c, ok := findChoice(q.Choices, choiceID)
		if !ok {
			return Outcome{}, reject(desc.Kind, CodeUnknownOption, "unknown answer %q for question %q", choiceID, q.ID)
		}
		cat := c.Category
		if cat == "" {
			cat = c.ID
		}
		categories = append(categories, cat)
	}

	result, tally := Dominant(categories)
	rec := newRecord(session.StatusCompleted, now)
	rec["result"] = result
	counts := make(map[string]any, len(tally))
	for k, v := range tally {
		counts[k] = v
	}
	rec["tally"] = counts

	out := outcome(desc, rec, now)
	out.Answers = make(map[string]string, len(desc.Questions))
	for _, q := range desc.Questions {
		out.Answers[q.ID] = in.Answers[q.ID]
	}
	return out, nil
}

// Dominant returns the most frequent value by plurality, breaking ties by
// first-seen order, together with the full tally.
func Dominant(values []string) (string, map[string]int) {
	tally := make(map[string]int, len(values))
	var order []string
	for _, v := range values {
		if _, seen := tally[v]; !seen {
			order = append(order, v)
		}
		tally[v]++
	}
	best := ""
	bestCount := 0
	for _, v := range order {
		if tally[v] > bestCount {
			best, bestCount = v, tally[v]
		}
	}
	return best, tally
}

type endingChoice struct{}

func (endingChoice) Kind() story.Kind { return story.KindEndingChoice }

func (endingChoice) Validate(desc story.Minigame, in Input, now time.Time) (Outcome, error) {
	if in.ChoiceID == "" {
		return Outcome{}, reject(desc.Kind, CodeEmptyInput, "choose an ending")
	}
	c, ok := desc.Choice(in.ChoiceID)
	if !ok {
		return Outcome{}, reject(desc.Kind, CodeUnknownOption, "unknown ending %q", in.ChoiceID)
	}
	rec := newRecord(session.StatusChosen, now)
	rec["choice_id"] = c.ID
	out := outcome(desc, rec, now)
	out.Ending = c.ID
	return out, nil
}

func findChoice(choices []story.Choice, id string) (story.Choice, bool) {
	for _, c := range choices {
		if c.ID == id {
			return c, true
		}
	}
	return story.Choice{}, false
}
