package authority

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/roach88/waypoint/internal/api"
	"github.com/roach88/waypoint/internal/minigame"
	"github.com/roach88/waypoint/internal/session"
	"github.com/roach88/waypoint/internal/story"
)

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, api.StatusResponse{Enabled: s.enabled.Load()})
}

func (s *Server) handleStory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.graph)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	var req api.ProfileRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, api.CodeBadRequest, "invalid body", nil)
		return
	}
	name := strings.TrimSpace(req.TrainerName)
	if name == "" || !validPIN(req.PIN) {
		writeError(w, http.StatusBadRequest, api.CodeBadRequest, "trainer name and a 4-digit PIN are required", nil)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.lookup(name)
	if !ok {
		if !req.CreateIfMissing {
			writeError(w, http.StatusNotFound, api.CodeUnknown, "no trainer with that name", nil)
			return
		}
		created, err := s.create(name, req.PIN, req.Metadata)
		if err != nil {
			s.logger.Error("create profile", "error", err)
			writeError(w, http.StatusInternalServerError, api.CodeInternal, "could not create profile", nil)
			return
		}
		s.logger.Info("profile created", "profile_id", created.id)
		writeJSON(w, http.StatusOK, created.snapshot())
		return
	}

	if _, err := s.authenticate(p.id, req.PIN); err != nil {
		s.logger.Info("profile auth rejected", "profile_id", p.id)
		writeError(w, http.StatusUnauthorized, api.CodeBadPIN, err.Error(), nil)
		return
	}
	writeJSON(w, http.StatusOK, p.snapshot())
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	var req api.SessionRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, api.CodeBadRequest, "invalid body", nil)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.authenticate(req.ProfileID, req.PIN)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	base := p.session
	if req.Reset {
		base = session.New()
	}
	var delta session.Update
	if req.State != nil {
		delta = *req.State
	}

	// Flags and the ending are only written by /minigame, after validation.
	if len(delta.ProgressFlags) > 0 {
		writeError(w, http.StatusUnprocessableEntity, api.CodeServerOwned, "progress flags are set by challenge submissions", nil)
		return
	}
	if delta.EndingChoice != nil || delta.EndedAt != nil {
		writeError(w, http.StatusUnprocessableEntity, api.CodeServerOwned, "the ending is set by the ending choice", nil)
		return
	}

	if delta.CurrentAct != nil && *delta.CurrentAct > base.CurrentAct {
		target := *delta.CurrentAct
		if _, ok := s.graph.Act(target); !ok {
			writeError(w, http.StatusBadRequest, api.CodeInvalidAct, "unknown act", nil)
			return
		}
		flags := base.FlagKeys()
		for act := base.CurrentAct + 1; act <= target; act++ {
			if missing := s.gates.Missing(act, flags); len(missing) > 0 {
				s.logger.Info("act advance refused", "profile_id", p.id, "act", act, "missing", missing)
				writeError(w, http.StatusConflict, api.CodeMissingFlags, "required flags missing", missing)
				return
			}
		}
	}

	p.session = session.ApplyLocal(base, delta)
	p.record(req.Event)
	writeJSON(w, http.StatusOK, p.snapshot())
}

func (s *Server) handleMinigame(w http.ResponseWriter, r *http.Request) {
	kind := story.Kind(mux.Vars(r)["kind"])

	var req api.MinigameRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, api.CodeBadRequest, "invalid body", nil)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.authenticate(req.ProfileID, req.PIN)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	scene, ok := s.graph.Scene(req.SceneID)
	if !ok || scene.Minigame == nil {
		writeError(w, http.StatusBadRequest, api.CodeUnknownScene, "scene has no challenge", nil)
		return
	}
	desc := *scene.Minigame
	if desc.Kind != kind {
		writeError(w, http.StatusBadRequest, api.CodeKindMismatch, "scene challenge is "+string(desc.Kind), nil)
		return
	}

	if desc.Kind == story.KindEndingChoice && p.session.Ended() &&
		(p.session.EndingChoice == nil || *p.session.EndingChoice != req.ChoiceID) {
		writeError(w, http.StatusConflict, api.CodeEnded, "an ending was already chosen", nil)
		return
	}

	// Flags are immutable; a repeated submission returns the stored state.
	if p.session.HasFlag(desc.SuccessFlag) {
		writeJSON(w, http.StatusOK, p.snapshot())
		return
	}

	update, err := s.validate(desc, req, s.clock.Now())
	if err != nil {
		code := string(minigame.RejectionCodeOf(err))
		if code == "" {
			code = api.CodeRejected
		}
		writeError(w, http.StatusUnprocessableEntity, code, err.Error(), nil)
		return
	}

	p.session = session.ApplyLocal(p.session, update)
	p.record(req.Event)
	s.logger.Info("flag recorded", "profile_id", p.id, "kind", desc.Kind, "flag", desc.SuccessFlag)
	writeJSON(w, http.StatusOK, p.snapshot())
}

// validate re-runs the challenge check. Timed games cannot be replayed, so
// the client's record is accepted when it reports a finished game.
func (s *Server) validate(desc story.Minigame, req api.MinigameRequest, now time.Time) (session.Update, error) {
	switch desc.Kind {
	case story.KindReflex, story.KindPattern:
		want := session.StatusCompleted
		if desc.Kind == story.KindPattern {
			want = session.StatusWon
		}
		if req.Record.Status() != want {
			return session.Update{}, &minigame.Rejection{
				Kind: desc.Kind, Code: minigame.CodeNotFinished, Message: "challenge not finished",
			}
		}
		rec := make(session.FlagRecord, len(req.Record)+1)
		for k, v := range req.Record {
			rec[k] = v
		}
		rec["validated_at"] = now.UTC().Format(time.RFC3339Nano)
		return session.Update{ProgressFlags: map[string]session.FlagRecord{desc.SuccessFlag: rec}}, nil
	}

	out, err := s.validators.Validate(desc, minigame.Input{
		Code:     req.Code,
		Position: req.Position,
		ChoiceID: req.ChoiceID,
		Answers:  req.Answers,
	}, now)
	if err != nil {
		return session.Update{}, err
	}
	return out.Update(), nil
}

func writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errUnknownProfile):
		writeError(w, http.StatusNotFound, api.CodeUnknown, err.Error(), nil)
	default:
		writeError(w, http.StatusUnauthorized, api.CodeBadPIN, err.Error(), nil)
	}
}
