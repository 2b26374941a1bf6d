package authority

import (
	"errors"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/roach88/waypoint/internal/api"
	"github.com/roach88/waypoint/internal/session"
)

var (
	errUnknownProfile = errors.New("unknown trainer")
	errBadPIN         = errors.New("incorrect PIN")
)

type profile struct {
	id          string
	trainerName string
	pinHash     []byte
	metadata    map[string]any
	session     session.Session
	events      []api.Event
	seen        map[string]bool
}

func newProfileID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// authenticate returns the profile for id if pin matches. Callers hold s.mu.
func (s *Server) authenticate(id, pin string) (*profile, error) {
	p, ok := s.profiles[id]
	if !ok {
		return nil, errUnknownProfile
	}
	if err := bcrypt.CompareHashAndPassword(p.pinHash, []byte(pin)); err != nil {
		return nil, errBadPIN
	}
	return p, nil
}

// lookup finds a profile by trainer name. Callers hold s.mu.
func (s *Server) lookup(name string) (*profile, bool) {
	id, ok := s.byName[normalizeName(name)]
	if !ok {
		return nil, false
	}
	return s.profiles[id], true
}

// create registers a new profile. Callers hold s.mu.
func (s *Server) create(name, pin string, metadata map[string]any) (*profile, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), s.cost)
	if err != nil {
		return nil, err
	}
	p := &profile{
		id:          s.newID(),
		trainerName: name,
		pinHash:     hash,
		metadata:    metadata,
		session:     session.New(),
		seen:        make(map[string]bool),
	}
	s.profiles[p.id] = p
	s.byName[normalizeName(name)] = p.id
	return p, nil
}

// record appends ev unless its id was already seen. Callers hold s.mu.
func (p *profile) record(ev *api.Event) {
	if ev == nil {
		return
	}
	if ev.ID != "" {
		if p.seen[ev.ID] {
			return
		}
		p.seen[ev.ID] = true
	}
	p.events = append(p.events, *ev)
}

// Events returns the events recorded for a profile, in arrival order.
func (s *Server) Events(profileID string) []api.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[profileID]
	if !ok {
		return nil
	}
	return append([]api.Event(nil), p.events...)
}

// Grant applies u to a profile's stored session without gating or
// re-validation. It is the operator path for seeding development data;
// no HTTP route reaches it.
func (s *Server) Grant(profileID string, u session.Update) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[profileID]
	if !ok {
		return false
	}
	p.session = session.ApplyLocal(p.session, u)
	return true
}

// Session returns a copy of the stored session for a profile.
func (s *Server) Session(profileID string) (session.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[profileID]
	if !ok {
		return session.Session{}, false
	}
	return p.session.Clone(), true
}
