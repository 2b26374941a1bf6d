// Package authority is an in-process reference implementation of the remote
// profile/session service the sync client talks to.
//
// It is the source of truth for sessions. PINs are stored as bcrypt hashes,
// act advances are gated on the server's own flag table (409 when flags are
// missing), flags and the ending are written only by challenge submissions,
// location and code challenges are re-validated before a flag is written,
// and an existing flag is never overwritten. State lives in memory
// behind a single mutex; the server is meant for development and tests.
package authority

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"

	"github.com/roach88/waypoint/internal/api"
	"github.com/roach88/waypoint/internal/clock"
	"github.com/roach88/waypoint/internal/minigame"
	"github.com/roach88/waypoint/internal/nav"
	"github.com/roach88/waypoint/internal/session"
	"github.com/roach88/waypoint/internal/story"
)

// Server serves the profile/session REST surface.
type Server struct {
	graph      *story.Graph
	gates      nav.Gates
	validators *minigame.Registry
	clock      clock.Clock
	logger     *slog.Logger
	cost       int
	newID      func() string
	enabled    atomic.Bool

	mu       sync.Mutex
	profiles map[string]*profile // by id
	byName   map[string]string   // normalized trainer name -> id
}

// Option configures a Server.
type Option func(*Server)

// WithClock sets the clock used to stamp validated flags.
func WithClock(c clock.Clock) Option {
	return func(s *Server) { s.clock = c }
}

// WithBcryptCost sets the PIN hashing cost. Tests use bcrypt.MinCost.
func WithBcryptCost(cost int) Option {
	return func(s *Server) { s.cost = cost }
}

// WithIDs sets the profile id generator.
func WithIDs(gen func() string) Option {
	return func(s *Server) { s.newID = gen }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithEnabled sets the initial feature flag.
func WithEnabled(on bool) Option {
	return func(s *Server) { s.enabled.Store(on) }
}

// New returns a server for graph. The server is enabled by default.
func New(graph *story.Graph, opts ...Option) *Server {
	s := &Server{
		graph:      graph,
		gates:      nav.NewController(graph).Gates(),
		validators: minigame.NewRegistry(nil),
		clock:      clock.System{},
		logger:     slog.Default(),
		cost:       bcrypt.DefaultCost,
		newID:      newProfileID,
		profiles:   make(map[string]*profile),
		byName:     make(map[string]string),
	}
	s.enabled.Store(true)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetEnabled flips the feature flag reported by /status.
func (s *Server) SetEnabled(on bool) {
	s.enabled.Store(on)
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc(api.PathStatus, s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc(api.PathStory, s.handleStory).Methods(http.MethodGet)
	r.HandleFunc(api.PathProfile, s.requireEnabled(s.handleProfile)).Methods(http.MethodPost)
	r.HandleFunc(api.PathSession, s.requireEnabled(s.handleSession)).Methods(http.MethodPost)
	r.HandleFunc(api.PathMinigame, s.requireEnabled(s.handleMinigame)).Methods(http.MethodPost)
	return r
}

func (s *Server) requireEnabled(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.enabled.Load() {
			writeError(w, http.StatusServiceUnavailable, api.CodeDisabled, "quest is not enabled", nil)
			return
		}
		next(w, r)
	}
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func validPIN(pin string) bool {
	if len(pin) != 4 {
		return false
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string, missing []string) {
	writeJSON(w, status, api.ErrorResponse{Code: code, Error: msg, Missing: missing})
}

// snapshot builds the response body. Callers hold s.mu.
func (p *profile) snapshot() session.Snapshot {
	return session.Snapshot{
		Profile: session.Profile{ID: p.id, TrainerName: p.trainerName},
		Session: p.session.Clone(),
	}
}
