package syncclient

import (
	"sync"

	"github.com/roach88/waypoint/internal/session"
)

// Credentials is the session-scoped credential cache. It is memory only;
// the PIN is never written to durable storage.
type Credentials struct {
	mu      sync.Mutex
	profile session.Profile
	pin     string
	active  bool
	pending string
}

// Set stores an accepted credential.
func (c *Credentials) Set(p session.Profile, pin string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.profile, c.pin, c.active = p, pin, true
	c.pending = ""
}

// Get returns the active credential.
func (c *Credentials) Get() (session.Profile, string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.profile, c.pin, c.active
}

// Evict drops the PIN and remembers the trainer name for the
// re-authentication prompt.
func (c *Credentials) Evict(trainerName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pin, c.active = "", false
	if trainerName != "" {
		c.pending = trainerName
	}
}

// Clear drops everything, including the pending trainer name.
func (c *Credentials) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.profile, c.pin, c.active, c.pending = session.Profile{}, "", false, ""
}

// Pending returns the trainer name to prefill on re-authentication.
func (c *Credentials) Pending() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}
