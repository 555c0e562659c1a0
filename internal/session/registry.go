package session

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// DefaultID is the session used when a caller does not name one.
const DefaultID = "default"

// Factory builds the session for id.
type Factory func(id string) (*Session, error)

// Registry owns the sessions of one host process.
type Registry struct {
	factory Factory

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry(factory Factory) *Registry {
	return &Registry{
		factory:  factory,
		sessions: make(map[string]*Session),
	}
}

// Get returns an existing session.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[normalizeID(id)]
	return s, ok
}

// GetOrCreate returns the session for id, building it on first use.
func (r *Registry) GetOrCreate(id string) (*Session, error) {
	id = normalizeID(id)
	if !validID(id) {
		return nil, fmt.Errorf("invalid session id %q", id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		return s, nil
	}
	s, err := r.factory(id)
	if err != nil {
		return nil, fmt.Errorf("create session %s: %w", id, err)
	}
	r.sessions[id] = s
	return s, nil
}

// List returns all sessions ordered by id.
func (r *Registry) List() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b *Session) int { return strings.Compare(a.id, b.id) })
	return out
}

// StopAll stops every session and joins their errors.
func (r *Registry) StopAll() error {
	var errs []error
	for _, s := range r.List() {
		if err := s.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop session %s: %w", s.id, err))
		}
	}
	return errors.Join(errs...)
}

func normalizeID(id string) string {
	if id = strings.TrimSpace(id); id == "" {
		return DefaultID
	}
	return id
}

// validID accepts ids usable as a stream path element.
func validID(id string) bool {
	if len(id) > 64 {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}
