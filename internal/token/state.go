package token

import (
	"sync/atomic"

	"secondpilot/internal/core"
)

// State holds the cached session token. It is created by the owner of a
// Manager and handed to it; a zero State holds no token.
//
// The token and its expiry are stored as one immutable value behind an atomic
// pointer, so readers never observe a token paired with another token's expiry.
type State struct {
	current atomic.Pointer[core.SessionToken]
}

// NewState returns an empty State.
func NewState() *State {
	return &State{}
}

// Load returns the cached token. ok is false if nothing has been stored yet.
func (s *State) Load() (tok core.SessionToken, ok bool) {
	p := s.current.Load()
	if p == nil {
		return core.SessionToken{}, false
	}
	return *p, true
}

// Store replaces the cached token and expiry in a single step.
func (s *State) Store(tok core.SessionToken) {
	s.current.Store(&tok)
}
