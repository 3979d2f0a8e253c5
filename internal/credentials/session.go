package credentials

import "sync"

// Session owns the credential StatusMap for one identity. All access goes
// through its methods so a Transition is applied atomically.
type Session struct {
	mu     sync.Mutex
	status StatusMap
}

// NewSession creates a Session with an empty status map.
func NewSession() *Session {
	return &Session{status: StatusMap{}}
}

// Load replaces the status map, typically with the result of FetchStatus.
func (s *Session) Load(m StatusMap) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = m.Clone()
}

// Apply applies t and returns the resulting map.
func (s *Session) Apply(t Transition) StatusMap {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = s.status.Apply(t)
	return s.status.Clone()
}

// Snapshot returns a copy of the current map.
func (s *Session) Snapshot() StatusMap {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status.Clone()
}

// SecretField models the input that holds a secret until it is submitted.
type SecretField struct {
	mu    sync.Mutex
	value string
}

// Set stores v.
func (f *SecretField) Set(v string) {
	f.mu.Lock()
	f.value = v
	f.mu.Unlock()
}

// Value returns the current content.
func (f *SecretField) Value() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value
}

// Clear discards the content.
func (f *SecretField) Clear() {
	f.Set("")
}

// Empty reports whether the field holds nothing.
func (f *SecretField) Empty() bool {
	return f.Value() == ""
}
