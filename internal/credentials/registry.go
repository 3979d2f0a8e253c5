// Package credentials tracks which providers have a secret on file for the
// current identity. The secret values themselves are submitted to the
// backend and never retained here.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/fpang/noteppt-cli/internal/provider"
)

// StatusMap records, per provider, whether a credential is on file.
// A missing entry means false.
type StatusMap map[provider.ID]bool

// Has reports whether a credential is on file for id.
func (m StatusMap) Has(id provider.ID) bool {
	return m[id]
}

// Clone returns an independent copy of m.
func (m StatusMap) Clone() StatusMap {
	out := make(StatusMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Apply returns a copy of m with t applied. m is not modified.
func (m StatusMap) Apply(t Transition) StatusMap {
	out := m.Clone()
	if t.Provider != "" {
		out[t.Provider] = t.Saved
	}
	return out
}

// Transition is the state change produced by a successful save. The caller
// applies it to the session's StatusMap.
type Transition struct {
	Provider provider.ID
	Saved    bool
}

// Backend is the subset of the transport used by the Registry.
type Backend interface {
	GetKeys(ctx context.Context) (map[string]bool, error)
	SaveKey(ctx context.Context, providerID, apiKey string) error
}

// ErrEmptySecret is returned when Save is called without a secret.
var ErrEmptySecret = errors.New("credential is empty")

// SaveError wraps a failed save. Callers show a generic notice.
type SaveError struct {
	Provider provider.ID
	Err      error
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("save credential for %s: %v", e.Provider, e.Err)
}

func (e *SaveError) Unwrap() error {
	return e.Err
}

// Registry queries and updates credential status on the backend.
type Registry struct {
	backend Backend
}

// NewRegistry creates a Registry over the given backend.
func NewRegistry(b Backend) *Registry {
	return &Registry{backend: b}
}

// FetchStatus returns the credential status for the identity in ctx.
// It is best effort: any failure degrades to an empty map so the rest of the
// CLI is never blocked on it. Unknown providers in the response are ignored.
func (r *Registry) FetchStatus(ctx context.Context) StatusMap {
	raw, err := r.backend.GetKeys(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to fetch credential status; assuming none saved")
		return StatusMap{}
	}

	out := make(StatusMap, len(raw))
	for name, saved := range raw {
		id, err := provider.Parse(name)
		if err != nil {
			log.Debug().Str("provider", name).Msg("Ignoring unknown provider in credential status")
			continue
		}
		out[id] = saved
	}
	log.Debug().Int("providers", len(out)).Msg("Credential status fetched")
	return out
}

// Save submits secret for id. On success it returns the transition the
// caller must apply; on failure it returns a *SaveError and no transition.
func (r *Registry) Save(ctx context.Context, id provider.ID, secret string) (Transition, error) {
	if !id.Valid() {
		return Transition{}, &SaveError{Provider: id, Err: &provider.UnknownError{Value: string(id)}}
	}
	if strings.TrimSpace(secret) == "" {
		return Transition{}, &SaveError{Provider: id, Err: ErrEmptySecret}
	}

	if err := r.backend.SaveKey(ctx, string(id), secret); err != nil {
		log.Error().Err(err).Str("provider", string(id)).Msg("Credential save failed")
		return Transition{}, &SaveError{Provider: id, Err: err}
	}

	log.Info().Str("provider", string(id)).Msg("Credential saved")
	return Transition{Provider: id, Saved: true}, nil
}
