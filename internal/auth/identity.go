package auth

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Identity is the opaque per-session token attached to backend requests.
// It is never parsed or inspected.
type Identity string

// String masks the token so it cannot leak through %v formatting.
func (i Identity) String() string {
	if i == "" {
		return ""
	}
	return "[identity]"
}

type identityKey struct{}

// WithIdentity returns a context carrying the identity token.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the identity carried by ctx, if any.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok && id != ""
}

// IdentitySource produces an identity token. GetIdentity bound to a flag
// value is the production source.
type IdentitySource func(ctx context.Context) (Identity, error)

// ExplicitSource adapts GetIdentity to an IdentitySource.
func ExplicitSource(explicit string) IdentitySource {
	return func(context.Context) (Identity, error) {
		return GetIdentity(explicit)
	}
}

// IdentityTask is an in-flight identity resolution. Dependents call Wait to
// receive the published token; the source runs exactly once.
type IdentityTask struct {
	done chan struct{}
	once sync.Once

	id  Identity
	err error
}

// ResolveIdentity starts resolving the identity in the background.
func ResolveIdentity(ctx context.Context, src IdentitySource) *IdentityTask {
	t := &IdentityTask{done: make(chan struct{})}
	go func() {
		id, err := src(ctx)
		t.finish(id, err)
	}()
	return t
}

// ResolvedIdentity returns an already-completed task, for callers that
// obtained the token some other way.
func ResolvedIdentity(id Identity) *IdentityTask {
	t := &IdentityTask{done: make(chan struct{})}
	t.finish(id, nil)
	return t
}

func (t *IdentityTask) finish(id Identity, err error) {
	t.once.Do(func() {
		t.id, t.err = id, err
		if err != nil {
			log.Debug().Err(err).Msg("Identity resolution failed")
		} else {
			log.Debug().Msg("Identity resolved")
		}
		close(t.done)
	})
}

// Done is closed once resolution has completed.
func (t *IdentityTask) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the identity is resolved or ctx is done.
func (t *IdentityTask) Wait(ctx context.Context) (Identity, error) {
	select {
	case <-t.done:
		return t.id, t.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Bind waits for the identity and returns ctx carrying it.
func (t *IdentityTask) Bind(ctx context.Context) (context.Context, error) {
	id, err := t.Wait(ctx)
	if err != nil {
		return ctx, err
	}
	return WithIdentity(ctx, id), nil
}
