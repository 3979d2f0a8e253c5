package credentials

import (
	"context"

	"github.com/fpang/noteppt-cli/internal/provider"
)

// SaveFromField submits the field's secret for id. On success the transition
// is applied to session and the field is cleared; on failure neither is
// touched.
func SaveFromField(ctx context.Context, r *Registry, session *Session, field *SecretField, id provider.ID) (StatusMap, error) {
	t, err := r.Save(ctx, id, field.Value())
	if err != nil {
		return session.Snapshot(), err
	}
	field.Clear()
	return session.Apply(t), nil
}
