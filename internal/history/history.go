// Package history journals finished conversion jobs so past results can be
// listed later. Records never contain secrets or identity tokens.
package history

import (
	"context"
	"time"

	"github.com/fpang/noteppt-cli/internal/conversion"
)

// Record is one finished conversion job.
type Record struct {
	ID             string    `dynamodbav:"id"`
	SourceName     string    `dynamodbav:"sourceName"`
	SourceSize     int64     `dynamodbav:"sourceSize"`
	Provider       string    `dynamodbav:"provider"`
	State          string    `dynamodbav:"state"`
	Error          string    `dynamodbav:"error,omitempty"`
	DeliveryNotice string    `dynamodbav:"deliveryNotice,omitempty"`
	Artifact       string    `dynamodbav:"artifact,omitempty"`
	Location       string    `dynamodbav:"location,omitempty"`
	StartedAt      time.Time `dynamodbav:"startedAt"`
	FinishedAt     time.Time `dynamodbav:"finishedAt"`
}

// Duration returns how long the job ran.
func (r Record) Duration() time.Duration {
	if r.FinishedAt.IsZero() || r.StartedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Store persists records. Put performs full replacement keyed by ID.
type Store interface {
	Put(ctx context.Context, r *Record) error
	// List returns up to limit records, newest first. limit <= 0 means all.
	List(ctx context.Context, limit int) ([]Record, error)
	Close() error
}

// FromSnapshot builds a record from a terminal machine snapshot.
func FromSnapshot(s conversion.Snapshot) Record {
	r := Record{
		ID:             s.JobID,
		SourceName:     s.Request.SourceName,
		SourceSize:     s.Request.SourceSize,
		Provider:       string(s.Request.Provider),
		State:          string(s.State),
		Error:          s.Error,
		DeliveryNotice: s.DeliveryNotice,
		Location:       s.Location,
		StartedAt:      s.StartedAt,
		FinishedAt:     s.FinishedAt,
	}
	if s.Artifact != nil {
		r.Artifact = s.Artifact.Filename
	}
	return r
}

// Nop discards records.
type Nop struct{}

func (Nop) Put(context.Context, *Record) error          { return nil }
func (Nop) List(context.Context, int) ([]Record, error) { return nil, nil }
func (Nop) Close() error                                { return nil }

var _ Store = Nop{}
