package conversion

import "github.com/fpang/noteppt-cli/internal/delivery"

// Artifact is the presentation produced by a successful job.
type Artifact = delivery.Artifact

// FailureKind classifies a failed job.
type FailureKind string

const (
	FailurePrecondition FailureKind = "precondition"
	FailureTransport    FailureKind = "transport"
	FailureBackend      FailureKind = "backend"
)

// Outcome is either Success or Failure.
type Outcome interface {
	outcome()
}

// Success carries the artifact returned by the backend.
type Success struct {
	Artifact Artifact
}

// Failure carries the message shown to the user.
type Failure struct {
	Message string
	Kind    FailureKind
}

func (Success) outcome() {}
func (Failure) outcome() {}
