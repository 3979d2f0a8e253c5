// Package conversion submits PDF to PPTX jobs to the backend and tracks the
// lifecycle of a submission.
package conversion

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fpang/noteppt-cli/internal/provider"
)

// MaxSourceSize is the largest PDF accepted for upload (20 MiB).
const MaxSourceSize = 20 << 20

// SourceFile is the PDF selected for conversion.
type SourceFile struct {
	Name string
	Size int64
	Open func() (io.ReadCloser, error)
}

// LoadSourceFile describes the file at path. The content is read lazily at
// submission time.
func LoadSourceFile(path string) (*SourceFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	return &SourceFile{
		Name: filepath.Base(path),
		Size: info.Size(),
		Open: func() (io.ReadCloser, error) { return os.Open(path) },
	}, nil
}

// NewSourceBytes wraps in-memory content as a SourceFile.
func NewSourceBytes(name string, data []byte) *SourceFile {
	return &SourceFile{
		Name: name,
		Size: int64(len(data)),
		Open: func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(data)), nil },
	}
}

// Options are the user-selected conversion toggles.
type Options struct {
	RemoveWatermark bool
	GenerateNotes   bool
}

// Request is one conversion job as configured by the user.
type Request struct {
	Source   *SourceFile
	Provider provider.ID
	// CredentialOverride is sent with this request only and never stored.
	CredentialOverride string
	Options            Options

	Model       string
	ContextText string
	DPI         int
}

// PreconditionKind classifies a request rejected before any network call.
type PreconditionKind int

const (
	PreconditionNoFile PreconditionKind = iota
	PreconditionUnsupportedFormat
	PreconditionTooLarge
	PreconditionUnknownProvider
	PreconditionNoIdentity
	PreconditionUnreadable
)

// PreconditionError reports a request that cannot be submitted.
type PreconditionError struct {
	Kind    PreconditionKind
	Message string
	Err     error
}

func (e *PreconditionError) Error() string {
	return e.Message
}

func (e *PreconditionError) Unwrap() error {
	return e.Err
}

// ErrNoFile is the precondition error for a request without a source file.
var ErrNoFile = &PreconditionError{Kind: PreconditionNoFile, Message: "Please select a PDF file first."}

// Validate checks the local preconditions of r.
func (r Request) Validate() error {
	if r.Source == nil {
		return ErrNoFile
	}
	if !strings.EqualFold(filepath.Ext(r.Source.Name), ".pdf") {
		return &PreconditionError{
			Kind:    PreconditionUnsupportedFormat,
			Message: fmt.Sprintf("%s is not a PDF file.", r.Source.Name),
		}
	}
	if r.Source.Size > MaxSourceSize {
		return &PreconditionError{
			Kind:    PreconditionTooLarge,
			Message: fmt.Sprintf("%s is larger than the 20MB limit.", r.Source.Name),
		}
	}
	if !r.Provider.Valid() {
		return &PreconditionError{
			Kind:    PreconditionUnknownProvider,
			Message: fmt.Sprintf("Unknown provider %q.", string(r.Provider)),
			Err:     &provider.UnknownError{Value: string(r.Provider)},
		}
	}
	if r.DPI < 0 {
		return &PreconditionError{
			Kind:    PreconditionUnsupportedFormat,
			Message: "DPI must not be negative.",
		}
	}
	return nil
}

// HasOverride reports whether a per-call credential is attached.
func (r Request) HasOverride() bool {
	return strings.TrimSpace(r.CredentialOverride) != ""
}
