// Package delivery saves a converted presentation somewhere the user can
// open it. A delivery failure never changes the conversion result; callers
// report it as a secondary notice.
package delivery

import (
	"context"
	"errors"
	"fmt"
)

// ContentTypePPTX is the media type of a PowerPoint presentation.
const ContentTypePPTX = "application/vnd.openxmlformats-officedocument.presentationml.presentation"

// Artifact is the binary output of a successful conversion.
type Artifact struct {
	Bytes       []byte
	Filename    string
	ContentType string
}

// Receipt describes where an artifact ended up.
type Receipt struct {
	// Location is a filesystem path or URL.
	Location string
}

// Deliverer hands an artifact to the user.
type Deliverer interface {
	Deliver(ctx context.Context, a Artifact) (Receipt, error)
}

// ErrCanceled is returned when the user dismisses a save dialog.
var ErrCanceled = errors.New("save canceled by user")

// Error wraps a failed delivery with the sink that produced it.
type Error struct {
	Sink string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s delivery failed: %v", e.Sink, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Notice renders err as the lower-severity message shown after a
// successful conversion whose artifact could not be saved.
func Notice(filename string, err error) string {
	if errors.Is(err, ErrCanceled) {
		return fmt.Sprintf("Conversion succeeded, but %s was not saved (save canceled).", filename)
	}
	return fmt.Sprintf("Conversion succeeded, but %s could not be saved: %v", filename, err)
}
