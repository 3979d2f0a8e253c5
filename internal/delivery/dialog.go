package delivery

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/ncruces/zenity"
	"github.com/rs/zerolog/log"
)

// SavePicker asks the user for a destination path, starting at suggested.
type SavePicker func(suggested string) (string, error)

// DialogSink asks for a destination with a native save dialog, then writes
// the artifact there.
type DialogSink struct {
	// Dir is the directory the dialog opens in.
	Dir string
	// Pick overrides the native dialog; nil uses zenity.
	Pick SavePicker
}

// Deliver shows the dialog and writes the file. Dismissing the dialog is
// reported as ErrCanceled.
func (s DialogSink) Deliver(_ context.Context, a Artifact) (Receipt, error) {
	pick := s.Pick
	if pick == nil {
		pick = zenitySavePicker
	}

	suggested := filepath.Base(a.Filename)
	if s.Dir != "" {
		suggested = filepath.Join(s.Dir, suggested)
	}

	dest, err := pick(suggested)
	if err != nil {
		if errors.Is(err, zenity.ErrCanceled) {
			err = ErrCanceled
		}
		return Receipt{}, &Error{Sink: "dialog", Err: err}
	}
	if filepath.Ext(dest) == "" {
		dest += ".pptx"
	}

	if err := writeFileAtomic(dest, a.Bytes); err != nil {
		return Receipt{}, &Error{Sink: "dialog", Err: err}
	}
	log.Info().Str("path", dest).Int("bytes", len(a.Bytes)).Msg("Presentation saved")
	return Receipt{Location: dest}, nil
}

func zenitySavePicker(suggested string) (string, error) {
	return zenity.SelectFileSave(
		zenity.Title("Save presentation"),
		zenity.Filename(suggested),
		zenity.ConfirmOverwrite(),
		zenity.FileFilters{
			{Name: "PowerPoint presentations", Patterns: []string{"*.pptx"}, CaseFold: true},
		},
	)
}
