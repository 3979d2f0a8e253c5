package delivery

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// LocalSink writes artifacts into a directory.
type LocalSink struct {
	Dir string
}

// Deliver writes a.Bytes to Dir/a.Filename through a temporary file and a
// rename, so a partially written presentation is never left behind.
func (s LocalSink) Deliver(_ context.Context, a Artifact) (Receipt, error) {
	dir := s.Dir
	if dir == "" {
		dir = "."
	}
	dest := filepath.Join(dir, filepath.Base(a.Filename))
	if err := writeFileAtomic(dest, a.Bytes); err != nil {
		return Receipt{}, &Error{Sink: "local", Err: err}
	}
	log.Info().Str("path", dest).Int("bytes", len(a.Bytes)).Msg("Presentation saved")
	return Receipt{Location: dest}, nil
}

func writeFileAtomic(dest string, data []byte) error {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".noteppt-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", dest, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}
