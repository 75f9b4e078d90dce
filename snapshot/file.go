package snapshot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FileSink writes documents into a local directory.
type FileSink struct {
	Dir string
}

func (f FileSink) Write(ctx context.Context, name string, body []byte) (string, error) {
	if err := os.MkdirAll(f.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create export directory %s: %w", f.Dir, err)
	}
	path := filepath.Join(f.Dir, name)
	// Write next to the target and rename so readers never see a partial file.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, body, 0o644); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", err
	}
	return path, nil
}
