package persist

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/HendryAvila/storymap/internal/linkage"
)

// SessionFile is the default filename for the file backend.
const SessionFile = "session.json"

// FileStore implements linkage.Persister with a single JSON file.
type FileStore struct {
	path string
}

// NewFileStore creates a file-backed store at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the session file location.
func (fs *FileStore) Path() string {
	return fs.path
}

// Read loads the session file. A missing file is not an error.
func (fs *FileStore) Read(ctx context.Context) (*linkage.State, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(fs.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading session file: %w", err)
	}
	return Decode(data)
}

// Write replaces the session file. The document is written to a temp file
// in the same directory and renamed over the old one, so a failed write
// leaves the previous session intact.
func (fs *FileStore) Write(ctx context.Context, st *linkage.State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := Encode(st)
	if err != nil {
		return err
	}

	dir := filepath.Dir(fs.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating session directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".session-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp session file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing temp session file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("syncing temp session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp session file: %w", err)
	}

	if err := os.Rename(tmpPath, fs.path); err != nil {
		return fmt.Errorf("replacing session file: %w", err)
	}
	return nil
}
