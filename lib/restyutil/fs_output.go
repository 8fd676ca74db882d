package restyutil

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// FilesystemOutput writes one transcript file per request under a
// directory. The directory is cleared on construction so a run only
// ever contains its own transcripts.
type FilesystemOutput struct {
	dir string
}

func NewFilesystemOutput(dir string) (FilesystemOutput, error) {
	if err := os.RemoveAll(dir); err != nil {
		return FilesystemOutput{}, fmt.Errorf("clear transcript dir: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return FilesystemOutput{}, fmt.Errorf("create transcript dir: %w", err)
	}
	return FilesystemOutput{dir: dir}, nil
}

func (o FilesystemOutput) Write(id string, contents string) {
	path := filepath.Join(o.dir, id+".txt")
	if err := os.WriteFile(path, []byte(contents), 0600); err != nil {
		slog.Warn("failed to write http transcript", "id", id, "err", err)
	}
}
