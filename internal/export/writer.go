package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/nerrad567/sunwatch/internal/telemetry"
)

const (
	filePrefix = "solar_snapshot_"
	timeLayout = "20060102_150405"

	// maxCollisions bounds the suffix search for same-second exports.
	maxCollisions = 100

	dirPerm  = 0o755
	filePerm = 0o644
)

// Writer persists snapshots as indented JSON files in one directory.
//
// Thread Safety:
//   - Safe for concurrent use; files are created with O_EXCL.
type Writer struct {
	dir string
	now func() time.Time
}

// NewWriter creates a Writer for dir. The directory is created on first write.
func NewWriter(dir string) *Writer {
	if dir == "" {
		dir = "."
	}
	return &Writer{dir: dir, now: time.Now}
}

// Dir returns the export directory.
func (w *Writer) Dir() string {
	return w.dir
}

// Write stores snap and returns the path of the new file.
//
// Parameters:
//   - snap: the snapshot to export; nil yields ErrNoSnapshot
//
// Returns:
//   - string: path of the created file
//   - error: ErrNoSnapshot, or ErrWriteFailed wrapping the cause
func (w *Writer) Write(snap *telemetry.Snapshot) (string, error) {
	if snap == nil {
		return "", ErrNoSnapshot
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("%w: encoding snapshot: %w", ErrWriteFailed, err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(w.dir, dirPerm); err != nil {
		return "", fmt.Errorf("%w: creating %s: %w", ErrWriteFailed, w.dir, err)
	}

	base := filePrefix + w.now().Format(timeLayout)
	for i := 0; i < maxCollisions; i++ {
		name := base + ".json"
		if i > 0 {
			name = fmt.Sprintf("%s_%d.json", base, i)
		}
		path := filepath.Join(w.dir, name)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrWriteFailed, err)
		}

		if _, err := f.Write(data); err != nil {
			f.Close()
			os.Remove(path)
			return "", fmt.Errorf("%w: %w", ErrWriteFailed, err)
		}
		if err := f.Close(); err != nil {
			os.Remove(path)
			return "", fmt.Errorf("%w: %w", ErrWriteFailed, err)
		}
		return path, nil
	}

	return "", fmt.Errorf("%w: too many exports at %s", ErrWriteFailed, base)
}
