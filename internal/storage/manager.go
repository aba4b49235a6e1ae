package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CleanupStatus is the outcome of releasing a file resource.
type CleanupStatus string

const (
	CleanupRemoved       CleanupStatus = "removed"
	CleanupAlreadyAbsent CleanupStatus = "already_absent"
	CleanupReleaseFailed CleanupStatus = "release_failed"
)

// CleanupResult reports what happened to a released file. A ReleaseFailed
// result carries the underlying error; callers log it but never let it
// abort the surrounding session deletion.
type CleanupResult struct {
	Path   string
	Status CleanupStatus
	Err    error
}

// Manager owns the upload and processed directories on the local
// filesystem.
type Manager struct {
	uploadDir    string
	processedDir string
}

// NewManager creates both directories if needed.
func NewManager(uploadDir, processedDir string) (*Manager, error) {
	for _, dir := range []string{uploadDir, processedDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}
	return &Manager{uploadDir: uploadDir, processedDir: processedDir}, nil
}

// SaveUpload writes an uploaded template under a unique name and returns
// its path. A partial write is removed.
func (m *Manager) SaveUpload(filename string, r io.Reader) (string, error) {
	name := fmt.Sprintf("%s_%s_%s",
		uuid.New().String(),
		time.Now().Format("20060102_150405"),
		SanitizeFilename(filename),
	)
	path := filepath.Join(m.uploadDir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating upload file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("writing upload file: %w", err)
	}
	return path, nil
}

// Release removes a file owned by a session. Absence is not an error: a
// reset after completion may race the artifact registry's expiry.
func (m *Manager) Release(path string) CleanupResult {
	if path == "" {
		return CleanupResult{Path: path, Status: CleanupAlreadyAbsent}
	}
	err := os.Remove(path)
	switch {
	case err == nil:
		return CleanupResult{Path: path, Status: CleanupRemoved}
	case os.IsNotExist(err):
		return CleanupResult{Path: path, Status: CleanupAlreadyAbsent}
	default:
		return CleanupResult{Path: path, Status: CleanupReleaseFailed, Err: err}
	}
}

// ProcessedPath resolves a generated document filename inside the
// processed directory. The name is sanitized so a crafted filename cannot
// escape the directory.
func (m *Manager) ProcessedPath(filename string) (string, error) {
	name := SanitizeFilename(filename)
	if name == "" {
		return "", fmt.Errorf("empty filename")
	}
	return filepath.Join(m.processedDir, name), nil
}

// UploadDir returns the upload directory path.
func (m *Manager) UploadDir() string { return m.uploadDir }

// ProcessedDir returns the processed directory path.
func (m *Manager) ProcessedDir() string { return m.processedDir }

// SanitizeFilename strips path separators and any character outside
// [A-Za-z0-9._-], so stored names are safe to join onto a directory.
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '_' || r == '-':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "." || out == ".." {
		return ""
	}
	return out
}
