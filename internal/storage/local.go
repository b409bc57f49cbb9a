package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxFileSize is the upload ceiling in bytes (5MB decoded).
const MaxFileSize = 5 << 20

var allowedExtensions = map[string]bool{
	".stl":  true,
	".obj":  true,
	".3mf":  true,
	".step": true,
	".stp":  true,
}

var (
	ErrFileTooLarge    = errors.New("file exceeds the 5MB upload limit")
	ErrFileTypeInvalid = errors.New("file type not allowed (stl, obj, 3mf, step, stp)")
)

// LocalStorage writes uploaded model files to the local filesystem.
type LocalStorage struct {
	baseDir   string // root directory on disk, e.g. "./uploads"
	urlPrefix string // public prefix the files are served under, e.g. "/uploads"
}

func NewLocalStorage(baseDir, urlPrefix string) *LocalStorage {
	return &LocalStorage{baseDir: baseDir, urlPrefix: urlPrefix}
}

// Save validates the file against the size and extension constraints,
// then writes it under a collision-resistant generated name. It returns
// the public path of the stored file.
func (s *LocalStorage) Save(fileName string, data []byte) (string, error) {
	if err := ValidateFile(fileName, int64(len(data))); err != nil {
		return "", err
	}

	key := GenerateFileName(fileName)
	dest := filepath.Join(s.baseDir, key)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("storage: mkdir: %w", err)
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return "", fmt.Errorf("storage: write: %w", err)
	}

	return s.urlPrefix + "/" + key, nil
}

// Delete removes a previously stored file. Missing files are not an error.
func (s *LocalStorage) Delete(key string) error {
	dest := filepath.Join(s.baseDir, filepath.Base(key))
	if err := os.Remove(dest); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: remove: %w", err)
	}
	return nil
}

// ValidateFile checks size and extension constraints before any bytes are
// written to durable storage.
func ValidateFile(fileName string, size int64) error {
	if size > MaxFileSize {
		return ErrFileTooLarge
	}
	ext := strings.ToLower(filepath.Ext(fileName))
	if !allowedExtensions[ext] {
		return ErrFileTypeInvalid
	}
	return nil
}

// GenerateFileName builds a collision-resistant name from a timestamp, a
// random token and the sanitized original name.
func GenerateFileName(original string) string {
	token := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("%s-%s-%s", time.Now().Format("20060102-150405"), token, sanitizeFileName(original))
}

// sanitizeFileName strips path components and replaces anything outside
// [a-zA-Z0-9._-] so the original name cannot escape the upload directory.
func sanitizeFileName(name string) string {
	name = filepath.Base(name)
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return b.String()
}
