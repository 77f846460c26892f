package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrNotAllowed = errors.New("file type not allowed")
	ErrNotFound   = errors.New("file not found")
	ErrBadName    = errors.New("invalid file name")
)

var allowedExtensions = map[string]bool{
	".mp4": true, ".avi": true, ".mov": true, ".mkv": true, ".webm": true,
	".mp3": true, ".wav": true, ".m4a": true,
	".png": true, ".jpg": true, ".jpeg": true,
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Store keeps uploaded media and rendered outputs in two directories.
type Store struct {
	uploadDir string
	outputDir string
}

func New(uploadDir, outputDir string) (*Store, error) {
	for _, dir := range []string{uploadDir, outputDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return &Store{uploadDir: uploadDir, outputDir: outputDir}, nil
}

// checks the extension against the upload allow-list
func IsAllowed(name string) bool {
	return allowedExtensions[strings.ToLower(filepath.Ext(name))]
}

// SecureFilename reduces a client supplied name to a safe base name: any
// directory part is dropped and runs of characters outside [A-Za-z0-9._-]
// become a single underscore. Leading dots are removed so the result is
// never hidden or a relative path element.
func SecureFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	name = unsafeChars.ReplaceAllString(name, "_")
	name = strings.TrimLeft(name, "._")
	if name == "" || name == "." {
		return ""
	}
	return name
}

// Save writes r to the upload directory under a sanitised name and returns
// that name.
func (s *Store) Save(name string, r io.Reader) (string, error) {
	safe := SecureFilename(name)
	if safe == "" {
		return "", ErrBadName
	}
	if !IsAllowed(safe) {
		return "", fmt.Errorf("%w: %s", ErrNotAllowed, filepath.Ext(safe))
	}

	path := filepath.Join(s.uploadDir, safe)
	tmp, err := os.CreateTemp(s.uploadDir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create upload file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("failed to write upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close upload: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("failed to store upload: %w", err)
	}
	return safe, nil
}

// UploadPath resolves an uploaded file by name. The file must exist.
func (s *Store) UploadPath(name string) (string, error) {
	return resolve(s.uploadDir, name)
}

// OutputPath resolves a rendered output by name. The file must exist.
func (s *Store) OutputPath(name string) (string, error) {
	return resolve(s.outputDir, name)
}

// NewOutput returns a fresh output file name and its absolute path.
func (s *Store) NewOutput(prefix, ext string) (string, string) {
	name := uuid.New().String() + ext
	if prefix != "" {
		name = prefix + "_" + name
	}
	return name, filepath.Join(s.outputDir, name)
}

func (s *Store) OutputDir() string {
	return s.outputDir
}

func resolve(dir, name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", ErrBadName
	}
	path := filepath.Join(dir, name)
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return path, nil
}
