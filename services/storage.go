package services

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

// allowedExtensions lists the file types accepted for document upload.
var allowedExtensions = map[string]bool{
	"pdf":  true,
	"doc":  true,
	"docx": true,
	"xls":  true,
	"xlsx": true,
	"txt":  true,
	"jpg":  true,
	"jpeg": true,
	"png":  true,
	"zip":  true,
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// FileStore provides filesystem-based storage for uploaded documents.
// Files are stored under the configured directory as "<id>.<extension>".
type FileStore struct {
	dir   string
	mutex sync.RWMutex
}

// NewFileStore creates a file store rooted at the specified directory
func NewFileStore(dir string) *FileStore {
	if err := os.MkdirAll(dir, 0755); err != nil {
		slog.Error("Failed to create storage directory", "dir", dir, "error", err)
	}
	return &FileStore{dir: dir}
}

// Dir returns the root directory of the store.
func (fs *FileStore) Dir() string {
	return fs.dir
}

// AllowedFile reports whether the filename carries an accepted extension.
func AllowedFile(filename string) bool {
	return allowedExtensions[FileExtension(filename)]
}

// FileExtension returns the lowercased extension without the leading dot.
func FileExtension(filename string) string {
	ext := filepath.Ext(filename)
	if ext == "" {
		return ""
	}
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// SanitizeFilename strips path components and replaces characters that are
// unsafe in a filename, keeping the original name usable for display and
// download headers.
func SanitizeFilename(filename string) string {
	name := filepath.Base(filename)
	name = strings.ReplaceAll(name, " ", "_")
	name = unsafeFilenameChars.ReplaceAllString(name, "")
	name = strings.Trim(name, "._")
	if name == "" {
		name = "file"
	}
	return name
}

// Save writes the content of r to storedName inside the store and returns
// the number of bytes written and the SHA256 hex digest of the content.
func (fs *FileStore) Save(storedName string, r io.Reader) (int64, string, error) {
	fs.mutex.Lock()
	defer fs.mutex.Unlock()

	path := filepath.Join(fs.dir, storedName)
	f, err := os.Create(path)
	if err != nil {
		return 0, "", fmt.Errorf("failed to create file: %w", err)
	}

	hasher := sha256.New()
	size, err := io.Copy(io.MultiWriter(f, hasher), r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return 0, "", fmt.Errorf("failed to write file: %w", err)
	}

	return size, hex.EncodeToString(hasher.Sum(nil)), nil
}

// Path returns the absolute location of a stored file.
func (fs *FileStore) Path(storedName string) string {
	return filepath.Join(fs.dir, storedName)
}

// Exists reports whether a stored file is present on disk.
func (fs *FileStore) Exists(storedName string) bool {
	fs.mutex.RLock()
	defer fs.mutex.RUnlock()

	_, err := os.Stat(filepath.Join(fs.dir, storedName))
	return err == nil
}

// Remove deletes a stored file. Missing files are not an error.
func (fs *FileStore) Remove(storedName string) error {
	fs.mutex.Lock()
	defer fs.mutex.Unlock()

	err := os.Remove(filepath.Join(fs.dir, storedName))
	if err != nil && !os.IsNotExist(err) {
		slog.Error("Failed to remove stored file", "file", storedName, "error", err)
		return err
	}
	return nil
}

// HashFile computes the SHA256 hex digest of an arbitrary file on disk.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", fmt.Errorf("failed to hash file: %w", err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
