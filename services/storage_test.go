package services

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllowedFile(t *testing.T) {
	tests := []struct {
		filename string
		allowed  bool
	}{
		{"report.pdf", true},
		{"report.PDF", true},
		{"data.xlsx", true},
		{"notes.txt", true},
		{"photo.jpeg", true},
		{"archive.zip", true},
		{"script.sh", false},
		{"binary.exe", false},
		{"noextension", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			require.Equal(t, tt.allowed, AllowedFile(tt.filename))
		})
	}
}

func TestFileExtension(t *testing.T) {
	require.Equal(t, "pdf", FileExtension("report.pdf"))
	require.Equal(t, "docx", FileExtension("Letter.DOCX"))
	require.Equal(t, "gz", FileExtension("archive.tar.gz"))
	require.Equal(t, "", FileExtension("noextension"))
}

func TestSanitizeFilename(t *testing.T) {
	require.Equal(t, "report.pdf", SanitizeFilename("report.pdf"))
	require.NotContains(t, SanitizeFilename("../../etc/passwd"), "/")
	require.NotContains(t, SanitizeFilename("a\\b:c*d.pdf"), "\\")
	require.NotContains(t, SanitizeFilename("file name?.pdf"), "?")
}

func TestFileStoreSaveAndHash(t *testing.T) {
	store := NewFileStore(t.TempDir())

	content := "hello mipyme"
	size, hash, err := store.Save("doc.txt", strings.NewReader(content))
	require.NoError(t, err)
	require.Equal(t, int64(len(content)), size)

	expected := sha256.Sum256([]byte(content))
	require.Equal(t, hex.EncodeToString(expected[:]), hash)

	require.True(t, store.Exists("doc.txt"))
	require.False(t, store.Exists("other.txt"))

	// HashFile agrees with the hash computed during save
	onDisk, err := HashFile(store.Path("doc.txt"))
	require.NoError(t, err)
	require.Equal(t, hash, onDisk)
}

func TestFileStoreRemove(t *testing.T) {
	store := NewFileStore(t.TempDir())

	_, _, err := store.Save("doc.txt", strings.NewReader("data"))
	require.NoError(t, err)

	require.NoError(t, store.Remove("doc.txt"))
	require.False(t, store.Exists("doc.txt"))

	// Removing a missing file is not an error
	require.NoError(t, store.Remove("doc.txt"))
}
