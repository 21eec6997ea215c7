// Package storage defines the file-system abstraction over the seed
// definitions directory.
package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"
	"time"
)

// DefinitionFile describes one object definition file on disk.
type DefinitionFile struct {
	Path      string    // relative to the provider root, slash separated
	Checksum  string    // hex SHA-256 of the content
	UpdatedAt time.Time // file modification time
}

// Provider is the interface for definition file operations.
type Provider interface {
	// List returns metadata for every definition file under dir (relative to root).
	List(dir string) ([]DefinitionFile, error)
	// Read returns the raw bytes of the file at path (relative to root).
	Read(path string) ([]byte, error)
	// Write atomically writes content to path (relative to root).
	Write(path string, content []byte) error
	// Root returns the absolute directory the provider serves.
	Root() string
}

// IsDefinition reports whether name looks like an object definition file.
func IsDefinition(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Checksum returns the hex SHA-256 of a definition file's content. It is the
// value reported in DefinitionFile.Checksum.
func Checksum(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
