// Package storage defines the response archive file-system abstraction.
package storage

import "github.com/starford/vitalplan/internal/models"

// Provider is the interface for archive file operations.
type Provider interface {
	// List returns metadata for every archived response under dir (relative to archive root).
	List(dir string) ([]models.ArchivedResponse, error)
	// Read returns the raw bytes of the file at path (relative to archive root).
	Read(path string) ([]byte, error)
	// Write atomically writes content to path (relative to archive root).
	Write(path string, content []byte) error
	// Delete removes the file at path (relative to archive root).
	Delete(path string) error
}
