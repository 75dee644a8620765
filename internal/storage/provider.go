// Package storage persists run state files under the cache directory.
package storage

// Provider is the interface for state file operations. Paths are relative to the state root.
type Provider interface {
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// ReadJSON decodes the file at path into v.
	ReadJSON(path string, v any) error
	// WriteJSON atomically writes v as JSON to path.
	WriteJSON(path string, v any) error
	// Rename atomically replaces to with from.
	Rename(from, to string) error
	// Delete removes the file at path. Missing files are not an error.
	Delete(path string) error
	// Abs returns the absolute location of path.
	Abs(path string) (string, error)
}
