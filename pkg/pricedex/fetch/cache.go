package fetch

import (
	"os"
	"path/filepath"
	"strings"
)

// Cache is a file-backed response cache. Entries are keyed by the
// dataset's logical path and stored as plain files under Dir.
type Cache struct {
	Dir string
}

// Read returns the cached text for key, reporting whether an entry
// exists. A missing entry is not an error.
func (c *Cache) Read(key string) (string, bool, error) {
	data, err := os.ReadFile(c.pathFor(key))
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return string(data), true, nil
}

// Write stores text under key, creating the cache directory on first
// use.
func (c *Cache) Write(key, text string) error {
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(c.pathFor(key), []byte(text), 0o644)
}

// Purge removes the entry for key. Purging a missing entry is a no-op.
func (c *Cache) Purge(key string) error {
	if err := os.Remove(c.pathFor(key)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (c *Cache) pathFor(key string) string {
	return filepath.Join(c.Dir, sanitizeKey(key))
}

// sanitizeKey flattens a logical path into a single safe file name.
func sanitizeKey(key string) string {
	key = strings.Trim(key, "/")
	if key == "" {
		key = "dataset"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '-' || r == '_':
			return r
		default:
			return '_'
		}
	}, key)
}
