// CLAUDE:SUMMARY Document file IO: atomic content writes, auxiliary directory replacement, size accounting.
package chanstore

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// WriteDocument writes a document's content atomically at its location.
func (s *Store) WriteDocument(location string, data []byte) error {
	return writeAtomic(s.AbsPath(location), data)
}

// ReadDocument returns a document's content.
func (s *Store) ReadDocument(location string) (string, error) {
	data, err := os.ReadFile(s.AbsPath(location))
	if err != nil {
		return "", fmt.Errorf("reservoir: read document %s: %w", location, err)
	}
	return string(data), nil
}

// ReplaceAux replaces the document's auxiliary-resource directory with the
// given files (relative path → bytes). Any prior directory is removed first;
// with no files the document simply ends up without one.
func (s *Store) ReplaceAux(location string, files map[string][]byte) error {
	dir := s.AuxDir(location)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("reservoir: clear aux dir %s: %w", location, err)
	}
	if len(files) == 0 {
		return nil
	}
	for rel, data := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("reservoir: aux dir %s: %w", location, err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("reservoir: write aux %s/%s: %w", location, rel, err)
		}
	}
	return nil
}

// RemoveDocument deletes a document's file and auxiliary directory.
func (s *Store) RemoveDocument(location string) error {
	if err := os.Remove(s.AbsPath(location)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reservoir: remove document %s: %w", location, err)
	}
	if err := os.RemoveAll(s.AuxDir(location)); err != nil {
		return fmt.Errorf("reservoir: remove aux %s: %w", location, err)
	}
	return nil
}

// DocumentSize returns the on-disk footprint of a document: its file plus
// everything under its auxiliary directory. Missing files count as zero.
func (s *Store) DocumentSize(location string) int64 {
	var total int64
	if info, err := os.Stat(s.AbsPath(location)); err == nil {
		total += info.Size()
	}
	filepath.WalkDir(s.AuxDir(location), func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			total += info.Size()
		}
		return nil
	})
	return total
}
