package fs

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"savesaver/internal/saver"
)

// OSCopier copies files on the real filesystem. Writes go through a temp
// file in the destination directory followed by a rename, so a crash or a
// failed read of a half-written save never leaves a truncated backup behind.
// Source permissions and modification time are carried over; snapshot
// ordering relies on the latter.
type OSCopier struct{}

// NewOSCopier creates a copier backed by the os package.
func NewOSCopier() *OSCopier { return &OSCopier{} }

// CopyFile copies src to dst, replacing dst if it exists.
func (c *OSCopier) CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening source: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	dir := filepath.Dir(dst)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return fmt.Errorf("copying data: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Chmod(tmpPath, info.Mode().Perm()); err != nil {
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err := os.Chtimes(tmpPath, info.ModTime(), info.ModTime()); err != nil {
		return fmt.Errorf("setting file times: %w", err)
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}

	success = true
	return nil
}

// Compile-time check that OSCopier implements saver.FileCopier.
var _ saver.FileCopier = (*OSCopier)(nil)
