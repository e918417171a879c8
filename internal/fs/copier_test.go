package fs_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"savesaver/internal/fs"
)

func TestOSCopier_CopyFile(t *testing.T) {
	t.Run("copies content and preserves mtime", func(t *testing.T) {
		dir := t.TempDir()
		src := filepath.Join(dir, "src.bin")
		dst := filepath.Join(dir, "dst.bin")

		if err := os.WriteFile(src, []byte("save data"), 0640); err != nil {
			t.Fatalf("write: %v", err)
		}
		mtime := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
		if err := os.Chtimes(src, mtime, mtime); err != nil {
			t.Fatalf("chtimes: %v", err)
		}

		if err := fs.NewOSCopier().CopyFile(src, dst); err != nil {
			t.Fatalf("CopyFile() error = %v", err)
		}

		data, err := os.ReadFile(dst)
		if err != nil {
			t.Fatalf("read dst: %v", err)
		}
		if string(data) != "save data" {
			t.Errorf("content = %q, want %q", data, "save data")
		}

		info, err := os.Stat(dst)
		if err != nil {
			t.Fatalf("stat dst: %v", err)
		}
		if !info.ModTime().Equal(mtime) {
			t.Errorf("mtime = %v, want %v", info.ModTime(), mtime)
		}
		if info.Mode().Perm() != 0640 {
			t.Errorf("perm = %v, want 0640", info.Mode().Perm())
		}
	})

	t.Run("replaces an existing destination", func(t *testing.T) {
		dir := t.TempDir()
		src := filepath.Join(dir, "src.bin")
		dst := filepath.Join(dir, "dst.bin")
		if err := os.WriteFile(src, []byte("new"), 0644); err != nil {
			t.Fatalf("write: %v", err)
		}
		if err := os.WriteFile(dst, []byte("old"), 0644); err != nil {
			t.Fatalf("write: %v", err)
		}

		if err := fs.NewOSCopier().CopyFile(src, dst); err != nil {
			t.Fatalf("CopyFile() error = %v", err)
		}
		data, _ := os.ReadFile(dst)
		if string(data) != "new" {
			t.Errorf("content = %q, want %q", data, "new")
		}
	})

	t.Run("missing source errors and leaves no temp files", func(t *testing.T) {
		dir := t.TempDir()
		err := fs.NewOSCopier().CopyFile(filepath.Join(dir, "missing"), filepath.Join(dir, "dst"))
		if err == nil {
			t.Fatal("expected an error for a missing source")
		}

		entries, readErr := os.ReadDir(dir)
		if readErr != nil {
			t.Fatalf("readdir: %v", readErr)
		}
		if len(entries) != 0 {
			t.Errorf("directory has %d leftover entries, want 0", len(entries))
		}
	})
}
