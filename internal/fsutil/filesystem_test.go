package fsutil

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func TestOSFileSystem_WriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "out.geojson")

	var osfs OSFileSystem
	if err := osfs.WriteFileAtomic(target, []byte(`{"type":"FeatureCollection","features":[]}`), 0644); err != nil {
		t.Fatalf("WriteFileAtomic failed: %v", err)
	}

	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read back failed: %v", err)
	}
	if len(data) == 0 {
		t.Error("expected non-empty file")
	}

	// No temp files may be left behind.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("got %d entries in dir, want 1", len(entries))
	}
}

func TestOSFileSystem_WriteFileAtomic_Overwrites(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "out.json")

	var osfs OSFileSystem
	if err := osfs.WriteFileAtomic(target, []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := osfs.WriteFileAtomic(target, []byte("new"), 0644); err != nil {
		t.Fatal(err)
	}

	data, _ := os.ReadFile(target)
	if string(data) != "new" {
		t.Errorf("got %q, want %q", string(data), "new")
	}
}

func TestMemoryFileSystem_ReadWrite(t *testing.T) {
	mem := NewMemoryFileSystem()

	if mem.Exists("data/cells.csv") {
		t.Error("file should not exist before write")
	}

	if err := mem.WriteFile("data/cells.csv", []byte("GridID,Pop\n"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	data, err := mem.ReadFile("data/cells.csv")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "GridID,Pop\n" {
		t.Errorf("got %q", string(data))
	}

	info, err := mem.Stat("data/cells.csv")
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Size() != int64(len(data)) {
		t.Errorf("size = %d, want %d", info.Size(), len(data))
	}
}

func TestMemoryFileSystem_ReadMissing(t *testing.T) {
	mem := NewMemoryFileSystem()
	_, err := mem.ReadFile("nope.json")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("got err %v, want fs.ErrNotExist", err)
	}
}

func TestMemoryFileSystem_FailWrites(t *testing.T) {
	mem := NewMemoryFileSystem()
	wantErr := errors.New("disk full")
	mem.FailWrites = wantErr

	if err := mem.WriteFileAtomic("out.json", []byte("x"), 0644); !errors.Is(err, wantErr) {
		t.Errorf("got err %v, want %v", err, wantErr)
	}
	if mem.Exists("out.json") {
		t.Error("failed write must not create the file")
	}
}

func TestMemoryFileSystem_MkdirAllAndRemove(t *testing.T) {
	mem := NewMemoryFileSystem()
	if err := mem.MkdirAll("a/b/c", 0755); err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{"a", "a/b", "a/b/c"} {
		if !mem.Exists(p) {
			t.Errorf("expected dir %q to exist", p)
		}
	}

	if err := mem.WriteFile("a/b/c/file.txt", []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := mem.Remove("a/b/c/file.txt"); err != nil {
		t.Fatal(err)
	}
	if mem.Exists("a/b/c/file.txt") {
		t.Error("file should be removed")
	}
	if err := mem.Remove("a/b/c/file.txt"); err == nil {
		t.Error("removing a missing file should error")
	}
}
