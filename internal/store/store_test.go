package store

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ghmirror/internal/mirror"
)

func newTestStore() *FileStore {
	return New(mirror.NewNopLogger())
}

func TestFileStore_Install(t *testing.T) {
	t.Run("installs blob and symlink", func(t *testing.T) {
		s := newTestStore()
		dest := filepath.Join(t.TempDir(), "repo", "master", "file.txt")

		oldSHA, err := s.Install(dest, strings.NewReader("hello world"), 11, "abc123")
		if err != nil {
			t.Fatalf("Install() error = %v", err)
		}
		if oldSHA != "" {
			t.Errorf("oldSHA = %q, want empty", oldSHA)
		}

		target, err := os.Readlink(dest)
		if err != nil {
			t.Fatalf("Readlink() error = %v", err)
		}
		if want := filepath.Join(ShaDirName, "abc123"); target != want {
			t.Errorf("symlink target = %q, want %q", target, want)
		}

		data, err := os.ReadFile(dest)
		if err != nil {
			t.Fatalf("ReadFile() error = %v", err)
		}
		if string(data) != "hello world" {
			t.Errorf("content = %q, want %q", data, "hello world")
		}

		info, err := os.Stat(filepath.Join(filepath.Dir(dest), ShaDirName, "abc123"))
		if err != nil {
			t.Fatalf("Stat(blob) error = %v", err)
		}
		if perm := info.Mode().Perm(); perm != 0644 {
			t.Errorf("blob permissions = %o, want 0644", perm)
		}
	})

	t.Run("replacement removes the superseded blob", func(t *testing.T) {
		s := newTestStore()
		dest := filepath.Join(t.TempDir(), "file.txt")

		if _, err := s.Install(dest, strings.NewReader("one"), 3, "sha-one"); err != nil {
			t.Fatalf("first Install() error = %v", err)
		}
		oldSHA, err := s.Install(dest, strings.NewReader("two!"), 4, "sha-two")
		if err != nil {
			t.Fatalf("second Install() error = %v", err)
		}
		if oldSHA != "sha-one" {
			t.Errorf("oldSHA = %q, want %q", oldSHA, "sha-one")
		}

		oldBlob := filepath.Join(filepath.Dir(dest), ShaDirName, "sha-one")
		if _, err := os.Stat(oldBlob); !os.IsNotExist(err) {
			t.Errorf("superseded blob still exists")
		}

		data, _ := os.ReadFile(dest)
		if string(data) != "two!" {
			t.Errorf("content = %q, want %q", data, "two!")
		}
	})

	t.Run("reinstalling the same hash keeps the blob", func(t *testing.T) {
		s := newTestStore()
		dest := filepath.Join(t.TempDir(), "file.txt")

		if _, err := s.Install(dest, strings.NewReader("same"), 4, "sha-same"); err != nil {
			t.Fatalf("first Install() error = %v", err)
		}
		oldSHA, err := s.Install(dest, strings.NewReader("same"), 4, "sha-same")
		if err != nil {
			t.Fatalf("second Install() error = %v", err)
		}
		if oldSHA != "sha-same" {
			t.Errorf("oldSHA = %q, want %q", oldSHA, "sha-same")
		}

		data, err := os.ReadFile(dest)
		if err != nil {
			t.Fatalf("ReadFile() error = %v", err)
		}
		if string(data) != "same" {
			t.Errorf("content = %q, want %q", data, "same")
		}
	})

	t.Run("size mismatch leaves no scratch file and no blob", func(t *testing.T) {
		s := newTestStore()
		dir := t.TempDir()
		dest := filepath.Join(dir, "file.txt")

		_, err := s.Install(dest, strings.NewReader("short"), 100, "sha-x")
		var sizeErr *mirror.SizeMismatchError
		if !errors.As(err, &sizeErr) {
			t.Fatalf("Install() error = %v, want SizeMismatchError", err)
		}
		if sizeErr.Expected != 100 || sizeErr.Actual != 5 {
			t.Errorf("SizeMismatchError = %+v, want Expected=100 Actual=5", sizeErr)
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			t.Fatal(err)
		}
		for _, e := range entries {
			if e.Name() != ShaDirName {
				t.Errorf("unexpected file left behind: %s", e.Name())
			}
		}
		if _, err := os.Stat(filepath.Join(dir, ShaDirName, "sha-x")); !os.IsNotExist(err) {
			t.Errorf("blob exists after size mismatch")
		}
	})

	t.Run("unknown size skips verification", func(t *testing.T) {
		s := newTestStore()
		dest := filepath.Join(t.TempDir(), "file.txt")

		if _, err := s.Install(dest, strings.NewReader("any length"), mirror.SizeUnknown, "sha-y"); err != nil {
			t.Fatalf("Install() error = %v", err)
		}
	})

	t.Run("destination untouched after failed install", func(t *testing.T) {
		s := newTestStore()
		dest := filepath.Join(t.TempDir(), "file.txt")

		if _, err := s.Install(dest, strings.NewReader("good"), 4, "sha-good"); err != nil {
			t.Fatalf("Install() error = %v", err)
		}
		if _, err := s.Install(dest, strings.NewReader("bad"), 99, "sha-bad"); err == nil {
			t.Fatal("Install() expected error")
		}

		data, err := os.ReadFile(dest)
		if err != nil {
			t.Fatalf("ReadFile() error = %v", err)
		}
		if string(data) != "good" {
			t.Errorf("content = %q, want %q (old state must survive)", data, "good")
		}
	})
}

func TestFileStore_Skip(t *testing.T) {
	s := newTestStore()
	dest := filepath.Join(t.TempDir(), "file.txt")
	if _, err := s.Install(dest, strings.NewReader("hello"), 5, "sha-h"); err != nil {
		t.Fatalf("Install() error = %v", err)
	}

	tests := []struct {
		name string
		desc mirror.LeafDescriptor
		want bool
	}{
		{name: "matching hash and size", desc: mirror.LeafDescriptor{SHA: "sha-h", Size: 5}, want: true},
		{name: "different hash", desc: mirror.LeafDescriptor{SHA: "sha-other", Size: 5}, want: false},
		{name: "different size", desc: mirror.LeafDescriptor{SHA: "sha-h", Size: 6}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Skip(dest, tt.desc); got != tt.want {
				t.Errorf("Skip() = %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("missing destination", func(t *testing.T) {
		if s.Skip(filepath.Join(t.TempDir(), "absent"), mirror.LeafDescriptor{SHA: "x", Size: 1}) {
			t.Error("Skip() = true for missing destination")
		}
	})

	t.Run("regular file destination", func(t *testing.T) {
		plain := filepath.Join(t.TempDir(), "plain.txt")
		if err := os.WriteFile(plain, []byte("hello"), 0644); err != nil {
			t.Fatal(err)
		}
		if s.Skip(plain, mirror.LeafDescriptor{SHA: "sha-h", Size: 5}) {
			t.Error("Skip() = true for a regular file")
		}
	})

	t.Run("dangling symlink", func(t *testing.T) {
		dir := t.TempDir()
		link := filepath.Join(dir, "dangling")
		if err := os.Symlink(filepath.Join(ShaDirName, "sha-gone"), link); err != nil {
			t.Fatal(err)
		}
		if s.Skip(link, mirror.LeafDescriptor{SHA: "sha-gone", Size: 5}) {
			t.Error("Skip() = true for a dangling symlink")
		}
	})
}

func TestFileStore_Adopt(t *testing.T) {
	t.Run("repoints to an existing blob", func(t *testing.T) {
		s := newTestStore()
		dir := t.TempDir()
		dest := filepath.Join(dir, "file.txt")

		blobDir := filepath.Join(dir, ShaDirName)
		if err := os.MkdirAll(blobDir, 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(blobDir, "sha-a"), []byte("stored"), 0644); err != nil {
			t.Fatal(err)
		}

		oldSHA, ok, err := s.Adopt(dest, mirror.LeafDescriptor{SHA: "sha-a", Size: 6})
		if err != nil {
			t.Fatalf("Adopt() error = %v", err)
		}
		if !ok {
			t.Fatal("Adopt() ok = false, want true")
		}
		if oldSHA != "" {
			t.Errorf("oldSHA = %q, want empty", oldSHA)
		}

		data, err := os.ReadFile(dest)
		if err != nil {
			t.Fatalf("ReadFile() error = %v", err)
		}
		if string(data) != "stored" {
			t.Errorf("content = %q, want %q", data, "stored")
		}
	})

	t.Run("declines when blob is absent", func(t *testing.T) {
		s := newTestStore()
		dest := filepath.Join(t.TempDir(), "file.txt")

		_, ok, err := s.Adopt(dest, mirror.LeafDescriptor{SHA: "sha-none", Size: 6})
		if err != nil {
			t.Fatalf("Adopt() error = %v", err)
		}
		if ok {
			t.Error("Adopt() ok = true for absent blob")
		}
	})

	t.Run("declines when blob size differs", func(t *testing.T) {
		s := newTestStore()
		dir := t.TempDir()
		dest := filepath.Join(dir, "file.txt")

		blobDir := filepath.Join(dir, ShaDirName)
		if err := os.MkdirAll(blobDir, 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(blobDir, "sha-b"), []byte("six by"), 0644); err != nil {
			t.Fatal(err)
		}

		_, ok, err := s.Adopt(dest, mirror.LeafDescriptor{SHA: "sha-b", Size: 999})
		if err != nil {
			t.Fatalf("Adopt() error = %v", err)
		}
		if ok {
			t.Error("Adopt() ok = true for wrong-size blob")
		}
	})
}

func TestFileStore_Current(t *testing.T) {
	t.Run("reports installed state", func(t *testing.T) {
		s := newTestStore()
		dest := filepath.Join(t.TempDir(), "file.txt")
		if _, err := s.Install(dest, strings.NewReader("hello"), 5, "sha-c"); err != nil {
			t.Fatalf("Install() error = %v", err)
		}

		sha, size, ok := s.Current(dest)
		if !ok {
			t.Fatal("Current() ok = false")
		}
		if sha != "sha-c" {
			t.Errorf("sha = %q, want %q", sha, "sha-c")
		}
		if size != 5 {
			t.Errorf("size = %d, want 5", size)
		}
	})

	t.Run("reports absence", func(t *testing.T) {
		s := newTestStore()
		if _, _, ok := s.Current(filepath.Join(t.TempDir(), "absent")); ok {
			t.Error("Current() ok = true for missing destination")
		}
	})
}

func TestFileStore_RemoveStray(t *testing.T) {
	s := newTestStore()

	t.Run("removes a regular file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "stray.txt")
		if err := os.WriteFile(path, []byte("partial"), 0644); err != nil {
			t.Fatal(err)
		}
		if err := s.RemoveStray(path); err != nil {
			t.Fatalf("RemoveStray() error = %v", err)
		}
		if _, err := os.Lstat(path); !os.IsNotExist(err) {
			t.Error("regular file still present")
		}
	})

	t.Run("leaves a symlink alone", func(t *testing.T) {
		dir := t.TempDir()
		link := filepath.Join(dir, "link")
		if err := os.Symlink(filepath.Join(ShaDirName, "whatever"), link); err != nil {
			t.Fatal(err)
		}
		if err := s.RemoveStray(link); err != nil {
			t.Fatalf("RemoveStray() error = %v", err)
		}
		if _, err := os.Lstat(link); err != nil {
			t.Errorf("symlink removed: %v", err)
		}
	})

	t.Run("missing path is fine", func(t *testing.T) {
		if err := s.RemoveStray(filepath.Join(t.TempDir(), "absent")); err != nil {
			t.Errorf("RemoveStray() error = %v", err)
		}
	})
}
