package store

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"ghmirror/internal/mirror"
)

// ShaDirName is the content-addressed subdirectory kept beside each
// destination. Blobs inside it are named by their content hash.
const ShaDirName = ".sha"

// FileStore implements mirror.Store on a local filesystem. Layout, per
// destination parent directory:
//
//	<parent>/
//	  .sha/
//	    <sha>        (blob files, named by content hash)
//	  <name>         (symlink to .sha/<sha>)
//
// The scratch file, the blob directory, and the destination all share one
// filesystem, so every move in the protocol is an atomic rename.
type FileStore struct {
	logger mirror.Logger
}

// New creates a FileStore. logger may be a NopLogger.
func New(logger mirror.Logger) *FileStore {
	return &FileStore{logger: logger}
}

var _ mirror.Store = (*FileStore)(nil)

// Skip reports whether dest already references the described content:
// dest is a symlink, its resolved size equals desc.Size, and the symlink
// target's basename equals desc.SHA.
func (s *FileStore) Skip(dest string, desc mirror.LeafDescriptor) bool {
	fi, err := os.Lstat(dest)
	if err != nil || fi.Mode()&os.ModeSymlink == 0 {
		return false
	}

	target, err := os.Readlink(dest)
	if err != nil || filepath.Base(target) != desc.SHA {
		return false
	}

	// Stat follows the symlink; a dangling link fails here and forces a
	// re-download.
	resolved, err := os.Stat(dest)
	if err != nil {
		return false
	}
	return resolved.Size() == desc.Size
}

// Current returns the hash and size dest currently references.
func (s *FileStore) Current(dest string) (string, int64, bool) {
	fi, err := os.Lstat(dest)
	if err != nil || fi.Mode()&os.ModeSymlink == 0 {
		return "", 0, false
	}
	target, err := os.Readlink(dest)
	if err != nil {
		return "", 0, false
	}
	resolved, err := os.Stat(dest)
	if err != nil {
		// Dangling symlink: report the hash it names, size unknown.
		return filepath.Base(target), 0, true
	}
	return filepath.Base(target), resolved.Size(), true
}

// Adopt completes an interrupted install: if the blob for desc.SHA is
// already stored with the expected size, dest is repointed at it without
// any download.
func (s *FileStore) Adopt(dest string, desc mirror.LeafDescriptor) (string, bool, error) {
	blobPath := filepath.Join(filepath.Dir(dest), ShaDirName, desc.SHA)
	fi, err := os.Stat(blobPath)
	if err != nil || !fi.Mode().IsRegular() {
		return "", false, nil
	}
	if desc.Size != mirror.SizeUnknown && fi.Size() != desc.Size {
		return "", false, nil
	}

	oldSHA, err := s.repoint(dest, desc.SHA)
	if err != nil {
		return "", false, err
	}
	return oldSHA, true, nil
}

// Install runs the download-verify-install protocol:
//
//  1. Stream r to a uniquely named scratch file in dest's parent.
//  2. Verify the byte count against expectedSize (skipped when it is
//     mirror.SizeUnknown).
//  3. chmod the scratch file to 0644.
//  4. Rename it into the blob directory under sha. Overwriting an existing
//     blob of the same name is harmless: identical hash, identical bytes.
//  5. Repoint dest at the new blob, then best-effort delete the blob it
//     previously referenced.
//
// On any failure the scratch file is removed and dest is left untouched.
func (s *FileStore) Install(dest string, r io.Reader, expectedSize int64, sha string) (oldSHA string, err error) {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", &mirror.StorageError{Op: "creating directory", Path: dir, Err: err}
	}

	scratch, err := os.CreateTemp(dir, "."+filepath.Base(dest)+".*.tmp")
	if err != nil {
		return "", &mirror.StorageError{Op: "creating scratch file", Path: dir, Err: err}
	}
	scratchPath := scratch.Name()

	installed := false
	defer func() {
		if !installed {
			os.Remove(scratchPath)
		}
	}()

	written, err := io.Copy(scratch, r)
	if err != nil {
		scratch.Close()
		return "", &mirror.DownloadError{URL: "", Err: fmt.Errorf("streaming to %s: %w", scratchPath, err)}
	}
	if err := scratch.Close(); err != nil {
		return "", &mirror.StorageError{Op: "closing scratch file", Path: scratchPath, Err: err}
	}

	if expectedSize != mirror.SizeUnknown && written != expectedSize {
		return "", &mirror.SizeMismatchError{Dest: dest, Expected: expectedSize, Actual: written}
	}

	if err := os.Chmod(scratchPath, 0644); err != nil {
		return "", &mirror.StorageError{Op: "chmod scratch file", Path: scratchPath, Err: err}
	}

	blobDir := filepath.Join(dir, ShaDirName)
	if err := os.MkdirAll(blobDir, 0755); err != nil {
		return "", &mirror.StorageError{Op: "creating blob directory", Path: blobDir, Err: err}
	}

	blobPath := filepath.Join(blobDir, sha)
	if err := os.Rename(scratchPath, blobPath); err != nil {
		return "", &mirror.StorageError{Op: "installing blob", Path: blobPath, Err: err}
	}
	installed = true

	return s.repoint(dest, sha)
}

// repoint replaces dest with a symlink to the stored blob named sha and
// best-effort deletes the blob dest previously referenced. Symlink
// replacement is remove-then-recreate; a crash in between leaves dest
// absent, which the next run treats as a plain cache miss.
func (s *FileStore) repoint(dest, sha string) (oldSHA string, err error) {
	var oldBlob string
	if fi, err := os.Lstat(dest); err == nil && fi.Mode()&os.ModeSymlink != 0 {
		if target, err := os.Readlink(dest); err == nil {
			oldBlob = filepath.Join(filepath.Dir(dest), target)
			oldSHA = filepath.Base(target)
		}
		if err := os.Remove(dest); err != nil {
			return "", &mirror.StorageError{Op: "removing old symlink", Path: dest, Err: err}
		}
	}

	if err := os.Symlink(filepath.Join(ShaDirName, sha), dest); err != nil {
		return "", &mirror.StorageError{Op: "creating symlink", Path: dest, Err: err}
	}

	// Superseded blob cleanup is best-effort: a failure only wastes
	// storage and must not fail the target.
	if oldSHA != "" && oldSHA != sha {
		if err := os.Remove(oldBlob); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("removing superseded blob", "path", oldBlob, "error", err)
		}
	}

	return oldSHA, nil
}

// RemoveStray deletes a regular file at dest. Symlinks and missing paths
// are left alone.
func (s *FileStore) RemoveStray(dest string) error {
	fi, err := os.Lstat(dest)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stat %s: %w", dest, err)
	}
	if !fi.Mode().IsRegular() {
		return nil
	}
	if err := os.Remove(dest); err != nil {
		return fmt.Errorf("removing %s: %w", dest, err)
	}
	return nil
}
