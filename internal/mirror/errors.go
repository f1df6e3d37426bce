package mirror

import "fmt"

// ResolutionError reports a failed tree walk: a missing segment, an entry
// whose kind does not match its position, or a tree that could not be
// fetched at all.
type ResolutionError struct {
	Repo    string
	Segment string // segment being resolved when the walk failed
	Reason  string
	Err     error // underlying fetch error, if any
}

func (e *ResolutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("resolving %q in %s: %s: %v", e.Segment, e.Repo, e.Reason, e.Err)
	}
	return fmt.Sprintf("resolving %q in %s: %s", e.Segment, e.Repo, e.Reason)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// DownloadError reports a transport or status failure while fetching blob
// content.
type DownloadError struct {
	URL string
	Err error
}

func (e *DownloadError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("download: %v", e.Err)
	}
	return fmt.Sprintf("downloading %s: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// SizeMismatchError reports that a completed download did not contain the
// number of bytes the tree listing promised.
type SizeMismatchError struct {
	Dest     string
	Expected int64
	Actual   int64
}

func (e *SizeMismatchError) Error() string {
	return fmt.Sprintf("file %s size mismatch: downloaded %d bytes, expected %d bytes",
		e.Dest, e.Actual, e.Expected)
}

// StorageError reports a filesystem failure during the install protocol.
type StorageError struct {
	Op   string // "scratch", "rename", "symlink", ...
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
