package mirror

import "io"

// Store is the content-addressed storage collaborator. Blobs are kept in a
// hash-keyed directory next to each destination; the destination itself is
// a symlink into that directory, so replacement is a symlink repoint and
// repeated runs can skip unchanged files without touching the network body.
type Store interface {
	// Skip reports whether dest already holds the content described by
	// desc: it is a symlink, its resolved size equals desc.Size, and the
	// symlink target's basename equals desc.SHA. Any stat failure means
	// "do not skip".
	Skip(dest string, desc LeafDescriptor) bool

	// Adopt repoints dest at an already-stored blob matching desc, if one
	// exists with the expected size. Returns the replaced hash (empty if
	// none) and whether the adoption happened. Used to finish an install
	// that was interrupted between blob store and symlink repoint.
	Adopt(dest string, desc LeafDescriptor) (oldSHA string, ok bool, err error)

	// Install runs the download-verify-install protocol: stream r to a
	// scratch file beside dest, verify expectedSize (skipped when it is
	// SizeUnknown), store the blob under sha, and atomically repoint dest.
	// Returns the hash dest previously referenced, if any. On failure the
	// scratch file is removed and dest is left untouched.
	Install(dest string, r io.Reader, expectedSize int64, sha string) (oldSHA string, err error)

	// Current returns the hash and size dest currently references.
	// ok is false when dest is absent or not a symlink.
	Current(dest string) (sha string, size int64, ok bool)

	// RemoveStray deletes a regular (non-symlink) file at dest, if one is
	// present. Called after a failed target so a partial artifact from an
	// earlier run cannot masquerade as valid output. Stale symlinks are
	// deliberately left alone.
	RemoveStray(dest string) error
}
