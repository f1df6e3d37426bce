package mirror

import (
	"path/filepath"
	"strings"
)

// Target is one manifest entry: a single remote file to resolve and install.
// The first path segment is the ref (branch, tag, or tree SHA); the
// remaining segments descend through trees, the last one naming a blob.
type Target struct {
	Repo string   // "owner/repo"
	Path []string // ref, tree segments..., blob name
	Dest string   // absolute destination path on disk
}

// NewTarget builds a Target whose destination mirrors the remote layout
// under workingDir: <workingDir>/<owner>/<repo>/<ref>/<segments...>.
func NewTarget(workingDir, repo string, path []string) Target {
	parts := append([]string{workingDir, repo}, path...)
	return Target{
		Repo: repo,
		Path: path,
		Dest: filepath.Join(parts...),
	}
}

// RemotePath returns the slash-joined path for logging and reporting.
func (t Target) RemotePath() string {
	return strings.Join(t.Path, "/")
}

// LeafDescriptor identifies a resolved blob: where to fetch it from, how
// many bytes to expect, and its content hash.
type LeafDescriptor struct {
	URL  string
	Size int64 // -1 when the API did not report a size
	SHA  string
}

// SizeUnknown is the LeafDescriptor.Size sentinel for "no size reported";
// size verification is skipped for such blobs.
const SizeUnknown int64 = -1

// NodeKind distinguishes the entry types that can appear in a tree listing.
type NodeKind int

const (
	// NodeUnknown is any entry type we do not traverse (e.g. submodule
	// commits). Resolving through one is an error, never a fallthrough.
	NodeUnknown NodeKind = iota
	NodeTree
	NodeBlob
)

func (k NodeKind) String() string {
	switch k {
	case NodeTree:
		return "tree"
	case NodeBlob:
		return "blob"
	default:
		return "unknown"
	}
}

// TreeNode is one named child of a remote tree.
type TreeNode struct {
	Name string
	Kind NodeKind
	SHA  string
	Size int64  // blobs only
	URL  string // blobs only; the raw content endpoint
}

// TreeListing is the decoded children of one remote tree.
type TreeListing struct {
	SHA       string
	Nodes     []TreeNode
	Truncated bool
}

// Status classifies the result of processing one Target.
type Status string

const (
	StatusSynced  Status = "synced"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// Outcome is the per-Target result returned by the pool. Errors never
// escape a worker; they are carried here instead.
type Outcome struct {
	Target Target
	Status Status
	SHA    string // content hash now referenced by the destination
	OldSHA string // hash that was replaced, if any
	Size   int64
	Err    error // non-nil iff Status == StatusFailed
}
