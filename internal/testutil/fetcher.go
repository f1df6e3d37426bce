package testutil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"ghmirror/internal/mirror"
)

// FakeFetcher is an in-memory mirror.Fetcher. Test fixtures are added with
// AddFile, which builds the full chain of intermediate trees, or with
// AddNode for hand-crafted listings. Counters record how often the remote
// was touched so tests can assert skip behavior.
type FakeFetcher struct {
	mu          sync.Mutex
	trees       map[string]*mirror.TreeListing // key: repo + "@" + ref
	blobs       map[string][]byte              // key: blob URL
	treeErrs    map[string]error
	blobErrs    map[string]error
	TreeFetches int
	BlobOpens   int
}

var _ mirror.Fetcher = (*FakeFetcher)(nil)

// NewFakeFetcher creates an empty FakeFetcher.
func NewFakeFetcher() *FakeFetcher {
	return &FakeFetcher{
		trees:    make(map[string]*mirror.TreeListing),
		blobs:    make(map[string][]byte),
		treeErrs: make(map[string]error),
		blobErrs: make(map[string]error),
	}
}

// AddFile registers a blob at the given segments (ref first) inside repo,
// creating every intermediate tree. Tree SHAs are derived from the path so
// fixtures are deterministic. Returns the blob's descriptor.
func (f *FakeFetcher) AddFile(repo string, segments []string, content []byte) mirror.LeafDescriptor {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(segments) < 2 {
		panic("AddFile needs a ref and at least one path segment")
	}

	ref := segments[0]
	rest := segments[1:]
	cursor := ref

	// Intermediate trees.
	for i := 0; i < len(rest)-1; i++ {
		childSHA := SHA256Hex([]byte(repo + "/" + strings.Join(segments[:i+2], "/")))
		f.addNode(repo, cursor, mirror.TreeNode{
			Name: rest[i],
			Kind: mirror.NodeTree,
			SHA:  childSHA,
		})
		cursor = childSHA
	}

	// The blob itself.
	sha := SHA256Hex(content)
	url := fmt.Sprintf("fake://%s/%s", repo, strings.Join(segments, "/"))
	f.addNode(repo, cursor, mirror.TreeNode{
		Name: rest[len(rest)-1],
		Kind: mirror.NodeBlob,
		SHA:  sha,
		Size: int64(len(content)),
		URL:  url,
	})
	f.blobs[url] = append([]byte(nil), content...)

	return mirror.LeafDescriptor{URL: url, Size: int64(len(content)), SHA: sha}
}

// AddNode appends a node to the listing of repo@ref, creating the listing
// if needed.
func (f *FakeFetcher) AddNode(repo, ref string, node mirror.TreeNode) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addNode(repo, ref, node)
}

func (f *FakeFetcher) addNode(repo, ref string, node mirror.TreeNode) {
	key := repo + "@" + ref
	listing, ok := f.trees[key]
	if !ok {
		listing = &mirror.TreeListing{SHA: ref}
		f.trees[key] = listing
	}
	for _, n := range listing.Nodes {
		if n.Name == node.Name {
			return // first entry wins, like the real listing scan
		}
	}
	listing.Nodes = append(listing.Nodes, node)
}

// SetBlob replaces the content behind a blob URL without touching the
// tree, e.g. to make a download deliver the wrong number of bytes.
func (f *FakeFetcher) SetBlob(url string, content []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blobs[url] = append([]byte(nil), content...)
}

// FailTree makes fetching repo@ref return err.
func (f *FakeFetcher) FailTree(repo, ref string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.treeErrs[repo+"@"+ref] = err
}

// FailBlob makes opening the blob URL return err.
func (f *FakeFetcher) FailBlob(url string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blobErrs[url] = err
}

// FetchTree implements mirror.TreeFetcher.
func (f *FakeFetcher) FetchTree(_ context.Context, repo, ref string) (*mirror.TreeListing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.TreeFetches++
	key := repo + "@" + ref
	if err, ok := f.treeErrs[key]; ok {
		return nil, err
	}
	listing, ok := f.trees[key]
	if !ok {
		return nil, fmt.Errorf("tree not found: %s", key)
	}
	// Copy so callers cannot mutate the fixture.
	out := &mirror.TreeListing{
		SHA:       listing.SHA,
		Nodes:     append([]mirror.TreeNode(nil), listing.Nodes...),
		Truncated: listing.Truncated,
	}
	return out, nil
}

// OpenBlob implements mirror.BlobOpener.
func (f *FakeFetcher) OpenBlob(_ context.Context, url string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.BlobOpens++
	if err, ok := f.blobErrs[url]; ok {
		return nil, err
	}
	content, ok := f.blobs[url]
	if !ok {
		return nil, fmt.Errorf("blob not found: %s", url)
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}
