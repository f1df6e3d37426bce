package mirror

import (
	"context"
	"io"
)

// TreeFetcher retrieves the listing of one remote tree. Listings are
// fetched on demand per resolution step and never cached across targets.
type TreeFetcher interface {
	// FetchTree returns the children of the tree addressed by ref within
	// the given repository. ref is a branch, tag, or tree SHA.
	FetchTree(ctx context.Context, repo, ref string) (*TreeListing, error)
}

// BlobOpener streams the raw content of a resolved blob.
type BlobOpener interface {
	// OpenBlob opens the content behind a LeafDescriptor URL. The caller
	// must close the returned reader.
	OpenBlob(ctx context.Context, url string) (io.ReadCloser, error)
}

// Fetcher is the full remote collaborator the sync service needs.
type Fetcher interface {
	TreeFetcher
	BlobOpener
}
