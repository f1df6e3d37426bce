package mirror

import (
	"context"
	"fmt"
)

// Resolver walks the remote tree-of-trees structure to locate a blob. The
// API has no direct path-lookup endpoint, so each segment costs one tree
// fetch: the cursor starts at the target's ref and descends through tree
// SHAs until the final segment matches a blob entry.
type Resolver struct {
	trees TreeFetcher
}

// NewResolver creates a Resolver that fetches trees through the given
// collaborator.
func NewResolver(trees TreeFetcher) *Resolver {
	return &Resolver{trees: trees}
}

// Resolve walks segments within repo and returns the descriptor of the
// final blob. segments[0] is the ref; every intermediate segment must name
// a tree and the last must name a blob. The first exact name match in a
// listing wins; a miss or kind mismatch fails immediately with a
// ResolutionError.
func (r *Resolver) Resolve(ctx context.Context, repo string, segments []string) (LeafDescriptor, error) {
	if len(segments) < 2 {
		return LeafDescriptor{}, &ResolutionError{
			Repo:   repo,
			Reason: fmt.Sprintf("need a ref and at least one path segment, got %d", len(segments)),
		}
	}

	cursor := segments[0]
	rest := segments[1:]

	for i, seg := range rest {
		listing, err := r.trees.FetchTree(ctx, repo, cursor)
		if err != nil {
			return LeafDescriptor{}, &ResolutionError{
				Repo:    repo,
				Segment: seg,
				Reason:  fmt.Sprintf("fetching tree %s", cursor),
				Err:     err,
			}
		}

		node, found := findNode(listing, seg)
		if !found {
			return LeafDescriptor{}, &ResolutionError{
				Repo:    repo,
				Segment: seg,
				Reason:  fmt.Sprintf("not found in tree %s", cursor),
			}
		}

		last := i == len(rest)-1
		switch node.Kind {
		case NodeTree:
			if last {
				return LeafDescriptor{}, &ResolutionError{
					Repo:    repo,
					Segment: seg,
					Reason:  "is a tree, expected a blob",
				}
			}
			cursor = node.SHA
		case NodeBlob:
			if !last {
				return LeafDescriptor{}, &ResolutionError{
					Repo:    repo,
					Segment: seg,
					Reason:  "is a blob, expected a tree",
				}
			}
			return LeafDescriptor{URL: node.URL, Size: node.Size, SHA: node.SHA}, nil
		default:
			return LeafDescriptor{}, &ResolutionError{
				Repo:    repo,
				Segment: seg,
				Reason:  fmt.Sprintf("has unsupported entry type %q", node.Kind),
			}
		}
	}

	// Unreachable: the loop always returns on the last segment.
	return LeafDescriptor{}, &ResolutionError{Repo: repo, Reason: "empty walk"}
}

// findNode returns the first entry with an exact name match. Names are
// otherwise unordered within a listing.
func findNode(listing *TreeListing, name string) (TreeNode, bool) {
	for _, n := range listing.Nodes {
		if n.Name == name {
			return n, true
		}
	}
	return TreeNode{}, false
}
