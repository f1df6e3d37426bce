package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"ghmirror/internal/mirror"
)

// DefaultBaseURL is the GitHub repositories API root.
const DefaultBaseURL = "https://api.github.com/repos/"

// 7s to connect, 10s to first response byte. There is no whole-request
// deadline so large blob bodies can stream for as long as they keep
// moving.
const (
	dialTimeout   = 7 * time.Second
	headerTimeout = 10 * time.Second
)

const (
	acceptTreeJSON = "application/vnd.github.v3+json"
	acceptBlobRaw  = "application/vnd.github.v3.raw"
)

// Client talks to the GitHub REST API: tree listings as JSON, blob content
// as raw bytes. A single fetch is one shot; there are no retries.
type Client struct {
	baseURL string
	token   string
	hc      *http.Client
}

var _ mirror.Fetcher = (*Client)(nil)

// NewClient creates a Client. baseURL defaults to DefaultBaseURL when
// empty and is normalized to end with a slash. token may be empty, in
// which case requests are unauthenticated and subject to stricter rate
// limits.
func NewClient(baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		hc: &http.Client{
			Transport: &http.Transport{
				DialContext:           (&net.Dialer{Timeout: dialTimeout}).DialContext,
				ResponseHeaderTimeout: headerTimeout,
			},
		},
	}
}

// StatusError reports a non-success HTTP status.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.StatusCode)
}

// treeResponse is the wire shape of the git/trees endpoint.
type treeResponse struct {
	SHA       string      `json:"sha"`
	Tree      []treeEntry `json:"tree"`
	Truncated bool        `json:"truncated"`
}

type treeEntry struct {
	Path string `json:"path"`
	Type string `json:"type"`
	SHA  string `json:"sha"`
	Size *int64 `json:"size"` // absent for trees, optional for blobs
	URL  string `json:"url"`
}

// FetchTree retrieves and decodes the listing of one tree.
// ref is a branch, tag, or tree SHA.
func (c *Client) FetchTree(ctx context.Context, repo, ref string) (*mirror.TreeListing, error) {
	url := fmt.Sprintf("%s%s/git/trees/%s", c.baseURL, repo, ref)
	body, err := c.get(ctx, url, acceptTreeJSON)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var resp treeResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decoding tree %s: %w", url, err)
	}

	listing := &mirror.TreeListing{
		SHA:       resp.SHA,
		Nodes:     make([]mirror.TreeNode, 0, len(resp.Tree)),
		Truncated: resp.Truncated,
	}
	for _, e := range resp.Tree {
		listing.Nodes = append(listing.Nodes, mirror.TreeNode{
			Name: e.Path,
			Kind: nodeKind(e.Type),
			SHA:  e.SHA,
			Size: blobSize(e),
			URL:  e.URL,
		})
	}
	return listing, nil
}

// OpenBlob opens the raw content behind a blob URL. The caller must close
// the returned reader.
func (c *Client) OpenBlob(ctx context.Context, url string) (io.ReadCloser, error) {
	return c.get(ctx, url, acceptBlobRaw)
}

// get performs an authenticated GET and returns the response body. Any
// non-2xx status is an error; the body is drained and closed in that case.
func (c *Client) get(ctx context.Context, url, accept string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", url, err)
	}
	req.Header.Set("Accept", accept)
	if c.token != "" {
		req.Header.Set("Authorization", "token "+c.token)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	return resp.Body, nil
}

// nodeKind maps the wire entry type onto the traversal kinds. Anything
// unrecognized (e.g. "commit" for submodules) stays NodeUnknown and fails
// resolution explicitly.
func nodeKind(t string) mirror.NodeKind {
	switch t {
	case "tree":
		return mirror.NodeTree
	case "blob":
		return mirror.NodeBlob
	default:
		return mirror.NodeUnknown
	}
}

// blobSize returns the entry size for blobs and the unknown sentinel for
// everything else. A blob entry that carries no size on the wire also maps
// to the sentinel so downstream size verification is skipped rather than
// checked against zero.
func blobSize(e treeEntry) int64 {
	if e.Type == "blob" && e.Size != nil {
		return *e.Size
	}
	return mirror.SizeUnknown
}
