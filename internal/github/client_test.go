package github

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"ghmirror/internal/mirror"
)

const treeJSON = `{
	"sha": "root-sha",
	"tree": [
		{"path": "bin", "type": "tree", "sha": "bin-sha"},
		{"path": "README.md", "type": "blob", "sha": "readme-sha", "size": 42, "url": "https://example.com/blob/readme-sha"},
		{"path": "vendored", "type": "commit", "sha": "sub-sha"}
	],
	"truncated": false
}`

func TestClient_FetchTree(t *testing.T) {
	t.Run("decodes a tree listing", func(t *testing.T) {
		var gotPath, gotAccept, gotAuth string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotAccept = r.Header.Get("Accept")
			gotAuth = r.Header.Get("Authorization")
			w.Write([]byte(treeJSON))
		}))
		defer srv.Close()

		c := NewClient(srv.URL, "secret-token")
		listing, err := c.FetchTree(context.Background(), "fpco/minghc", "master")
		if err != nil {
			t.Fatalf("FetchTree() error = %v", err)
		}

		if gotPath != "/fpco/minghc/git/trees/master" {
			t.Errorf("request path = %q, want %q", gotPath, "/fpco/minghc/git/trees/master")
		}
		if gotAccept != "application/vnd.github.v3+json" {
			t.Errorf("Accept = %q, want tree JSON media type", gotAccept)
		}
		if gotAuth != "token secret-token" {
			t.Errorf("Authorization = %q, want %q", gotAuth, "token secret-token")
		}

		if listing.SHA != "root-sha" {
			t.Errorf("SHA = %q, want %q", listing.SHA, "root-sha")
		}
		if len(listing.Nodes) != 3 {
			t.Fatalf("len(Nodes) = %d, want 3", len(listing.Nodes))
		}

		if n := listing.Nodes[0]; n.Kind != mirror.NodeTree || n.SHA != "bin-sha" {
			t.Errorf("Nodes[0] = %+v, want tree bin-sha", n)
		}
		if n := listing.Nodes[1]; n.Kind != mirror.NodeBlob || n.Size != 42 || n.URL == "" {
			t.Errorf("Nodes[1] = %+v, want blob with size and url", n)
		}
		if n := listing.Nodes[2]; n.Kind != mirror.NodeUnknown {
			t.Errorf("Nodes[2].Kind = %v, want unknown for commit entries", n.Kind)
		}
	})

	t.Run("blob without a size gets the unknown sentinel", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{
				"sha": "root-sha",
				"tree": [
					{"path": "data.bin", "type": "blob", "sha": "data-sha", "url": "https://example.com/blob/data-sha"}
				]
			}`))
		}))
		defer srv.Close()

		c := NewClient(srv.URL, "")
		listing, err := c.FetchTree(context.Background(), "o/r", "main")
		if err != nil {
			t.Fatalf("FetchTree() error = %v", err)
		}
		if len(listing.Nodes) != 1 {
			t.Fatalf("len(Nodes) = %d, want 1", len(listing.Nodes))
		}
		// Size verification must be skipped for this blob, not checked
		// against zero.
		if listing.Nodes[0].Size != mirror.SizeUnknown {
			t.Errorf("Size = %d, want SizeUnknown", listing.Nodes[0].Size)
		}
	})

	t.Run("omits Authorization without a token", func(t *testing.T) {
		var sawAuth bool
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, sawAuth = r.Header["Authorization"]
			w.Write([]byte(`{"sha": "s", "tree": []}`))
		}))
		defer srv.Close()

		c := NewClient(srv.URL, "")
		if _, err := c.FetchTree(context.Background(), "o/r", "main"); err != nil {
			t.Fatalf("FetchTree() error = %v", err)
		}
		if sawAuth {
			t.Error("Authorization header sent without a token")
		}
	})

	t.Run("non-success status is a StatusError", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "not found", http.StatusNotFound)
		}))
		defer srv.Close()

		c := NewClient(srv.URL, "")
		_, err := c.FetchTree(context.Background(), "o/r", "missing")

		var statusErr *StatusError
		if !errors.As(err, &statusErr) {
			t.Fatalf("FetchTree() error = %v, want StatusError", err)
		}
		if statusErr.StatusCode != http.StatusNotFound {
			t.Errorf("StatusCode = %d, want 404", statusErr.StatusCode)
		}
	})
}

func TestClient_OpenBlob(t *testing.T) {
	t.Run("streams raw content", func(t *testing.T) {
		var gotAccept string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAccept = r.Header.Get("Accept")
			w.Write([]byte("raw blob bytes"))
		}))
		defer srv.Close()

		c := NewClient(srv.URL, "")
		body, err := c.OpenBlob(context.Background(), srv.URL+"/blob/some-sha")
		if err != nil {
			t.Fatalf("OpenBlob() error = %v", err)
		}
		defer body.Close()

		if gotAccept != "application/vnd.github.v3.raw" {
			t.Errorf("Accept = %q, want raw media type", gotAccept)
		}

		data, err := io.ReadAll(body)
		if err != nil {
			t.Fatalf("ReadAll() error = %v", err)
		}
		if string(data) != "raw blob bytes" {
			t.Errorf("body = %q, want %q", data, "raw blob bytes")
		}
	})

	t.Run("rate-limited response is a StatusError", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "rate limited", http.StatusForbidden)
		}))
		defer srv.Close()

		c := NewClient(srv.URL, "")
		_, err := c.OpenBlob(context.Background(), srv.URL+"/blob/x")

		var statusErr *StatusError
		if !errors.As(err, &statusErr) {
			t.Fatalf("OpenBlob() error = %v, want StatusError", err)
		}
	})
}

func TestNewClient(t *testing.T) {
	t.Run("defaults the base URL", func(t *testing.T) {
		c := NewClient("", "")
		if c.baseURL != DefaultBaseURL {
			t.Errorf("baseURL = %q, want %q", c.baseURL, DefaultBaseURL)
		}
	})

	t.Run("normalizes a missing trailing slash", func(t *testing.T) {
		c := NewClient("https://ghe.example.com/api/v3/repos", "")
		if c.baseURL != "https://ghe.example.com/api/v3/repos/" {
			t.Errorf("baseURL = %q, want trailing slash", c.baseURL)
		}
	})
}
