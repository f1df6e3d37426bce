package mirror

import (
	"context"
	"errors"
)

// Service orchestrates one sync run: resolve each target to a blob
// descriptor, decide skip-vs-download against local state, and run the
// install protocol. All per-target failures are contained here.
type Service struct {
	resolver *Resolver
	blobs    BlobOpener
	store    Store
	logger   Logger
}

// NewService creates a Service with the provided collaborators.
func NewService(fetcher Fetcher, store Store, logger Logger) *Service {
	return &Service{
		resolver: NewResolver(fetcher),
		blobs:    fetcher,
		store:    store,
		logger:   logger,
	}
}

// SyncAll processes every target through a worker pool of the given size
// and returns one Outcome per target, in input order. The call blocks
// until all targets have been processed.
func (s *Service) SyncAll(ctx context.Context, targets []Target, workers int) []Outcome {
	pool := NewPool(workers)
	s.logger.Info("sync starting", "targets", len(targets), "workers", pool.Workers())

	outcomes := pool.Run(ctx, targets, s.syncOne)

	var synced, skipped, failed int
	for _, o := range outcomes {
		switch o.Status {
		case StatusSynced:
			synced++
		case StatusSkipped:
			skipped++
		case StatusFailed:
			failed++
		}
	}
	s.logger.Info("sync finished", "synced", synced, "skipped", skipped, "failed", failed)
	return outcomes
}

// syncOne handles a single target end-to-end. Every error is folded into
// the returned Outcome; nothing propagates to the pool.
func (s *Service) syncOne(ctx context.Context, t Target) Outcome {
	desc, err := s.resolver.Resolve(ctx, t.Repo, t.Path)
	if err != nil {
		return s.fail(t, err)
	}

	if s.store.Skip(t.Dest, desc) {
		s.logger.Info("skip", "dest", t.Dest, "sha", desc.SHA)
		return Outcome{Target: t, Status: StatusSkipped, SHA: desc.SHA, Size: desc.Size}
	}

	// A blob may already be stored from a run that was interrupted before
	// the symlink repoint. Finish the repoint instead of re-downloading.
	if oldSHA, ok, err := s.store.Adopt(t.Dest, desc); err != nil {
		return s.fail(t, err)
	} else if ok {
		s.logger.Info("relinked", "dest", t.Dest, "sha", desc.SHA, "old", oldSHA)
		return Outcome{Target: t, Status: StatusSynced, SHA: desc.SHA, OldSHA: oldSHA, Size: desc.Size}
	}

	body, err := s.blobs.OpenBlob(ctx, desc.URL)
	if err != nil {
		return s.fail(t, wrapDownload(desc.URL, err))
	}
	defer body.Close()

	oldSHA, err := s.store.Install(t.Dest, body, desc.Size, desc.SHA)
	if err != nil {
		return s.fail(t, err)
	}

	s.logger.Info("synced", "dest", t.Dest, "sha", desc.SHA, "old", oldSHA)
	return Outcome{Target: t, Status: StatusSynced, SHA: desc.SHA, OldSHA: oldSHA, Size: desc.Size}
}

// fail logs the error, removes any regular file squatting at the
// destination, and returns a failed Outcome. Stale symlinks are left in
// place: the blob they point at may still be intact, and the next run
// re-evaluates them anyway.
func (s *Service) fail(t Target, err error) Outcome {
	s.logger.Error("failed to download", "dest", t.Dest, "error", err)
	if rmErr := s.store.RemoveStray(t.Dest); rmErr != nil {
		s.logger.Warn("removing stray file", "dest", t.Dest, "error", rmErr)
	}
	return Outcome{Target: t, Status: StatusFailed, Err: err}
}

// wrapDownload keeps an already-typed error as-is and wraps anything else
// as a DownloadError.
func wrapDownload(url string, err error) error {
	var de *DownloadError
	if errors.As(err, &de) {
		return err
	}
	return &DownloadError{URL: url, Err: err}
}
