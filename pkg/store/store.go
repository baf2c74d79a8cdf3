// Package store implements the model catalog: ModelSpec registration and
// validation, artifact path resolution, and resumable checksum-verified
// preparation of model weights on disk.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/hearthai/hearth/pkg/herrors"
	"github.com/hearthai/hearth/pkg/internal/fileutil"
	"github.com/hearthai/hearth/pkg/internal/retry"
	"github.com/hearthai/hearth/pkg/modelspec"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
)

// Status is a model's preparation state as reported by GetStatus.
type Status string

const (
	StatusNotPrepared Status = "not-prepared"
	StatusPreparing   Status = "preparing"
	StatusReady       Status = "ready"
	StatusFailed      Status = "failed"
)

// ProgressFunc is invoked as a model's artifact download proceeds.
type ProgressFunc func(modelID string, downloaded, total int64)

// StatusChangeFunc is invoked whenever a model's preparation status changes.
type StatusChangeFunc func(modelID string, status Status)

// Options configures a Store.
type Options struct {
	// ModelsRoot is the directory relative file sources and derived hub
	// paths are resolved against. Defaults to the user cache dir's
	// "hearth/models" subdirectory.
	ModelsRoot string

	// DownloadConcurrency caps how many model artifacts may download at
	// once, regardless of how many PrepareModel/PrepareAll calls are
	// in flight. Defaults to 1.
	DownloadConcurrency int

	OnProgress     ProgressFunc
	OnStatusChange StatusChangeFunc
}

// Store is the model catalog: the set of declared ModelSpecs, their
// resolved artifact locations, and their preparation state.
type Store struct {
	opts Options

	mu       sync.RWMutex
	specs    map[string]modelspec.ModelSpec
	statuses map[string]Status
	failures map[string]error

	group     singleflight.Group
	downloads *semaphore.Weighted
}

// New constructs an empty Store.
func New(opts Options) (*Store, error) {
	if opts.ModelsRoot == "" {
		dir, err := os.UserCacheDir()
		if err != nil {
			return nil, err
		}
		opts.ModelsRoot = dir + "/hearth/models"
	}
	if opts.DownloadConcurrency <= 0 {
		opts.DownloadConcurrency = 1
	}
	return &Store{
		opts:      opts,
		specs:     make(map[string]modelspec.ModelSpec),
		statuses:  make(map[string]Status),
		failures:  make(map[string]error),
		downloads: semaphore.NewWeighted(int64(opts.DownloadConcurrency)),
	}, nil
}

// Register validates and adds spec to the catalog. Returns
// herrors.ErrDuplicateModel if an id is already registered.
func (s *Store) Register(spec modelspec.ModelSpec) error {
	spec = spec.WithDefaults()
	if err := spec.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.specs[spec.ID]; exists {
		return fmt.Errorf("%w: %s", herrors.ErrDuplicateModel, spec.ID)
	}
	s.specs[spec.ID] = spec
	s.statuses[spec.ID] = StatusNotPrepared
	return nil
}

// Get returns the registered spec for id.
func (s *Store) Get(id string) (modelspec.ModelSpec, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	spec, ok := s.specs[id]
	if !ok {
		return modelspec.ModelSpec{}, fmt.Errorf("%w: %s", herrors.ErrModelNotFound, id)
	}
	return spec, nil
}

// List returns every registered spec, in no particular order.
func (s *Store) List() []modelspec.ModelSpec {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]modelspec.ModelSpec, 0, len(s.specs))
	for _, spec := range s.specs {
		out = append(out, spec)
	}
	return out
}

// GetStatus returns id's current preparation state.
func (s *Store) GetStatus(id string) Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.statuses[id]
}

// Failure returns the error from id's most recent failed preparation
// attempt, or nil if it has never failed.
func (s *Store) Failure(id string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.failures[id]
}

// ArtifactPath resolves where id's weights belong on disk, without
// preparing them.
func (s *Store) ArtifactPath(id string) (string, error) {
	spec, err := s.Get(id)
	if err != nil {
		return "", err
	}
	return artifactPath(s.opts.ModelsRoot, spec.Source.File, spec.Source.URL)
}

// PrepareModel ensures id's artifact exists on disk and matches its
// declared checksum, downloading it if necessary. Concurrent callers for
// the same id share one in-flight preparation via singleflight.
func (s *Store) PrepareModel(ctx context.Context, id string) error {
	spec, err := s.Get(id)
	if err != nil {
		return err
	}

	_, err, _ = s.group.Do(id, func() (interface{}, error) {
		return nil, s.prepare(ctx, spec)
	})
	return err
}

// PrepareAll runs startup preparation over every registered model according
// to its effective preparation mode: blocking models are awaited before
// PrepareAll returns, async models are kicked off in the background, and
// on-demand models are left untouched until the pool first needs them.
func (s *Store) PrepareAll(ctx context.Context) error {
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for _, spec := range s.List() {
		switch spec.EffectivePreparationMode() {
		case modelspec.PreparationBlocking:
			if err := s.PrepareModel(ctx, spec.ID); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		case modelspec.PreparationAsync:
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				_ = s.PrepareModel(ctx, id)
			}(spec.ID)
		case modelspec.PreparationOnDemand:
			// left untouched until the pool's first instance creation
		}
	}

	wg.Wait()
	return firstErr
}

func (s *Store) setStatus(id string, status Status) {
	s.mu.Lock()
	s.statuses[id] = status
	s.mu.Unlock()
	if s.opts.OnStatusChange != nil {
		s.opts.OnStatusChange(id, status)
	}
}

func (s *Store) prepare(ctx context.Context, spec modelspec.ModelSpec) error {
	path, err := artifactPath(s.opts.ModelsRoot, spec.Source.File, spec.Source.URL)
	if err != nil {
		return herrors.NewPreparationError(spec.ID, err)
	}

	checksum, algo := checksumOf(spec.Source)
	if checksum != "" {
		if err := fileutil.VerifyChecksum(path, checksum, algo); err == nil {
			s.setStatus(spec.ID, StatusReady)
			return nil
		}
	} else if _, err := os.Stat(path); err == nil {
		s.setStatus(spec.ID, StatusReady)
		return nil
	}

	if spec.Source.URL == "" {
		// Declared file missing and nothing to download.
		err := herrors.NewPreparationError(spec.ID, fmt.Errorf("artifact not found at %s and no source url declared", path))
		s.setStatus(spec.ID, StatusFailed)
		s.mu.Lock()
		s.failures[spec.ID] = err
		s.mu.Unlock()
		return err
	}

	s.setStatus(spec.ID, StatusPreparing)

	downloadURL := rewriteHubDownloadURL(spec.Source.URL)
	opts := fileutil.DownloadOptions{
		Checksum:          checksum,
		ChecksumAlgorithm: algo,
	}
	if s.opts.OnProgress != nil {
		opts.OnProgress = func(downloaded, total int64) {
			s.opts.OnProgress(spec.ID, downloaded, total)
		}
	}

	if err := s.downloads.Acquire(ctx, 1); err != nil {
		s.setStatus(spec.ID, StatusFailed)
		return herrors.NewPreparationError(spec.ID, err)
	}
	defer s.downloads.Release(1)

	err = retry.Do(ctx, retry.Config{
		MaxRetries:   1,
		InitialDelay: time.Second,
		MaxDelay:     5 * time.Second,
		Multiplier:   2,
		ShouldRetry:  shouldRetryDownload,
	}, func(ctx context.Context) error {
		return fileutil.DownloadToFile(ctx, downloadURL, path, opts)
	})
	if err != nil {
		s.setStatus(spec.ID, StatusFailed)
		s.mu.Lock()
		s.failures[spec.ID] = err
		s.mu.Unlock()
		return herrors.NewPreparationError(spec.ID, err)
	}

	s.setStatus(spec.ID, StatusReady)
	return nil
}

// shouldRetryDownload excludes checksum mismatches from retry: a bad digest
// means the server sent the wrong bytes, and retrying the same URL against
// the same declared checksum will not fix that. Everything else falls back
// to retry.IsRetryable, which excludes context cancellation/deadline.
func shouldRetryDownload(err error) bool {
	var checksumErr *herrors.ChecksumError
	if errors.As(err, &checksumErr) {
		return false
	}
	return retry.IsRetryable(err)
}

func checksumOf(src modelspec.Source) (digest string, algo fileutil.ChecksumAlgorithm) {
	if src.SHA256 != "" {
		return src.SHA256, fileutil.ChecksumSHA256
	}
	if src.MD5 != "" {
		return src.MD5, fileutil.ChecksumMD5
	}
	return "", ""
}
