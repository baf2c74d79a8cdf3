// Package fileutil implements the resumable, checksum-verified artifact
// downloads used by the model store to materialize ModelSpec sources on disk.
package fileutil

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/hearthai/hearth/pkg/herrors"
	"golang.org/x/time/rate"
)

// ChecksumAlgorithm identifies the digest algorithm used to verify a downloaded artifact.
type ChecksumAlgorithm string

const (
	ChecksumSHA256 ChecksumAlgorithm = "sha256"
	ChecksumMD5    ChecksumAlgorithm = "md5"
)

// DefaultMaxDownloadSize is the default maximum artifact size: 64 GiB, large
// enough for any single quantized weights file while still catching a
// misconfigured source that points at the wrong URL.
const DefaultMaxDownloadSize = 64 * 1024 * 1024 * 1024

// ProgressFunc is invoked as a download proceeds. downloaded and total are in
// bytes; total is 0 if the server did not report Content-Length.
type ProgressFunc func(downloaded, total int64)

// DownloadOptions configures a single artifact download.
type DownloadOptions struct {
	// Timeout bounds a single DownloadToFile call; a later call that resumes
	// the part file gets a fresh timeout of its own.
	Timeout time.Duration

	// Headers are added to the outbound request (e.g. an Authorization bearer token).
	Headers map[string]string

	// MaxSize rejects transfers whose declared or observed size exceeds it.
	MaxSize int64

	// Checksum, if non-empty, is the expected hex digest of the completed file.
	Checksum string

	// ChecksumAlgorithm selects the digest used to verify Checksum. Defaults to sha256.
	ChecksumAlgorithm ChecksumAlgorithm

	// OnProgress, if set, is called periodically (at most a few times a second)
	// as bytes arrive. Debounced with golang.org/x/time/rate so a fast local
	// mirror cannot flood the caller with updates.
	OnProgress ProgressFunc
}

func (o DownloadOptions) withDefaults() DownloadOptions {
	if o.Timeout == 0 {
		o.Timeout = 30 * time.Minute
	}
	if o.MaxSize == 0 {
		o.MaxSize = DefaultMaxDownloadSize
	}
	if o.ChecksumAlgorithm == "" {
		o.ChecksumAlgorithm = ChecksumSHA256
	}
	return o
}

func newHash(algo ChecksumAlgorithm) hash.Hash {
	if algo == ChecksumMD5 {
		return md5.New()
	}
	return sha256.New()
}

// DownloadToFile fetches url into destPath, resuming from a partial
// "<destPath>.part" file via HTTP Range requests if one already exists from
// a prior interrupted attempt. On success the part file is renamed into
// place; on any failure the part file is left on disk so the next call can
// resume. If opts.Checksum is set, the completed file's digest is verified
// before the rename and a *herrors.ChecksumError is returned on mismatch.
func DownloadToFile(ctx context.Context, url, destPath string, opts DownloadOptions) error {
	opts = opts.withDefaults()

	partPath := destPath + ".part"
	var resumeFrom int64
	if info, err := os.Stat(partPath); err == nil {
		resumeFrom = info.Size()
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return herrors.NewDownloadError(url, err)
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return herrors.NewDownloadError(url, err)
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}
	if resumeFrom > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", resumeFrom))
	}

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return herrors.NewDownloadError(url, err)
	}
	defer resp.Body.Close()

	flags := os.O_CREATE | os.O_WRONLY
	switch resp.StatusCode {
	case http.StatusOK:
		// Server ignored the Range request (or there was nothing to resume);
		// start the part file over from scratch.
		resumeFrom = 0
		flags |= os.O_TRUNC
	case http.StatusPartialContent:
		flags |= os.O_APPEND
	default:
		return herrors.NewDownloadError(url, fmt.Errorf("unexpected status %s", resp.Status))
	}

	var total int64
	if resp.ContentLength >= 0 {
		total = resp.ContentLength + resumeFrom
	}
	if total > 0 && total > opts.MaxSize {
		return herrors.NewDownloadError(url, fmt.Errorf("artifact size %d exceeds maximum of %d bytes", total, opts.MaxSize))
	}

	out, err := os.OpenFile(partPath, flags, 0o644)
	if err != nil {
		return herrors.NewDownloadError(url, err)
	}
	defer out.Close()

	limiter := rate.NewLimiter(rate.Every(250*time.Millisecond), 1)
	downloaded := resumeFrom
	reporter := func(n int64) {
		downloaded += n
		if opts.OnProgress == nil {
			return
		}
		if limiter.Allow() || (total > 0 && downloaded >= total) {
			opts.OnProgress(downloaded, total)
		}
	}

	limited := io.LimitReader(resp.Body, opts.MaxSize-resumeFrom+1)
	if _, err := copyWithProgress(out, limited, reporter); err != nil {
		return herrors.NewDownloadError(url, err)
	}
	if downloaded > opts.MaxSize {
		return herrors.NewDownloadError(url, fmt.Errorf("artifact exceeded maximum size of %d bytes", opts.MaxSize))
	}

	if opts.Checksum != "" {
		actual, err := digestFile(partPath, opts.ChecksumAlgorithm)
		if err != nil {
			return herrors.NewDownloadError(url, err)
		}
		if actual != opts.Checksum {
			return herrors.NewChecksumError(partPath, opts.Checksum, actual)
		}
	}

	return os.Rename(partPath, destPath)
}

func copyWithProgress(dst io.Writer, src io.Reader, report func(int64)) (int64, error) {
	buf := make([]byte, 256*1024)
	var total int64
	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			if _, writeErr := dst.Write(buf[:n]); writeErr != nil {
				return total, writeErr
			}
			total += int64(n)
			report(int64(n))
		}
		if readErr == io.EOF {
			return total, nil
		}
		if readErr != nil {
			return total, readErr
		}
	}
}

func digestFile(path string, algo ChecksumAlgorithm) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := newHash(algo)
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// VerifyChecksum reports whether the file at path matches the expected hex digest.
func VerifyChecksum(path, expected string, algo ChecksumAlgorithm) error {
	if algo == "" {
		algo = ChecksumSHA256
	}
	actual, err := digestFile(path, algo)
	if err != nil {
		return err
	}
	if actual != expected {
		return herrors.NewChecksumError(path, expected, actual)
	}
	return nil
}
