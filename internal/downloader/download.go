package downloader

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/hashicorp/go-multierror"

	"github.com/kubev2v/guest-extension-agent/internal/models"
	svcerrors "github.com/kubev2v/guest-extension-agent/pkg/errors"
)

const (
	maxRounds    = 5
	roundBackoff = 60 * time.Second
)

// Fetcher downloads a single mirror URI to destFile. protocol.Client
// satisfies this.
type Fetcher interface {
	DownloadExtHandlerPkg(ctx context.Context, uri, destFile string) error
}

// Downloader resolves and retrieves handler packages under a library
// root (§4.2).
type Downloader struct {
	libRoot string
	fetcher Fetcher
}

func New(libRoot string, fetcher Fetcher) *Downloader {
	return &Downloader{libRoot: libRoot, fetcher: fetcher}
}

// Fetch downloads pkg (if not already cached) and unzips it into baseDir.
// It implements the shuffle+retry protocol of §4.2: up to maxRounds
// rounds of a constant 60-second backoff, shuffling the URI list each
// round and stopping at the first URI that both downloads and unzips
// successfully.
func (d *Downloader) Fetch(ctx context.Context, handlerName string, pkg models.Package, baseDir string) error {
	if len(pkg.URIs) == 0 {
		return svcerrors.NewExtensionDownloadError(handlerName, "no package URIs available")
	}

	destFile := filepath.Join(d.libRoot, filepath.Base(pkg.URIs[0])+".zip")

	if _, err := os.Stat(destFile); err == nil {
		if unzipErr := unzip(destFile, baseDir); unzipErr == nil {
			return nil // cached hit
		}
		_ = os.RemoveAll(baseDir)
		_ = os.Remove(destFile)
	}

	_, err := backoff.Retry(ctx, func() (bool, error) {
		uris := shuffled(pkg.URIs)

		var roundErrs error
		for _, uri := range uris {
			if err := d.fetcher.DownloadExtHandlerPkg(ctx, uri, destFile); err != nil {
				roundErrs = multierror.Append(roundErrs, fmt.Errorf("download %s: %w", uri, err))
				_ = os.Remove(destFile)
				continue
			}
			if err := unzip(destFile, baseDir); err != nil {
				roundErrs = multierror.Append(roundErrs, fmt.Errorf("unzip %s: %w", uri, err))
				_ = os.RemoveAll(baseDir)
				_ = os.Remove(destFile)
				continue
			}
			return true, nil
		}
		return false, roundErrs
	}, backoff.WithBackOff(backoff.NewConstantBackOff(roundBackoff)), backoff.WithMaxTries(maxRounds))

	if err != nil {
		return svcerrors.NewExtensionDownloadError(handlerName, fmt.Sprintf("exhausted %d retry rounds: %v", maxRounds, err))
	}
	return nil
}

func shuffled(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	rand.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

func unzip(src, destDir string) error {
	r, err := zip.OpenReader(src)
	if err != nil {
		return err
	}
	defer r.Close()

	if err := os.MkdirAll(destDir, 0o700); err != nil {
		return err
	}

	for _, f := range r.File {
		path := filepath.Join(destDir, f.Name)
		if !isWithin(destDir, path) {
			return fmt.Errorf("illegal file path in package: %s", f.Name)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(path, 0o700); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return err
		}
		if err := extractFile(f, path); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(f *zip.File, dest string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode())
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, rc)
	return err
}

func isWithin(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !filepath.IsAbs(rel) && !hasDotDotPrefix(rel)
}

func hasDotDotPrefix(rel string) bool {
	return len(rel) >= 3 && rel[:3] == ".."+string(filepath.Separator)
}
