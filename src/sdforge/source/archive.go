package source

import (
	"archive/tar"
	"compress/bzip2"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sdforge/sdforge/src/common/errors"
	"github.com/ulikunitz/xz"
)

// Archive describes a downloadable source tarball with an optional
// SHA-256 checksum. It is the fallback acquisition path for networks
// where the git protocol is blocked.
type Archive struct {
	URL    string
	SHA256 string
}

// ArchiveFetcher downloads and unpacks source tarballs.
type ArchiveFetcher struct {
	client *http.Client
}

// NewArchiveFetcher creates an archive fetcher. A nil client gets a
// default with no overall timeout, since kernel tarballs are large.
func NewArchiveFetcher(client *http.Client) *ArchiveFetcher {
	if client == nil {
		client = &http.Client{}
	}
	return &ArchiveFetcher{client: client}
}

// Verify checks the archive URL with a HEAD request before committing to
// a multi-hundred-megabyte download.
func (f *ArchiveFetcher) Verify(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return errors.ErrDownloadFailed.WithCause(err)
	}
	req.Header.Set("User-Agent", "sdforge/1.0")

	client := *f.client
	client.Timeout = 30 * time.Second
	resp, err := client.Do(req)
	if err != nil {
		return errors.ErrDownloadFailed.WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.ErrDownloadFailed.WithMessagef("%s answered %d", url, resp.StatusCode)
	}
	return nil
}

// Download fetches the archive to destPath and verifies its checksum
// when one is configured.
func (f *ArchiveFetcher) Download(ctx context.Context, archive Archive, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, archive.URL, nil)
	if err != nil {
		return errors.ErrDownloadFailed.WithCause(err)
	}
	req.Header.Set("User-Agent", "sdforge/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return errors.ErrDownloadFailed.WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.ErrDownloadFailed.WithMessagef("%s answered %d", archive.URL, resp.StatusCode)
	}

	out, err := os.Create(destPath)
	if err != nil {
		return errors.ErrDownloadFailed.WithCause(err)
	}
	defer out.Close()

	hasher := sha256.New()
	if _, err := io.Copy(io.MultiWriter(out, hasher), resp.Body); err != nil {
		os.Remove(destPath)
		return errors.ErrDownloadFailed.WithCause(err)
	}

	if archive.SHA256 != "" {
		got := hex.EncodeToString(hasher.Sum(nil))
		if !strings.EqualFold(got, archive.SHA256) {
			os.Remove(destPath)
			return errors.ErrChecksumMismatch.WithMessagef(
				"%s: got %s, want %s", filepath.Base(destPath), got, archive.SHA256)
		}
	}

	log.Info("Downloaded archive", "url", archive.URL, "path", destPath)
	return nil
}

// Extract unpacks a tar archive into destDir, decompressing by file
// extension (gz, bz2, xz or plain tar).
func Extract(ctx context.Context, archivePath, destDir string) error {
	file, err := os.Open(archivePath)
	if err != nil {
		return errors.ErrExtractFailed.WithCause(err)
	}
	defer file.Close()

	var reader io.Reader = file

	switch {
	case strings.HasSuffix(archivePath, ".tar.gz") || strings.HasSuffix(archivePath, ".tgz"):
		gzReader, err := gzip.NewReader(file)
		if err != nil {
			return errors.ErrExtractFailed.WithCause(err)
		}
		defer gzReader.Close()
		reader = gzReader

	case strings.HasSuffix(archivePath, ".tar.bz2") || strings.HasSuffix(archivePath, ".tbz2"):
		reader = bzip2.NewReader(file)

	case strings.HasSuffix(archivePath, ".tar.xz") || strings.HasSuffix(archivePath, ".txz"):
		xzReader, err := xz.NewReader(file)
		if err != nil {
			return errors.ErrExtractFailed.WithCause(err)
		}
		reader = xzReader

	case strings.HasSuffix(archivePath, ".tar"):
		// Plain tar, no decompression needed

	default:
		return errors.ErrExtractFailed.WithMessagef("unsupported archive format: %s", archivePath)
	}

	tarReader := tar.NewReader(reader)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.ErrExtractFailed.WithCause(err)
		}

		target := filepath.Join(destDir, header.Name)

		// Prevent path traversal
		if !strings.HasPrefix(filepath.Clean(target), filepath.Clean(destDir)+string(os.PathSeparator)) {
			return errors.ErrExtractFailed.WithMessagef("invalid tar path: %s", header.Name)
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, os.FileMode(header.Mode)); err != nil {
				return errors.ErrExtractFailed.WithCause(err)
			}

		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return errors.ErrExtractFailed.WithCause(err)
			}
			if err := writeFile(target, tarReader, os.FileMode(header.Mode)); err != nil {
				return errors.ErrExtractFailed.WithCause(err)
			}

		case tar.TypeSymlink:
			// A link target outside destDir would let later entries
			// write through it past the staging directory.
			linkDest := header.Linkname
			if !filepath.IsAbs(linkDest) {
				linkDest = filepath.Join(filepath.Dir(target), linkDest)
			}
			if !strings.HasPrefix(filepath.Clean(linkDest)+string(os.PathSeparator), filepath.Clean(destDir)+string(os.PathSeparator)) {
				return errors.ErrExtractFailed.WithMessagef("invalid symlink target: %s -> %s", header.Name, header.Linkname)
			}
			if err := os.Symlink(header.Linkname, target); err != nil && !os.IsExist(err) {
				return errors.ErrExtractFailed.WithCause(err)
			}
		}
	}

	return nil
}

// TopLevelDir returns the single top-level directory of an extracted
// archive, the convention for kernel and U-Boot release tarballs.
func TopLevelDir(extractDir string) (string, error) {
	entries, err := os.ReadDir(extractDir)
	if err != nil {
		return "", err
	}
	var dirs []string
	for _, entry := range entries {
		if entry.IsDir() {
			dirs = append(dirs, entry.Name())
		}
	}
	if len(dirs) != 1 {
		return "", fmt.Errorf("expected one top-level directory in %s, found %d", extractDir, len(dirs))
	}
	return filepath.Join(extractDir, dirs[0]), nil
}

func writeFile(target string, r io.Reader, mode os.FileMode) error {
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, r)
	return err
}
