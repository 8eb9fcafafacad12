// Package source acquires the source trees the build needs: git clones of
// the kernel, U-Boot, TF-A and linux-firmware, with an HTTP tarball path
// for hosts where git access to the upstream remotes is not available.
package source

import (
	"context"
	"os"
	"path/filepath"

	"github.com/sdforge/sdforge/src/common/errors"
	"github.com/sdforge/sdforge/src/common/logs"
	"github.com/sdforge/sdforge/src/common/paths"
	"github.com/sdforge/sdforge/src/sdforge/board"
	"github.com/sdforge/sdforge/src/sdforge/runner"
)

var log = logs.NewDefault()

// SetLogger sets the logger for the source package
func SetLogger(l *logs.Logger) {
	if l != nil {
		log = l
	}
}

// Fetcher clones the board's source repositories into the workspace.
type Fetcher struct {
	run      runner.Runner
	reposDir string
}

// NewFetcher creates a fetcher writing under reposDir.
func NewFetcher(run runner.Runner, reposDir string) *Fetcher {
	return &Fetcher{run: run, reposDir: reposDir}
}

// CloneArgs builds the git invocation for one repository.
func CloneArgs(repo board.Repository, dest string) []string {
	argv := []string{"git", "clone", repo.URL}
	if repo.Shallow {
		argv = append(argv, "--depth=1")
	}
	return append(argv, dest)
}

// EnsureRepositories clones every missing repository. Existing checkouts
// are left untouched so interrupted fetches can simply be re-run.
func (f *Fetcher) EnsureRepositories(ctx context.Context, repos []board.Repository) error {
	for _, repo := range repos {
		dest := f.RepoPath(repo.Name)
		if paths.IsDir(dest) {
			log.Info("Repository already present", "repo", repo.Name, "path", dest)
			continue
		}

		log.Info("Cloning repository", "repo", repo.Name, "url", repo.URL, "shallow", repo.Shallow)
		cmd := runner.Command{Argv: CloneArgs(repo, dest)}
		if err := f.run.Run(ctx, cmd); err != nil {
			return errors.ErrCloneFailed.WithMessagef("clone of %s failed", repo.Name).WithCause(err)
		}
	}
	return nil
}

// RepoPath returns the checkout directory for a named repository.
func (f *Fetcher) RepoPath(name string) string {
	return filepath.Join(f.reposDir, name)
}

// EnsureFromArchive provides a source tree from a release tarball instead
// of a git clone, for networks where the git protocol is blocked. The
// tarball's single top-level directory becomes the checkout.
func (f *Fetcher) EnsureFromArchive(ctx context.Context, name string, archive Archive) error {
	dest := f.RepoPath(name)
	if paths.IsDir(dest) {
		log.Info("Repository already present", "repo", name, "path", dest)
		return nil
	}

	if f.run.DryRun() {
		log.Info("Dry run, skipping source archive download", "repo", name, "url", archive.URL)
		return nil
	}

	af := NewArchiveFetcher(nil)
	if err := af.Verify(ctx, archive.URL); err != nil {
		return err
	}

	tarball := filepath.Join(f.reposDir, filepath.Base(archive.URL))
	log.Info("Downloading source archive", "repo", name, "url", archive.URL)
	if err := af.Download(ctx, archive, tarball); err != nil {
		return err
	}
	defer os.Remove(tarball)

	stagingDir := dest + ".extract"
	if err := os.MkdirAll(stagingDir, 0755); err != nil {
		return errors.ErrExtractFailed.WithCause(err)
	}
	defer os.RemoveAll(stagingDir)

	if err := Extract(ctx, tarball, stagingDir); err != nil {
		return err
	}

	top, err := TopLevelDir(stagingDir)
	if err != nil {
		return errors.ErrExtractFailed.WithCause(err)
	}
	if err := os.Rename(top, dest); err != nil {
		return errors.ErrExtractFailed.WithCause(err)
	}
	log.Info("Source archive unpacked", "repo", name, "path", dest)
	return nil
}
