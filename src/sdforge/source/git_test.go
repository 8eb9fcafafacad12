package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sdforge/sdforge/src/sdforge/board"
	"github.com/sdforge/sdforge/src/sdforge/runner"
)

func TestCloneArgs(t *testing.T) {
	tests := []struct {
		name string
		repo board.Repository
		want string
	}{
		{
			"full clone",
			board.Repository{Name: "u-boot", URL: "git://git.denx.de/u-boot.git"},
			"git clone git://git.denx.de/u-boot.git repositories/u-boot",
		},
		{
			"shallow clone",
			board.Repository{Name: "linux", URL: "git://git.kernel.org/linux.git", Shallow: true},
			"git clone git://git.kernel.org/linux.git --depth=1 repositories/linux",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			argv := CloneArgs(tt.repo, filepath.Join("repositories", tt.repo.Name))
			if got := strings.Join(argv, " "); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestEnsureRepositories_SkipsExistingCheckouts(t *testing.T) {
	reposDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(reposDir, "u-boot"), 0755); err != nil {
		t.Fatal(err)
	}

	r := runner.NewDryRunner()
	f := NewFetcher(r, reposDir)

	repos := []board.Repository{
		{Name: "u-boot", URL: "git://git.denx.de/u-boot.git"},
		{Name: "linux", URL: "git://git.kernel.org/linux.git", Shallow: true},
	}
	if err := f.EnsureRepositories(context.Background(), repos); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(r.Recorded) != 1 {
		t.Fatalf("expected 1 clone, got %d: %v", len(r.Recorded), r.Lines())
	}
	if !strings.Contains(r.Lines()[0], "linux.git") {
		t.Errorf("expected the missing repo to be cloned, got %q", r.Lines()[0])
	}
}

func TestEnsureFromArchive(t *testing.T) {
	dir := t.TempDir()
	tarball := filepath.Join(dir, "linux-6.8.tar.gz")
	writeTestTarball(t, tarball, map[string]string{"Makefile": "VERSION = 6\n"})
	data, err := os.ReadFile(tarball)
	if err != nil {
		t.Fatal(err)
	}
	sum := sha256.Sum256(data)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(data)
	}))
	defer srv.Close()

	reposDir := t.TempDir()
	f := NewFetcher(runner.NewHostRunner(), reposDir)
	archive := Archive{
		URL:    srv.URL + "/linux-6.8.tar.gz",
		SHA256: hex.EncodeToString(sum[:]),
	}
	if err := f.EnsureFromArchive(context.Background(), "linux", archive); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	content, err := os.ReadFile(filepath.Join(reposDir, "linux", "Makefile"))
	if err != nil {
		t.Fatalf("expected the tarball's tree under linux/: %v", err)
	}
	if string(content) != "VERSION = 6\n" {
		t.Errorf("unexpected file content %q", content)
	}
}

func TestEnsureFromArchive_ChecksumMismatch(t *testing.T) {
	dir := t.TempDir()
	tarball := filepath.Join(dir, "linux-6.8.tar.gz")
	writeTestTarball(t, tarball, map[string]string{"Makefile": "VERSION = 6\n"})
	data, err := os.ReadFile(tarball)
	if err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(data)
	}))
	defer srv.Close()

	reposDir := t.TempDir()
	f := NewFetcher(runner.NewHostRunner(), reposDir)
	archive := Archive{URL: srv.URL + "/linux-6.8.tar.gz", SHA256: strings.Repeat("0", 64)}
	if err := f.EnsureFromArchive(context.Background(), "linux", archive); err == nil {
		t.Fatal("expected checksum mismatch to fail the fetch")
	}
	if _, err := os.Stat(filepath.Join(reposDir, "linux")); err == nil {
		t.Error("a failed fetch must not leave a checkout behind")
	}
}

func TestEnsureFromArchive_DryRunSkipsDownload(t *testing.T) {
	reposDir := t.TempDir()
	r := runner.NewDryRunner()
	f := NewFetcher(r, reposDir)

	// The unroutable URL proves no request is made
	archive := Archive{URL: "http://192.0.2.1/linux-6.8.tar.gz"}
	if err := f.EnsureFromArchive(context.Background(), "linux", archive); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(reposDir, "linux")); err == nil {
		t.Error("dry run must not create a checkout")
	}
	if len(r.Recorded) != 0 {
		t.Errorf("dry run must execute nothing, got %v", r.Lines())
	}
}

func TestRepoPath(t *testing.T) {
	f := NewFetcher(runner.NewDryRunner(), "/work/repositories")
	if got := f.RepoPath("linux"); got != "/work/repositories/linux" {
		t.Errorf("unexpected repo path %q", got)
	}
}
