package source

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeTestTarball(t *testing.T, path string, files map[string]string) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)

	if err := tw.WriteHeader(&tar.Header{
		Name:     "linux-6.8/",
		Typeflag: tar.TypeDir,
		Mode:     0755,
	}); err != nil {
		t.Fatal(err)
	}

	for name, content := range files {
		hdr := &tar.Header{
			Name: "linux-6.8/" + name,
			Mode: 0644,
			Size: int64(len(content)),
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}

	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestExtractAndTopLevelDir(t *testing.T) {
	dir := t.TempDir()
	tarball := filepath.Join(dir, "linux-6.8.tar.gz")
	writeTestTarball(t, tarball, map[string]string{
		"Makefile":       "VERSION = 6\n",
		"Kconfig":        "source \"init/Kconfig\"\n",
		"init/main.code": "start_kernel\n",
	})

	destDir := filepath.Join(dir, "extracted")
	if err := os.MkdirAll(destDir, 0755); err != nil {
		t.Fatal(err)
	}

	if err := Extract(context.Background(), tarball, destDir); err != nil {
		t.Fatalf("extract failed: %v", err)
	}

	top, err := TopLevelDir(destDir)
	if err != nil {
		t.Fatalf("top-level dir: %v", err)
	}
	if filepath.Base(top) != "linux-6.8" {
		t.Errorf("expected linux-6.8, got %q", filepath.Base(top))
	}

	content, err := os.ReadFile(filepath.Join(top, "Makefile"))
	if err != nil {
		t.Fatalf("extracted file missing: %v", err)
	}
	if string(content) != "VERSION = 6\n" {
		t.Errorf("unexpected file content %q", content)
	}
}

func TestExtract_RejectsPathTraversal(t *testing.T) {
	dir := t.TempDir()
	tarball := filepath.Join(dir, "evil.tar.gz")

	f, err := os.Create(tarball)
	if err != nil {
		t.Fatal(err)
	}
	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)
	payload := "owned"
	if err := tw.WriteHeader(&tar.Header{
		Name: "../outside.txt",
		Mode: 0644,
		Size: int64(len(payload)),
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := tw.Write([]byte(payload)); err != nil {
		t.Fatal(err)
	}
	tw.Close()
	gz.Close()
	f.Close()

	destDir := filepath.Join(dir, "extracted")
	if err := os.MkdirAll(destDir, 0755); err != nil {
		t.Fatal(err)
	}

	if err := Extract(context.Background(), tarball, destDir); err == nil {
		t.Fatal("expected path traversal to be rejected")
	}
}

func TestExtract_RejectsUnknownFormat(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "sources.zip")
	if err := os.WriteFile(archive, []byte("PK"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := Extract(context.Background(), archive, dir); err == nil {
		t.Fatal("expected unsupported format error")
	}
}

func TestExtract_RejectsSymlinkEscape(t *testing.T) {
	dir := t.TempDir()
	tarball := filepath.Join(dir, "evil.tar.gz")

	f, err := os.Create(tarball)
	if err != nil {
		t.Fatal(err)
	}
	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)
	// A link out of the tree followed by a write through it
	if err := tw.WriteHeader(&tar.Header{
		Name:     "pivot",
		Linkname: "/etc",
		Typeflag: tar.TypeSymlink,
		Mode:     0777,
	}); err != nil {
		t.Fatal(err)
	}
	payload := "owned"
	if err := tw.WriteHeader(&tar.Header{
		Name: "pivot/owned.txt",
		Mode: 0644,
		Size: int64(len(payload)),
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := tw.Write([]byte(payload)); err != nil {
		t.Fatal(err)
	}
	tw.Close()
	gz.Close()
	f.Close()

	destDir := filepath.Join(dir, "extracted")
	if err := os.MkdirAll(destDir, 0755); err != nil {
		t.Fatal(err)
	}

	if err := Extract(context.Background(), tarball, destDir); err == nil {
		t.Fatal("expected escaping symlink to be rejected")
	}
	if _, err := os.Stat("/etc/owned.txt"); err == nil {
		t.Fatal("file escaped the extraction directory")
	}
}

func TestExtract_AllowsRelativeSymlinkInTree(t *testing.T) {
	dir := t.TempDir()
	tarball := filepath.Join(dir, "links.tar.gz")

	f, err := os.Create(tarball)
	if err != nil {
		t.Fatal(err)
	}
	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)
	if err := tw.WriteHeader(&tar.Header{
		Name:     "tree/",
		Typeflag: tar.TypeDir,
		Mode:     0755,
	}); err != nil {
		t.Fatal(err)
	}
	if err := tw.WriteHeader(&tar.Header{
		Name:     "tree/latest",
		Linkname: "./current",
		Typeflag: tar.TypeSymlink,
		Mode:     0777,
	}); err != nil {
		t.Fatal(err)
	}
	tw.Close()
	gz.Close()
	f.Close()

	destDir := filepath.Join(dir, "extracted")
	if err := os.MkdirAll(destDir, 0755); err != nil {
		t.Fatal(err)
	}

	if err := Extract(context.Background(), tarball, destDir); err != nil {
		t.Fatalf("in-tree symlink rejected: %v", err)
	}
	if _, err := os.Lstat(filepath.Join(destDir, "tree", "latest")); err != nil {
		t.Errorf("symlink not created: %v", err)
	}
}
