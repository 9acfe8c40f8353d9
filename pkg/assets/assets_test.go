package assets_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/gplusimport/pkg/assets"
	"github.com/walteh/gplusimport/pkg/forum"
)

func TestLoadManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "images.csv")
	content := strings.Join([]string{
		"URL;IsDownloaded;FileName;FilePath;FileSize",
		"https://img/photo.jpg;yes;photo.jpg;/data/photo.jpg;2048",
		"https://img/chart.png;yes;chart.png;/data/chart.png;512",
		"https://img/broken.gif;no;broken.gif;/data/broken.gif;not-a-number",
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	manifest, err := assets.LoadManifest(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, manifest, 3)

	entry := manifest["https://img/photo.jpg"]
	assert.Equal(t, "photo.jpg", entry.Filename)
	assert.Equal(t, "/data/photo.jpg", entry.Filepath)
	assert.Equal(t, int64(2048), entry.Filesize)

	// Garbage sizes parse to zero instead of failing the load.
	assert.Equal(t, int64(0), manifest["https://img/broken.gif"].Filesize)
}

func TestLoadManifestRejectsShortRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "images.csv")
	content := "URL;IsDownloaded;FileName;FilePath;FileSize\nhttps://img/photo.jpg;yes\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := assets.LoadManifest(context.Background(), path)
	require.Error(t, err)
}

func testManifest() map[string]assets.ManifestEntry {
	return map[string]assets.ManifestEntry{
		"https://img/photo.jpg": {Filename: "photo.jpg", Filepath: "/data/photo.jpg", Filesize: 2048},
		"https://img/chart.png": {Filename: "chart.png", Filepath: "/data/chart.png", Filesize: 512},
	}
}

func TestResolveUploadsManifestAssets(t *testing.T) {
	memory := forum.NewMemory()
	manager, err := assets.NewManager(assets.Options{
		Manifest: testManifest(),
		Uploader: memory,
	})
	require.NoError(t, err)

	markup, err := manager.ResolveOrUpload(context.Background(), "https://img/photo.jpg", "")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(markup, "\n![photo.jpg](upload://"), markup)
	assert.Equal(t, 1, memory.UploadCount())
	assert.Equal(t, int64(2048), manager.TotalBytes())
}

func TestResolveUploadsEachURLOnce(t *testing.T) {
	memory := forum.NewMemory()
	manager, err := assets.NewManager(assets.Options{
		Manifest: testManifest(),
		Uploader: memory,
	})
	require.NoError(t, err)

	first, err := manager.ResolveOrUpload(context.Background(), "https://img/photo.jpg", "")
	require.NoError(t, err)
	second, err := manager.ResolveOrUpload(context.Background(), "https://img/photo.jpg", "")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, memory.UploadCount())
	assert.Equal(t, 1, manager.UploadCount())
	// Bytes counted once, not per reference.
	assert.Equal(t, int64(2048), manager.TotalBytes())
}

func TestResolvePrefersDisplayURLWhenDownloaded(t *testing.T) {
	memory := forum.NewMemory()
	manager, err := assets.NewManager(assets.Options{
		Manifest: testManifest(),
		Uploader: memory,
	})
	require.NoError(t, err)

	// The original URL is dead; the display slot holds the URL that was
	// actually downloaded.
	markup, err := manager.ResolveOrUpload(context.Background(), "https://dead.example/x", "https://img/chart.png")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(markup, "\n![chart.png](upload://"), markup)
}

func TestResolveRendersUnknownURLsAsLinks(t *testing.T) {
	manager, err := assets.NewManager(assets.Options{Manifest: testManifest()})
	require.NoError(t, err)

	markup, err := manager.ResolveOrUpload(context.Background(), "https://example.com/page", "a page")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/page", markup)
	assert.Equal(t, 0, manager.UploadCount())
}

func TestResolveHonorsImagePattern(t *testing.T) {
	memory := forum.NewMemory()
	manager, err := assets.NewManager(assets.Options{
		Manifest: testManifest(),
		Uploader: memory,
		Pattern:  "*.jpg",
	})
	require.NoError(t, err)

	markup, err := manager.ResolveOrUpload(context.Background(), "https://img/photo.jpg", "")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(markup, "\n!["), markup)

	// The png falls outside the pattern and renders as a plain link.
	markup, err = manager.ResolveOrUpload(context.Background(), "https://img/chart.png", "")
	require.NoError(t, err)
	assert.Equal(t, "https://img/chart.png", markup)
	assert.Equal(t, 1, memory.UploadCount())
}

func TestNewManagerRejectsBadPattern(t *testing.T) {
	_, err := assets.NewManager(assets.Options{Pattern: "[unclosed"})
	require.Error(t, err)
}

func TestDryRunSkipsUploadsButKeepsBookkeeping(t *testing.T) {
	auditPath := filepath.Join(t.TempDir(), "upload-paths.txt")
	memory := forum.NewMemory()
	manager, err := assets.NewManager(assets.Options{
		Manifest:  testManifest(),
		Uploader:  memory,
		AuditPath: auditPath,
		DryRun:    true,
	})
	require.NoError(t, err)

	markup, err := manager.ResolveOrUpload(context.Background(), "https://img/photo.jpg", "")
	require.NoError(t, err)
	assert.Equal(t, "\n![photo.jpg](upload://dry-run/photo.jpg)", markup)

	assert.Equal(t, 0, memory.UploadCount())
	assert.Equal(t, 1, manager.UploadCount())
	assert.Equal(t, int64(2048), manager.TotalBytes())

	require.NoError(t, manager.Close())
	_, err = os.Stat(auditPath)
	assert.True(t, os.IsNotExist(err))
}

func TestAuditFileRecordsUploadedPaths(t *testing.T) {
	auditPath := filepath.Join(t.TempDir(), "upload-paths.txt")
	memory := forum.NewMemory()
	manager, err := assets.NewManager(assets.Options{
		Manifest:  testManifest(),
		Uploader:  memory,
		AuditPath: auditPath,
	})
	require.NoError(t, err)

	_, err = manager.ResolveOrUpload(context.Background(), "https://img/photo.jpg", "")
	require.NoError(t, err)
	_, err = manager.ResolveOrUpload(context.Background(), "https://img/chart.png", "")
	require.NoError(t, err)
	_, err = manager.ResolveOrUpload(context.Background(), "https://img/photo.jpg", "")
	require.NoError(t, err)
	require.NoError(t, manager.Close())

	data, err := os.ReadFile(auditPath)
	require.NoError(t, err)
	assert.Equal(t, "/data/photo.jpg\n/data/chart.png\n", string(data))
}
