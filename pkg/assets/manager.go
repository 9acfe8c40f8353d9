// Package assets deduplicates attachment uploads across an import run.
// Every image reference funnels through one manager so a URL seen twice
// reuses one uploaded asset and counts its bytes once.
package assets

import (
	"context"
	"os"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
	"github.com/walteh/gplusimport/pkg/forum"
	"gitlab.com/tozd/go/errors"
)

// Options configures a Manager.
type Options struct {
	// Manifest maps source URLs to downloaded files, from LoadManifest.
	Manifest map[string]ManifestEntry

	// Uploader stores files on the forum. Unused in dry runs.
	Uploader forum.UploadWriter

	// AuditPath, when set, names an append-only file receiving the
	// local path of every file uploaded.
	AuditPath string

	// Pattern, when set, is a doublestar glob restricting which
	// manifest file names are eligible for upload; everything else
	// falls through to plain-link rendering.
	Pattern string

	// DryRun suppresses uploads and audit writes while keeping the
	// dedup bookkeeping live.
	DryRun bool
}

// Manager resolves image references, uploading each distinct source URL
// at most once per run. Safe for concurrent use.
type Manager struct {
	mu         sync.Mutex
	manifest   map[string]ManifestEntry
	uploader   forum.UploadWriter
	uploaded   map[string]*forum.Upload
	totalBytes int64
	audit      *os.File
	pattern    string
	dryRun     bool
}

// NewManager validates the options and opens the audit file when one
// is configured.
func NewManager(opts Options) (*Manager, error) {
	if opts.Pattern != "" && !doublestar.ValidatePattern(opts.Pattern) {
		return nil, errors.Errorf("invalid image pattern %q", opts.Pattern)
	}

	m := &Manager{
		manifest: opts.Manifest,
		uploader: opts.Uploader,
		uploaded: map[string]*forum.Upload{},
		pattern:  opts.Pattern,
		dryRun:   opts.DryRun,
	}
	if m.manifest == nil {
		m.manifest = map[string]ManifestEntry{}
	}

	if opts.AuditPath != "" && !opts.DryRun {
		f, err := os.OpenFile(opts.AuditPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, errors.Errorf("opening audit file %s: %w", opts.AuditPath, err)
		}
		m.audit = f
	}
	return m, nil
}

// ResolveOrUpload returns the markup for a link or image reference.
// Known downloaded assets become inline image markup backed by exactly
// one upload per source URL; everything else renders as a bare URL.
func (m *Manager) ResolveOrUpload(ctx context.Context, url, display string) (string, error) {
	// The exporter puts the URL it actually downloaded in the display
	// slot; when it matches a manifest entry it is the authoritative
	// URL, since the original one will disappear anyway.
	if display != "" {
		if _, ok := m.manifest[display]; ok {
			url = display
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if upload, ok := m.uploaded[url]; ok {
		return imageMarkup(upload), nil
	}

	if entry, ok := m.manifest[url]; ok && m.eligible(entry.Filename) {
		upload, err := m.upload(ctx, url, entry)
		if err != nil {
			return "", err
		}
		return imageMarkup(upload), nil
	}

	// Not a downloaded asset. When the display text differs from the
	// URL it is the source platform's own interpolation, which reads
	// poorly after import, so the bare URL is rendered either way and
	// the destination can auto-embed it.
	return url, nil
}

// upload performs (or, in a dry run, simulates) the single upload for a
// URL. Callers hold m.mu.
func (m *Manager) upload(ctx context.Context, url string, entry ManifestEntry) (*forum.Upload, error) {
	logger := zerolog.Ctx(ctx)

	var upload *forum.Upload
	if m.dryRun {
		upload = &forum.Upload{
			ShortURL: "upload://dry-run/" + entry.Filename,
			Filename: entry.Filename,
		}
		logger.Debug().Str("url", url).Msg("dry run: would upload")
	} else {
		if m.audit != nil {
			if _, err := m.audit.WriteString(entry.Filepath + "\n"); err != nil {
				return nil, errors.Errorf("appending to audit file: %w", err)
			}
		}
		created, err := m.uploader.UploadFile(ctx, entry.Filepath, entry.Filename)
		if err != nil {
			return nil, errors.Errorf("uploading %s: %w", entry.Filepath, err)
		}
		upload = created
		logger.Debug().Str("url", url).Str("file", entry.Filepath).Msg("uploaded")
	}

	m.totalBytes += entry.Filesize
	m.uploaded[url] = upload
	return upload, nil
}

func (m *Manager) eligible(filename string) bool {
	if m.pattern == "" {
		return true
	}
	ok, err := doublestar.Match(m.pattern, filename)
	return err == nil && ok
}

// TotalBytes reports the accumulated size of every uploaded file, each
// counted once.
func (m *Manager) TotalBytes() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totalBytes
}

// UploadCount reports how many distinct URLs were uploaded.
func (m *Manager) UploadCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.uploaded)
}

// Close releases the audit file, if any.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.audit == nil {
		return nil
	}
	err := m.audit.Close()
	m.audit = nil
	if err != nil {
		return errors.Errorf("closing audit file: %w", err)
	}
	return nil
}

// imageMarkup renders an upload as an inline image on its own line.
func imageMarkup(upload *forum.Upload) string {
	return "\n![" + upload.Filename + "](" + upload.ShortURL + ")"
}
