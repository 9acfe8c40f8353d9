package assets

import (
	"context"
	"encoding/csv"
	"os"
	"strconv"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// ManifestEntry describes one attachment the exporter downloaded.
type ManifestEntry struct {
	Filename string
	Filepath string
	Filesize int64
}

// LoadManifest reads the exporter's image-list CSV, a `;`-separated
// file with a header row of URL, IsDownloaded, FileName, FilePath,
// FileSize. The result is keyed by source URL.
func LoadManifest(ctx context.Context, path string) (map[string]ManifestEntry, error) {
	logger := zerolog.Ctx(ctx)
	logger.Debug().Str("path", path).Msg("loading attachment manifest")

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Errorf("reading manifest file %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.Comma = ';'
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Errorf("parsing manifest file %s: %w", path, err)
	}

	manifest := make(map[string]ManifestEntry, len(records))
	for i, record := range records {
		if i == 0 {
			// header row
			continue
		}
		if len(record) < 5 {
			return nil, errors.Errorf("manifest file %s: row %d has %d columns, want 5", path, i+1, len(record))
		}

		// The exporter writes sizes as plain integers; tolerate
		// garbage the way the original tooling did.
		size, _ := strconv.ParseInt(record[4], 10, 64)
		manifest[record[0]] = ManifestEntry{
			Filename: record[2],
			Filepath: record[3],
			Filesize: size,
		}
	}

	logger.Debug().Int("entries", len(manifest)).Msg("loaded attachment manifest")
	return manifest, nil
}
