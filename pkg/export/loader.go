package export

import (
	"context"
	"encoding/json"
	"os"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// LoadFeed reads and decodes one export document. A missing file is
// fatal at load time, before any processing begins.
func LoadFeed(ctx context.Context, path string) (*Feed, error) {
	logger := zerolog.Ctx(ctx)
	logger.Debug().Str("path", path).Msg("loading export feed")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Errorf("reading export file %s: %w", path, err)
	}

	var feed Feed
	if err := json.Unmarshal(data, &feed); err != nil {
		return nil, errors.Errorf("parsing export file %s: %w", path, err)
	}

	logger.Debug().
		Str("path", path).
		Int("accounts", len(feed.Accounts)).
		Msg("loaded export feed")

	return &feed, nil
}
