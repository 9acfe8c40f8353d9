package catmap

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/rs/zerolog"
	"github.com/walteh/gplusimport/pkg/forum"
	"github.com/zclconf/go-cty/cty"
	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"
)

// Load reads a mapping document. The format is determined by the file
// extension:
//   - .json for JSON (an empty "{}" document is the usual start)
//   - .yaml or .yml for YAML
//   - .hcl for HCL
//
// Regenerated .new files are always written as JSON regardless of the
// input format.
func Load(ctx context.Context, path string) (*Store, error) {
	logger := zerolog.Ctx(ctx)
	logger.Debug().Str("path", path).Msg("loading category mapping")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Errorf("reading mapping file %s: %w", path, err)
	}

	var entries map[string]*Entry
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		entries, err = loadJSON(data)
	case ".yaml", ".yml":
		entries, err = loadYAML(data)
	case ".hcl":
		entries, err = loadHCL(data, path)
	default:
		return nil, errors.Errorf("unsupported mapping file extension %q", ext)
	}
	if err != nil {
		return nil, errors.Errorf("parsing mapping file %s: %w", path, err)
	}

	if entries == nil {
		entries = map[string]*Entry{}
	}
	for id, entry := range entries {
		if entry == nil {
			entries[id] = &Entry{}
		}
	}

	logger.Debug().Int("entries", len(entries)).Msg("loaded category mapping")

	return &Store{
		path:     path,
		entries:  entries,
		resolved: map[string]*forum.Category{},
	}, nil
}

func loadJSON(data []byte) (map[string]*Entry, error) {
	var entries map[string]*Entry
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&entries); err != nil {
		return nil, errors.Errorf("parsing JSON: %w", err)
	}
	return entries, nil
}

func loadYAML(data []byte) (map[string]*Entry, error) {
	var entries map[string]*Entry
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&entries); err != nil {
		return nil, errors.Errorf("parsing YAML: %w", err)
	}
	return entries, nil
}

// hclDocument is the HCL-specific schema: one labeled block per
// external category id.
type hclDocument struct {
	Categories []hclCategory `hcl:"category,block"`
}

type hclCategory struct {
	ID        string   `hcl:"id,label"`
	Name      string   `hcl:"name,attr"`
	Community string   `hcl:"community,optional"`
	Category  string   `hcl:"category,optional"`
	Parent    string   `hcl:"parent,optional"`
	Create    bool     `hcl:"create,optional"`
	Tags      []string `hcl:"tags,optional"`
}

func loadHCL(data []byte, filename string) (map[string]*Entry, error) {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, errors.Errorf("parsing HCL: %s", diags.Error())
	}

	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{},
	}

	var doc hclDocument
	diags = gohcl.DecodeBody(hclFile.Body, evalCtx, &doc)
	if diags.HasErrors() {
		return nil, errors.Errorf("decoding HCL: %s", diags.Error())
	}

	entries := make(map[string]*Entry, len(doc.Categories))
	for _, block := range doc.Categories {
		entries[block.ID] = &Entry{
			Name:      block.Name,
			Community: block.Community,
			Category:  block.Category,
			Parent:    block.Parent,
			Create:    block.Create,
			Tags:      block.Tags,
		}
	}
	return entries, nil
}

// writeLocked writes the full current mapping as JSON. Callers hold
// s.mu.
func (s *Store) writeLocked(ctx context.Context, path string) error {
	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return errors.Errorf("encoding mapping: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Errorf("writing %s: %w", path, err)
	}

	zerolog.Ctx(ctx).Info().Str("path", path).Msg("wrote regenerated mapping")
	return nil
}
