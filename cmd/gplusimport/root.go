// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/walteh/gplusimport/pkg/assets"
	"github.com/walteh/gplusimport/pkg/catmap"
	"github.com/walteh/gplusimport/pkg/export"
	"github.com/walteh/gplusimport/pkg/forum"
	"github.com/walteh/gplusimport/pkg/identity"
	"github.com/walteh/gplusimport/pkg/importer"
	"github.com/walteh/gplusimport/pkg/status"
	"github.com/walteh/gplusimport/pkg/title"
	"gitlab.com/tozd/go/errors"
)

var (
	dryRun       bool
	async        bool
	debug        bool
	globalTags   []string
	imagePattern string
)

// mappingSuffixes are the recognized mapping document names; an
// argument ending in one of these is the mapping file no matter what
// directory it lives in.
var mappingSuffixes = []string{
	"categories.json",
	"categories.yaml",
	"categories.yml",
	"categories.hcl",
}

// auditSuffix marks the argument that receives the upload audit
// manifest.
const auditSuffix = "upload-paths.txt"

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gplusimport [files...]",
		Short: "Import a Friends+Me Google+ Exporter archive into a forum",
		Long: `gplusimport converts F+MG+E export files into normalized forum topics
and replies. Every argument is a file path, classified by its name:

  *.csv              the exporter's downloaded-image list
  *upload-paths.txt  receives the path of every file uploaded
  categories.{json,yaml,yml,hcl}
                     the category mapping document
  *.json             an export feed

Start with an empty ("{}") categories.json; the first run writes a
.new file with a stub per discovered category. Fill in the targets and
rerun.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), args)
		},
		SilenceUsage: true,
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "parse and validate everything, write nothing")
	cmd.Flags().BoolVar(&async, "async", false, "import independent feed files in parallel")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "enable debug logging")
	cmd.Flags().StringSliceVar(&globalTags, "tag", []string{"gplus"}, "tag applied to every imported topic")
	cmd.Flags().StringVar(&imagePattern, "image-pattern", "", "glob restricting which downloaded files are uploaded")

	return cmd
}

// runFiles is the argument classification result.
type runFiles struct {
	feeds    []string
	manifest string
	mapping  string
	audit    string
}

func classifyArgs(args []string) (*runFiles, error) {
	files := &runFiles{}
	for _, arg := range args {
		switch {
		case strings.HasSuffix(arg, ".csv"):
			files.manifest = arg
		case strings.HasSuffix(arg, auditSuffix):
			files.audit = arg
		case isMappingFile(arg):
			files.mapping = arg
		case strings.HasSuffix(arg, ".json"):
			files.feeds = append(files.feeds, arg)
		default:
			return nil, errors.Errorf("unrecognized argument %q: not a csv, mapping, audit or export file", arg)
		}
	}
	if files.mapping == "" {
		return nil, errors.New("must provide a categories mapping file")
	}
	return files, nil
}

func isMappingFile(arg string) bool {
	for _, suffix := range mappingSuffixes {
		if strings.HasSuffix(arg, suffix) {
			return true
		}
	}
	return false
}

func run(ctx context.Context, args []string) error {
	logger := zerolog.Ctx(ctx)
	if debug {
		leveled := logger.Level(zerolog.DebugLevel)
		logger = &leveled
		ctx = logger.WithContext(ctx)
	}

	files, err := classifyArgs(args)
	if err != nil {
		return err
	}

	reporter := status.NewReporter(ctx)
	reporter.Phase("Loading input files")

	feeds := make([]*export.Feed, 0, len(files.feeds))
	for _, path := range files.feeds {
		feed, err := export.LoadFeed(ctx, path)
		if err != nil {
			return err
		}
		feeds = append(feeds, feed)
	}
	if len(feeds) == 0 {
		reporter.Warn("no export feed files given; only the mapping will be processed")
	}

	manifest := map[string]assets.ManifestEntry{}
	if files.manifest != "" {
		manifest, err = assets.LoadManifest(ctx, files.manifest)
		if err != nil {
			return err
		}
	}

	mapping, err := catmap.Load(ctx, files.mapping)
	if err != nil {
		return err
	}

	// The standalone binary has no live forum to talk to: it runs the
	// full pipeline against an in-memory one, mirroring the target
	// categories named by the mapping. That validates the export, the
	// mapping and every reference end to end; live persistence is an
	// embedder concern.
	memory := forum.NewMemory()
	seedCategories(memory, mapping)

	manager, err := assets.NewManager(assets.Options{
		Manifest:  manifest,
		Uploader:  memory,
		AuditPath: files.audit,
		Pattern:   imagePattern,
		DryRun:    dryRun,
	})
	if err != nil {
		return err
	}
	defer manager.Close()

	imp := importer.New(importer.Options{
		Feeds:      feeds,
		Mapping:    mapping,
		Assets:     manager,
		Identities: identity.NewResolver(memory),
		Categories: memory,
		Accounts:   memory,
		Content:    memory,
		Reporter:   reporter,
		GlobalTags: globalTags,
		Titles:     title.DefaultConfig(),
		DryRun:     dryRun,
		Async:      async,
	})

	summary, err := imp.Run(ctx)
	if err != nil {
		return err
	}

	if err := manager.Close(); err != nil {
		return err
	}

	reporter.Done(*summary)
	return nil
}

// seedCategories mirrors every complete mapping target into the
// in-memory forum so resolution behaves as it would against a forum
// where the operator already created them.
func seedCategories(memory *forum.Memory, mapping *catmap.Store) {
	parents := map[string]*forum.Category{}
	for _, entry := range mapping.Entries() {
		if entry.Incomplete() || entry.Create {
			continue
		}
		var parent *forum.Category
		if entry.Parent != "" {
			p, ok := parents[entry.Parent]
			if !ok {
				p = memory.SeedCategory(entry.Parent, nil)
				parents[entry.Parent] = p
			}
			parent = p
		}
		memory.SeedCategory(entry.Category, parent)
	}
}
