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

// Package catmap manages the operator-edited mapping from export
// categories to target forum categories. The protocol is deliberately
// abort-and-regenerate: start from an empty mapping, let a run discover
// stubs and write a .new file, fill it in, rerun.
package catmap

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/walteh/gplusimport/pkg/export"
	"github.com/walteh/gplusimport/pkg/forum"
	"gitlab.com/tozd/go/errors"
)

// ErrIncompleteMapping is returned when any entry has no target
// category; the operator must edit the regenerated .new file and rerun.
var ErrIncompleteMapping = errors.New("mapping file has incomplete categories")

// Entry describes how one export category maps to one target category.
type Entry struct {
	// Name is the source category name, filled during discovery.
	Name string `json:"name" yaml:"name"`
	// Community is the source community name, backfilled during
	// discovery when absent.
	Community string `json:"community,omitempty" yaml:"community,omitempty"`
	// Category is the target category name; empty means the entry is
	// incomplete.
	Category string `json:"category" yaml:"category"`
	// Parent qualifies the target lookup; distinct subcategories may
	// share a name under different parents.
	Parent string `json:"parent,omitempty" yaml:"parent,omitempty"`
	// Create makes a missing target category instead of failing.
	Create bool `json:"create,omitempty" yaml:"create,omitempty"`
	// Tags are applied to every topic imported into this category, on
	// top of the run's global tags.
	Tags []string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// Incomplete reports whether the entry still needs operator input.
func (e *Entry) Incomplete() bool { return e.Category == "" }

// Store holds the mapping document and, after Resolve, the target
// category handles.
type Store struct {
	mu       sync.Mutex
	path     string
	entries  map[string]*Entry
	resolved map[string]*forum.Category
}

// Discover walks every category in the given feeds and creates a stub
// entry for each unseen external category id. A seen entry missing its
// community name is backfilled.
func (s *Store) Discover(ctx context.Context, feeds []*export.Feed) {
	s.mu.Lock()
	defer s.mu.Unlock()

	discovered := 0
	for _, feed := range feeds {
		for _, account := range feed.Accounts {
			for _, community := range account.Communities {
				for _, category := range community.Categories {
					entry, ok := s.entries[category.ID]
					if !ok {
						// Empty target: written out for the operator
						// to fill in manually.
						s.entries[category.ID] = &Entry{
							Name:      category.Name,
							Community: community.Name,
						}
						discovered++
						continue
					}
					if entry.Community == "" {
						entry.Community = community.Name
					}
				}
			}
		}
	}

	if discovered > 0 {
		zerolog.Ctx(ctx).Info().
			Int("count", discovered).
			Msg("discovered unmapped categories")
	}
}

// Validate fails when any entry is incomplete. On failure the full
// current mapping, stubs included, is written next to the original
// file with a .new suffix as an operator aid.
func (s *Store) Validate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var incomplete []string
	for _, entry := range s.entries {
		if entry.Incomplete() {
			incomplete = append(incomplete, entry.Name)
		}
	}
	if len(incomplete) == 0 {
		return nil
	}
	sort.Strings(incomplete)

	regenerated := s.path + ".new"
	if err := s.writeLocked(ctx, regenerated); err != nil {
		return errors.Errorf("writing regenerated mapping: %w", err)
	}

	return errors.Errorf(
		"%w: no target for %s; edit %s and rename it to %s before rerunning",
		ErrIncompleteMapping, strings.Join(incomplete, ", "), regenerated, s.path,
	)
}

// Resolve looks up the target category handle for every entry. Only
// reached when Validate passed. A missing parent or missing category is
// fatal unless the entry opts into creation. In dry-run mode creation
// is suppressed and a detached handle stands in, so every other error
// path still fires.
func (s *Store) Resolve(ctx context.Context, dir forum.CategoryDirectory, dryRun bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	logger := zerolog.Ctx(ctx)
	for id, entry := range s.entries {
		var parent *forum.Category
		if entry.Parent != "" {
			found, err := dir.FindCategory(ctx, entry.Parent)
			if err != nil {
				return errors.Errorf("looking up parent category %s: %w", entry.Parent, err)
			}
			if found == nil {
				return errors.Errorf("could not find parent category %s for %s", entry.Parent, entry.Name)
			}
			parent = found
		}

		category, err := s.findTarget(ctx, dir, entry, parent)
		if err != nil {
			return err
		}
		if category == nil {
			if !entry.Create {
				return errors.Errorf("could not find category %s for %s", entry.Category, entry.Name)
			}
			if dryRun {
				logger.Info().
					Str("category", entry.Category).
					Msg("dry run: would create category")
				category = &forum.Category{Name: entry.Category}
			} else {
				category, err = dir.CreateCategory(ctx, entry.Category, parent)
				if err != nil {
					return errors.Errorf("creating category %s: %w", entry.Category, err)
				}
				logger.Info().Str("category", entry.Category).Msg("created category")
			}
		}
		s.resolved[id] = category
	}
	return nil
}

func (s *Store) findTarget(ctx context.Context, dir forum.CategoryDirectory, entry *Entry, parent *forum.Category) (*forum.Category, error) {
	if parent != nil {
		found, err := dir.FindSubcategory(ctx, entry.Category, parent)
		if err != nil {
			return nil, errors.Errorf("looking up category %s under %s: %w", entry.Category, entry.Parent, err)
		}
		return found, nil
	}
	found, err := dir.FindCategory(ctx, entry.Category)
	if err != nil {
		return nil, errors.Errorf("looking up category %s: %w", entry.Category, err)
	}
	return found, nil
}

// Category returns the resolved handle for an external category id.
func (s *Store) Category(externalID string) (*forum.Category, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cat, ok := s.resolved[externalID]
	return cat, ok
}

// Tags returns the extra tags configured for an external category id.
func (s *Store) Tags(externalID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[externalID]
	if !ok {
		return nil
	}
	return entry.Tags
}

// Entries returns a copy of the mapping, keyed by external category
// id.
func (s *Store) Entries() map[string]Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Entry, len(s.entries))
	for id, entry := range s.entries {
		out[id] = *entry
	}
	return out
}

// Len reports the number of mapping entries, stubs included.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
