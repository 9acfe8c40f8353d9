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

// Package importer walks export feeds in source order and drives the
// mapping store, identity resolver, renderer and asset manager to emit
// normalized topic and reply records.
package importer

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"github.com/walteh/gplusimport/pkg/assets"
	"github.com/walteh/gplusimport/pkg/catmap"
	"github.com/walteh/gplusimport/pkg/export"
	"github.com/walteh/gplusimport/pkg/forum"
	"github.com/walteh/gplusimport/pkg/identity"
	"github.com/walteh/gplusimport/pkg/render"
	"github.com/walteh/gplusimport/pkg/status"
	"github.com/walteh/gplusimport/pkg/title"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"
)

// Options wires an import run together.
type Options struct {
	Feeds      []*export.Feed
	Mapping    *catmap.Store
	Assets     *assets.Manager
	Identities *identity.Resolver

	Categories forum.CategoryDirectory
	Accounts   forum.AccountWriter
	Content    forum.ContentWriter

	// Reporter receives phase and progress output. Optional; nil means
	// a silent run.
	Reporter *status.Reporter

	// GlobalTags are applied to every imported topic, ahead of any
	// per-category tags.
	GlobalTags []string
	Titles     title.Config

	// DryRun parses, validates and resolves everything but suppresses
	// account creation, uploads and topic/reply emission. Every error
	// a live run would surface still fires.
	DryRun bool

	// Async imports independent feed files in parallel. The identity,
	// upload and byte-total caches are shared and serialized, so the
	// dedup invariants hold either way.
	Async bool
}

// Importer runs one import.
type Importer struct {
	opts Options

	mu      sync.Mutex
	topics  int
	replies int
}

// New returns an importer for the given options.
func New(opts Options) *Importer {
	return &Importer{opts: opts}
}

// Run executes the import phases in order: category discovery,
// mapping validation, category resolution, identity collection,
// account creation, then post and comment emission.
func (imp *Importer) Run(ctx context.Context) (*status.Summary, error) {
	opts := imp.opts

	opts.Reporter.Phase("Mapping categories")
	opts.Mapping.Discover(ctx, opts.Feeds)
	if err := opts.Mapping.Validate(ctx); err != nil {
		return nil, err
	}
	if err := opts.Mapping.Resolve(ctx, opts.Categories, opts.DryRun); err != nil {
		return nil, err
	}

	opts.Reporter.Phase("Importing post and comment authors")
	if err := imp.collectIdentities(ctx); err != nil {
		return nil, err
	}

	created := 0
	if opts.DryRun {
		opts.Reporter.Warn("dry run: skipping account creation")
	} else {
		n, err := opts.Identities.Flush(ctx, opts.Accounts)
		if err != nil {
			return nil, err
		}
		created = n
	}

	opts.Reporter.Phase("Importing posts and comments")
	if err := imp.importFeeds(ctx); err != nil {
		return nil, err
	}

	imp.mu.Lock()
	summary := &status.Summary{
		Feeds:           len(opts.Feeds),
		Topics:          imp.topics,
		Replies:         imp.replies,
		AccountsCreated: created,
		Uploads:         opts.Assets.UploadCount(),
		UploadedBytes:   opts.Assets.TotalBytes(),
		DryRun:          opts.DryRun,
	}
	imp.mu.Unlock()
	return summary, nil
}

// collectIdentities resolves the author of every post and comment plus
// every resolvable mention, so account creation happens in one batch
// before any content is rendered.
func (imp *Importer) collectIdentities(ctx context.Context) error {
	for _, feed := range imp.opts.Feeds {
		err := eachPost(feed, func(_ export.Community, _ export.Category, post export.Post) error {
			if err := imp.collectFrom(ctx, post.Author, post.Message); err != nil {
				return err
			}
			for _, comment := range post.Comments {
				if err := imp.collectFrom(ctx, comment.Author, comment.Message); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (imp *Importer) collectFrom(ctx context.Context, author export.Author, msg export.Message) error {
	if _, err := imp.opts.Identities.Resolve(ctx, author.ID, author.Name); err != nil {
		return err
	}
	for _, frag := range msg {
		mention, ok := frag.(export.Mention)
		if !ok || mention.Tombstoned() {
			// Deleted accounts show up with a null id.
			continue
		}
		if _, err := imp.opts.Identities.Resolve(ctx, mention.ExternalID, mention.Name); err != nil {
			return err
		}
	}
	return nil
}

// importFeeds emits every feed, optionally in parallel. Ordering
// inside a feed always follows the source traversal.
func (imp *Importer) importFeeds(ctx context.Context) error {
	if !imp.opts.Async {
		for _, feed := range imp.opts.Feeds {
			if err := imp.importFeed(ctx, feed); err != nil {
				return err
			}
		}
		return nil
	}

	group, ctx := errgroup.WithContext(ctx)
	for _, feed := range imp.opts.Feeds {
		feed := feed
		group.Go(func() error {
			return imp.importFeed(ctx, feed)
		})
	}
	return group.Wait()
}

func (imp *Importer) importFeed(ctx context.Context, feed *export.Feed) error {
	renderer := &render.Renderer{
		Refs: refContext{
			identities: imp.opts.Identities,
			assets:     imp.opts.Assets,
		},
		Permissive: imp.opts.DryRun,
	}

	return eachPost(feed, func(community export.Community, category export.Category, post export.Post) error {
		if err := imp.importTopic(ctx, renderer, category, post); err != nil {
			return errors.Errorf("importing post %s in %s/%s: %w", post.ID, community.Name, category.Name, err)
		}
		return nil
	})
}

// importTopic emits one topic record and, in comment order, one reply
// record per comment bound to it.
func (imp *Importer) importTopic(ctx context.Context, renderer *render.Renderer, category export.Category, post export.Post) error {
	opts := imp.opts
	logger := zerolog.Ctx(ctx)

	target, ok := opts.Mapping.Category(category.ID)
	if !ok {
		return errors.Errorf("no resolved category for %s", category.ID)
	}

	body, err := renderer.Post(ctx, post)
	if err != nil {
		return err
	}

	authorID, err := imp.authorID(post.Author)
	if err != nil {
		return err
	}

	tags := append([]string{}, opts.GlobalTags...)
	tags = append(tags, opts.Mapping.Tags(category.ID)...)

	topic := &forum.TopicRecord{
		ExternalID: post.ID,
		AuthorID:   authorID,
		CreatedAt:  post.CreatedAt.Time,
		Title:      title.Synthesize(post.Message, post.Author.Name, post.CreatedAt.Time, opts.Titles),
		Body:       body,
		Category:   target,
		Tags:       tags,
	}

	var ref forum.TopicRef
	if opts.DryRun {
		logger.Debug().Str("post", post.ID).Str("title", topic.Title).Msg("dry run: would create topic")
	} else {
		ref, err = opts.Content.CreateTopic(ctx, topic)
		if err != nil {
			return errors.Errorf("creating topic: %w", err)
		}
	}
	imp.count(1, 0)

	for _, comment := range post.Comments {
		if err := imp.importReply(ctx, renderer, comment, ref); err != nil {
			return errors.Errorf("importing comment %s: %w", comment.ID, err)
		}
	}
	return nil
}

func (imp *Importer) importReply(ctx context.Context, renderer *render.Renderer, comment export.Comment, topic forum.TopicRef) error {
	opts := imp.opts

	body, err := renderer.Message(ctx, comment.Message)
	if err != nil {
		return err
	}

	authorID, err := imp.authorID(comment.Author)
	if err != nil {
		return err
	}

	reply := &forum.ReplyRecord{
		ExternalID: comment.ID,
		AuthorID:   authorID,
		CreatedAt:  comment.CreatedAt.Time,
		Body:       body,
		Topic:      topic,
	}

	if !opts.DryRun {
		if err := opts.Content.CreateReply(ctx, reply); err != nil {
			return errors.Errorf("creating reply: %w", err)
		}
	}
	imp.count(0, 1)
	return nil
}

// authorID returns the forum user id for an author. Accounts were
// created before emission, so a miss outside dry-run mode means the
// collection phase was skipped.
func (imp *Importer) authorID(author export.Author) (int64, error) {
	id, ok := imp.opts.Identities.UserID(author.ID)
	if !ok && !imp.opts.DryRun {
		return 0, errors.Errorf("no forum account for author %s (id %s)", author.Name, author.ID)
	}
	return id, nil
}

func (imp *Importer) count(topics, replies int) {
	imp.mu.Lock()
	imp.topics += topics
	imp.replies += replies
	imp.mu.Unlock()
}

// eachPost walks a feed in source order: accounts, communities,
// categories, posts.
func eachPost(feed *export.Feed, fn func(export.Community, export.Category, export.Post) error) error {
	for _, account := range feed.Accounts {
		for _, community := range account.Communities {
			for _, category := range community.Categories {
				for _, post := range category.Posts {
					if err := fn(community, category, post); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}

// refContext adapts the shared caches to the renderer's callback
// interface.
type refContext struct {
	identities *identity.Resolver
	assets     *assets.Manager
}

func (c refContext) ResolveMention(externalID string) (string, bool) {
	return c.identities.Username(externalID)
}

func (c refContext) ResolveOrUploadImage(ctx context.Context, url, display string) (string, error) {
	return c.assets.ResolveOrUpload(ctx, url, display)
}
