// Package identity maps external user ids to stable forum identities.
// Resolution is two-phase: every id is cached (and, when unknown to the
// forum, queued for creation) at resolve time, and the queued accounts
// are materialized later by a single Flush step. The cache is updated
// synchronously, so two lookups of the same id always agree before any
// account exists.
package identity

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/walteh/gplusimport/pkg/forum"
	"gitlab.com/tozd/go/errors"
)

// EmailDomain is the placeholder domain for accounts synthesized from
// external ids. The export carries no email addresses, so an invalid
// domain keeps the account unreachable until the user logs in and
// merges.
const EmailDomain = "gplus.invalid"

// PendingAccount is one queued account creation.
type PendingAccount struct {
	ExternalID string
	Name       string
	Email      string
}

// Resolver owns the in-run identity cache and the pending-creation
// ledger. Safe for concurrent use; parallel feed imports share one
// resolver.
type Resolver struct {
	mu        sync.Mutex
	directory forum.IdentityDirectory

	emails    map[string]string
	userIDs   map[string]int64
	usernames map[string]string
	pending   []PendingAccount
}

// NewResolver returns a resolver backed by the given directory.
func NewResolver(directory forum.IdentityDirectory) *Resolver {
	return &Resolver{
		directory: directory,
		emails:    map[string]string{},
		userIDs:   map[string]int64{},
		usernames: map[string]string{},
	}
}

// Resolve returns the email associated with an external id, creating
// exactly one identity record per id for the lifetime of the run.
// Lookup order: in-run cache, then the forum's directory, then a
// synthesized placeholder plus a queued creation.
func (r *Resolver) Resolve(ctx context.Context, externalID, displayName string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if email, ok := r.emails[externalID]; ok {
		return email, nil
	}

	known, err := r.directory.FindByExternalID(ctx, externalID)
	if err != nil {
		return "", errors.Errorf("looking up external id %s: %w", externalID, err)
	}
	if known != nil {
		// Already on the platform, via a previous import or login.
		r.emails[externalID] = known.Email
		r.userIDs[externalID] = known.UserID
		r.usernames[externalID] = known.Username
		return known.Email, nil
	}

	email := fmt.Sprintf("%s@%s", externalID, EmailDomain)
	r.emails[externalID] = email
	r.pending = append(r.pending, PendingAccount{
		ExternalID: externalID,
		Name:       displayName,
		Email:      email,
	})

	zerolog.Ctx(ctx).Debug().
		Str("external_id", externalID).
		Str("name", displayName).
		Msg("queued account creation")

	return email, nil
}

// Flush materializes every queued account: created pre-approved and
// linked to its external id so future runs and logins find it. Returns
// the number of accounts created. The ledger is consumed even on
// success-so-far, so a retried Flush never double-creates.
func (r *Resolver) Flush(ctx context.Context, writer forum.AccountWriter) (int, error) {
	r.mu.Lock()
	queue := r.pending
	r.pending = nil
	r.mu.Unlock()

	created := 0
	for _, account := range queue {
		id, err := writer.CreateAccount(ctx, forum.NewAccount{
			ExternalID: account.ExternalID,
			Name:       account.Name,
			Email:      account.Email,
			Approved:   true,
		})
		if err != nil {
			return created, errors.Errorf("creating account for %s: %w", account.ExternalID, err)
		}

		r.mu.Lock()
		r.userIDs[account.ExternalID] = id.UserID
		r.usernames[account.ExternalID] = id.Username
		r.mu.Unlock()
		created++
	}
	return created, nil
}

// Username returns the forum handle for an external id, when known.
// Handles exist after a directory hit or after Flush created the
// account.
func (r *Resolver) Username(externalID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name, ok := r.usernames[externalID]
	return name, ok
}

// UserID returns the forum user id for an external id, when known.
func (r *Resolver) UserID(externalID string) (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.userIDs[externalID]
	return id, ok
}

// PendingCount reports how many account creations are queued.
func (r *Resolver) PendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Seen reports whether an external id has been resolved this run.
func (r *Resolver) Seen(externalID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.emails[externalID]
	return ok
}
