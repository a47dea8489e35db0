// Package identity resolves account ids to display names. Resolution is
// best effort: a missing or failing directory yields a placeholder, never
// an error to the caller.
package identity

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/xraph/accounting/transaction"
)

// Placeholder names.
const (
	UnknownName = "Unknown"
	SystemName  = "System"
)

// ErrNotFound is returned by a Directory that has no name for an id.
var ErrNotFound = errors.New("identity: name not found")

// Directory looks up the display name of an account.
type Directory interface {
	ResolveName(ctx context.Context, accountID string) (string, error)
}

// DirectoryFunc adapts a plain function to a Directory.
type DirectoryFunc func(ctx context.Context, accountID string) (string, error)

// ResolveName implements Directory.
func (f DirectoryFunc) ResolveName(ctx context.Context, accountID string) (string, error) {
	return f(ctx, accountID)
}

// Static is an in-memory Directory.
type Static map[string]string

// ResolveName implements Directory.
func (s Static) ResolveName(_ context.Context, accountID string) (string, error) {
	if name, ok := s[accountID]; ok {
		return name, nil
	}
	return "", ErrNotFound
}

// Resolver resolves batches of ids with bounded concurrency and
// substitutes placeholders for anything it cannot resolve.
type Resolver struct {
	dir         Directory
	logger      *slog.Logger
	concurrency int
}

// NewResolver wraps dir. A nil dir resolves everything to placeholders.
func NewResolver(dir Directory, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{dir: dir, logger: logger, concurrency: 8}
}

// Name resolves a single id.
func (r *Resolver) Name(ctx context.Context, accountID string) string {
	if accountID == transaction.SystemAccount {
		return SystemName
	}
	if r.dir == nil || accountID == "" {
		return UnknownName
	}
	name, err := r.dir.ResolveName(ctx, accountID)
	if err != nil || name == "" {
		if err != nil && !errors.Is(err, ErrNotFound) {
			r.logger.Warn("identity: name resolution failed",
				"account_id", accountID,
				"error", err,
			)
		}
		return UnknownName
	}
	return name
}

// Names resolves every distinct id once. The returned map has an entry for
// each input id.
func (r *Resolver) Names(ctx context.Context, accountIDs ...string) map[string]string {
	names := make(map[string]string, len(accountIDs))
	var pending []string
	for _, aid := range accountIDs {
		if _, seen := names[aid]; seen {
			continue
		}
		names[aid] = ""
		pending = append(pending, aid)
	}

	results := make([]string, len(pending))
	g := new(errgroup.Group)
	g.SetLimit(r.concurrency)
	for i, aid := range pending {
		g.Go(func() error {
			results[i] = r.Name(ctx, aid)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // workers never fail

	for i, aid := range pending {
		names[aid] = results[i]
	}
	return names
}
