package rest

import (
	"context"
	"time"

	"github.com/fairgrounds/deltashare/server/query"
	"github.com/fairgrounds/deltashare/server/storage"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// SignedFile pairs a planned file with its short-lived signed URL
type SignedFile struct {
	Entry     query.FileEntry
	URL       string
	ExpiresAt time.Time
}

// Issuer turns planned file lists into signed URL sets. Issuance is
// all-or-nothing: one failed file fails the whole set.
type Issuer struct {
	store       storage.ObjectStore
	ttl         time.Duration
	parallelism int
	logger      zerolog.Logger
}

// NewIssuer creates an issuer with bounded signing parallelism
func NewIssuer(store storage.ObjectStore, ttl time.Duration, parallelism int, logger zerolog.Logger) *Issuer {
	if parallelism <= 0 {
		parallelism = 1
	}
	return &Issuer{
		store:       store,
		ttl:         ttl,
		parallelism: parallelism,
		logger:      logger.With().Str("component", "url-issuer").Logger(),
	}
}

// Sign issues a URL for every file, preserving input order. The first
// failure cancels outstanding work and fails the set.
func (i *Issuer) Sign(ctx context.Context, bucket string, files []query.FileEntry) ([]SignedFile, error) {
	signed := make([]SignedFile, len(files))
	expiresAt := time.Now().Add(i.ttl)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(i.parallelism)
	for idx, entry := range files {
		g.Go(func() error {
			url, err := i.store.Presign(ctx, bucket, entry.Key, i.ttl)
			if err != nil {
				return err
			}
			signed[idx] = SignedFile{Entry: entry, URL: url, ExpiresAt: expiresAt}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	i.logger.Debug().
		Str("bucket", bucket).
		Int("files", len(signed)).
		Msg("Signed URL set issued")

	return signed, nil
}
