package storage

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// RetryPolicy bounds retries against the storage backend
type RetryPolicy struct {
	MaxRetries      int
	Timeout         time.Duration // per-call budget, including retries
	InitialInterval time.Duration
}

// retryStore wraps an ObjectStore with a per-call timeout and bounded
// exponential backoff for transient failures. Denied and not-found
// responses surface immediately.
type retryStore struct {
	inner  ObjectStore
	policy RetryPolicy
	logger zerolog.Logger
}

// WithRetry decorates store with the given retry policy
func WithRetry(store ObjectStore, policy RetryPolicy, logger zerolog.Logger) ObjectStore {
	if policy.InitialInterval <= 0 {
		policy.InitialInterval = 100 * time.Millisecond
	}
	return &retryStore{
		inner:  store,
		policy: policy,
		logger: logger.With().Str("component", "storage-retry").Logger(),
	}
}

func (r *retryStore) run(ctx context.Context, name string, op func(ctx context.Context) error) error {
	callCtx := ctx
	if r.policy.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, r.policy.Timeout)
		defer cancel()
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = r.policy.InitialInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(expo, uint64(r.policy.MaxRetries)), callCtx)

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := op(callCtx)
		if err == nil {
			return nil
		}
		if !IsTransient(err) {
			return backoff.Permanent(err)
		}
		r.logger.Warn().
			Err(err).
			Str("operation", name).
			Int("attempt", attempt).
			Msg("Transient storage failure, retrying")
		return err
	}, policy)
}

func (r *retryStore) List(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error) {
	var out []ObjectInfo
	err := r.run(ctx, "list", func(ctx context.Context) error {
		var opErr error
		out, opErr = r.inner.List(ctx, bucket, prefix)
		return opErr
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *retryStore) Stat(ctx context.Context, bucket, key string) (*ObjectInfo, error) {
	var out *ObjectInfo
	err := r.run(ctx, "stat", func(ctx context.Context) error {
		var opErr error
		out, opErr = r.inner.Stat(ctx, bucket, key)
		return opErr
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *retryStore) Presign(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	var out string
	err := r.run(ctx, "presign", func(ctx context.Context) error {
		var opErr error
		out, opErr = r.inner.Presign(ctx, bucket, key, ttl)
		return opErr
	})
	if err != nil {
		return "", err
	}
	return out, nil
}
