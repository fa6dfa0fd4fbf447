package repository

import (
	"context"
	"errors"

	"github.com/gotaku-app/gotaku/internal/cache"
	"github.com/gotaku-app/gotaku/internal/models"
	"github.com/gotaku-app/gotaku/internal/util"
)

// Call is one attempt the orchestrator can make: a named closure producing
// an envelope. The orchestrator does not know which provider or endpoint is
// behind it.
type Call[T any] struct {
	Name string
	Run  func(ctx context.Context) (models.Envelope[T], error)
}

// TryWithFallbacks runs primary, then each fallback in order, and returns
// the first response that is ok and passes valid. A winning fallback is
// rewrapped so callers can tell provenance from the status message. When
// every attempt fails the result is a synthetic 500 envelope plus the
// attempt errors joined, so the caller can classify the root cause.
//
// Cancellation aborts the chain immediately and is returned as-is; it never
// counts as one more failed attempt. An ok response carrying an empty list
// is treated as a miss: an empty page from a scraped source usually means a
// soft failure, and an alternate source beats showing "no results" early.
func TryWithFallbacks[T any](ctx context.Context, store *cache.Cache, primary Call[T], fallbacks []Call[T], cacheKey, failureMessage string, valid func(T) bool) (models.Envelope[T], error) {
	var attemptErrs []error

	attempt := func(call Call[T]) (models.Envelope[T], bool, error) {
		env, err := call.Run(ctx)
		if err != nil {
			if ctx.Err() != nil || IsCanceled(err) {
				return env, false, err
			}
			util.Debugf("source %s failed: %v", call.Name, err)
			attemptErrs = append(attemptErrs, err)
			return env, false, nil
		}
		if !env.OK {
			util.Debugf("source %s answered not-ok: %d %s", call.Name, env.StatusCode, env.StatusMessage)
			return env, false, nil
		}
		if !valid(env.Data) {
			util.Debugf("source %s answered ok with no usable data, trying next", call.Name)
			return env, false, nil
		}
		return env, true, nil
	}

	env, ok, err := attempt(primary)
	if err != nil {
		return models.Envelope[T]{}, err
	}
	if ok {
		if cacheKey != "" {
			cache.Put(store, cacheKey, env)
		}
		return env, nil
	}

	for _, fb := range fallbacks {
		env, ok, err = attempt(fb)
		if err != nil {
			return models.Envelope[T]{}, err
		}
		if !ok {
			continue
		}
		wrapped := models.Envelope[T]{
			StatusCode:    200,
			StatusMessage: "Success (fallback)",
			Message:       "Data retrieved from alternative source",
			OK:            true,
			Data:          env.Data,
			Pagination:    env.Pagination,
		}
		if cacheKey != "" {
			cache.Put(store, cacheKey, wrapped)
		}
		return wrapped, nil
	}

	return models.Failure[T](500, "Internal Server Error", failureMessage+". All available sources failed."), errors.Join(attemptErrs...)
}

// nonEmpty is the validity predicate for list payloads.
func nonEmpty[T any](items []T) bool {
	return len(items) > 0
}

// notNil is the validity predicate for record payloads.
func notNil[T any](rec *T) bool {
	return rec != nil
}
