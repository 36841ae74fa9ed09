// Package ratelimit insulates outbound GitHub API calls from the API's
// request quotas.
//
// CLASSIFICATION:
// GitHub signals rate limiting two ways — a 429, or a 403 whose
// x-ratelimit-remaining header reads "0". A 403 with remaining quota is a
// permission denial and must NOT be retried; retrying it would just hammer
// an endpoint the installation cannot access.
//
// DELAY:
// The delay for a retry comes from, in order of preference:
//  1. the Retry-After header, verbatim
//  2. the x-ratelimit-reset epoch, minus now (floored at zero)
//  3. exponential backoff 60s·2^attempt, capped at the configured max sleep
//
// Only the blind exponential branch is capped — when GitHub tells us exactly
// how long to wait, sleeping less would only burn an attempt on a request
// that is guaranteed to fail again.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/go-github/v74/github"

	"github.com/sakif/githubapp/internal/apperror"
)

// backoffBase is the exponential-backoff starting point when the response
// carries no timing hints.
const backoffBase = 60 * time.Second

// Guard retries rate-limited API calls with bounded sleeps.
// Total attempts per call = retries + 1.
type Guard struct {
	retries  int
	maxSleep time.Duration
	logger   *slog.Logger

	// injectable for tests
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// New creates a Guard. Negative retries is treated as zero (single attempt);
// a non-positive maxSleep falls back to one minute.
func New(retries int, maxSleep time.Duration, logger *slog.Logger) *Guard {
	if retries < 0 {
		retries = 0
	}
	if maxSleep <= 0 {
		maxSleep = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{
		retries:  retries,
		maxSleep: maxSleep,
		logger:   logger,
		sleep:    sleepContext,
		now:      time.Now,
	}
}

// IsRateLimited reports whether a response is a rate-limit rejection:
// 429, or 403 with zero remaining quota.
func IsRateLimited(resp *http.Response) bool {
	if resp == nil {
		return false
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return true
	}
	return resp.StatusCode == http.StatusForbidden &&
		resp.Header.Get("X-Ratelimit-Remaining") == "0"
}

// RetryDelay computes how long to wait before retry number attempt
// (zero-based), using the preference order documented on the package.
func (g *Guard) RetryDelay(resp *http.Response, attempt int) time.Duration {
	if resp != nil {
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil {
				return time.Duration(secs) * time.Second
			}
		}
		if reset := resp.Header.Get("X-Ratelimit-Reset"); reset != "" {
			if epoch, err := strconv.ParseInt(reset, 10, 64); err == nil {
				delay := time.Unix(epoch, 0).Sub(g.now())
				if delay < 0 {
					delay = 0
				}
				return delay
			}
		}
	}

	delay := backoffBase * (1 << attempt)
	if delay > g.maxSleep {
		delay = g.maxSleep
	}
	return delay
}

// Do invokes call, retrying while it fails with a rate-limit-classified
// error. Non-rate-limit errors propagate immediately, unretried. After the
// retry budget is spent, Do returns an apperror rate-limit error carrying
// the last rate-limited response.
//
// The sleep happens on the caller's goroutine, holding no locks, and is cut
// short if ctx is cancelled.
func (g *Guard) Do(ctx context.Context, call func(ctx context.Context) error) error {
	for attempt := 0; ; attempt++ {
		err := call(ctx)
		if err == nil {
			return nil
		}

		resp, limited := rateLimitedResponse(err)
		if !limited {
			return err
		}

		if attempt >= g.retries {
			return apperror.RateLimited(
				fmt.Sprintf("rate limit retries exhausted after %d attempts", attempt+1),
				resp,
			)
		}

		delay := g.RetryDelay(resp, attempt)
		g.logger.Warn("rate limited, retrying",
			slog.Int("attempt", attempt+1),
			slog.Duration("delay", delay),
		)
		if err := g.sleep(ctx, delay); err != nil {
			return err
		}
	}
}

// rateLimitedResponse classifies an error from an API call. go-github's
// typed rate-limit errors are authoritative; for anything else that carries
// a response, the response itself is inspected.
func rateLimitedResponse(err error) (*http.Response, bool) {
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return rateErr.Response, true
	}
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return abuseErr.Response, true
	}
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		return ghErr.Response, IsRateLimited(ghErr.Response)
	}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) && appErr.Response != nil {
		return appErr.Response, IsRateLimited(appErr.Response)
	}
	return nil, false
}

// sleepContext blocks for d or until ctx is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
