package ratelimit

import (
	"io"
	"net/http"
)

// Transport is an http.RoundTripper that transparently retries rate-limited
// responses.
//
// It is installed as the base transport of every per-delivery API client, so
// wrapping is pure dependency injection: each client owns its transport, no
// shared method is ever swapped in or out, and nothing can leak between
// concurrently processed deliveries.
//
// After the retry budget is spent the last response is returned as-is and
// the API client layer surfaces it as its usual rate-limit error.
type Transport struct {
	Base  http.RoundTripper // nil means http.DefaultTransport
	Guard *Guard
}

// RoundTrip implements http.RoundTripper. The caller's request is never
// modified — retries go out on a clone, as the RoundTripper contract
// requires.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	current := req
	for attempt := 0; ; attempt++ {
		resp, err := base.RoundTrip(current)
		if err != nil || !IsRateLimited(resp) {
			return resp, err
		}
		if attempt >= t.Guard.retries {
			return resp, nil
		}

		next := req.Clone(req.Context())
		if req.Body != nil {
			// A request with a consumed one-shot body cannot be replayed.
			if req.GetBody == nil {
				return resp, nil
			}
			body, bodyErr := req.GetBody()
			if bodyErr != nil {
				return resp, nil
			}
			next.Body = body
		}

		delay := t.Guard.RetryDelay(resp, attempt)

		// Drain before retrying so the underlying connection is reusable.
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		if err := t.Guard.sleep(req.Context(), delay); err != nil {
			return nil, err
		}
		current = next
	}
}
