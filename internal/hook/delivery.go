package hook

import (
	"context"

	"github.com/google/go-github/v74/github"
)

// ClientSource hands out authenticated API clients to handlers.
//
// Each delivery gets its own source, pre-bound to the installation id found
// in the payload. This replaces ambient "current payload" state: a handler
// asks its delivery for a client instead of reaching into the app object,
// so nothing can leak between concurrently processed deliveries.
type ClientSource interface {
	// Client returns a client authenticated for the delivery's installation.
	Client(ctx context.Context) (*github.Client, error)

	// ClientFor returns a client for an explicit installation id, for
	// handlers that act across installations.
	ClientFor(ctx context.Context, installationID int64) (*github.Client, error)
}

// Delivery is one inbound webhook request, fully parsed.
// It lives for the duration of a single dispatch and is discarded once the
// response is built.
type Delivery struct {
	ID             string         // X-GitHub-Delivery header, for tracing/redelivery
	Event          string         // X-GitHub-Event header, e.g. "issues"
	Action         string         // payload "action" field, may be empty
	Payload        map[string]any // decoded JSON body
	InstallationID int64          // payload installation.id, 0 when absent
	Body           []byte         // raw body bytes, as signed by GitHub
	Clients        ClientSource   // per-delivery authenticated client factory
}

// Lookup walks the payload along the given path of object keys.
// The second return is false if any step is missing or not an object.
func (d *Delivery) Lookup(path ...string) (any, bool) {
	var cur any = d.Payload
	for _, key := range path {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = obj[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Str returns the string at the given payload path, or "" when absent.
// Convenience for the common navigation pattern
// d.Str("repository", "owner", "login").
func (d *Delivery) Str(path ...string) string {
	v, ok := d.Lookup(path...)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// Int returns the integer at the given payload path, or 0 when absent.
// JSON numbers decode as float64, so this truncates; GitHub ids and issue
// numbers are integral.
func (d *Delivery) Int(path ...string) int64 {
	v, ok := d.Lookup(path...)
	if !ok {
		return 0
	}
	f, _ := v.(float64)
	return int64(f)
}
