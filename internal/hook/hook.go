// Package hook holds the event taxonomy and the handler registry.
//
// EVENT KEYS:
// A webhook subscription is addressed by an event name ("issues") or an
// event.action pair ("issues.opened"). Rather than passing free-form strings
// around, the registry works on a typed Key — raw strings are parsed exactly
// once, at the registration and ingestion boundaries.
//
// REGISTRY LIFECYCLE:
// The registry is populated during application bootstrap, before the server
// starts accepting requests, and is read-only afterwards. That is why there
// is no Remove operation and no lock: concurrent reads of an immutable map
// are safe, and dispatch happens only after registration is finished.
package hook

import (
	"context"
	"fmt"
	"strings"
)

// Key identifies a hook subscription: an event kind plus an optional action.
// A zero Action subscribes to every action of the event.
type Key struct {
	Event  string
	Action string
}

// ParseKey parses "issues" or "issues.opened" into a Key.
// Only the first dot separates event from action — GitHub has no
// multi-level actions.
func ParseKey(s string) Key {
	event, action, _ := strings.Cut(s, ".")
	return Key{Event: event, Action: action}
}

// String renders the key back into its registration form.
func (k Key) String() string {
	if k.Action == "" {
		return k.Event
	}
	return k.Event + "." + k.Action
}

// HandlerFunc is the signature of a webhook handler.
//
// The delivery carries the parsed payload and a per-delivery client source,
// so handlers never reach into shared mutable state — everything they need
// arrives as an argument.
type HandlerFunc func(ctx context.Context, d *Delivery) error

// Registration pairs a handler with the name reported in webhook responses.
// Names are explicit because Go closures carry no useful runtime name.
type Registration struct {
	Name string
	Fn   HandlerFunc
}

// Registry maps event keys to ordered handler lists.
// Append-only: handlers register at startup and stay for the process
// lifetime. The same handler may be registered under any number of keys.
type Registry struct {
	hooks map[Key][]Registration
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{hooks: make(map[Key][]Registration)}
}

// On registers a handler for the given event key ("issues" or
// "issues.opened"). Registration order is preserved per key.
func (r *Registry) On(key, name string, fn HandlerFunc) {
	r.OnKey(ParseKey(key), name, fn)
}

// OnKey registers a handler for an already-parsed key.
func (r *Registry) OnKey(k Key, name string, fn HandlerFunc) {
	if fn == nil {
		panic(fmt.Sprintf("hook: nil handler registered for %q", k))
	}
	r.hooks[k] = append(r.hooks[k], Registration{Name: name, Fn: fn})
}

// Match returns the handlers for a delivery, in invocation order.
//
// Exactly two keys are consulted: the bare event, then — when the payload
// carried an action — the event.action key. A handler registered under both
// keys appears once per registration, so it runs twice.
func (r *Registry) Match(event, action string) []Registration {
	matched := append([]Registration(nil), r.hooks[Key{Event: event}]...)
	if action != "" {
		matched = append(matched, r.hooks[Key{Event: event, Action: action}]...)
	}
	return matched
}

// Len reports the total number of registrations, across all keys.
func (r *Registry) Len() int {
	n := 0
	for _, regs := range r.hooks {
		n += len(regs)
	}
	return n
}
