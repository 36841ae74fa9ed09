// Package service contains the business logic layer: webhook dispatch and
// the OAuth login flow. Handlers parse HTTP and delegate here; this package
// knows nothing about routers or response writers.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/go-github/v74/github"

	"github.com/sakif/githubapp/internal/apperror"
	"github.com/sakif/githubapp/internal/auth"
	"github.com/sakif/githubapp/internal/hook"
	"github.com/sakif/githubapp/internal/model"
	"github.com/sakif/githubapp/internal/repository"
	"github.com/sakif/githubapp/internal/signature"
)

// Webhook response statuses.
const (
	StatusHandlerCalled   = "handler(s) called"
	StatusNoHandlerCalled = "no handler called"
)

// DispatchResult is the body of a successful webhook response: what happened
// and which handlers ran, in order.
type DispatchResult struct {
	Status string   `json:"status"`
	Calls  []string `json:"calls"`
}

// HandlerError marks a failure raised by a webhook handler, as opposed to
// the dispatcher's own pre-handler validation. The HTTP layer answers every
// HandlerError with a plain 500 — even when the handler returned a typed
// error carrying its own status — so GitHub records the delivery as failed
// and redelivers. A 400 must only ever mean "the delivery itself was
// malformed".
type HandlerError struct {
	Handler string
	Err     error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler %q: %v", e.Handler, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }

// Dispatcher verifies, parses, and routes inbound webhook deliveries.
type Dispatcher struct {
	registry   *hook.Registry
	secret     []byte
	authority  *auth.Authority
	deliveries repository.DeliveryRepository // nil disables the audit log
	logger     *slog.Logger
}

// NewDispatcher wires the dispatcher. An empty secret disables signature
// verification; a nil authority leaves handlers without API clients; a nil
// repository disables the delivery audit log.
func NewDispatcher(
	registry *hook.Registry,
	secret []byte,
	authority *auth.Authority,
	deliveries repository.DeliveryRepository,
	logger *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		registry:   registry,
		secret:     secret,
		authority:  authority,
		deliveries: deliveries,
		logger:     logger,
	}
}

// Dispatch processes one webhook delivery end to end: signature check, JSON
// parse, handler matching, sequential invocation.
//
// Verification and parse failures come back as validation errors (400).
// A handler failure aborts the delivery and comes back as a plain error, so
// GitHub sees a 500 and redelivers. Handlers run on the request goroutine,
// in registration order, bare-event subscribers before event.action ones.
func (d *Dispatcher) Dispatch(ctx context.Context, deliveryID, event string, body []byte, sig256, sig1 string) (*DispatchResult, error) {
	if err := signature.Verify(body, d.secret, sig256, sig1); err != nil {
		d.logger.Warn("webhook signature rejected",
			slog.String("delivery", deliveryID),
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
		return nil, apperror.Validation("Invalid webhook signature")
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, apperror.Validation("Invalid JSON payload")
	}

	delivery := &hook.Delivery{
		ID:      deliveryID,
		Event:   event,
		Payload: payload,
		Body:    body,
	}
	if action, ok := payload["action"].(string); ok {
		delivery.Action = action
	}
	delivery.InstallationID = delivery.Int("installation", "id")
	delivery.Clients = &deliveryClients{
		authority:      d.authority,
		installationID: delivery.InstallationID,
	}

	matched := d.registry.Match(delivery.Event, delivery.Action)

	calls := make([]string, 0, len(matched))
	for _, reg := range matched {
		if err := reg.Fn(ctx, delivery); err != nil {
			d.logger.Error("webhook handler failed",
				slog.String("delivery", deliveryID),
				slog.String("event", delivery.Event),
				slog.String("action", delivery.Action),
				slog.String("handler", reg.Name),
				slog.String("error", err.Error()),
			)
			d.record(ctx, delivery, model.DeliveryStatusFailed, calls, err)
			return nil, &HandlerError{Handler: reg.Name, Err: err}
		}
		calls = append(calls, reg.Name)
	}

	result := &DispatchResult{Status: StatusNoHandlerCalled, Calls: calls}
	status := model.DeliveryStatusUnhandled
	if len(calls) > 0 {
		result.Status = StatusHandlerCalled
		status = model.DeliveryStatusHandled
	}

	d.logger.Info("webhook dispatched",
		slog.String("delivery", deliveryID),
		slog.String("event", delivery.Event),
		slog.String("action", delivery.Action),
		slog.Int("handlers", len(calls)),
	)
	d.record(ctx, delivery, status, calls, nil)

	return result, nil
}

// record appends to the delivery audit log, best effort: a storage failure
// is logged but never turns a processed delivery into an error response.
func (d *Dispatcher) record(ctx context.Context, delivery *hook.Delivery, status string, calls []string, handlerErr error) {
	if d.deliveries == nil {
		return
	}

	rec := &model.DeliveryRecord{
		DeliveryID:     delivery.ID,
		Event:          delivery.Event,
		Action:         delivery.Action,
		InstallationID: delivery.InstallationID,
		Status:         status,
		Handlers:       calls,
	}
	if handlerErr != nil {
		rec.Error = handlerErr.Error()
	}

	if err := d.deliveries.Record(ctx, rec); err != nil {
		d.logger.Error("failed to record delivery",
			slog.String("delivery", delivery.ID),
			slog.String("error", err.Error()),
		)
	}
}

// deliveryClients is the per-delivery hook.ClientSource. It is created fresh
// for every dispatch and bound to that delivery's installation id.
type deliveryClients struct {
	authority      *auth.Authority
	installationID int64
}

var _ hook.ClientSource = (*deliveryClients)(nil)

func (c *deliveryClients) Client(ctx context.Context) (*github.Client, error) {
	if c.installationID == 0 {
		return nil, fmt.Errorf("service: delivery carries no installation id")
	}
	return c.ClientFor(ctx, c.installationID)
}

func (c *deliveryClients) ClientFor(ctx context.Context, installationID int64) (*github.Client, error) {
	if c.authority == nil {
		return nil, fmt.Errorf("service: app credentials are not configured")
	}
	return c.authority.Client(ctx, installationID)
}
