// Package model defines the data structures shared across the application.
package model

import "time"

// Delivery statuses recorded in the audit log.
const (
	DeliveryStatusHandled   = "handled"
	DeliveryStatusUnhandled = "unhandled"
	DeliveryStatusFailed    = "failed"
)

// DeliveryRecord is one row of the webhook delivery audit log: which
// delivery arrived, what it was, and how dispatch went.
type DeliveryRecord struct {
	ID             string    `json:"id"`
	DeliveryID     string    `json:"delivery_id"`
	Event          string    `json:"event"`
	Action         string    `json:"action"`
	InstallationID int64     `json:"installation_id"`
	Status         string    `json:"status"`
	Handlers       []string  `json:"handlers"`
	Error          string    `json:"error,omitempty"`
	ReceivedAt     time.Time `json:"received_at"`
}
