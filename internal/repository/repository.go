package repository

import (
	"context"

	"github.com/sakif/githubapp/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

// DeliveryRepository persists the webhook delivery audit log.
type DeliveryRepository interface {
	Record(ctx context.Context, rec *model.DeliveryRecord) error
	List(ctx context.Context, opts ListOptions) ([]model.DeliveryRecord, error)
}
