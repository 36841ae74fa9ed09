package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/githubapp/internal/model"
	"github.com/sakif/githubapp/internal/repository"
)

// Compile-time check that *DB satisfies the repository interface.
var _ repository.DeliveryRepository = (*DB)(nil)

// Record inserts one delivery audit row. The record's ID and ReceivedAt are
// assigned here if unset.
func (db *DB) Record(ctx context.Context, rec *model.DeliveryRecord) error {
	if rec.ID == "" {
		rec.ID = xid.New().String()
	}
	if rec.ReceivedAt.IsZero() {
		rec.ReceivedAt = time.Now()
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO deliveries
		 (id, delivery_id, event, action, installation_id, status, handlers, error, received_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.DeliveryID,
		rec.Event,
		rec.Action,
		rec.InstallationID,
		rec.Status,
		strings.Join(rec.Handlers, ","),
		rec.Error,
		rec.ReceivedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: recording delivery: %w", err)
	}
	return nil
}

// List returns delivery audit rows, newest first.
func (db *DB) List(ctx context.Context, opts repository.ListOptions) ([]model.DeliveryRecord, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, delivery_id, event, action, installation_id, status, handlers, error, received_at
		 FROM deliveries
		 ORDER BY received_at DESC, id DESC
		 LIMIT ? OFFSET ?`,
		limit,
		offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing deliveries: %w", err)
	}
	defer rows.Close()

	records := make([]model.DeliveryRecord, 0, limit)
	for rows.Next() {
		var rec model.DeliveryRecord
		var handlers string
		if err := rows.Scan(
			&rec.ID, &rec.DeliveryID, &rec.Event, &rec.Action,
			&rec.InstallationID, &rec.Status, &handlers, &rec.Error,
			&rec.ReceivedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning delivery row: %w", err)
		}
		if handlers != "" {
			rec.Handlers = strings.Split(handlers, ",")
		} else {
			rec.Handlers = []string{}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating deliveries: %w", err)
	}

	return records, nil
}
