package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrDuplicateDelivery is returned when a delivery id was already recorded.
	ErrDuplicateDelivery = errors.New("duplicate delivery")
	ErrNotFound          = errors.New("not found")
)

// DeliveryReceipt records one processed webhook delivery.
type DeliveryReceipt struct {
	DeliveryID string    `json:"delivery_id"`
	EventType  string    `json:"event_type"`
	ProjectID  string    `json:"project_id"`
	Results    int       `json:"results"`
	ArchiveKey string    `json:"archive_key,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}

// RecordDelivery stores a receipt. A repeated delivery id returns
// ErrDuplicateDelivery and leaves the first receipt in place.
func (s *Store) RecordDelivery(ctx context.Context, receipt DeliveryReceipt) error {
	id := strings.TrimSpace(receipt.DeliveryID)
	if id == "" {
		return fmt.Errorf("delivery id is required")
	}
	if receipt.ReceivedAt.IsZero() {
		receipt.ReceivedAt = time.Now()
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO webhook_deliveries (delivery_id, event_type, project_id, results, archive_key, received_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(delivery_id) DO NOTHING`,
		id, receipt.EventType, receipt.ProjectID, receipt.Results, nullString(receipt.ArchiveKey), formatTime(receipt.ReceivedAt),
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrDuplicateDelivery
	}
	return nil
}

// DeliverySeen reports whether a receipt exists for deliveryID.
func (s *Store) DeliverySeen(ctx context.Context, deliveryID string) (bool, error) {
	_, err := s.GetDelivery(ctx, deliveryID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetDelivery loads a receipt by id.
func (s *Store) GetDelivery(ctx context.Context, deliveryID string) (*DeliveryReceipt, error) {
	var (
		receipt    DeliveryReceipt
		archiveKey sql.NullString
		receivedAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT delivery_id, event_type, project_id, results, archive_key, received_at
		 FROM webhook_deliveries WHERE delivery_id = ?`, deliveryID,
	).Scan(&receipt.DeliveryID, &receipt.EventType, &receipt.ProjectID, &receipt.Results, &archiveKey, &receivedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	receipt.ArchiveKey = archiveKey.String
	if receipt.ReceivedAt, err = parseTime(receivedAt); err != nil {
		return nil, fmt.Errorf("parse received_at: %w", err)
	}
	return &receipt, nil
}
