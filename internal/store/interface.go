package store

import (
	"context"

	"taskmatch/internal/graph"
)

// GraphStore is the snapshot accessor shared by the SQLite and Postgres backends.
type GraphStore interface {
	FetchSnapshot(ctx context.Context, projectID string) (*graph.Snapshot, error)
}

// DeliveryLog records processed webhook deliveries.
type DeliveryLog interface {
	DeliverySeen(ctx context.Context, deliveryID string) (bool, error)
	RecordDelivery(ctx context.Context, receipt DeliveryReceipt) error
}

var (
	_ GraphStore  = (*Store)(nil)
	_ DeliveryLog = (*Store)(nil)
)
