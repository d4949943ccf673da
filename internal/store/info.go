package store

import (
	"context"
	"fmt"
)

// StoreInfo summarizes the database contents.
type StoreInfo struct {
	SchemaVersion int `json:"schema_version"`
	Projects      int `json:"projects"`
	Nodes         int `json:"nodes"`
	Edges         int `json:"edges"`
	Relations     int `json:"relations"`
	Deliveries    int `json:"deliveries"`
}

// StoreInfo returns schema version and row counts.
func (s *Store) StoreInfo(ctx context.Context) (*StoreInfo, error) {
	info := &StoreInfo{}
	if err := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&info.SchemaVersion); err != nil {
		return nil, fmt.Errorf("schema version: %w", err)
	}

	counts := []struct {
		table string
		dest  *int
	}{
		{"projects", &info.Projects},
		{"nodes", &info.Nodes},
		{"edges", &info.Edges},
		{"relations", &info.Relations},
		{"webhook_deliveries", &info.Deliveries},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+c.table).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("count %s: %w", c.table, err)
		}
	}
	return info, nil
}
