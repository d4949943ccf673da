// Package pgstore reads task graphs from the hosted Postgres schema
// (projects, nodes, edges, relations).
package pgstore

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"taskmatch/internal/graph"
	"taskmatch/internal/models"
)

// DBInterface is the subset of pgxpool.Pool the store needs.
type DBInterface interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements the snapshot accessor over Postgres.
type Store struct {
	db    DBInterface
	close func()
}

// New wraps an existing connection or pool.
func New(db DBInterface) *Store {
	return &Store{db: db}
}

// Open connects a pool to dsn and verifies it with a ping.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{db: pool, close: pool.Close}, nil
}

// Close releases the pool when the store owns it.
func (s *Store) Close() error {
	if s != nil && s.close != nil {
		s.close()
	}
	return nil
}

type nodeRow struct {
	NodeID      string  `db:"node_id"`
	Name        string  `db:"name"`
	Description *string `db:"description"`
	Type        *string `db:"type"`
	Status      *string `db:"status"`
	Level       *int    `db:"level"`
	Path        *string `db:"path"`
}

type edgeRow struct {
	ParentID string `db:"parent_node_id"`
	ChildID  string `db:"child_node_id"`
}

type relationRow struct {
	Source string  `db:"source"`
	Target string  `db:"target"`
	Label  *string `db:"label"`
}

// FetchSnapshot loads one project's graph. Unknown projects yield an empty
// snapshot; duplicate node ids yield a graph.ConfigurationError.
func (s *Store) FetchSnapshot(ctx context.Context, projectID string) (*graph.Snapshot, error) {
	nodes, err := s.listNodes(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return graph.Empty(projectID), nil
	}
	edges, err := s.listEdges(ctx, projectID)
	if err != nil {
		return nil, err
	}
	relations, err := s.listRelations(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return graph.New(projectID, nodes, edges, relations)
}

func (s *Store) listNodes(ctx context.Context, projectID string) ([]models.TaskNode, error) {
	query, args, err := squirrel.Select("node_id", "name", "description", "type", "status", "level", "path").
		From("nodes").
		Where(squirrel.Eq{"project_id": projectID}).
		OrderBy("created_at", "node_id").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building nodes query: %w", err)
	}
	var rows []nodeRow
	if err := pgxscan.Select(ctx, s.db, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("scanning nodes: %w", err)
	}

	nodes := make([]models.TaskNode, 0, len(rows))
	for _, row := range rows {
		nodes = append(nodes, row.toModel())
	}
	return nodes, nil
}

func (s *Store) listEdges(ctx context.Context, projectID string) ([]models.Edge, error) {
	query, args, err := squirrel.Select("parent_node_id", "child_node_id").
		From("edges").
		Where(squirrel.Eq{"project_id": projectID}).
		OrderBy("parent_node_id", "child_node_id").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building edges query: %w", err)
	}
	var rows []edgeRow
	if err := pgxscan.Select(ctx, s.db, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("scanning edges: %w", err)
	}

	edges := make([]models.Edge, 0, len(rows))
	for _, row := range rows {
		edges = append(edges, models.Edge{ParentID: row.ParentID, ChildID: row.ChildID})
	}
	return edges, nil
}

func (s *Store) listRelations(ctx context.Context, projectID string) ([]models.Relation, error) {
	query, args, err := squirrel.Select("source", "target", "label").
		From("relations").
		Where(squirrel.Eq{"project_id": projectID}).
		OrderBy("source", "target").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building relations query: %w", err)
	}
	var rows []relationRow
	if err := pgxscan.Select(ctx, s.db, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("scanning relations: %w", err)
	}

	relations := make([]models.Relation, 0, len(rows))
	for _, row := range rows {
		rel := models.Relation{SourceID: row.Source, TargetID: row.Target}
		if row.Label != nil {
			rel.Label = *row.Label
		}
		relations = append(relations, rel)
	}
	return relations, nil
}

// toModel tolerates hosted rows with unknown enum values by falling back to
// the defaults.
func (r nodeRow) toModel() models.TaskNode {
	node := models.TaskNode{ID: r.NodeID, Name: r.Name}
	if r.Description != nil {
		node.Description = *r.Description
	}
	if r.Path != nil {
		node.Path = *r.Path
	}
	if r.Level != nil {
		node.Level = *r.Level
	}
	node.Type = models.DefaultNodeType
	if r.Type != nil {
		if t, err := models.ParseNodeType(*r.Type); err == nil {
			node.Type = t
		}
	}
	node.Status = models.DefaultNodeStatus
	if r.Status != nil {
		if st, err := models.ParseNodeStatus(*r.Status); err == nil {
			node.Status = st
		}
	}
	return node
}
