package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"taskmatch/internal/graph"
	"taskmatch/internal/models"
)

// ImportSummary reports what an import wrote.
type ImportSummary struct {
	Project   string `json:"project"`
	Nodes     int    `json:"nodes"`
	Edges     int    `json:"edges"`
	Relations int    `json:"relations"`
}

// FetchSnapshot loads one project's graph in stored order. Unknown projects
// yield an empty snapshot.
func (s *Store) FetchSnapshot(ctx context.Context, projectID string) (*graph.Snapshot, error) {
	nodes, err := s.listNodes(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	edges, err := s.listEdges(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list edges: %w", err)
	}
	relations, err := s.listRelations(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list relations: %w", err)
	}
	return graph.New(projectID, nodes, edges, relations)
}

// ImportGraph replaces the stored graph of fixture.Project. The graph is
// validated first; duplicate node ids fail with a graph.ConfigurationError and
// leave the stored graph untouched.
func (s *Store) ImportGraph(ctx context.Context, fixture *Fixture) (*ImportSummary, error) {
	if fixture == nil || strings.TrimSpace(fixture.Project) == "" {
		return nil, fmt.Errorf("fixture project is required")
	}
	project := strings.TrimSpace(fixture.Project)

	nodes, edges, relations, err := fixture.Graph()
	if err != nil {
		return nil, err
	}
	snap, err := graph.New(project, nodes, edges, relations)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	now := formatTime(time.Now())
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO projects (id, created_at, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET updated_at = excluded.updated_at`,
		project, now, now,
	); err != nil {
		return nil, fmt.Errorf("upsert project: %w", err)
	}
	for _, table := range []string{"nodes", "edges", "relations"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE project_id = ?", project); err != nil {
			return nil, fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for i, node := range snap.Nodes() {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO nodes (project_id, node_id, position, name, description, type, status, level, path)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			project, node.ID, i, node.Name, nullString(node.Description), string(node.Type), string(node.Status), node.Level, nullString(node.Path),
		); err != nil {
			return nil, fmt.Errorf("insert node %s: %w", node.ID, err)
		}
	}

	edgeCount := 0
	for _, edge := range edges {
		res, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO edges (project_id, parent_node_id, child_node_id, position) VALUES (?, ?, ?, ?)`,
			project, edge.ParentID, edge.ChildID, edgeCount,
		)
		if err != nil {
			return nil, fmt.Errorf("insert edge %s->%s: %w", edge.ParentID, edge.ChildID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			edgeCount++
		}
	}

	relationCount := 0
	for _, rel := range relations {
		res, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO relations (project_id, source_node_id, target_node_id, label, position) VALUES (?, ?, ?, ?, ?)`,
			project, rel.SourceID, rel.TargetID, rel.Label, relationCount,
		)
		if err != nil {
			return nil, fmt.Errorf("insert relation %s->%s: %w", rel.SourceID, rel.TargetID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			relationCount++
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &ImportSummary{Project: project, Nodes: snap.Len(), Edges: edgeCount, Relations: relationCount}, nil
}

// DeleteProject removes a project and its graph. Missing projects are not an error.
func (s *Store) DeleteProject(ctx context.Context, projectID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", projectID)
	return err
}

// ListProjects returns imported project ids in sorted order.
func (s *Store) ListProjects(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id FROM projects ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		projects = append(projects, id)
	}
	return projects, rows.Err()
}

func (s *Store) listNodes(ctx context.Context, projectID string) ([]models.TaskNode, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT node_id, name, description, type, status, level, path
		 FROM nodes WHERE project_id = ? ORDER BY position`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var nodes []models.TaskNode
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return nodes, rows.Err()
}

func (s *Store) listEdges(ctx context.Context, projectID string) ([]models.Edge, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT parent_node_id, child_node_id FROM edges WHERE project_id = ? ORDER BY position`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var edges []models.Edge
	for rows.Next() {
		var edge models.Edge
		if err := rows.Scan(&edge.ParentID, &edge.ChildID); err != nil {
			return nil, err
		}
		edges = append(edges, edge)
	}
	return edges, rows.Err()
}

func (s *Store) listRelations(ctx context.Context, projectID string) ([]models.Relation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source_node_id, target_node_id, label FROM relations WHERE project_id = ? ORDER BY position`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var relations []models.Relation
	for rows.Next() {
		var rel models.Relation
		if err := rows.Scan(&rel.SourceID, &rel.TargetID, &rel.Label); err != nil {
			return nil, err
		}
		relations = append(relations, rel)
	}
	return relations, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNode(row rowScanner) (models.TaskNode, error) {
	var (
		node        models.TaskNode
		description sql.NullString
		nodeType    string
		status      string
		path        sql.NullString
	)
	if err := row.Scan(&node.ID, &node.Name, &description, &nodeType, &status, &node.Level, &path); err != nil {
		return models.TaskNode{}, err
	}
	node.Description = description.String
	node.Type = models.NodeType(nodeType)
	node.Status = models.NodeStatus(status)
	node.Path = path.String
	return node, nil
}

func nullString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
