package graph

import (
	"sort"
	"strings"

	"taskmatch/internal/models"
)

// MaxAncestorDepth bounds ancestor walks on malformed (cyclic) edge data.
const MaxAncestorDepth = 50

// Snapshot is an immutable, request-scoped view of one project's task graph.
//
// It is safe for concurrent read access.
type Snapshot struct {
	project   string
	nodes     []models.TaskNode // snapshot order
	byID      map[string]int
	parents   map[string][]string
	related   map[string][]string
	edges     []models.Edge
	relations []models.Relation
}

// New builds and validates a Snapshot.
//
// Validation rejects empty and duplicate node ids. Edges and relations that
// reference unknown nodes are kept for display but never used for context.
func New(project string, nodes []models.TaskNode, edges []models.Edge, relations []models.Relation) (*Snapshot, error) {
	s := &Snapshot{
		project:   project,
		nodes:     make([]models.TaskNode, 0, len(nodes)),
		byID:      make(map[string]int, len(nodes)),
		parents:   map[string][]string{},
		related:   map[string][]string{},
		edges:     append([]models.Edge(nil), edges...),
		relations: append([]models.Relation(nil), relations...),
	}

	for _, node := range nodes {
		id := strings.TrimSpace(node.ID)
		if id == "" {
			return nil, configErrorf("project %s: node id is required", project)
		}
		if _, exists := s.byID[id]; exists {
			return nil, configErrorf("project %s: duplicate node id %q", project, id)
		}
		node.ID = id
		if node.Level < 0 {
			node.Level = 0
		}
		s.byID[id] = len(s.nodes)
		s.nodes = append(s.nodes, node)
	}

	for _, edge := range edges {
		if !s.has(edge.ParentID) || !s.has(edge.ChildID) || edge.ParentID == edge.ChildID {
			continue
		}
		s.parents[edge.ChildID] = appendUnique(s.parents[edge.ChildID], edge.ParentID)
	}

	for _, rel := range relations {
		if !s.has(rel.SourceID) || !s.has(rel.TargetID) || rel.SourceID == rel.TargetID {
			continue
		}
		s.related[rel.SourceID] = appendUnique(s.related[rel.SourceID], rel.TargetID)
		s.related[rel.TargetID] = appendUnique(s.related[rel.TargetID], rel.SourceID)
	}
	for id := range s.related {
		sort.Strings(s.related[id])
	}

	return s, nil
}

// Empty returns a snapshot with no nodes for project.
func Empty(project string) *Snapshot {
	s, _ := New(project, nil, nil, nil)
	return s
}

// Project returns the project identifier the snapshot was fetched for.
func (s *Snapshot) Project() string { return s.project }

// Len returns the number of nodes.
func (s *Snapshot) Len() int { return len(s.nodes) }

// Nodes returns a copy of the nodes in snapshot order.
func (s *Snapshot) Nodes() []models.TaskNode {
	return append([]models.TaskNode(nil), s.nodes...)
}

// Edges returns a copy of the edges as supplied.
func (s *Snapshot) Edges() []models.Edge {
	return append([]models.Edge(nil), s.edges...)
}

// Relations returns a copy of the relations as supplied.
func (s *Snapshot) Relations() []models.Relation {
	return append([]models.Relation(nil), s.relations...)
}

// Node looks up a node by exact id.
func (s *Snapshot) Node(id string) (models.TaskNode, bool) {
	idx, ok := s.byID[id]
	if !ok {
		return models.TaskNode{}, false
	}
	return s.nodes[idx], true
}

// Ancestors walks parent edges upwards from id, nearest first.
func (s *Snapshot) Ancestors(id string) []string {
	if !s.has(id) {
		return nil
	}
	var out []string
	visited := map[string]struct{}{id: {}}
	frontier := []string{id}
	for depth := 0; depth < MaxAncestorDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, child := range frontier {
			for _, parent := range s.parents[child] {
				if _, seen := visited[parent]; seen {
					continue
				}
				visited[parent] = struct{}{}
				out = append(out, parent)
				next = append(next, parent)
			}
		}
		frontier = next
	}
	return out
}

// Related returns ids linked to id by relations in either direction, sorted.
func (s *Snapshot) Related(id string) []string {
	return append([]string(nil), s.related[id]...)
}

func (s *Snapshot) has(id string) bool {
	_, ok := s.byID[id]
	return ok
}

func appendUnique(values []string, value string) []string {
	for _, existing := range values {
		if existing == value {
			return values
		}
	}
	return append(values, value)
}
