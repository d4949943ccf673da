package store

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"taskmatch/internal/models"
)

// Fixture is an importable project graph. JSON documents decode through the
// same YAML path.
type Fixture struct {
	Project   string            `yaml:"project" json:"project"`
	Nodes     []FixtureNode     `yaml:"nodes" json:"nodes"`
	Edges     []FixtureEdge     `yaml:"edges" json:"edges"`
	Relations []FixtureRelation `yaml:"relations" json:"relations"`
}

type FixtureNode struct {
	ID          string `yaml:"node_id" json:"node_id"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Type        string `yaml:"type,omitempty" json:"type,omitempty"`
	Status      string `yaml:"status,omitempty" json:"status,omitempty"`
	Level       int    `yaml:"level,omitempty" json:"level,omitempty"`
	Path        string `yaml:"path,omitempty" json:"path,omitempty"`
}

type FixtureEdge struct {
	ParentID string `yaml:"parent_node_id" json:"parent_node_id"`
	ChildID  string `yaml:"child_node_id" json:"child_node_id"`
}

type FixtureRelation struct {
	SourceID string `yaml:"source" json:"source"`
	TargetID string `yaml:"target" json:"target"`
	Label    string `yaml:"label,omitempty" json:"label,omitempty"`
}

// DecodeFixture reads a YAML or JSON fixture. Unknown keys are rejected.
func DecodeFixture(r io.Reader) (*Fixture, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("fixture is empty")
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var fixture Fixture
	if err := dec.Decode(&fixture); err != nil {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	fixture.Project = strings.TrimSpace(fixture.Project)
	if fixture.Project == "" {
		return nil, errors.New("fixture project is required")
	}
	return &fixture, nil
}

// Graph converts the fixture to model values, applying type and status defaults.
func (f *Fixture) Graph() ([]models.TaskNode, []models.Edge, []models.Relation, error) {
	nodes := make([]models.TaskNode, 0, len(f.Nodes))
	for _, n := range f.Nodes {
		nodeType, err := models.ParseNodeType(n.Type)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("node %q: %w", n.ID, err)
		}
		status, err := models.ParseNodeStatus(n.Status)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("node %q: %w", n.ID, err)
		}
		nodes = append(nodes, models.TaskNode{
			ID:          strings.TrimSpace(n.ID),
			Name:        strings.TrimSpace(n.Name),
			Description: strings.TrimSpace(n.Description),
			Type:        nodeType,
			Status:      status,
			Level:       n.Level,
			Path:        strings.TrimSpace(n.Path),
		})
	}

	edges := make([]models.Edge, 0, len(f.Edges))
	for _, e := range f.Edges {
		edges = append(edges, models.Edge{ParentID: strings.TrimSpace(e.ParentID), ChildID: strings.TrimSpace(e.ChildID)})
	}
	relations := make([]models.Relation, 0, len(f.Relations))
	for _, r := range f.Relations {
		relations = append(relations, models.Relation{
			SourceID: strings.TrimSpace(r.SourceID),
			TargetID: strings.TrimSpace(r.TargetID),
			Label:    strings.TrimSpace(r.Label),
		})
	}
	return nodes, edges, relations, nil
}
