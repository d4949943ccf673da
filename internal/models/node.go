package models

// TaskNode is one unit of work in a project graph.
type TaskNode struct {
	ID          string     `json:"node_id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Type        NodeType   `json:"type"`
	Status      NodeStatus `json:"status"`
	Level       int        `json:"level"`
	Path        string     `json:"path,omitempty"`
}

// CandidateText is the descriptive text scored against event text.
func (n TaskNode) CandidateText() string {
	if n.Description == "" {
		return n.Name
	}
	if n.Name == "" {
		return n.Description
	}
	return n.Name + " " + n.Description
}

// Edge is a directed parent -> child link.
type Edge struct {
	ParentID string `json:"parent_node_id"`
	ChildID  string `json:"child_node_id"`
}

// Relation is a non-hierarchical cross-reference between two nodes.
type Relation struct {
	SourceID string `json:"source"`
	TargetID string `json:"target"`
	Label    string `json:"label,omitempty"`
}
