package models

import (
	"fmt"
	"strings"
)

// NodeStatus defines allowed lifecycle states for task nodes.
type NodeStatus string

const (
	StatusTodo       NodeStatus = "todo"
	StatusInProgress NodeStatus = "in_progress"
	StatusDone       NodeStatus = "done"
)

// NodeType defines known task node categories.
type NodeType string

const (
	TypeFeature   NodeType = "feature"
	TypeBug       NodeType = "bug"
	TypeTask      NodeType = "task"
	TypeEpic      NodeType = "epic"
	TypeChore     NodeType = "chore"
	TypeGroup     NodeType = "group"
	TypeFrontend  NodeType = "frontend"
	TypeBackend   NodeType = "backend"
	TypeDev       NodeType = "dev"
	TypeRoute     NodeType = "route"
	TypeAPI       NodeType = "api"
	TypeComponent NodeType = "component"
)

const (
	DefaultNodeStatus = StatusTodo
	DefaultNodeType   = TypeTask
)

var validNodeStatuses = map[NodeStatus]struct{}{
	StatusTodo:       {},
	StatusInProgress: {},
	StatusDone:       {},
}

var validNodeTypes = map[NodeType]struct{}{
	TypeFeature:   {},
	TypeBug:       {},
	TypeTask:      {},
	TypeEpic:      {},
	TypeChore:     {},
	TypeGroup:     {},
	TypeFrontend:  {},
	TypeBackend:   {},
	TypeDev:       {},
	TypeRoute:     {},
	TypeAPI:       {},
	TypeComponent: {},
}

func IsValidNodeStatus(status NodeStatus) bool {
	_, ok := validNodeStatuses[status]
	return ok
}

func IsValidNodeType(nodeType NodeType) bool {
	_, ok := validNodeTypes[nodeType]
	return ok
}

// ParseNodeStatus normalizes raw input; empty input yields the default status.
func ParseNodeStatus(raw string) (NodeStatus, error) {
	value := NodeStatus(strings.ToLower(strings.TrimSpace(raw)))
	if value == "" {
		return DefaultNodeStatus, nil
	}
	if !IsValidNodeStatus(value) {
		return "", fmt.Errorf("invalid status: %s", value)
	}
	return value, nil
}

// ParseNodeType normalizes raw input; empty input yields the default type.
func ParseNodeType(raw string) (NodeType, error) {
	value := NodeType(strings.ToLower(strings.TrimSpace(raw)))
	if value == "" {
		return DefaultNodeType, nil
	}
	if !IsValidNodeType(value) {
		return "", fmt.Errorf("invalid type: %s", value)
	}
	return value, nil
}
