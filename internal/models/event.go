package models

import (
	"strings"
	"time"
)

// EventType tags the source-control event a NormalizedEvent came from.
type EventType string

const (
	EventPush         EventType = "push"
	EventPullRequest  EventType = "pull_request"
	EventIssues       EventType = "issues"
	EventIssueComment EventType = "issue_comment"
)

// ParseEventType returns false for unknown event kinds.
func ParseEventType(raw string) (EventType, bool) {
	switch value := EventType(strings.ToLower(strings.TrimSpace(raw))); value {
	case EventPush, EventPullRequest, EventIssues, EventIssueComment:
		return value, true
	default:
		return "", false
	}
}

// TextField is one named piece of searchable event text.
type TextField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// NormalizedEvent is the uniform view of a single classifiable event.
type NormalizedEvent struct {
	Type         EventType   `json:"event_type"`
	TextFields   []TextField `json:"text_fields"`
	TouchedPaths []string    `json:"touched_paths,omitempty"`
	Identity     string      `json:"identity"`
	Timestamp    time.Time   `json:"timestamp"`
}

// Text joins the text fields in order, skipping empty values.
func (e NormalizedEvent) Text() string {
	parts := make([]string, 0, len(e.TextFields))
	for _, field := range e.TextFields {
		if strings.TrimSpace(field.Value) == "" {
			continue
		}
		parts = append(parts, field.Value)
	}
	return strings.Join(parts, "\n")
}

// Field returns the first text field with the given name.
func (e NormalizedEvent) Field(name string) string {
	for _, field := range e.TextFields {
		if field.Name == name {
			return field.Value
		}
	}
	return ""
}
