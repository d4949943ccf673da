package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"taskmatch/internal/api"
	"taskmatch/internal/format"
	"taskmatch/internal/models"
)

var (
	outputFormatter format.Formatter = format.JSONFormatter{}
	stdout          io.Writer        = os.Stdout
)

func writeJSON(payload any) error {
	return outputFormatter.Write(stdout, payload)
}

func writePlain(format string, args ...any) error {
	_, err := fmt.Fprintf(stdout, format, args...)
	return err
}

func writeResults(results []models.ClassificationResult) error {
	if len(results) == 0 {
		return writePlain("no classifiable events\n")
	}
	for _, result := range results {
		if err := writePlain("%s\n", formatResultLine(result)); err != nil {
			return err
		}
	}
	return nil
}

func formatResultLine(result models.ClassificationResult) string {
	subject := result.SubjectID
	if result.EventType != "" {
		subject = fmt.Sprintf("%s %s", result.EventType, result.SubjectID)
	}

	var b strings.Builder
	if result.WasTask {
		fmt.Fprintf(&b, "● %s -> %s (%.2f)", subject, result.MatchedID(), result.Confidence)
	} else {
		fmt.Fprintf(&b, "○ %s -> no match", subject)
	}
	fmt.Fprintf(&b, " - %s", result.Reason)
	if len(result.AncestorIDs) > 0 {
		fmt.Fprintf(&b, " [ancestors: %s]", strings.Join(result.AncestorIDs, ", "))
	}
	if len(result.RelatedIDs) > 0 {
		fmt.Fprintf(&b, " [related: %s]", strings.Join(result.RelatedIDs, ", "))
	}
	return b.String()
}

func writeGraph(resp api.GraphResponse) error {
	lines := []string{fmt.Sprintf("project: %s", resp.Project)}
	if len(resp.Nodes) == 0 {
		lines = append(lines, "no nodes")
		return writePlain("%s\n", strings.Join(lines, "\n"))
	}

	lines = append(lines, fmt.Sprintf("nodes: %d", len(resp.Nodes)))
	for _, node := range resp.Nodes {
		line := fmt.Sprintf("  %s [%s] [%s] L%d - %s", node.ID, node.Type, node.Status, node.Level, node.Name)
		if node.Path != "" {
			line += fmt.Sprintf(" (%s)", node.Path)
		}
		lines = append(lines, line)
	}
	if len(resp.Edges) > 0 {
		lines = append(lines, "edges:")
		for _, edge := range resp.Edges {
			lines = append(lines, fmt.Sprintf("  %s -> %s", edge.ParentID, edge.ChildID))
		}
	}
	if len(resp.Relations) > 0 {
		lines = append(lines, "relations:")
		for _, rel := range resp.Relations {
			line := fmt.Sprintf("  %s ~ %s", rel.SourceID, rel.TargetID)
			if rel.Label != "" {
				line += fmt.Sprintf(" (%s)", rel.Label)
			}
			lines = append(lines, line)
		}
	}
	return writePlain("%s\n", strings.Join(lines, "\n"))
}
