package main

import (
	"context"
	"errors"
	"net"

	"taskmatch/internal/api"
	"taskmatch/internal/normalize"
)

func formatCLIError(err error) []string {
	if err == nil {
		return nil
	}

	lines := []string{err.Error()}

	if apiErr, ok := api.AsAPIError(err); ok {
		switch {
		case apiErr.Unauthorized():
			lines = append(lines, "hint: verify TASKMATCH_API_TOKEN matches the server's api_token_hash.")
		case apiErr.Throttled():
			lines = append(lines, "hint: retry shortly or reduce concurrent classify/import requests.")
		case apiErr.GraphMisconfigured():
			lines = append(lines, "hint: the project's task graph is inconsistent; fix it and re-run: taskmatch graph import <file>")
		}
		if !apiErr.FromTaskmatch() {
			lines = append(lines, "hint: verify TASKMATCH_API_URL points to a taskmatch server.")
		}
		if apiErr.ServerFault() {
			lines = append(lines, "hint: server returned an internal error; check server logs for details.")
		}
		return uniqueLines(lines)
	}

	if errors.Is(err, normalize.ErrInvalidEnvelope) {
		lines = append(lines, "hint: pass --event <kind> when the input is a bare webhook payload.")
		return uniqueLines(lines)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		lines = append(lines, "hint: request timed out; check server health or increase TASKMATCH_HTTP_TIMEOUT.")
		return uniqueLines(lines)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		lines = append(lines,
			"hint: ensure a taskmatch server is running at TASKMATCH_API_URL.",
			"hint: start local server manually with: taskmatch srv",
			"hint: you can increase TASKMATCH_HTTP_TIMEOUT for slower environments.",
		)
		return uniqueLines(lines)
	}

	return uniqueLines(lines)
}

func uniqueLines(lines []string) []string {
	seen := make(map[string]struct{}, len(lines))
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}
