// Package normalize turns raw source-control webhook payloads into
// models.NormalizedEvent values. It never fails: payloads it cannot read
// yield no events.
package normalize

import (
	"sort"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"taskmatch/internal/models"
)

// Normalize converts one payload of the given event kind into zero or more
// normalized events. Push payloads produce one event per commit.
func Normalize(kind string, payload []byte) []models.NormalizedEvent {
	eventType, ok := models.ParseEventType(kind)
	if !ok || !gjson.ValidBytes(payload) {
		return nil
	}
	root := gjson.ParseBytes(payload)
	if !root.IsObject() {
		return nil
	}

	switch eventType {
	case models.EventPush:
		return normalizePush(root)
	case models.EventPullRequest:
		return single(normalizePullRequest(root))
	case models.EventIssues:
		return single(normalizeIssue(root))
	case models.EventIssueComment:
		return single(normalizeIssueComment(root))
	default:
		return nil
	}
}

func normalizePush(root gjson.Result) []models.NormalizedEvent {
	commits := root.Get("commits")
	if !commits.IsArray() {
		return nil
	}

	var events []models.NormalizedEvent
	commits.ForEach(func(_, commit gjson.Result) bool {
		if !commit.IsObject() {
			return true
		}
		sha := firstString(commit.Get("id"), commit.Get("sha"))
		if sha == "" {
			return true
		}
		events = append(events, models.NormalizedEvent{
			Type:         models.EventPush,
			TextFields:   []models.TextField{{Name: "message", Value: commit.Get("message").String()}},
			TouchedPaths: touchedPaths(commit),
			Identity:     sha,
			Timestamp:    parseTime(commit.Get("timestamp")),
		})
		return true
	})
	return events
}

func normalizePullRequest(root gjson.Result) (models.NormalizedEvent, bool) {
	pr := root.Get("pull_request")
	if !pr.IsObject() {
		return models.NormalizedEvent{}, false
	}
	number := firstString(root.Get("number"), pr.Get("number"))
	if number == "" {
		return models.NormalizedEvent{}, false
	}
	return models.NormalizedEvent{
		Type: models.EventPullRequest,
		TextFields: []models.TextField{
			{Name: "title", Value: pr.Get("title").String()},
			{Name: "body", Value: pr.Get("body").String()},
		},
		Identity:  number,
		Timestamp: parseTime(pr.Get("updated_at"), pr.Get("created_at")),
	}, true
}

func normalizeIssue(root gjson.Result) (models.NormalizedEvent, bool) {
	issue := root.Get("issue")
	if !issue.IsObject() {
		return models.NormalizedEvent{}, false
	}
	number := firstString(issue.Get("number"), root.Get("number"))
	if number == "" {
		return models.NormalizedEvent{}, false
	}
	return models.NormalizedEvent{
		Type: models.EventIssues,
		TextFields: []models.TextField{
			{Name: "title", Value: issue.Get("title").String()},
			{Name: "body", Value: issue.Get("body").String()},
		},
		Identity:  number,
		Timestamp: parseTime(issue.Get("updated_at"), issue.Get("created_at")),
	}, true
}

func normalizeIssueComment(root gjson.Result) (models.NormalizedEvent, bool) {
	comment := root.Get("comment")
	issue := root.Get("issue")
	if !comment.IsObject() || !issue.IsObject() {
		return models.NormalizedEvent{}, false
	}
	number := firstString(issue.Get("number"))
	if number == "" {
		return models.NormalizedEvent{}, false
	}
	return models.NormalizedEvent{
		Type: models.EventIssueComment,
		TextFields: []models.TextField{
			{Name: "comment", Value: comment.Get("body").String()},
			{Name: "title", Value: issue.Get("title").String()},
		},
		Identity:  number,
		Timestamp: parseTime(comment.Get("updated_at"), comment.Get("created_at")),
	}, true
}

func single(event models.NormalizedEvent, ok bool) []models.NormalizedEvent {
	if !ok {
		return nil
	}
	return []models.NormalizedEvent{event}
}

func touchedPaths(commit gjson.Result) []string {
	seen := map[string]struct{}{}
	for _, key := range []string{"added", "removed", "modified"} {
		for _, path := range commit.Get(key).Array() {
			value := strings.TrimSpace(path.String())
			if value == "" {
				continue
			}
			seen[value] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return nil
	}
	out := make([]string, 0, len(seen))
	for path := range seen {
		out = append(out, path)
	}
	sort.Strings(out)
	return out
}

func firstString(values ...gjson.Result) string {
	for _, value := range values {
		if !value.Exists() || value.Type == gjson.Null {
			continue
		}
		if s := strings.TrimSpace(value.String()); s != "" {
			return s
		}
	}
	return ""
}

func parseTime(values ...gjson.Result) time.Time {
	for _, value := range values {
		raw := strings.TrimSpace(value.String())
		if raw == "" {
			continue
		}
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
