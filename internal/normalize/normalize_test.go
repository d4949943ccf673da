package normalize

import (
	"reflect"
	"testing"
	"time"

	"taskmatch/internal/models"
)

func TestNormalizePushOneEventPerCommit(t *testing.T) {
	payload := []byte(`{
		"repository": {"name": "app", "owner": {"login": "acme"}},
		"commits": [
			{"id": "abc123", "message": "Fix login-timeout bug", "timestamp": "2026-03-01T10:00:00Z",
			 "added": ["src/auth/new.go"], "removed": [], "modified": ["src/auth/login.go", "src/auth/new.go"]},
			{"message": "no id, skipped"},
			{"id": "def456", "message": "Update README"}
		]
	}`)

	events := Normalize("push", payload)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}

	first := events[0]
	if first.Type != models.EventPush || first.Identity != "abc123" {
		t.Fatalf("unexpected first event: %+v", first)
	}
	if first.Field("message") != "Fix login-timeout bug" {
		t.Fatalf("unexpected message %q", first.Field("message"))
	}
	wantPaths := []string{"src/auth/login.go", "src/auth/new.go"}
	if !reflect.DeepEqual(first.TouchedPaths, wantPaths) {
		t.Fatalf("touched paths = %v, want %v", first.TouchedPaths, wantPaths)
	}
	if !first.Timestamp.Equal(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected timestamp %v", first.Timestamp)
	}

	if events[1].Identity != "def456" || len(events[1].TouchedPaths) != 0 {
		t.Fatalf("unexpected second event: %+v", events[1])
	}
}

func TestNormalizePushWithoutCommits(t *testing.T) {
	if events := Normalize("push", []byte(`{"ref": "refs/heads/main"}`)); len(events) != 0 {
		t.Fatalf("expected no events, got %v", events)
	}
	if events := Normalize("push", []byte(`{"commits": []}`)); len(events) != 0 {
		t.Fatalf("expected no events, got %v", events)
	}
}

func TestNormalizePullRequest(t *testing.T) {
	payload := []byte(`{"number": 42, "pull_request": {"title": "Add OAuth flow", "body": "Closes #AUTH-7"}}`)
	events := Normalize("pull_request", payload)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	ev := events[0]
	if ev.Identity != "42" || ev.Type != models.EventPullRequest {
		t.Fatalf("unexpected event %+v", ev)
	}
	if ev.Field("title") != "Add OAuth flow" || ev.Field("body") != "Closes #AUTH-7" {
		t.Fatalf("unexpected fields %+v", ev.TextFields)
	}
	if ev.Text() != "Add OAuth flow\nCloses #AUTH-7" {
		t.Fatalf("unexpected text %q", ev.Text())
	}
}

func TestNormalizePullRequestNumberFallback(t *testing.T) {
	events := Normalize("pull_request", []byte(`{"pull_request": {"number": 7, "title": "x", "body": null}}`))
	if len(events) != 1 || events[0].Identity != "7" {
		t.Fatalf("unexpected events %+v", events)
	}
	if events[0].Text() != "x" {
		t.Fatalf("null body should be blank, got %q", events[0].Text())
	}
}

func TestNormalizeIssuesAndComments(t *testing.T) {
	issue := Normalize("issues", []byte(`{"issue": {"number": 3, "title": "Crash on save", "body": "stack trace"}}`))
	if len(issue) != 1 || issue[0].Identity != "3" || issue[0].Type != models.EventIssues {
		t.Fatalf("unexpected issue events %+v", issue)
	}

	comment := Normalize("issue_comment", []byte(`{
		"issue": {"number": 9, "title": "Slow dashboard"},
		"comment": {"body": "Looks like the query cache", "created_at": "2026-01-02T03:04:05Z"}
	}`))
	if len(comment) != 1 {
		t.Fatalf("expected 1 comment event, got %d", len(comment))
	}
	if comment[0].Field("comment") != "Looks like the query cache" || comment[0].Field("title") != "Slow dashboard" {
		t.Fatalf("unexpected comment fields %+v", comment[0].TextFields)
	}
	if comment[0].Identity != "9" || comment[0].Timestamp.IsZero() {
		t.Fatalf("unexpected comment event %+v", comment[0])
	}
}

func TestNormalizeUnknownOrMalformed(t *testing.T) {
	tests := []struct {
		name    string
		kind    string
		payload string
	}{
		{"unknown kind", "deployment", `{"id": 1}`},
		{"invalid json", "push", `{"commits": [`},
		{"not an object", "issues", `[1, 2]`},
		{"missing issue", "issues", `{"action": "opened"}`},
		{"missing pull request", "pull_request", `{"number": 1}`},
		{"comment without issue", "issue_comment", `{"comment": {"body": "hi"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if events := Normalize(tt.kind, []byte(tt.payload)); len(events) != 0 {
				t.Fatalf("expected no events, got %+v", events)
			}
		})
	}
}

func TestProjectID(t *testing.T) {
	tests := []struct {
		payload string
		want    string
	}{
		{`{"repository": {"name": "app", "owner": {"login": "acme"}}}`, "acme/app"},
		{`{"repository": {"name": "app"}}`, DefaultProjectID},
		{`{}`, DefaultProjectID},
		{`not json`, DefaultProjectID},
	}
	for _, tt := range tests {
		if got := ProjectID([]byte(tt.payload)); got != tt.want {
			t.Fatalf("ProjectID(%s) = %q, want %q", tt.payload, got, tt.want)
		}
	}
}

func TestParseEnvelope(t *testing.T) {
	env, err := ParseEnvelope([]byte(`{"event": "issues", "payload": {"issue": {"number": 1}}}`))
	if err != nil {
		t.Fatalf("ParseEnvelope: %v", err)
	}
	if env.Event != "issues" || string(env.Payload) != `{"issue": {"number": 1}}` {
		t.Fatalf("unexpected envelope %+v", env)
	}

	for _, body := range []string{`{}`, `{"event": 1, "payload": {}}`, `{"event": "push"}`, `{"event": "push", "payload": []}`, `nope`} {
		if _, err := ParseEnvelope([]byte(body)); err != ErrInvalidEnvelope {
			t.Fatalf("ParseEnvelope(%s) err = %v, want ErrInvalidEnvelope", body, err)
		}
	}
}

func TestNewEnvelope(t *testing.T) {
	env, err := NewEnvelope(" push ", []byte(`{"commits": []}`))
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	if env.Event != "push" {
		t.Fatalf("expected trimmed event, got %q", env.Event)
	}

	cases := []struct {
		event   string
		payload string
	}{
		{"", `{}`},
		{"push", `[]`},
		{"push", `payload=%7B%7D`},
		{"push", ``},
	}
	for _, tt := range cases {
		if _, err := NewEnvelope(tt.event, []byte(tt.payload)); err != ErrInvalidEnvelope {
			t.Fatalf("NewEnvelope(%q, %q) err = %v, want ErrInvalidEnvelope", tt.event, tt.payload, err)
		}
	}
}
