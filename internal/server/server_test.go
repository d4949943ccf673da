package server

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"taskmatch/internal/api"
	"taskmatch/internal/auth"
	"taskmatch/internal/blobstore"
	"taskmatch/internal/classifier"
	"taskmatch/internal/metrics"
	"taskmatch/internal/store"
)

const testFixture = `{
  "project": "acme/app",
  "nodes": [
    {"node_id": "epic-1", "name": "Authentication", "type": "epic"},
    {"node_id": "T-42", "name": "Add login button", "path": "web/login/**"},
    {"node_id": "T-43", "name": "Password reset emails"}
  ],
  "edges": [{"parent_node_id": "epic-1", "child_node_id": "T-42"}],
  "relations": [{"source": "T-42", "target": "T-43", "label": "blocks"}]
}`

const repoJSON = `"repository": {"name": "app", "owner": {"login": "acme"}}`

type testEnv struct {
	srv     *Server
	store   *store.Store
	handler http.Handler
	metrics *metrics.Metrics
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return newTestEnvWithStore(t, st, opts)
}

func newTestEnvWithStore(t *testing.T, st *store.Store, opts Options) *testEnv {
	t.Helper()
	return newTestEnvWithLogger(t, st, opts, discardLogger())
}

func newTestEnvWithLogger(t *testing.T, st *store.Store, opts Options, logger *slog.Logger) *testEnv {
	t.Helper()
	m := metrics.New()
	pipeline := classifier.NewPipeline(st, classifier.NewDeterministic(nil),
		classifier.WithLogger(logger), classifier.WithMetrics(m))
	srv := New("127.0.0.1:0", st, pipeline, logger, opts)
	srv.ConfigureMetrics(m)
	return &testEnv{srv: srv, store: st, handler: srv.Handler(), metrics: m}
}

func (e *testEnv) do(t *testing.T, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func (e *testEnv) importFixture(t *testing.T) {
	t.Helper()
	w := e.do(t, http.MethodPost, "/v1/graph", testFixture, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("import fixture: %d %s", w.Code, w.Body.String())
	}
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) api.ErrorResponse {
	t.Helper()
	var errResp api.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("decode error response: %v (%s)", err, w.Body.String())
	}
	return errResp
}

func sign(secret, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestListenAddrRemoteGuard(t *testing.T) {
	t.Run("allows loopback", func(t *testing.T) {
		t.Setenv(allowRemoteEnvKey, "")
		addr, err := ListenAddr("http://127.0.0.1:7411")
		if err != nil {
			t.Fatalf("expected loopback to be allowed, got error: %v", err)
		}
		if addr != "127.0.0.1:7411" {
			t.Fatalf("unexpected addr: %s", addr)
		}
	})

	t.Run("blocks non-loopback by default", func(t *testing.T) {
		t.Setenv(allowRemoteEnvKey, "")
		if _, err := ListenAddr("http://0.0.0.0:7411"); err == nil {
			t.Fatal("expected error for non-loopback listen host")
		}
	})

	t.Run("allows non-loopback when explicitly enabled", func(t *testing.T) {
		t.Setenv(allowRemoteEnvKey, "true")
		addr, err := ListenAddr("http://0.0.0.0:7411")
		if err != nil {
			t.Fatalf("expected allow-remote to permit host, got error: %v", err)
		}
		if addr != "0.0.0.0:7411" {
			t.Fatalf("unexpected addr: %s", addr)
		}
	})
}

func TestWithAuth(t *testing.T) {
	hash, err := auth.HashToken("tm_0123456789abcdef")
	if err != nil {
		t.Fatalf("hash token: %v", err)
	}
	srv := &Server{opts: Options{APITokenHash: hash}, tokens: newTokenCache(), logger: discardLogger()}
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := srv.withAuth(next)

	t.Run("denies missing auth", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/classify", nil))
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", w.Code)
		}
		if errResp := decodeError(t, w); errResp.ErrorCode != ErrCodeUnauthorized {
			t.Fatalf("expected error_code %d, got %d", ErrCodeUnauthorized, errResp.ErrorCode)
		}
	})

	t.Run("denies wrong token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/graph", nil)
		req.Header.Set("Authorization", "Bearer tm_wrongwrongwrong")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", w.Code)
		}
	})

	t.Run("allows valid token twice", func(t *testing.T) {
		for range 2 {
			req := httptest.NewRequest(http.MethodGet, "/v1/info", nil)
			req.Header.Set("Authorization", "Bearer tm_0123456789abcdef")
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			if w.Code != http.StatusNoContent {
				t.Fatalf("expected 204, got %d", w.Code)
			}
		}
	})

	t.Run("health and webhook skip bearer auth", func(t *testing.T) {
		for _, path := range []string{"/health", webhookPath} {
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, path, nil))
			if w.Code != http.StatusNoContent {
				t.Fatalf("%s: expected 204, got %d", path, w.Code)
			}
		}
	})
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, Options{})
	w := env.do(t, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"ok"`) {
		t.Fatalf("unexpected health response: %d %s", w.Code, w.Body.String())
	}
}

func TestClassifyExplicitReference(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.importFixture(t)

	body := `{"event": "issues", "payload": {` + repoJSON + `, "issue": {"number": 7, "title": "fixes T-42 login bug", "body": ""}}}`
	w := env.do(t, http.MethodPost, "/v1/classify", body, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("classify: %d %s", w.Code, w.Body.String())
	}

	var resp api.ClassifyResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Batch || len(resp.Results) != 1 {
		t.Fatalf("expected a single result, got %s", w.Body.String())
	}
	result := resp.Results[0]
	if !result.WasTask || result.MatchedID() != "T-42" || result.Confidence != 1.0 {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(result.AncestorIDs) != 1 || result.AncestorIDs[0] != "epic-1" {
		t.Fatalf("expected ancestor context, got %v", result.AncestorIDs)
	}
	if len(result.RelatedIDs) != 1 || result.RelatedIDs[0] != "T-43" {
		t.Fatalf("expected related context, got %v", result.RelatedIDs)
	}
}

func TestClassifyPushBatch(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.importFixture(t)

	body := `{"event": "push", "payload": {` + repoJSON + `, "commits": [
		{"id": "aaa111", "message": "Update README"},
		{"id": "bbb222", "message": "wire T-43 mailer"}
	]}}`
	w := env.do(t, http.MethodPost, "/v1/classify", body, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("classify: %d %s", w.Code, w.Body.String())
	}
	var resp api.ClassifyResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Batch || len(resp.Results) != 2 {
		t.Fatalf("expected batch of 2, got %s", w.Body.String())
	}
	if resp.Results[0].SubjectID != "aaa111" || resp.Results[0].WasTask {
		t.Fatalf("unexpected first result %+v", resp.Results[0])
	}
	if resp.Results[1].SubjectID != "bbb222" || resp.Results[1].MatchedID() != "T-43" {
		t.Fatalf("unexpected second result %+v", resp.Results[1])
	}
}

func TestClassifyUnknownEventAndProject(t *testing.T) {
	env := newTestEnv(t, Options{})

	w := env.do(t, http.MethodPost, "/v1/classify", `{"event": "release", "payload": {}}`, nil)
	if w.Code != http.StatusOK || strings.TrimSpace(w.Body.String()) != `{"results":[]}` {
		t.Fatalf("expected empty batch, got %d %s", w.Code, w.Body.String())
	}

	w = env.do(t, http.MethodPost, "/v1/classify", `{"event": "issues", "payload": {"issue": {"number": 1, "title": "anything"}}}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("classify: %d %s", w.Code, w.Body.String())
	}
	var resp api.ClassifyResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].WasTask || resp.Results[0].Confidence != 0 {
		t.Fatalf("expected no-match against empty graph, got %s", w.Body.String())
	}
}

func TestClassifyRejectsBadEnvelope(t *testing.T) {
	env := newTestEnv(t, Options{})
	for _, body := range []string{`not json`, `{"payload": {}}`, `{"event": "push", "payload": "x"}`} {
		w := env.do(t, http.MethodPost, "/v1/classify", body, nil)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", body, w.Code)
		}
		if errResp := decodeError(t, w); errResp.ErrorCode != ErrCodeInvalidEnvelope {
			t.Fatalf("%s: expected error_code %d, got %d", body, ErrCodeInvalidEnvelope, errResp.ErrorCode)
		}
	}
}

func TestGraphLifecycle(t *testing.T) {
	env := newTestEnv(t, Options{})

	w := env.do(t, http.MethodGet, "/v1/graph?project=acme/app", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get empty graph: %d %s", w.Code, w.Body.String())
	}
	var graphResp api.GraphResponse
	if err := json.Unmarshal(w.Body.Bytes(), &graphResp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if graphResp.Project != "acme/app" || graphResp.Nodes == nil || len(graphResp.Nodes) != 0 {
		t.Fatalf("expected empty graph, got %s", w.Body.String())
	}

	env.importFixture(t)
	w = env.do(t, http.MethodGet, "/v1/graph?project=acme/app", "", nil)
	if err := json.Unmarshal(w.Body.Bytes(), &graphResp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(graphResp.Nodes) != 3 || graphResp.Nodes[1].ID != "T-42" || len(graphResp.Edges) != 1 || len(graphResp.Relations) != 1 {
		t.Fatalf("unexpected graph %s", w.Body.String())
	}

	w = env.do(t, http.MethodDelete, "/v1/graph?project=acme/app", "", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete: %d %s", w.Code, w.Body.String())
	}
	w = env.do(t, http.MethodGet, "/v1/graph?project=acme/app", "", nil)
	if err := json.Unmarshal(w.Body.Bytes(), &graphResp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(graphResp.Nodes) != 0 {
		t.Fatalf("expected graph removed, got %s", w.Body.String())
	}
}

func TestGraphErrors(t *testing.T) {
	env := newTestEnv(t, Options{})

	tests := []struct {
		name     string
		method   string
		path     string
		body     string
		status   int
		errCode  int
		errLabel string
	}{
		{
			name: "duplicate node ids", method: http.MethodPost, path: "/v1/graph",
			body:   `{"project": "acme/app", "nodes": [{"node_id": "a", "name": "x"}, {"node_id": "a", "name": "y"}]}`,
			status: http.StatusUnprocessableEntity, errCode: ErrCodeGraphConfiguration, errLabel: "configuration_error",
		},
		{
			name: "invalid node type", method: http.MethodPost, path: "/v1/graph",
			body:   `{"project": "acme/app", "nodes": [{"node_id": "a", "name": "x", "type": "saga"}]}`,
			status: http.StatusBadRequest, errCode: ErrCodeInvalidFixture, errLabel: "invalid_argument",
		},
		{
			name: "unknown fixture field", method: http.MethodPost, path: "/v1/graph",
			body:   `{"project": "acme/app", "tasks": []}`,
			status: http.StatusBadRequest, errCode: ErrCodeInvalidJSON, errLabel: "invalid_argument",
		},
		{
			name: "invalid project", method: http.MethodPost, path: "/v1/graph",
			body:   `{"project": "not a project", "nodes": []}`,
			status: http.StatusBadRequest, errCode: ErrCodeInvalidProject, errLabel: "invalid_argument",
		},
		{
			name: "missing project query", method: http.MethodGet, path: "/v1/graph",
			status: http.StatusBadRequest, errCode: ErrCodeMissingRequired, errLabel: "invalid_argument",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, tt.method, tt.path, tt.body, nil)
			if w.Code != tt.status {
				t.Fatalf("expected %d, got %d %s", tt.status, w.Code, w.Body.String())
			}
			errResp := decodeError(t, w)
			if errResp.ErrorCode != tt.errCode || errResp.Code != tt.errLabel {
				t.Fatalf("unexpected error %+v", errResp)
			}
		})
	}
}

func TestWebhookSignatureAndDedupe(t *testing.T) {
	const secret = "s3cret"
	env := newTestEnv(t, Options{WebhookSecret: secret})
	env.importFixture(t)

	body := `{` + repoJSON + `, "action": "opened", "number": 9, "pull_request": {"number": 9, "title": "Add login button on navbar", "body": ""}}`
	headers := map[string]string{
		"Content-Type":        "application/json",
		"X-GitHub-Event":      "pull_request",
		"X-GitHub-Delivery":   "delivery-1",
		"X-Hub-Signature-256": sign(secret, body),
	}

	w := env.do(t, http.MethodPost, webhookPath, body, headers)
	if w.Code != http.StatusOK {
		t.Fatalf("webhook: %d %s", w.Code, w.Body.String())
	}
	var resp api.WebhookResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Deduped || resp.ProjectID != "acme/app" || len(resp.Results) != 1 {
		t.Fatalf("unexpected response %s", w.Body.String())
	}
	if !resp.Results[0].WasTask || resp.Results[0].MatchedID() != "T-42" || resp.Results[0].Confidence < 0.75 {
		t.Fatalf("expected fuzzy match to T-42, got %+v", resp.Results[0])
	}

	receipt, err := env.store.GetDelivery(context.Background(), "delivery-1")
	if err != nil {
		t.Fatalf("get delivery: %v", err)
	}
	if receipt.EventType != "pull_request" || receipt.ProjectID != "acme/app" || receipt.Results != 1 {
		t.Fatalf("unexpected receipt %+v", receipt)
	}

	w = env.do(t, http.MethodPost, webhookPath, body, headers)
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if w.Code != http.StatusOK || !resp.Deduped || len(resp.Results) != 0 {
		t.Fatalf("expected deduped response, got %d %s", w.Code, w.Body.String())
	}

	headers["X-Hub-Signature-256"] = sign("other", body)
	headers["X-GitHub-Delivery"] = "delivery-2"
	w = env.do(t, http.MethodPost, webhookPath, body, headers)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad signature, got %d", w.Code)
	}
	if errResp := decodeError(t, w); errResp.ErrorCode != ErrCodeInvalidSignature {
		t.Fatalf("expected error_code %d, got %d", ErrCodeInvalidSignature, errResp.ErrorCode)
	}

	delete(headers, "X-Hub-Signature-256")
	w = env.do(t, http.MethodPost, webhookPath, body, headers)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for missing signature, got %d", w.Code)
	}
}

func TestWebhookDedupeSurvivesRestart(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	body := `{"commits": [{"id": "abc", "message": "tidy"}]}`
	headers := map[string]string{"X-GitHub-Event": "push", "X-GitHub-Delivery": "delivery-restart"}

	first := newTestEnvWithStore(t, st, Options{})
	if w := first.do(t, http.MethodPost, webhookPath, body, headers); w.Code != http.StatusOK {
		t.Fatalf("first delivery: %d %s", w.Code, w.Body.String())
	}

	second := newTestEnvWithStore(t, st, Options{})
	w := second.do(t, http.MethodPost, webhookPath, body, headers)
	var resp api.WebhookResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Deduped {
		t.Fatalf("expected delivery log to dedupe after restart, got %s", w.Body.String())
	}
}

func TestWebhookPingMissingEventAndGeneratedID(t *testing.T) {
	env := newTestEnv(t, Options{})

	w := env.do(t, http.MethodPost, webhookPath, `{"zen": "Keep it logically awesome."}`, map[string]string{"X-GitHub-Event": "ping"})
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"event":"ping"`) {
		t.Fatalf("unexpected ping response %d %s", w.Code, w.Body.String())
	}

	w = env.do(t, http.MethodPost, webhookPath, `{}`, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without event header, got %d", w.Code)
	}

	w = env.do(t, http.MethodPost, webhookPath, `{"commits": []}`, map[string]string{"X-GitHub-Event": "push"})
	var resp api.WebhookResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if w.Code != http.StatusOK || len(resp.DeliveryID) != 36 {
		t.Fatalf("expected generated uuid delivery id, got %d %s", w.Code, w.Body.String())
	}
}

func TestWebhookArchivesBody(t *testing.T) {
	env := newTestEnv(t, Options{})
	archive, err := blobstore.NewLocalArchive(t.TempDir())
	if err != nil {
		t.Fatalf("new archive: %v", err)
	}
	env.srv.ConfigureArchive(archive)

	body := `{"commits": [{"id": "abc", "message": "tidy"}]}`
	w := env.do(t, http.MethodPost, webhookPath, body, map[string]string{"X-GitHub-Event": "push", "X-GitHub-Delivery": "archived-1"})
	if w.Code != http.StatusOK {
		t.Fatalf("webhook: %d %s", w.Code, w.Body.String())
	}

	receipt, err := env.store.GetDelivery(context.Background(), "archived-1")
	if err != nil {
		t.Fatalf("get delivery: %v", err)
	}
	if receipt.ArchiveKey == "" {
		t.Fatal("expected archive key on receipt")
	}
	rc, err := archive.Open(context.Background(), receipt.ArchiveKey)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if !bytes.Equal(data, []byte(body)) {
		t.Fatalf("archived body mismatch: %q", data)
	}
}

func TestInfoAndMetrics(t *testing.T) {
	env := newTestEnv(t, Options{Version: "test", StoreDriver: "sqlite", ClassifierMode: "deterministic", DBPath: "/tmp/x.db"})
	env.importFixture(t)
	_ = env.do(t, http.MethodPost, webhookPath, `{"commits": []}`, map[string]string{"X-GitHub-Event": "push", "X-GitHub-Delivery": "m-1"})

	w := env.do(t, http.MethodGet, "/v1/info", "", nil)
	var info api.InfoResponse
	if err := json.Unmarshal(w.Body.Bytes(), &info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if info.Version != "test" || info.StoreDriver != "sqlite" || info.SchemaVersion != 2 {
		t.Fatalf("unexpected info %+v", info)
	}
	if info.Projects != 1 || info.Nodes != 3 || info.Edges != 1 || info.Relations != 1 || info.Deliveries != 1 {
		t.Fatalf("unexpected counts %+v", info)
	}

	w = env.do(t, http.MethodGet, "/metrics", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("metrics: %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `taskmatch_webhook_deliveries_total{result="accepted"} 1`) {
		t.Fatalf("expected delivery counter in metrics output")
	}
}
