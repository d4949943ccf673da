package server

import (
	"context"
	"net/http"
	"time"

	"github.com/google/go-github/v74/github"

	"taskmatch/internal/models"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusRecorder) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(p)
}

func (w *statusRecorder) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

func (w *statusRecorder) Unwrap() http.ResponseWriter { return w.ResponseWriter }

type requestNotesKey struct{}

// requestNotes collects fields a handler wants on the access log line.
type requestNotes struct {
	attrs []any
}

// noteRequest adds key/value pairs to the access log line of the request
// carried by ctx. It is a no-op outside withRequestLogging.
func noteRequest(ctx context.Context, attrs ...any) {
	if notes, ok := ctx.Value(requestNotesKey{}).(*requestNotes); ok {
		notes.attrs = append(notes.attrs, attrs...)
	}
}

// noteOutcome records which project a classification ran against and how
// many of its results matched a task.
func noteOutcome(ctx context.Context, project string, results []models.ClassificationResult) {
	matched := 0
	for _, result := range results {
		if result.WasTask {
			matched++
		}
	}
	noteRequest(ctx, "project", project, "results", len(results), "matched", matched)
}

func (s *Server) withRequestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health", "/metrics":
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		notes := &requestNotes{}
		rw := &statusRecorder{ResponseWriter: w}
		req := r.WithContext(context.WithValue(r.Context(), requestNotesKey{}, notes))
		next.ServeHTTP(rw, req)

		fields := []any{
			"method", r.Method,
			"route", routeName(req),
			"status", rw.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if delivery := r.Header.Get(github.DeliveryIDHeader); delivery != "" {
			fields = append(fields, "delivery_id", delivery)
		}
		fields = append(fields, notes.attrs...)

		switch status := rw.Status(); {
		case status >= 500:
			s.log().Error("request complete", fields...)
		case status == http.StatusUnauthorized:
			s.log().Warn("request complete", append(fields, "remote_addr", r.RemoteAddr)...)
		default:
			s.log().Debug("request complete", fields...)
		}
	})
}

// routeName reports the matched mux pattern, or the raw path when none matched.
func routeName(r *http.Request) string {
	if r.Pattern != "" {
		return r.Pattern
	}
	return r.URL.Path
}
