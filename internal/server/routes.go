package server

import (
	"net/http"
)

const webhookPath = "/v1/webhooks/github"

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Health check and info.
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /v1/info", s.handleInfo)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	// Classification.
	mux.HandleFunc("POST /v1/classify", s.handleClassify)
	mux.HandleFunc("POST "+webhookPath, s.handleGitHubWebhook)

	// Project graphs.
	mux.HandleFunc("GET /v1/graph", s.handleGetGraph)
	mux.HandleFunc("POST /v1/graph", s.handleImportGraph)
	mux.HandleFunc("DELETE /v1/graph", s.handleDeleteGraph)

	return mux
}
