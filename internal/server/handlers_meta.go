package server

import (
	"net/http"

	"taskmatch/internal/api"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.store.StoreInfo(r.Context())
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	resp := api.InfoResponse{
		Version:        s.opts.Version,
		StoreDriver:    s.opts.StoreDriver,
		ClassifierMode: s.opts.ClassifierMode,
		SchemaVersion:  info.SchemaVersion,
		Projects:       info.Projects,
		Nodes:          info.Nodes,
		Edges:          info.Edges,
		Relations:      info.Relations,
		Deliveries:     info.Deliveries,
		DBPath:         s.opts.DBPath,
	}

	s.writeJSON(w, http.StatusOK, resp)
}
