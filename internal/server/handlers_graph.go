package server

import (
	"fmt"
	"net/http"

	"taskmatch/internal/api"
	"taskmatch/internal/graph"
	"taskmatch/internal/models"
	"taskmatch/internal/store"
)

func (s *Server) handleGetGraph(w http.ResponseWriter, r *http.Request) {
	project, ok := s.projectQueryOrBadRequest(w, r)
	if !ok {
		return
	}
	if s.snapshots == nil {
		s.writeErrorReq(w, r, http.StatusInternalServerError, internalError(fmt.Errorf("no graph store configured")))
		return
	}

	snap, err := s.snapshots.FetchSnapshot(r.Context(), project)
	if err != nil {
		if graph.IsConfigurationError(err) {
			s.writeServiceError(w, r, configurationError(err))
			return
		}
		s.writeStoreError(w, r, err)
		return
	}
	if snap == nil {
		snap = graph.Empty(project)
	}

	resp := api.GraphResponse{
		Project:   project,
		Nodes:     snap.Nodes(),
		Edges:     snap.Edges(),
		Relations: snap.Relations(),
	}
	if resp.Nodes == nil {
		resp.Nodes = []models.TaskNode{}
	}
	if resp.Edges == nil {
		resp.Edges = []models.Edge{}
	}
	if resp.Relations == nil {
		resp.Relations = []models.Relation{}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleImportGraph(w http.ResponseWriter, r *http.Request) {
	s.withLimiter(w, r, s.importLimiter, "import", func() {
		var fixture store.Fixture
		if !s.decodeJSONReq(w, r, &fixture) {
			return
		}
		project, err := requireProjectID(fixture.Project)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		fixture.Project = project
		noteRequest(r.Context(), "project", project)
		if _, _, _, err := fixture.Graph(); err != nil {
			s.writeServiceError(w, r, badRequestCode(err, ErrCodeInvalidFixture))
			return
		}

		summary, err := s.store.ImportGraph(r.Context(), &fixture)
		if err != nil {
			if graph.IsConfigurationError(err) {
				s.writeServiceError(w, r, configurationError(err))
				return
			}
			s.writeStoreError(w, r, err)
			return
		}

		s.log().Info("graph imported",
			"project", summary.Project,
			"nodes", summary.Nodes,
			"edges", summary.Edges,
			"relations", summary.Relations)
		s.writeJSON(w, http.StatusOK, api.GraphImportResponse{
			Project:   summary.Project,
			Nodes:     summary.Nodes,
			Edges:     summary.Edges,
			Relations: summary.Relations,
		})
	})
}

func (s *Server) handleDeleteGraph(w http.ResponseWriter, r *http.Request) {
	project, ok := s.projectQueryOrBadRequest(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteProject(r.Context(), project); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
