package server

import (
	"net/http"

	"taskmatch/internal/api"
	"taskmatch/internal/normalize"
)

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	s.withLimiter(w, r, s.classifyLimiter, "classify", func() {
		body, ok := s.readBodyReq(w, r, classifyMaxBody)
		if !ok {
			return
		}
		env, err := normalize.ParseEnvelope(body)
		if err != nil {
			s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(err, ErrCodeInvalidEnvelope))
			return
		}

		outcome, err := s.pipeline.Classify(r.Context(), env)
		if err != nil {
			s.writeServiceError(w, r, classificationError(err))
			return
		}

		noteOutcome(r.Context(), outcome.ProjectID, outcome.Results)
		noteRequest(r.Context(), "event", outcome.Event, "batch", outcome.Batch)
		s.writeJSON(w, http.StatusOK, api.ClassifyResponse{Batch: outcome.Batch, Results: outcome.Results})
	})
}
