package http

import (
	"errors"
	"net/http"

	"lineageconsolidator/src/domain"
)

func (s *Server) RunSweep(w http.ResponseWriter, r *http.Request) {
	report, err := s.sweeper.RunSweep(r.Context())
	if err != nil {
		if errors.Is(err, domain.ErrSweepInProgress) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}

		s.logger.Error("Failed to run consolidation sweep", "error", err)
		http.Error(w, domain.ErrUnavailableServer.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(s, w, http.StatusOK, SweepResponseDTO{Report: report})
}
