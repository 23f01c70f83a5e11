package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"lineageconsolidator/src/domain"
	"lineageconsolidator/src/domain/entities"
)

func (s *Server) IngestLineageEvent(w http.ResponseWriter, r *http.Request) {
	var event entities.LineageEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if len(event.Contexts) == 0 {
		http.Error(w, "contexts is required and cannot be empty", http.StatusBadRequest)
		return
	}

	report, err := s.ingester.Ingest(r.Context(), event)
	if err != nil {
		if errors.Is(err, domain.ErrStoreTransactionFailure) {
			s.logger.Error("Failed to ingest lineage event", "event_id", event.EventID, "error", err)
			http.Error(w, domain.ErrUnavailableServer.Error(), http.StatusServiceUnavailable)
			return
		}

		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(s, w, http.StatusAccepted, IngestResponseDTO{EventID: event.EventID, Report: report})
}
