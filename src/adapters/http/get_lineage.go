package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"lineageconsolidator/src/domain"
	"lineageconsolidator/src/repositories"
)

func (s *Server) GetLineage(w http.ResponseWriter, r *http.Request) {
	nodeID := r.PathValue("nodeId")
	if nodeID == "" {
		http.Error(w, "nodeId is required", http.StatusBadRequest)
		return
	}

	direction, err := domain.ParseLineageDirection(r.URL.Query().Get("direction"))
	if err != nil {
		http.Error(w, "Invalid direction. Use upstream, downstream or both", http.StatusBadRequest)
		return
	}

	depth := repositories.DefaultLineageDepth
	if depthStr := r.URL.Query().Get("depth"); depthStr != "" {
		depth, err = strconv.Atoi(depthStr)
		if err != nil || depth <= 0 {
			http.Error(w, "Invalid depth format", http.StatusBadRequest)
			return
		}
		if depth > repositories.MaxLineageDepth {
			http.Error(w, "depth cannot be greater than "+strconv.Itoa(repositories.MaxLineageDepth), http.StatusBadRequest)
			return
		}
	}

	lineage, err := s.lineage.GetLineage(r.Context(), nodeID, direction, depth)
	if err != nil {
		if errors.Is(err, domain.ErrEntityNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}

		s.logger.Error("Failed to get lineage", "node_id", nodeID, "error", err)
		http.Error(w, domain.ErrUnavailableServer.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(s, w, http.StatusOK, MapLineageToResponse(lineage))
}

func writeJSON(s *Server, w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("Failed to write JSON response", "error", err)
	}
}
