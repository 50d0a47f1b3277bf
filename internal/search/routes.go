package search

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type searchRequest struct {
	Query  string `json:"query"`
	Repo   string `json:"repo,omitempty"`
	Branch string `json:"branch,omitempty"`
}

type searchResponse struct {
	Results []Result `json:"results"`
}

// RegisterRoutes mounts the search endpoint on the given router.
func RegisterRoutes(r chi.Router, svc *Service) {
	r.Post("/api/search", handleSearch(svc))
}

func handleSearch(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req searchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		// Malformed requests are rejected before any backend call.
		if req.Query == "" {
			http.Error(w, "query is required", http.StatusBadRequest)
			return
		}

		results := svc.Search(r.Context(), req.Query, req.Repo, req.Branch)
		writeJSON(w, http.StatusOK, searchResponse{Results: results})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
