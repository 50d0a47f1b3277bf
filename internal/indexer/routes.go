package indexer

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"codemind/internal/jobs"
)

type indexRequest struct {
	RepoURL   string `json:"repo_url"`
	Branch    string `json:"branch"`
	Namespace string `json:"namespace,omitempty"`
}

type indexResponse struct {
	Status  string `json:"status"`
	IndexID string `json:"index_id"`
	Message string `json:"message"`
}

// RegisterRoutes mounts the indexing trigger on the given router.
func RegisterRoutes(r chi.Router, tracker *jobs.Tracker, runner *Runner) {
	r.Post("/api/index", handleIndex(tracker, runner))
}

func handleIndex(tracker *jobs.Tracker, runner *Runner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req indexRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if req.RepoURL == "" {
			http.Error(w, "repo_url is required", http.StatusBadRequest)
			return
		}
		if req.Branch == "" {
			req.Branch = "main"
		}

		indexID := uuid.New().String()
		if err := tracker.CreateJob(r.Context(), indexID, req.RepoURL, req.Branch, req.Namespace); err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, jobs.ErrJobExists) {
				status = http.StatusConflict
			}
			http.Error(w, err.Error(), status)
			return
		}

		// The request returns as soon as the job record exists; the actual
		// work runs in the background and is observed by polling status.
		runner.Submit(indexID, req.RepoURL, req.Branch)

		writeJSON(w, http.StatusAccepted, indexResponse{
			Status:  "indexing_started",
			IndexID: indexID,
			Message: "The codebase is being indexed in the background.",
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
