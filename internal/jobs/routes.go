package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

const defaultActivityLimit = 50

// EmbeddingCounter reports the number of stored chunk embeddings, used by
// the metrics endpoint. The vector backend satisfies this.
type EmbeddingCounter interface {
	Count(ctx context.Context) (int, error)
}

// RegisterRoutes mounts the job-observability endpoints on the given router.
func RegisterRoutes(r chi.Router, tracker *Tracker, embeddings EmbeddingCounter, dimensions int) {
	r.Get("/api/status/{indexID}", handleStatus(tracker))
	r.Get("/api/activity", handleActivity(tracker))
	r.Get("/api/live", handleLive(tracker))
	r.Get("/api/repos", handleRepos(tracker))
	r.Get("/api/metrics", handleMetrics(tracker, embeddings, dimensions))
}

type statusResponse struct {
	IndexID   string `json:"index_id"`
	Status    Status `json:"status"`
	Error     string `json:"error,omitempty"`
	CreatedAt string `json:"created_at"`
	RepoURL   string `json:"repo_url"`
	Branch    string `json:"branch"`
}

func handleStatus(tracker *Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		indexID := chi.URLParam(r, "indexID")

		job, err := tracker.GetJob(r.Context(), indexID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if job == nil {
			http.Error(w, "index ID not found", http.StatusNotFound)
			return
		}

		writeJSON(w, http.StatusOK, statusResponse{
			IndexID:   job.IndexID,
			Status:    job.Status,
			Error:     job.Error,
			CreatedAt: job.CreatedAt.Format(time.RFC3339Nano),
			RepoURL:   job.RepoURL,
			Branch:    job.Branch,
		})
	}
}

func handleActivity(tracker *Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultActivityLimit
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				limit = n
			}
		}

		activity, err := tracker.ListActivity(r.Context(), limit)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if activity == nil {
			activity = []Job{}
		}
		writeJSON(w, http.StatusOK, activity)
	}
}

func handleLive(tracker *Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		live, err := tracker.ListLive(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if live == nil {
			live = []Job{}
		}
		writeJSON(w, http.StatusOK, live)
	}
}

func handleRepos(tracker *Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		repos, err := tracker.ListIndexedRepos(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if repos == nil {
			repos = []RepoSummary{}
		}
		writeJSON(w, http.StatusOK, repos)
	}
}

type metricsResponse struct {
	IndexedRepos    int    `json:"indexed_repos"`
	SuccessRuns     int    `json:"success_runs"`
	TotalEmbeddings int    `json:"total_embeddings"`
	SemanticDepth   string `json:"semantic_depth"`
}

func handleMetrics(tracker *Tracker, embeddings EmbeddingCounter, dimensions int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		counts, err := tracker.GetCounts(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		// Embedding count is best effort; a cold backend shouldn't
		// break the metrics endpoint.
		total, err := embeddings.Count(r.Context())
		if err != nil {
			total = 0
		}

		writeJSON(w, http.StatusOK, metricsResponse{
			IndexedRepos:    counts.DistinctCompletedRepos,
			SuccessRuns:     counts.TotalCompletedRuns,
			TotalEmbeddings: total,
			SemanticDepth:   fmt.Sprintf("%d-dim", dimensions),
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
