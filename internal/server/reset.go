package server

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"path/filepath"
)

type resetResponse struct {
	Status  string            `json:"status"`
	Details map[string]string `json:"details"`
}

// handleReset clears all job records, stored embeddings, and repository
// checkouts. Each target is attempted independently: a failure wiping one
// backend must not prevent attempting the others, so reset always completes.
func (s *Server) handleReset() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		details := make(map[string]string)

		if err := s.tracker.ResetAll(ctx); err != nil {
			log.Printf("reset: clearing job records: %v", err)
			details["metadata"] = err.Error()
		} else {
			details["metadata"] = "cleared"
		}

		if err := s.backend.Reset(ctx); err != nil {
			log.Printf("reset: clearing vector backend: %v", err)
			details["vectors"] = err.Error()
		} else {
			details["vectors"] = "cleared"
		}

		details["checkouts"] = "cleared"
		if err := clearDir(s.runner.CheckoutRoot()); err != nil {
			log.Printf("reset: clearing checkouts: %v", err)
			details["checkouts"] = err.Error()
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(resetResponse{Status: "reset_complete", Details: details})
	}
}

// clearDir removes the contents of dir but keeps the directory itself.
func clearDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}
