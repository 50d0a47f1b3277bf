package jobs

import (
	"context"
	"errors"
	"testing"

	"codemind/internal/db"
)

func setupTracker(t *testing.T) *Tracker {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewTracker(NewSQLiteStore(database))
}

func mustCreate(t *testing.T, tr *Tracker, indexID, repo, branch, namespace string) {
	t.Helper()
	if err := tr.CreateJob(context.Background(), indexID, repo, branch, namespace); err != nil {
		t.Fatalf("CreateJob(%s): %v", indexID, err)
	}
}

// advance walks a job through the pipeline to the given status. Failure is
// recorded from the cloning stage.
func advance(t *testing.T, tr *Tracker, indexID string, to Status) {
	t.Helper()
	ctx := context.Background()

	if to == StatusFailed {
		if err := tr.UpdateStatus(ctx, indexID, StatusCloning, ""); err != nil {
			t.Fatalf("UpdateStatus(%s, cloning): %v", indexID, err)
		}
		if err := tr.UpdateStatus(ctx, indexID, StatusFailed, "boom"); err != nil {
			t.Fatalf("UpdateStatus(%s, failed): %v", indexID, err)
		}
		return
	}

	for _, s := range []Status{StatusCloning, StatusAnalyzingAST, StatusVectorizing, StatusCompleted} {
		if err := tr.UpdateStatus(ctx, indexID, s, ""); err != nil {
			t.Fatalf("UpdateStatus(%s, %s): %v", indexID, s, err)
		}
		if s == to {
			return
		}
	}
}

func TestTrackerCreateAndGet(t *testing.T) {
	tr := setupTracker(t)
	ctx := context.Background()

	mustCreate(t, tr, "job-1", "https://example.com/acme/widgets", "main", "team-a")

	job, err := tr.GetJob(ctx, "job-1")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if job == nil {
		t.Fatal("GetJob returned nil for existing job")
	}
	if job.Status != StatusStarted {
		t.Errorf("new job status = %s, want %s", job.Status, StatusStarted)
	}
	if job.Namespace != "team-a" {
		t.Errorf("namespace = %s, want team-a", job.Namespace)
	}
	if job.RepoURL != "https://example.com/acme/widgets" || job.Branch != "main" {
		t.Errorf("unexpected repo/branch: %s %s", job.RepoURL, job.Branch)
	}
	if job.CreatedAt.IsZero() {
		t.Error("CreatedAt is zero")
	}
}

func TestTrackerDefaultNamespace(t *testing.T) {
	tr := setupTracker(t)

	mustCreate(t, tr, "job-1", "repo", "main", "")

	job, err := tr.GetJob(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if job.Namespace != DefaultNamespace {
		t.Errorf("namespace = %s, want %s", job.Namespace, DefaultNamespace)
	}
}

func TestTrackerGetJobMissing(t *testing.T) {
	tr := setupTracker(t)

	job, err := tr.GetJob(context.Background(), "nope")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if job != nil {
		t.Errorf("GetJob for missing id = %+v, want nil", job)
	}
}

func TestTrackerDuplicateCreate(t *testing.T) {
	tr := setupTracker(t)

	mustCreate(t, tr, "job-1", "repo", "main", "")

	err := tr.CreateJob(context.Background(), "job-1", "other", "dev", "")
	if !errors.Is(err, ErrJobExists) {
		t.Errorf("duplicate CreateJob error = %v, want ErrJobExists", err)
	}
}

func TestTrackerHappyPath(t *testing.T) {
	tr := setupTracker(t)
	ctx := context.Background()

	mustCreate(t, tr, "job-1", "repo", "main", "")
	advance(t, tr, "job-1", StatusCompleted)

	job, err := tr.GetJob(ctx, "job-1")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if job.Status != StatusCompleted {
		t.Errorf("status = %s, want completed", job.Status)
	}
	if job.Error != "" {
		t.Errorf("error = %q, want empty", job.Error)
	}
}

func TestTrackerFailureRecordsError(t *testing.T) {
	tr := setupTracker(t)
	ctx := context.Background()

	mustCreate(t, tr, "job-1", "repo", "main", "")
	if err := tr.UpdateStatus(ctx, "job-1", StatusCloning, ""); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if err := tr.UpdateStatus(ctx, "job-1", StatusFailed, "clone failed: exit status 128"); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}

	job, _ := tr.GetJob(ctx, "job-1")
	if job.Status != StatusFailed {
		t.Errorf("status = %s, want failed", job.Status)
	}
	if job.Error != "clone failed: exit status 128" {
		t.Errorf("error = %q, want clone failure message", job.Error)
	}
}

func TestTrackerRejectsSkippedStage(t *testing.T) {
	tr := setupTracker(t)
	ctx := context.Background()

	mustCreate(t, tr, "job-1", "repo", "main", "")

	err := tr.UpdateStatus(ctx, "job-1", StatusVectorizing, "")
	if !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("skipping stages error = %v, want ErrIllegalTransition", err)
	}

	// The rejected write left the record untouched.
	job, _ := tr.GetJob(ctx, "job-1")
	if job.Status != StatusStarted {
		t.Errorf("status after rejected write = %s, want started", job.Status)
	}
}

func TestTrackerTerminalStatesAreFrozen(t *testing.T) {
	tr := setupTracker(t)
	ctx := context.Background()

	mustCreate(t, tr, "done", "repo", "main", "")
	advance(t, tr, "done", StatusCompleted)
	mustCreate(t, tr, "broken", "repo", "main", "")
	if err := tr.UpdateStatus(ctx, "broken", StatusCloning, ""); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if err := tr.UpdateStatus(ctx, "broken", StatusFailed, "boom"); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	cases := []struct {
		id string
		to Status
	}{
		{"done", StatusFailed},
		{"done", StatusStarted},
		{"broken", StatusCompleted},
		{"broken", StatusCloning},
	}
	for _, tc := range cases {
		err := tr.UpdateStatus(ctx, tc.id, tc.to, "")
		if !errors.Is(err, ErrIllegalTransition) {
			t.Errorf("UpdateStatus(%s, %s) error = %v, want ErrIllegalTransition", tc.id, tc.to, err)
		}
	}

	job, _ := tr.GetJob(ctx, "broken")
	if job.Status != StatusFailed || job.Error != "boom" {
		t.Errorf("terminal record changed: %+v", job)
	}
}

func TestTrackerUpdateMissingJob(t *testing.T) {
	tr := setupTracker(t)

	err := tr.UpdateStatus(context.Background(), "nope", StatusCloning, "")
	if !errors.Is(err, ErrJobNotFound) {
		t.Errorf("UpdateStatus for missing job = %v, want ErrJobNotFound", err)
	}
}

func TestTrackerRejectsUnknownStatus(t *testing.T) {
	tr := setupTracker(t)

	mustCreate(t, tr, "job-1", "repo", "main", "")

	err := tr.UpdateStatus(context.Background(), "job-1", Status("paused"), "")
	if !errors.Is(err, ErrIllegalTransition) {
		t.Errorf("unknown status error = %v, want ErrIllegalTransition", err)
	}
}

func TestTrackerListActivityOrderAndLimit(t *testing.T) {
	tr := setupTracker(t)
	ctx := context.Background()

	for _, id := range []string{"first", "second", "third"} {
		mustCreate(t, tr, id, "repo", "main", "")
	}

	activity, err := tr.ListActivity(ctx, 50)
	if err != nil {
		t.Fatalf("ListActivity: %v", err)
	}
	if len(activity) != 3 {
		t.Fatalf("got %d jobs, want 3", len(activity))
	}
	// Most recent first.
	want := []string{"third", "second", "first"}
	for i, w := range want {
		if activity[i].IndexID != w {
			t.Errorf("activity[%d] = %s, want %s", i, activity[i].IndexID, w)
		}
	}

	limited, err := tr.ListActivity(ctx, 2)
	if err != nil {
		t.Fatalf("ListActivity: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("got %d jobs with limit 2, want 2", len(limited))
	}
}

func TestTrackerListLive(t *testing.T) {
	tr := setupTracker(t)
	ctx := context.Background()

	mustCreate(t, tr, "fresh", "repo", "main", "")
	mustCreate(t, tr, "mid", "repo", "dev", "")
	advance(t, tr, "mid", StatusVectorizing)
	mustCreate(t, tr, "done", "repo", "rel", "")
	advance(t, tr, "done", StatusCompleted)
	mustCreate(t, tr, "dead", "repo", "old", "")
	advance(t, tr, "dead", StatusFailed)

	live, err := tr.ListLive(ctx)
	if err != nil {
		t.Fatalf("ListLive: %v", err)
	}
	ids := make(map[string]bool)
	for _, j := range live {
		ids[j.IndexID] = true
	}
	if len(live) != 2 || !ids["fresh"] || !ids["mid"] {
		t.Errorf("live set = %v, want {fresh, mid}", ids)
	}
}

func TestTrackerListIndexedRepos(t *testing.T) {
	tr := setupTracker(t)
	ctx := context.Background()

	// Two attempts on the same target: only the latest shows up.
	mustCreate(t, tr, "old-attempt", "repoA", "main", "")
	advance(t, tr, "old-attempt", StatusFailed)
	mustCreate(t, tr, "new-attempt", "repoA", "main", "")
	advance(t, tr, "new-attempt", StatusCompleted)

	// Same repo, different branch: its own group.
	mustCreate(t, tr, "branch-job", "repoA", "dev", "")

	repos, err := tr.ListIndexedRepos(ctx)
	if err != nil {
		t.Fatalf("ListIndexedRepos: %v", err)
	}
	if len(repos) != 2 {
		t.Fatalf("got %d repo summaries, want 2", len(repos))
	}

	byBranch := make(map[string]RepoSummary)
	for _, r := range repos {
		byBranch[r.Branch] = r
	}
	if got := byBranch["main"].Status; got != StatusCompleted {
		t.Errorf("repoA@main latest status = %s, want completed", got)
	}
	if got := byBranch["dev"].Status; got != StatusStarted {
		t.Errorf("repoA@dev latest status = %s, want started", got)
	}
}

func TestTrackerGetCounts(t *testing.T) {
	tr := setupTracker(t)
	ctx := context.Background()

	// repoA completes twice, repoB once, repoC never.
	mustCreate(t, tr, "a1", "repoA", "main", "")
	advance(t, tr, "a1", StatusCompleted)
	mustCreate(t, tr, "a2", "repoA", "main", "")
	advance(t, tr, "a2", StatusCompleted)
	mustCreate(t, tr, "b1", "repoB", "main", "")
	advance(t, tr, "b1", StatusCompleted)
	mustCreate(t, tr, "c1", "repoC", "main", "")
	advance(t, tr, "c1", StatusFailed)

	counts, err := tr.GetCounts(ctx)
	if err != nil {
		t.Fatalf("GetCounts: %v", err)
	}
	if counts.DistinctCompletedRepos != 2 {
		t.Errorf("DistinctCompletedRepos = %d, want 2", counts.DistinctCompletedRepos)
	}
	if counts.TotalCompletedRuns != 3 {
		t.Errorf("TotalCompletedRuns = %d, want 3", counts.TotalCompletedRuns)
	}
}

func TestTrackerResetAll(t *testing.T) {
	tr := setupTracker(t)
	ctx := context.Background()

	mustCreate(t, tr, "a1", "repoA", "main", "")
	advance(t, tr, "a1", StatusCompleted)
	mustCreate(t, tr, "b1", "repoB", "main", "")

	if err := tr.ResetAll(ctx); err != nil {
		t.Fatalf("ResetAll: %v", err)
	}

	counts, err := tr.GetCounts(ctx)
	if err != nil {
		t.Fatalf("GetCounts: %v", err)
	}
	if counts.DistinctCompletedRepos != 0 || counts.TotalCompletedRuns != 0 {
		t.Errorf("counts after reset = %+v, want zeros", counts)
	}

	live, err := tr.ListLive(ctx)
	if err != nil {
		t.Fatalf("ListLive: %v", err)
	}
	if len(live) != 0 {
		t.Errorf("live jobs after reset = %d, want 0", len(live))
	}

	job, err := tr.GetJob(ctx, "a1")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if job != nil {
		t.Errorf("job survived reset: %+v", job)
	}
}
