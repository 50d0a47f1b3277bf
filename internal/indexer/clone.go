package indexer

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Cloner fetches a repository checkout. Cloning is an external collaborator;
// GitCloner shells out to the git CLI.
type Cloner interface {
	Clone(ctx context.Context, repoURL, branch, dir string) error
}

// GitCloner clones with `git clone --depth 1`.
type GitCloner struct{}

func (GitCloner) Clone(ctx context.Context, repoURL, branch, dir string) error {
	// A leftover checkout from an abandoned run is replaced wholesale.
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("clearing checkout dir: %w", err)
	}

	args := []string{"clone", "--depth", "1"}
	if branch != "" {
		args = append(args, "--branch", branch)
	}
	args = append(args, repoURL, dir)

	cmd := exec.CommandContext(ctx, "git", args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("git clone %s: %v: %s", repoURL, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// RepoName derives the short repository name from its URL, e.g.
// "https://github.com/acme/widgets.git" -> "acme/widgets".
func RepoName(repoURL string) string {
	name := strings.TrimSuffix(repoURL, ".git")
	name = strings.TrimSuffix(name, "/")
	parts := strings.Split(name, "/")
	if len(parts) >= 2 {
		return parts[len(parts)-2] + "/" + parts[len(parts)-1]
	}
	return name
}
