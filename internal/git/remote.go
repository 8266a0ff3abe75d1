package git

import (
	"context"
	"strings"

	"github.com/Cloudsky01/relstage/internal/apperr"
	"github.com/Cloudsky01/relstage/pkg/models"
)

// Runner spawns git. executor.Local satisfies it.
type Runner interface {
	Run(ctx context.Context, dir, name string, args ...string) (string, error)
}

// RemoteHeads resolves branch heads with git ls-remote, so no local clone
// is needed.
type RemoteHeads struct {
	Runner Runner
	URL    string
	Dir    string
}

func (r *RemoteHeads) HeadCommit(ctx context.Context, branch string) (models.CommitRef, error) {
	if err := ValidateBranchName(branch); err != nil {
		return "", err
	}
	ref := "refs/heads/" + branch
	out, err := r.Runner.Run(ctx, r.Dir, "git", "ls-remote", r.URL, ref)
	if err != nil {
		return "", err
	}
	sha, ok := parseLsRemote(out, ref)
	if !ok {
		return "", apperr.NotFound("branch %s not found on %s", branch, r.URL)
	}
	return models.CommitRef(sha), nil
}

// parseLsRemote picks the object id for ref out of "<sha>\t<ref>" lines
func parseLsRemote(out, ref string) (string, bool) {
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) != 2 || fields[1] != ref {
			continue
		}
		if ValidateCommit(fields[0]) != nil {
			continue
		}
		return fields[0], true
	}
	return "", false
}
