package git

import (
	"regexp"
	"strings"

	"github.com/Cloudsky01/relstage/internal/apperr"
)

var (
	repoPattern   = regexp.MustCompile(`^[a-zA-Z0-9_.-]+/[a-zA-Z0-9_.-]+$`)
	commitPattern = regexp.MustCompile(`^[0-9a-f]{7,64}$`)
)

func isValidRepoFormat(repo string) bool {
	return repoPattern.MatchString(repo)
}

// ValidateRepositoryFormat validates that a repository string is in owner/repo format
func ValidateRepositoryFormat(repo string) error {
	if !isValidRepoFormat(repo) {
		return apperr.Configuration("invalid repository format: %q - expected format: owner/repo", repo)
	}
	return nil
}

// ValidateBranchName rejects names git would refuse as a ref component
func ValidateBranchName(branch string) error {
	if branch == "" ||
		strings.HasPrefix(branch, "-") ||
		strings.HasPrefix(branch, "/") ||
		strings.HasSuffix(branch, "/") ||
		strings.HasSuffix(branch, ".lock") ||
		strings.Contains(branch, "..") ||
		strings.ContainsAny(branch, " ~^:?*[\\") {
		return apperr.Configuration("invalid branch name: %q", branch)
	}
	return nil
}

// ValidateCommit checks for a lowercase hex object id
func ValidateCommit(commit string) error {
	if !commitPattern.MatchString(commit) {
		return apperr.Configuration("invalid commit %q - expected a hex object id", commit)
	}
	return nil
}
