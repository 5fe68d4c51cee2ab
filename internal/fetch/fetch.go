// Package fetch materializes remote load specs (packages, GitHub and GitLab
// repositories at a revision) into local directories. Fetched trees are
// cached on disk, keyed by forge, repository and revision, so a revision
// is downloaded at most once.
package fetch

import (
	"fmt"
	"regexp"

	"github.com/pro-utkarshM/picoplace/internal/loadspec"
)

// RemoteFetcher turns a remote LoadSpec into a local path containing the
// referenced file. Path and WorkspacePath specs are never remote and must
// fail.
type RemoteFetcher interface {
	Fetch(spec loadspec.Spec, workspaceRoot string) (string, error)
}

// Noop is a RemoteFetcher that refuses every fetch. Used in sandboxed
// contexts where network access is not available.
type Noop struct{}

func (Noop) Fetch(spec loadspec.Spec, workspaceRoot string) (string, error) {
	return "", fmt.Errorf("remote fetching is not supported in this context (spec %s)", spec.LoadString())
}

var abbreviatedSHA = regexp.MustCompile(`^[0-9a-f]{7,39}$`)

// checkRev rejects abbreviated git SHAs. Branch names, tags, and full
// 40-character SHAs are accepted; 7–39 hex characters are ambiguous across
// forges and refused.
func checkRev(rev string) error {
	if abbreviatedSHA.MatchString(rev) && len(rev) != 40 {
		return fmt.Errorf("abbreviated git SHA %q is not supported; use the full 40-character SHA or a branch/tag name", rev)
	}
	return nil
}
