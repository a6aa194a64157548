// Package gitrev looks up the commit a directory is checked out at.
package gitrev

import (
	"github.com/go-git/go-git/v5"
)

// Lookup returns the HEAD commit of the repository containing dir, searching
// parent directories for .git. It returns "" when dir is not inside a
// repository or HEAD cannot be resolved; callers record an empty commit
// rather than failing.
func Lookup(dir string) string {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return ""
	}
	head, err := repo.Head()
	if err != nil {
		return ""
	}
	return head.Hash().String()
}
