package git

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
)

// RepositoryMetadata describes the repository a local folder belongs to.
type RepositoryMetadata struct {
	BranchName         string
	CommitHash         string
	RepositoryFullName string
	RepoRootFolder     string
}

// CollectRepositoryMetadata collects branch, commit, origin and root folder of
// the repository containing sourceFolder. Folders outside a repository yield
// metadata holding only the root folder and an error.
func CollectRepositoryMetadata(sourceFolder string) (*RepositoryMetadata, error) {
	if sourceFolder == "" {
		return &RepositoryMetadata{}, fmt.Errorf("source folder is not set")
	}
	if absSource, err := filepath.Abs(sourceFolder); err == nil {
		sourceFolder = absSource
	}

	md := &RepositoryMetadata{RepoRootFolder: filepath.Clean(sourceFolder)}

	repoRootFolder, err := findGitRepositoryPath(sourceFolder)
	if err != nil {
		return md, err
	}
	md.RepoRootFolder = filepath.Clean(repoRootFolder)

	repo, err := git.PlainOpen(repoRootFolder)
	if err != nil {
		return md, fmt.Errorf("failed to open repository: %w", err)
	}

	if head, err := repo.Head(); err == nil {
		if head.Name().IsBranch() {
			md.BranchName = head.Name().Short()
		}
		md.CommitHash = head.Hash().String()
	}

	if remote, err := repo.Remote("origin"); err == nil {
		if cfg := remote.Config(); cfg != nil && len(cfg.URLs) > 0 {
			md.RepositoryFullName = strings.TrimSuffix(RedactURL(cfg.URLs[0]), ".git")
		}
	}
	return md, nil
}

// findGitRepositoryPath walks up from sourceFolder to the first git repository.
func findGitRepositoryPath(sourceFolder string) (string, error) {
	if sourceFolder == "" {
		return "", fmt.Errorf("source folder is not set")
	}

	for {
		if _, err := git.PlainOpen(sourceFolder); err == nil {
			return sourceFolder, nil
		}

		parent := filepath.Dir(sourceFolder)
		if parent == sourceFolder {
			break
		}
		sourceFolder = parent
	}

	return "", fmt.Errorf("source folder is not a git repository")
}
