package scan

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/scan-io-git/logicscan/internal/git"
	"github.com/scan-io-git/logicscan/internal/github"
	"github.com/scan-io-git/logicscan/internal/store"
	"github.com/scan-io-git/logicscan/pkg/shared/config"
)

// CredentialProvider hands out a short-lived access token for the
// repositories of an organization. An empty token means anonymous access.
type CredentialProvider interface {
	AccessToken(ctx context.Context, org *store.Organization) (string, error)
}

// StaticCredentials returns the same token for every organization.
type StaticCredentials struct {
	Token string
}

// NewStaticCredentials reads LOGICSCAN_GIT_TOKEN, then git_client.token.
func NewStaticCredentials(cfg *config.Config) StaticCredentials {
	return StaticCredentials{Token: config.EnvOr("LOGICSCAN_GIT_TOKEN", cfg.GitClient.Token)}
}

// AccessToken implements CredentialProvider.
func (c StaticCredentials) AccessToken(context.Context, *store.Organization) (string, error) {
	return c.Token, nil
}

// CheckoutRequest asks a RepositorySource for a working tree.
type CheckoutRequest struct {
	Repository   string
	Branch       string
	Token        string
	TargetFolder string
}

// RepositorySource produces a checkout of a repository. The returned path is
// either inside TargetFolder or an existing local folder the caller must not
// remove.
type RepositorySource interface {
	Checkout(ctx context.Context, req CheckoutRequest) (*git.Checkout, error)
}

// GitSource clones hosted repositories and scans local folders in place.
type GitSource struct {
	cfg    *config.Config
	logger hclog.Logger
}

// NewGitSource creates a git backed RepositorySource.
func NewGitSource(cfg *config.Config, logger hclog.Logger) *GitSource {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &GitSource{cfg: cfg, logger: logger}
}

// Checkout implements RepositorySource.
func (s *GitSource) Checkout(ctx context.Context, req CheckoutRequest) (*git.Checkout, error) {
	if info, err := os.Stat(req.Repository); err == nil && info.IsDir() {
		return s.local(req.Repository)
	}

	repo, err := git.ParseRepository(req.Repository, s.cfg.GitClient.Host)
	if err != nil {
		return nil, err
	}

	branch := req.Branch
	if branch == "" && req.Token != "" && s.isGitHub(repo.Host) {
		gh, err := github.New(s.cfg.GitClient.GitHubAPIURL, req.Token, s.logger.Named("github"))
		if err != nil {
			return nil, err
		}
		branch, err = gh.DefaultBranch(ctx, repo.Owner, repo.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve default branch: %w", err)
		}
	}

	client, err := git.New(s.logger.Named("git"), s.cfg, git.Credentials{Token: req.Token})
	if err != nil {
		return nil, err
	}
	return client.Clone(ctx, git.CloneRequest{
		CloneURL:     repo.CloneURL,
		Branch:       branch,
		TargetFolder: req.TargetFolder,
	})
}

func (s *GitSource) isGitHub(host string) bool {
	return s.cfg.GitClient.GitHubAPIURL != "" || strings.EqualFold(host, "github.com")
}

func (s *GitSource) local(path string) (*git.Checkout, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %q: %w", path, err)
	}
	md, err := git.CollectRepositoryMetadata(abs)
	if err != nil {
		s.logger.Debug("local folder is not a git repository", "path", abs, "error", err)
	}
	return &git.Checkout{Path: abs, Branch: md.BranchName, Commit: md.CommitHash}, nil
}
