package git

import (
	"context"
	"errors"
	"fmt"

	"github.com/gitsight/go-vcsurl"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/transport"

	log "github.com/scan-io-git/logicscan/pkg/shared/logger"
)

// CloneRequest describes one checkout.
type CloneRequest struct {
	CloneURL     string
	Branch       string
	TargetFolder string
}

// Checkout is a working tree produced by Clone.
type Checkout struct {
	Path   string
	Branch string
	Commit string
}

// Clone fetches a shallow, single-branch copy of the repository into the
// target folder, which must not contain a repository yet. An empty branch
// clones the remote HEAD.
func (c *Client) Clone(ctx context.Context, req CloneRequest) (*Checkout, error) {
	if req.TargetFolder == "" {
		return nil, fmt.Errorf("target folder is required")
	}

	name := req.CloneURL
	if info, err := vcsurl.Parse(req.CloneURL); err == nil {
		name = info.FullName
	} else {
		c.logger.Debug("clone URL is not a known VCS URL", "cloneURL", RedactURL(req.CloneURL), "error", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	opts := &git.CloneOptions{
		Auth:            c.auth,
		URL:             req.CloneURL,
		SingleBranch:    true,
		Depth:           c.depth,
		Progress:        log.GetLoggerOutput(c.logger),
		InsecureSkipTLS: c.insecureTLS,
	}
	if req.Branch != "" {
		opts.ReferenceName = determineBranch(req.Branch, "")
	}

	c.logger.Debug("starting repository fetch", "repository", name, "branch", req.Branch, "targetFolder", req.TargetFolder, "depth", c.depth)
	repo, err := git.PlainCloneContext(ctx, req.TargetFolder, false, opts)
	if err != nil {
		c.logger.Error("error occurred during clone", "repository", name, "error", err)
		if errors.Is(err, transport.ErrAuthenticationRequired) || errors.Is(err, transport.ErrAuthorizationFailed) {
			return nil, fmt.Errorf("%w: %v", ErrAccessDenied, err)
		}
		if errors.Is(err, transport.ErrRepositoryNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrRepositoryNotFound, name)
		}
		return nil, fmt.Errorf("error occurred during clone: %w", err)
	}

	checkout := &Checkout{Path: req.TargetFolder}
	if head, err := repo.Head(); err == nil {
		checkout.Commit = head.Hash().String()
		if head.Name().IsBranch() {
			checkout.Branch = head.Name().Short()
		}
	}

	c.logger.Info("repository cloned", "repository", name, "branch", checkout.Branch, "commit", checkout.Commit)
	return checkout, nil
}
