// Package github looks up repository metadata through the GitHub REST API.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	gogithub "github.com/google/go-github/v47/github"
	"github.com/hashicorp/go-hclog"
	"golang.org/x/oauth2"
)

// ErrRepositoryNotFound is returned when the API does not know the repository
// or the token cannot see it.
var ErrRepositoryNotFound = errors.New("repository not found")

// Client wraps the go-github client.
type Client struct {
	logger hclog.Logger
	client *gogithub.Client
}

// New creates a client for apiURL (public GitHub when empty). A non-empty
// token authenticates every request.
func New(apiURL, token string, logger hclog.Logger) (*Client, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	var httpClient *http.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		httpClient = oauth2.NewClient(context.Background(), ts)
	}
	client := gogithub.NewClient(httpClient)

	if apiURL != "" {
		if !strings.HasSuffix(apiURL, "/") {
			apiURL += "/"
		}
		base, err := url.Parse(apiURL)
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub API URL %q: %w", apiURL, err)
		}
		client.BaseURL = base
	}

	return &Client{logger: logger, client: client}, nil
}

// DefaultBranch returns the default branch of owner/name.
func (c *Client) DefaultBranch(ctx context.Context, owner, name string) (string, error) {
	repo, resp, err := c.client.Repositories.Get(ctx, owner, name)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return "", fmt.Errorf("%w: %s/%s", ErrRepositoryNotFound, owner, name)
		}
		c.logger.Error("failed to get repository", "repository", owner+"/"+name, "error", err)
		return "", fmt.Errorf("failed to get repository %s/%s: %w", owner, name, err)
	}

	branch := repo.GetDefaultBranch()
	if branch == "" {
		return "", fmt.Errorf("repository %s/%s has no default branch", owner, name)
	}
	c.logger.Debug("resolved default branch", "repository", repo.GetFullName(), "branch", branch)
	return branch, nil
}
