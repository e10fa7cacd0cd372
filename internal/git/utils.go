package git

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/gitsight/go-vcsurl"
	"github.com/go-git/go-git/v5/plumbing"
)

// determineBranch returns the appropriate branch reference.
func determineBranch(branch, defaultBranch string) plumbing.ReferenceName {
	if branch == "" {
		branch = defaultBranch
	}
	ref := plumbing.ReferenceName(branch)
	if !ref.IsBranch() && !ref.IsRemote() && !ref.IsTag() && !ref.IsNote() {
		return plumbing.NewBranchReferenceName(branch)
	}
	return ref
}

// Repository identifies a hosted repository.
type Repository struct {
	Host     string
	Owner    string
	Name     string
	CloneURL string
}

// FullName returns "owner/name".
func (r Repository) FullName() string {
	return r.Owner + "/" + r.Name
}

// ParseRepository accepts "owner/name" (hosted on defaultHost) or any clone
// or web URL understood by vcsurl.
func ParseRepository(ref, defaultHost string) (Repository, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return Repository{}, fmt.Errorf("repository is empty")
	}
	if defaultHost == "" {
		defaultHost = "github.com"
	}

	if !strings.Contains(ref, "://") && !strings.Contains(ref, "@") {
		parts := strings.Split(strings.TrimSuffix(ref, ".git"), "/")
		if len(parts) == 2 && parts[0] != "" && parts[1] != "" {
			return Repository{
				Host:     defaultHost,
				Owner:    parts[0],
				Name:     parts[1],
				CloneURL: fmt.Sprintf("https://%s/%s/%s.git", defaultHost, parts[0], parts[1]),
			}, nil
		}
	}

	info, err := vcsurl.Parse(ref)
	if err != nil {
		return Repository{}, fmt.Errorf("failed to parse repository %q: %w", ref, err)
	}
	cloneURL := ref
	if strings.HasPrefix(ref, "http") && !strings.HasSuffix(ref, ".git") {
		cloneURL = fmt.Sprintf("https://%s/%s.git", info.Host, info.FullName)
	}
	return Repository{
		Host:     string(info.Host),
		Owner:    info.Username,
		Name:     info.Name,
		CloneURL: cloneURL,
	}, nil
}

// RedactURL hides the user info of a URL so it can be logged.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	return u.Redacted()
}
