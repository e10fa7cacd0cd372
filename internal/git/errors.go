package git

import "errors"

var (
	ErrAccessDenied       = errors.New("access to the repository was denied")
	ErrRepositoryNotFound = errors.New("repository not found")
)
