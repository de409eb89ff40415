package github

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/cli/go-gh/v2/pkg/repository"
)

// Repository identifies a GitHub repository.
type Repository struct {
	Host  string
	Owner string
	Name  string
}

// FullName returns the repository in "owner/repo" format.
func (r Repository) FullName() string {
	return r.Owner + "/" + r.Name
}

// ParseRepository parses "owner/repo" or "host/owner/repo".
func ParseRepository(fullName string) (Repository, error) {
	if strings.Count(fullName, "/") < 1 {
		return Repository{}, fmt.Errorf("invalid repository format: %q (expected owner/repo)", fullName)
	}

	repo, err := repository.Parse(fullName)
	if err != nil {
		return Repository{}, fmt.Errorf("invalid repository format: %q: %w", fullName, err)
	}

	return Repository{Host: repo.Host, Owner: repo.Owner, Name: repo.Name}, nil
}

// RepositoryDetector detects the current GitHub repository.
type RepositoryDetector interface {
	Current() (Repository, error)
}

type defaultRepositoryDetector struct{}

func (d defaultRepositoryDetector) Current() (Repository, error) {
	repo, err := repository.Current()
	if err != nil {
		return Repository{}, err
	}

	return Repository{Host: repo.Host, Owner: repo.Owner, Name: repo.Name}, nil
}

// DefaultDetector resolves the repository from GH_REPO or the git remotes of
// the working directory.
var DefaultDetector RepositoryDetector = defaultRepositoryDetector{}

// DetectRepo returns the current repository in "owner/repo" format.
func DetectRepo(det RepositoryDetector) (string, error) {
	repo, err := det.Current()
	if err != nil {
		return "", fmt.Errorf("failed to detect repository: %w", err)
	}

	return repo.FullName(), nil
}

// HostFromServerURL extracts the API host from a server URL such as
// GITHUB_SERVER_URL. An empty or unparsable URL yields "github.com".
func HostFromServerURL(serverURL string) string {
	if serverURL == "" {
		return "github.com"
	}

	u, err := url.Parse(serverURL)
	if err != nil || u.Host == "" {
		return "github.com"
	}

	return u.Host
}
