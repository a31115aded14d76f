package ghostflow

import (
	"os"

	"gitlab.com/tozd/go/errors"

	"github.com/ghostflow/ghostflow/internal/gitdriver"
	"github.com/ghostflow/ghostflow/internal/host"
	"github.com/ghostflow/ghostflow/internal/host/githubhost"
	"github.com/ghostflow/ghostflow/internal/host/gitlabhost"
)

// buildGit returns the gitdriver.Context sub-commands run git against.
func (g *Globals) buildGit() *gitdriver.Context {
	return gitdriver.New(g.GitDir)
}

// buildService constructs the host.Service to talk to, GitLab or GitHub
// depending on the Globals, following the teacher's single-client-per-run
// construction in cmd/gitlab-config/main.go.
func (g *Globals) buildService() (host.Service, errors.E) {
	if g.GitHub {
		return g.buildGitHubService()
	}
	svc, errE := gitlabhost.New(g.GitLabToken, g.GitLabBaseURL, g.Remote)
	if errE != nil {
		return nil, errE
	}
	return svc, nil
}

func (g *Globals) buildGitHubService() (host.Service, errors.E) {
	pem, err := os.ReadFile(g.GitHubPrivateKeyPath)
	if err != nil {
		return nil, errors.Wrapf(err, `cannot read GitHub App private key from "%s"`, g.GitHubPrivateKeyPath)
	}
	auth, errE := githubhost.NewAppAuth(g.GitHubAppID, pem)
	if errE != nil {
		return nil, errE
	}
	cache := githubhost.NewTokenCache(auth.Fetcher())
	return githubhost.New(auth, cache, g.GitHubInstallationID, g.Remote), nil
}
