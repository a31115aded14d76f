// Package ghostflow wires the kong command structs for the `ghostflow`
// CLI (spec.md §6). Grounded on tozd-gitlab-config's commands.go: a
// Globals struct of shared flags, a Commands struct embedding one
// sub-command struct per verb tagged `cmd:""`, dispatched through
// ctx.Run(&commands.Globals).
package ghostflow

import "github.com/alecthomas/kong"

// Globals are the flags every sub-command needs: which project and git
// mirror to operate on, and how to reach the hosting service.
type Globals struct {
	Project string `help:"Hosting-service project path (e.g. \"group/project\")." required:""`
	GitDir  string `help:"Path to the bare git mirror." required:"" type:"path"`
	Remote  string `help:"Git remote name used to push/fetch against the hosting service." default:"origin"`

	GitLabToken   string `help:"GitLab personal/project access token." env:"GHOSTFLOW_GITLAB_TOKEN"`
	GitLabBaseURL string `help:"GitLab API base URL." default:"https://gitlab.com/api/v4"`

	GitHub               bool   `help:"Use the GitHub hosting-service adapter instead of GitLab."`
	GitHubAppID          int64  `help:"GitHub App ID." env:"GHOSTFLOW_GITHUB_APP_ID"`
	GitHubPrivateKeyPath string `help:"Path to the GitHub App's PEM private key." type:"path"`
	GitHubInstallationID int64  `help:"GitHub App installation ID." env:"GHOSTFLOW_GITHUB_INSTALLATION_ID"`

	ConfigPath string `help:"Path to the .ghostflow.yaml config file." default:".ghostflow.yaml"`

	Version kong.VersionFlag `help:"Print version information and quit."`
}

// Commands is the top-level kong command set: one struct per verb named
// in spec.md §6's peripheral CLI surface.
type Commands struct {
	Globals

	Check     CheckCmd     `cmd:"" help:"Run or list configured content checks."`
	Reformat  ReformatCmd  `cmd:"" help:"Reformat commits or a whole tree."`
	Merge     MergeCmd     `cmd:"" help:"Merge a merge request into its target branch."`
	Stage     StageCmd     `cmd:"" help:"Stage, unstage, or tag the integration branch."`
	Test      TestCmd      `cmd:"" help:"Trigger test pipelines, queue test jobs, or manage test refs."`
	Dashboard DashboardCmd `cmd:"" help:"Post a dashboard commit status."`
	Data      DataCmd      `cmd:"" help:"Mirror pushed data blobs to rsync destinations."`
	Follow    FollowCmd    `cmd:"" help:"Publish a tracking ref for a followed branch."`
	Clone     CloneCmd     `cmd:"" help:"Bootstrap a bare mirror or watched clone."`
	Config    ConfigCmd    `cmd:"" help:"Format a .ghostflow.yaml configuration file."`
}
