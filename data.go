package ghostflow

import (
	"context"
	"fmt"

	"gitlab.com/tozd/go/errors"

	"github.com/ghostflow/ghostflow/internal/action/data"
	"github.com/ghostflow/ghostflow/internal/host"
)

// DataCmd is the `data` command (spec.md §6).
type DataCmd struct {
	RepoName     string   `help:"Repository name to mirror data refs from." required:""`
	RepoURL      string   `help:"Repository URL (fetched over the configured remote transport)." required:""`
	Destinations []string `help:"rsync destinations the verified blobs are mirrored to." sep:"," required:""`
	Namespace    string   `help:"Ref namespace data is pushed under." default:"data"`
	KeepRefs     bool     `help:"Keep the remote data refs and the verified local ones; by default the remote refs are deleted once fetched and the local ones after the mirror."`
}

func (c *DataCmd) Run(g *Globals) errors.E {
	a := data.New(g.buildGit())
	a.Destinations = c.Destinations
	a.RefNamespace = c.Namespace
	a.KeepRefs = c.KeepRefs

	result, errE := a.FetchData(context.Background(), host.Repo{Name: c.RepoName, URL: c.RepoURL})
	if errE != nil {
		return errE
	}
	switch result {
	case data.NoData:
		fmt.Println("no data refs found")
	case data.NoDestinations:
		fmt.Println("no destinations configured; nothing mirrored")
	case data.DataPushed:
		fmt.Println("data mirrored")
	}
	return nil
}
