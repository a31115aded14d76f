package ghostflow

import (
	"os"

	"gitlab.com/tozd/go/errors"

	"github.com/ghostflow/ghostflow/internal/config"
)

// loadConfig reads and parses the project's .ghostflow.yaml.
func loadConfig(g *Globals) (*config.Configuration, errors.E) {
	contents, err := os.ReadFile(g.ConfigPath)
	if err != nil {
		return nil, errors.Wrapf(err, `cannot read "%s"`, g.ConfigPath)
	}
	return config.Load(contents)
}

// ConfigCmd is the `config` command group: `config format`, mirroring the
// teacher's own format.go/yaml.go normalization step.
type ConfigCmd struct {
	Format ConfigFormatCmd `cmd:"" help:"Re-serialize .ghostflow.yaml with a stable key order."`
}

// ConfigFormatCmd normalizes the project's configuration file and writes
// it to `--output`: stdout by default (`-`), or the given path.
type ConfigFormatCmd struct {
	Header string `help:"Header comment written above the formatted document."`
	Output string `help:"Output path, or \"-\" for stdout." default:"-"`
}

func (c *ConfigFormatCmd) Run(g *Globals) errors.E {
	cfg, errE := loadConfig(g)
	if errE != nil {
		return errE
	}
	return config.Format(cfg, c.Header, c.Output)
}
