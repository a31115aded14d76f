package config

import (
	"bytes"
	"os"

	"github.com/mitchellh/go-wordwrap"
	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"
)

const (
	maxCommentWidth = 80
	fileMode        = 0o600
	yamlIndent      = 2
)

// Format re-serializes a `.ghostflow.yaml` document with a stable key
// order and wrapped header comment, the same normalization
// tozd-gitlab-config's `save` command applies to GitLab project
// configuration (yaml.go's writeYAML), used here by the `ghostflow config
// format` subcommand.
func Format(cfg *Configuration, header string, output string) errors.E {
	var node yaml.Node
	if err := (&node).Encode(cfg); err != nil {
		return errors.Wrap(err, "cannot encode configuration")
	}
	if header != "" {
		node.HeadComment = wordwrap.WrapString(header, maxCommentWidth)
	}

	buffer := bytes.Buffer{}
	encoder := yaml.NewEncoder(&buffer)
	encoder.SetIndent(yamlIndent)
	if err := encoder.Encode(&node); err != nil {
		return errors.Wrap(err, "cannot marshal configuration")
	}
	if err := encoder.Close(); err != nil {
		return errors.Wrap(err, "cannot marshal configuration")
	}

	var err error
	if output != "-" {
		err = os.WriteFile(output, buffer.Bytes(), fileMode)
	} else {
		_, err = os.Stdout.Write(buffer.Bytes())
	}
	if err != nil {
		return errors.Wrapf(err, `cannot write configuration to "%s"`, output)
	}
	return nil
}
