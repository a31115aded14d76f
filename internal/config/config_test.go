package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadParsesChecksReformatFormatters(t *testing.T) {
	contents := []byte(`
checks:
  - kind: trailer-required
    config:
      trailers: [Reviewed-by]
reformat:
  - gofmt
  - rustfmt
formatters:
  gofmt:
    formatter: /usr/bin/gofmt
    config_files: []
  rustfmt:
    name: Rust formatter
    formatter: /usr/bin/rustfmt
    timeout: 30
`)

	cfg, errE := Load(contents)
	assert.NoError(t, errE)
	assert.Len(t, cfg.Checks, 1)
	assert.Equal(t, "trailer-required", cfg.Checks[0].Kind)
	assert.Equal(t, []string{"gofmt", "rustfmt"}, cfg.Reformat)
	assert.Equal(t, "/usr/bin/gofmt", cfg.Formatters["gofmt"].Formatter)
	assert.Equal(t, 30*time.Second, cfg.Formatters["rustfmt"].TimeoutDuration())
	assert.Equal(t, time.Duration(0), cfg.Formatters["gofmt"].TimeoutDuration())
}

func TestLoadResolvesMergeKeys(t *testing.T) {
	contents := []byte(`
defaults: &defaults
  timeout: 10
formatters:
  gofmt:
    <<: *defaults
    formatter: /usr/bin/gofmt
`)

	cfg, errE := Load(contents)
	assert.NoError(t, errE)
	assert.Equal(t, 10*time.Second, cfg.Formatters["gofmt"].TimeoutDuration())
}

func TestLoadRejectsFormatterWithoutPath(t *testing.T) {
	contents := []byte(`
formatters:
  gofmt:
    name: broken
`)
	_, errE := Load(contents)
	assert.Error(t, errE)
}

func TestFormatWritesHeaderComment(t *testing.T) {
	cfg := &Configuration{Reformat: []string{"gofmt"}}
	tempDir := t.TempDir()
	output := filepath.Join(tempDir, "ghostflow.yaml")

	errE := Format(cfg, "generated by ghostflow config format", output)
	assert.NoError(t, errE)

	data, err := os.ReadFile(output)
	assert.NoError(t, err)
	assert.Contains(t, string(data), "# generated by ghostflow config format")
	assert.Contains(t, string(data), "reformat:")
}
