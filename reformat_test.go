package ghostflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ghostflow/ghostflow/internal/config"
)

func TestBuildRegistryRegistersConfiguredFormatters(t *testing.T) {
	timeout := 30
	cfg := &config.Configuration{
		Formatters: map[string]config.FormatterConfig{
			"gofmt": {Formatter: "gofmt", Timeout: &timeout},
		},
	}
	registry := buildRegistry(cfg)
	f, ok := registry.Get("gofmt")
	assert.True(t, ok)
	assert.Equal(t, "gofmt", f.ExecutablePath)
	assert.Equal(t, 30*time.Second, f.Timeout)
}

func TestBuildRegistryEmptyConfiguration(t *testing.T) {
	registry := buildRegistry(&config.Configuration{})
	_, ok := registry.Get("gofmt")
	assert.False(t, ok)
}
