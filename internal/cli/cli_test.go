package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetkeep/overseer"
)

func TestBuildCLI(t *testing.T) {
	cmd := BuildCLI()

	assert.NotNil(t, cmd, "BuildCLI should return a non-nil command")
	assert.Equal(t, "overseerctl", cmd.Use, "root command should be 'overseerctl'")

	commands := cmd.Commands()
	assert.Len(t, commands, 5, "should have 5 subcommands")

	names := make(map[string]bool)
	for _, c := range commands {
		names[c.Name()] = true
	}
	assert.True(t, names["run"])
	assert.True(t, names["start-child"])
	assert.True(t, names["terminate-child"])
	assert.True(t, names["count"])
	assert.True(t, names["debug"])

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag, "should have --config flag")
	assert.Equal(t, "configs/default.yaml", configFlag.DefValue)
}

func TestBuildRunCommand(t *testing.T) {
	cmd := buildRunCommand()

	assert.Equal(t, "run", cmd.Use)
	assert.NotNil(t, cmd.RunE)
}

func TestBuildStartChildCommand(t *testing.T) {
	cmd := buildStartChildCommand()

	assert.Equal(t, "start-child", cmd.Use)
	assert.NotNil(t, cmd.RunE)
}

func TestBuildTerminateChildCommand(t *testing.T) {
	cmd := buildTerminateChildCommand()

	assert.Equal(t, "terminate-child <name>", cmd.Use)
	assert.NotNil(t, cmd.Args, "should require exactly one positional arg")
	assert.NotNil(t, cmd.RunE)
}

func TestBuildCountCommand(t *testing.T) {
	cmd := buildCountCommand()

	assert.Equal(t, "count", cmd.Use)
	assert.NotNil(t, cmd.RunE)
}

func TestBuildDebugCommand(t *testing.T) {
	cmd := buildDebugCommand()

	assert.Equal(t, "debug", cmd.Use)
	assert.NotNil(t, cmd.RunE)
}

func TestLoadFileConfig_ValidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_config.yaml")

	configContent := `
adapter:
  kind: local
  prefix: worker
  local:
    command: ["/bin/echo", "hello"]
    dir: /tmp

release:
  url: file:///tmp/release.tar.gz
  module: myapp
  function: start

strategy: simple_one_for_one
max_nodes: 16
conn_timeout_ms: 5000
pair_timeout_ms: 5000
overseer_id: test-overseer

transport:
  listen_addr: ":9443"
  cert_file: /tmp/server.crt
  key_file: /tmp/server.key

metrics:
  enabled: true
  port: 9090
`
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0644))

	cfg, err := overseer.LoadFileConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.Adapter.Kind)
	assert.Equal(t, "worker", cfg.Adapter.Prefix)
	assert.Equal(t, []string{"/bin/echo", "hello"}, cfg.Adapter.Local.Command)
	assert.Equal(t, "file:///tmp/release.tar.gz", cfg.Release.URL)
	assert.Equal(t, "simple_one_for_one", cfg.Strategy)
	assert.Equal(t, 16, cfg.MaxNodes)
	assert.Equal(t, 5000, cfg.ConnTimeoutMS)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, 9090, cfg.Metrics.Port)
}

func TestLoadFileConfig_MissingFile(t *testing.T) {
	_, err := overseer.LoadFileConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestBuildAdapter_UnknownKind(t *testing.T) {
	fcfg := &overseer.FileConfig{}
	fcfg.Adapter.Kind = "gcp"

	_, err := buildAdapter(fcfg)
	assert.Error(t, err)
}

func TestBuildAdapter_DefaultsToLocal(t *testing.T) {
	fcfg := &overseer.FileConfig{}
	fcfg.Adapter.Local.Command = []string{"/bin/true"}

	ad, err := buildAdapter(fcfg)
	require.NoError(t, err)
	assert.NotNil(t, ad)
}

func TestSpecFromConfig(t *testing.T) {
	fcfg := &overseer.FileConfig{}
	fcfg.Release.URL = "file:///tmp/release.tar.gz"
	fcfg.Strategy = "simple_one_for_one"
	fcfg.MaxNodes = 4
	fcfg.ConnTimeoutMS = 1000
	fcfg.PairTimeoutMS = 2000

	ad, err := buildAdapter(fcfg)
	require.NoError(t, err)

	spec := specFromConfig(fcfg, ad, nil, nil)

	assert.Equal(t, overseer.Strategy("simple_one_for_one"), spec.Strategy)
	assert.Equal(t, 4, spec.MaxNodes)
	assert.Equal(t, "file:///tmp/release.tar.gz", spec.Release.URL)
}
