// pkg/config/config_test.go

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/CodeMonkeyCybersecurity/borgmatic-exporter/pkg/exporter_err"
	cerr "github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(New(), "")
	require.NoError(t, err)

	assert.Equal(t, DefaultBorgmaticConfigs, cfg.BorgmaticConfig)
	assert.Equal(t, "borgmatic", cfg.BorgmaticBinary)
	assert.Equal(t, []string{"info", "--json", "--last", "1"}, cfg.InfoArgs)
	assert.Equal(t, []string{"list", "--json"}, cfg.ListArgs)
	assert.Equal(t, ":9996", cfg.ListenAddress)
	assert.Equal(t, "/metrics", cfg.MetricsPath)
	assert.Zero(t, cfg.MinScrapeInterval)
	assert.Zero(t, cfg.CommandTimeout)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.Telemetry.Enabled)
	assert.Equal(t, uint32(5), cfg.Breaker.Failures)
	assert.Equal(t, time.Minute, cfg.Breaker.Cooldown)

	set := cfg.CommandSet()
	assert.Equal(t, "borgmatic --config /c.yaml list --json", set.List("/c.yaml").String())
}

func TestLoad_WrappedBinary(t *testing.T) {
	v := New()
	v.Set(KeyBorgmaticBinary, "sudo -n borgmatic")
	cfg, err := Load(v, "")
	require.NoError(t, err)

	cmd := cfg.CommandSet().Version()
	assert.Equal(t, "sudo", cmd.Name)
	assert.Equal(t, []string{"-n", "borgmatic", "--version"}, cmd.Args)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "exporter.yaml")
	writeFile(t, file, `
borgmatic_config:
  - /srv/borgmatic/*.yaml
listen_address: 127.0.0.1:9100
min_scrape_interval: 30s
telemetry:
  enabled: true
  path: /tmp/spans.jsonl
breaker:
  failures: 3
`)
	t.Setenv("BORGMATIC_EXPORTER_LISTEN_ADDRESS", "127.0.0.1:9200")
	t.Setenv("BORGMATIC_EXPORTER_BREAKER_COOLDOWN", "5m")

	cfg, err := Load(New(), file)
	require.NoError(t, err)

	assert.Equal(t, []string{"/srv/borgmatic/*.yaml"}, cfg.BorgmaticConfig)
	assert.Equal(t, "127.0.0.1:9200", cfg.ListenAddress, "environment beats file")
	assert.Equal(t, 30*time.Second, cfg.MinScrapeInterval)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "/tmp/spans.jsonl", cfg.Telemetry.Path)
	assert.Equal(t, uint32(3), cfg.Breaker.Failures)
	assert.Equal(t, 5*time.Minute, cfg.Breaker.Cooldown)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value interface{}
	}{
		{"relative metrics path", KeyMetricsPath, "metrics"},
		{"unknown log level", KeyLogLevel, "loud"},
		{"negative timeout", KeyCommandTimeout, -time.Second},
		{"zero breaker failures", KeyBreakerFailures, 0},
		{"missing env file", KeyEnvFile, "/does/not/exist.env"},
		{"no configs", KeyBorgmaticConfig, []string{}},
		{"unterminated quote in binary", KeyBorgmaticBinary, `"/opt/my tools/borgmatic`},
		{"command substitution in binary", KeyBorgmaticBinary, "$(which borgmatic)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New()
			v.Set(tt.key, tt.value)
			_, err := Load(v, "")
			require.Error(t, err)
			assert.Equal(t, 2, exporter_err.GetExitCode(err))
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(New(), filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Equal(t, 2, exporter_err.GetExitCode(err))
}

func TestResolveConfigs(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	main := filepath.Join(dir, "config.yaml")
	writeFile(t, main, "repositories: []\n")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "conf.d"), 0o755))
	writeFile(t, filepath.Join(dir, "conf.d", "b.yaml"), "")
	writeFile(t, filepath.Join(dir, "conf.d", "a.yaml"), "")
	writeFile(t, filepath.Join(dir, "conf.d", "notes.txt"), "")

	got, err := ResolveConfigs(ctx, []string{
		main,
		filepath.Join(dir, "missing.yaml"),
		filepath.Join(dir, "conf.d", "*.yaml"),
		main,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		main,
		filepath.Join(dir, "conf.d", "a.yaml"),
		filepath.Join(dir, "conf.d", "b.yaml"),
	}, got)
}

func TestResolveConfigs_KeepsGivenOrder(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.yaml")
	b := filepath.Join(dir, "b.yaml")
	writeFile(t, a, "")
	writeFile(t, b, "")

	got, err := ResolveConfigs(context.Background(), []string{b, a})
	require.NoError(t, err)
	assert.Equal(t, []string{b, a}, got)

	got, err = ResolveConfigs(context.Background(), []string{b, filepath.Join(dir, "*.yaml")})
	require.NoError(t, err)
	assert.Equal(t, []string{b, a}, got, "a glob does not move a path listed before it")
}

func TestResolveConfigs_NoneFound(t *testing.T) {
	dir := t.TempDir()
	_, err := ResolveConfigs(context.Background(), []string{
		filepath.Join(dir, "empty", "*.yaml"),
		filepath.Join(dir, "missing.yaml"),
	})
	require.Error(t, err)
	assert.True(t, cerr.Is(err, ErrNoConfigs))
	assert.False(t, exporter_err.IsExpectedUserError(err))
	assert.Equal(t, 2, exporter_err.GetExitCode(err))
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "borg.env")
	writeFile(t, path, "BORG_PASSPHRASE=s3cret\n# comment\nBORG_RSH=\"ssh -i /root/.ssh/backup\"\n")

	env, err := LoadEnvFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"BORG_PASSPHRASE=s3cret", "BORG_RSH=ssh -i /root/.ssh/backup"}, env)

	env, err = LoadEnvFile("")
	require.NoError(t, err)
	assert.Nil(t, env)

	_, err = LoadEnvFile(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestConfigSet_Watch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.yaml"), "")

	set, err := NewConfigSet(ctx, []string{filepath.Join(dir, "*.yaml")})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.yaml")}, set.Paths())

	require.NoError(t, set.Watch(ctx))
	writeFile(t, filepath.Join(dir, "b.yaml"), "")

	assert.Eventually(t, func() bool {
		return len(set.Paths()) == 2
	}, 5*time.Second, 20*time.Millisecond)
}

func TestConfigSet_RefreshKeepsPreviousOnError(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "a.yaml")
	writeFile(t, path, "")

	set, err := NewConfigSet(ctx, []string{filepath.Join(dir, "*.yaml")})
	require.NoError(t, err)
	require.NoError(t, os.Remove(path))

	changed, err := set.Refresh(ctx)
	assert.Error(t, err)
	assert.False(t, changed)
	assert.Equal(t, []string{path}, set.Paths())
}
