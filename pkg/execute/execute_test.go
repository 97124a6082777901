package execute

import (
	"context"
	"testing"
	"time"

	"github.com/CodeMonkeyCybersecurity/borgmatic-exporter/pkg/exporter_err"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_CapturesStdout(t *testing.T) {
	res, err := Run(context.Background(), Options{
		Command: "echo",
		Args:    []string{`{"foo": "bar"}`},
	})
	require.NoError(t, err)
	assert.Equal(t, "{\"foo\": \"bar\"}\n", string(res.Stdout))
	assert.Empty(t, res.Stderr)
}

func TestRun_ArgsAreNotInterpreted(t *testing.T) {
	res, err := Run(context.Background(), Options{
		Command: "echo",
		Args:    []string{";", "whoami", "$(id)", "|", "cat"},
	})
	require.NoError(t, err)
	assert.Equal(t, "; whoami $(id) | cat\n", string(res.Stdout))
}

func TestRun_NonZeroExit(t *testing.T) {
	res, err := Run(context.Background(), Options{
		Command: "sh",
		Args:    []string{"-c", "echo partial; echo 'Error: repository locked' >&2; exit 2"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Error: repository locked")
	assert.Equal(t, "partial\n", string(res.Stdout))
}

func TestRun_MissingBinary(t *testing.T) {
	_, err := Run(context.Background(), Options{Command: "borgmatic-definitely-not-installed"})
	require.Error(t, err)
	assert.Equal(t, 1, exporter_err.GetExitCode(err))
	assert.Contains(t, err.Error(), "is required for metric collection")
}

func TestRun_Timeout(t *testing.T) {
	start := time.Now()
	_, err := Run(context.Background(), Options{
		Command: "sleep",
		Args:    []string{"5"},
		Timeout: 100 * time.Millisecond,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestRun_ExtraEnv(t *testing.T) {
	res, err := Run(context.Background(), Options{
		Command: "sh",
		Args:    []string{"-c", "printf %s \"$BORG_PASSPHRASE\""},
		Env:     []string{"BORG_PASSPHRASE=hunter2"},
	})
	require.NoError(t, err)
	assert.Equal(t, "hunter2", string(res.Stdout))
}

func TestRun_EmptyCommand(t *testing.T) {
	_, err := Run(context.Background(), Options{})
	assert.Error(t, err)
}

func TestSplitCommandLine(t *testing.T) {
	t.Setenv("BORGMATIC_TEST_CONFIG", "/etc/borgmatic.d/home.yaml")

	tests := []struct {
		name    string
		line    string
		want    []string
		wantErr bool
	}{
		{
			name: "single quoted json",
			line: `echo '{"foo": "bar"}{"foo2": "bar2"}'`,
			want: []string{"echo", `{"foo": "bar"}{"foo2": "bar2"}`},
		},
		{
			name: "variable expansion",
			line: `borgmatic --config "$BORGMATIC_TEST_CONFIG" info --json`,
			want: []string{"borgmatic", "--config", "/etc/borgmatic.d/home.yaml", "info", "--json"},
		},
		{name: "empty", line: "   ", wantErr: true},
		{name: "unterminated quote", line: `echo '{"foo"`, wantErr: true},
		{name: "command substitution", line: "echo $(whoami)", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SplitCommandLine(tt.line)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSplitFields(t *testing.T) {
	got, err := SplitFields(`echo {"foo": "bar"}{"foo2":   "bar2"}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"echo", `{"foo":`, `"bar"}{"foo2":`, `"bar2"}`}, got)

	got, err = SplitFields(`echo '$HOME' ;`)
	require.NoError(t, err)
	assert.Equal(t, []string{"echo", `'$HOME'`, ";"}, got)

	_, err = SplitFields(" \t ")
	assert.Error(t, err)
}
