// pkg/borgmatic/version_test.go

package borgmatic

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/CodeMonkeyCybersecurity/borgmatic-exporter/pkg/exporter_err"
	cerr "github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type textRunner struct {
	out string
	err error
}

func (r textRunner) Run(context.Context, Command) ([]json.RawMessage, error) {
	return nil, cerr.New("not used")
}

func (r textRunner) Output(_ context.Context, cmd Command) ([]byte, error) {
	if cmd.String() != "borgmatic --version" {
		return nil, cerr.Newf("unexpected command %q", cmd)
	}
	return []byte(r.out), r.err
}

func TestParseVersion(t *testing.T) {
	tests := []struct {
		output    string
		want      string
		supported bool
	}{
		{"1.8.2\n", "1.8.2", true},
		{"borgmatic 1.7.15", "1.7.15", true},
		{"1.5.0", "1.5.0", true},
		{"1.4.22\n", "1.4.22", false},
		{"2.0.0.dev0", "2.0.0", true},
	}
	for _, tt := range tests {
		t.Run(tt.output, func(t *testing.T) {
			v, err := ParseVersion(tt.output)
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.Original())

			err = CheckVersion(v)
			if tt.supported {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.True(t, cerr.Is(err, exporter_err.ErrUnsupportedVersion))
			}
		})
	}

	_, err := ParseVersion("command not found")
	assert.Error(t, err)
}

func TestClientVersion(t *testing.T) {
	v, err := NewClient(textRunner{out: "1.8.2\n"}, DefaultCommandSet()).Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.8.2", v.String())

	_, err = NewClient(textRunner{err: cerr.New("boom")}, DefaultCommandSet()).Version(context.Background())
	assert.Error(t, err)

	_, err = NewClient(newFixtureRunner(t), DefaultCommandSet()).Version(context.Background())
	assert.Error(t, err, "runner without plain output support")
}
