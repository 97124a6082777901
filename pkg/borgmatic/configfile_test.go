// pkg/borgmatic/configfile_test.go

package borgmatic

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadRepositories(t *testing.T) {
	tests := []struct {
		file string
		want []ConfiguredRepository
	}{
		{
			file: "config-current.yaml",
			want: []ConfiguredRepository{
				{Path: "ssh://user@backupserver/./sourcehostname.borg", Label: "backupserver"},
				{Path: "/mnt/backup", Label: "local"},
			},
		},
		{
			file: "config-legacy.yaml",
			want: []ConfiguredRepository{
				{Path: "/borg/backup-1"},
				{Path: "user@host:backup.borg"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			got, err := ReadRepositories(filepath.Join("testdata", tt.file))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRepositories_Errors(t *testing.T) {
	_, err := ReadRepositories(filepath.Join("testdata", "does-not-exist.yaml"))
	assert.Error(t, err)

	_, err = ParseRepositories([]byte("repositories: [unterminated"))
	assert.Error(t, err)

	repos, err := ParseRepositories([]byte("source_directories: [/home]\n"))
	require.NoError(t, err)
	assert.Empty(t, repos)
}
