// pkg/metrics/metrics_test.go

package metrics

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/CodeMonkeyCybersecurity/borgmatic-exporter/pkg/borgmatic"
	"github.com/CodeMonkeyCybersecurity/borgmatic-exporter/pkg/exporter_err"
	"github.com/CodeMonkeyCybersecurity/borgmatic-exporter/pkg/jsonstream"
	cerr "github.com/cockroachdb/errors"
	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configs = []string{"/conf/foo.yaml", "/conf/bar.yaml", "/conf/baz.yaml"}

// fixtureRunner answers borgmatic commands from the borgmatic package testdata.
type fixtureRunner struct {
	t     *testing.T
	files map[string]string
	fail  map[string]bool
	calls int
}

func newFixtureRunner(t *testing.T) *fixtureRunner {
	set := borgmatic.DefaultCommandSet()
	r := &fixtureRunner{t: t, files: map[string]string{}, fail: map[string]bool{}}
	for _, name := range []string{"foo", "bar", "baz", "qux", "missing"} {
		cfg := "/conf/" + name + ".yaml"
		r.files[set.Info(cfg).String()] = name + "-info.json"
		r.files[set.List(cfg).String()] = name + "-list.json"
	}
	return r
}

func (r *fixtureRunner) Run(_ context.Context, cmd borgmatic.Command) ([]json.RawMessage, error) {
	r.calls++
	line := cmd.String()
	if r.fail[line] {
		return nil, cerr.Newf("%s: exit status 1", line)
	}
	file, ok := r.files[line]
	if !ok {
		return nil, cerr.Newf("unexpected command %q", line)
	}
	data, err := os.ReadFile(filepath.Join("..", "borgmatic", "testdata", file))
	require.NoError(r.t, err)
	return jsonstream.Decode(data), nil
}

func newClient(t *testing.T) (*borgmatic.Client, *fixtureRunner) {
	runner := newFixtureRunner(t)
	return borgmatic.NewClient(runner, borgmatic.DefaultCommandSet()), runner
}

func gauge(t *testing.T, m *Metrics, name, repo string) float64 {
	t.Helper()
	gv := m.Gauge(name)
	require.NotNil(t, gv, name)
	return testutil.ToFloat64(gv.WithLabelValues(repo))
}

// samples flattens a registry into "name{repository}" -> value.
func samples(t *testing.T, reg *prometheus.Registry) map[string]float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)

	out := make(map[string]float64)
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			repo := ""
			for _, lp := range metric.GetLabel() {
				if lp.GetName() == RepositoryLabel {
					repo = lp.GetValue()
				}
			}
			out[mf.GetName()+"{"+repo+"}"] = metric.GetGauge().GetValue()
		}
	}
	return out
}

func TestCreateMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := CreateMetrics(reg)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{
		"borg_total_backups",
		"borg_total_chunks",
		"borg_total_compressed_size",
		"borg_total_size",
		"borg_total_deduplicated_compressed_size",
		"borg_total_deduplicated_size",
		"borg_last_backup_timestamp",
		"borg_last_backup_duration",
		"borg_last_backup_files",
		"borg_last_backup_deduplicated_compressed_size",
		"borg_last_backup_compressed_size",
		"borg_last_backup_size",
	}, m.Names())
}

func TestCreateMetrics_ReusesRegisteredGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := CreateMetrics(reg)
	require.NoError(t, err)
	first.Gauge(TotalChunks).WithLabelValues("/borg/x").Set(42)

	second, err := CreateMetrics(reg)
	require.NoError(t, err)
	assert.Same(t, first.Gauge(TotalChunks), second.Gauge(TotalChunks))
	assert.Equal(t, 42.0, gauge(t, second, TotalChunks, "/borg/x"))
}

func TestCreateMetrics_ConflictingCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGauge(prometheus.GaugeOpts{Name: TotalChunks, Help: "plain gauge"}))

	_, err := CreateMetrics(reg)
	assert.Error(t, err)
}

func TestCollect_Values(t *testing.T) {
	reg := prometheus.NewRegistry()
	client, _ := newClient(t)

	res, err := Collect(context.Background(), reg, client, configs)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Configs)
	assert.Equal(t, 3, res.Repositories)
	assert.Len(t, res.TraceID, 8)

	m, err := CreateMetrics(reg)
	require.NoError(t, err)

	tests := []struct {
		metric string
		repo   string
		want   float64
	}{
		{TotalBackups, "/borg/backup-1", 2},
		{TotalBackups, "/borg/backup-3", 0},
		{TotalChunks, "/borg/backup-1", 3505},
		{TotalCompressedSize, "/borg/backup-1", 3965903861},
		{TotalSize, "/borg/backup-1", 8446787072},
		{TotalDeduplicatedCompressedSize, "/borg/backup-1", 537932015},
		{TotalDeduplicatedSize, "/borg/backup-1", 1296544339},
		{TotalDeduplicatedSize, "/borg/backup-2", 21296544339},
		{LastBackupDuration, "/borg/backup-1", 107.499993},
		{LastBackupDuration, "/borg/backup-2", 117.189547},
		{LastBackupFiles, "/borg/backup-1", 11},
		{LastBackupFiles, "/borg/backup-2", 12},
		{LastBackupDeduplicatedCompressedSize, "/borg/backup-1", 10351331},
		{LastBackupDeduplicatedCompressedSize, "/borg/backup-2", 18718565},
		{LastBackupCompressedSize, "/borg/backup-1", 379050627},
		{LastBackupCompressedSize, "/borg/backup-2", 419966002},
		{LastBackupSize, "/borg/backup-1", 807712494},
		{LastBackupSize, "/borg/backup-2", 893501335},
		{LastBackupTimestamp, "/borg/backup-1", 1632124804},
	}
	for _, tt := range tests {
		t.Run(tt.metric+" "+tt.repo, func(t *testing.T) {
			assert.Equal(t, tt.want, gauge(t, m, tt.metric, tt.repo))
		})
	}
}

func TestCollect_EmptyRepositoryHasNoLastBackupSeries(t *testing.T) {
	reg := prometheus.NewRegistry()
	client, _ := newClient(t)

	_, err := Collect(context.Background(), reg, client, configs)
	require.NoError(t, err)

	m, err := CreateMetrics(reg)
	require.NoError(t, err)
	// two repositories have archives, backup-3 has none
	assert.Equal(t, 2, testutil.CollectAndCount(m.Gauge(LastBackupTimestamp)))
	assert.Equal(t, 3, testutil.CollectAndCount(m.Gauge(TotalBackups)))
}

func TestCollect_RepositoryMissingFromListIsZero(t *testing.T) {
	reg := prometheus.NewRegistry()
	client, _ := newClient(t)

	res, err := Collect(context.Background(), reg, client, []string{"/conf/qux.yaml"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Repositories)

	got := samples(t, reg)
	assert.Equal(t, 0.0, got[TotalBackups+"{/borg/backup-4}"])
	assert.Contains(t, got, TotalBackups+"{/borg/backup-4}")
	assert.Equal(t, 120.0, got[TotalChunks+"{/borg/backup-4}"])
	assert.NotContains(t, got, LastBackupTimestamp+"{/borg/backup-4}")

	assert.Equal(t, 1.0, got[TotalBackups+"{/borg/backup-5}"])
	assert.Equal(t, 3.0, got[LastBackupFiles+"{/borg/backup-5}"])
}

func TestCollect_Idempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	client, _ := newClient(t)

	_, err := Collect(context.Background(), reg, client, configs)
	require.NoError(t, err)
	before, err := reg.Gather()
	require.NoError(t, err)

	_, err = Collect(context.Background(), reg, client, configs)
	require.NoError(t, err)
	after, err := reg.Gather()
	require.NoError(t, err)

	assert.Equal(t, before, after)
}

func TestCollect_MissingFieldsSkipsRepository(t *testing.T) {
	reg := prometheus.NewRegistry()
	client, _ := newClient(t)

	res, err := Collect(context.Background(), reg, client, []string{"/conf/foo.yaml", "/conf/missing.yaml", "/conf/bar.yaml"})
	require.Error(t, err)

	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	require.Len(t, merr.Errors, 1)
	assert.True(t, cerr.Is(merr.Errors[0], borgmatic.ErrMalformedOutput))
	assert.Contains(t, err.Error(), "/borg/broken")

	// the pass continued past the broken repository
	assert.Equal(t, 3, res.Configs)
	assert.Equal(t, 2, res.Repositories)

	m, err := CreateMetrics(reg)
	require.NoError(t, err)
	assert.NotContains(t, samples(t, reg), TotalChunks+"{/borg/broken}")
	assert.Equal(t, 2, testutil.CollectAndCount(m.Gauge(TotalChunks)))
	assert.Equal(t, 12.0, gauge(t, m, LastBackupFiles, "/borg/backup-2"))
}

func TestCollect_CommandFailureAbortsPass(t *testing.T) {
	reg := prometheus.NewRegistry()
	client, runner := newClient(t)
	runner.fail[borgmatic.DefaultCommandSet().List("/conf/bar.yaml").String()] = true

	res, err := Collect(context.Background(), reg, client, configs)
	require.Error(t, err)
	assert.False(t, cerr.Is(err, borgmatic.ErrMalformedOutput))
	assert.Equal(t, 1, exporter_err.GetExitCode(err))
	assert.Equal(t, 1, res.Configs)
	// foo info+list, bar info+list, baz never runs
	assert.Equal(t, 4, runner.calls)

	m, err := CreateMetrics(reg)
	require.NoError(t, err)
	assert.Equal(t, 2.0, gauge(t, m, TotalBackups, "/borg/backup-1"), "earlier configs keep their values")
	assert.Equal(t, 1, testutil.CollectAndCount(m.Gauge(TotalBackups)))
}
