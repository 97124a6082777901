// pkg/metrics/metrics.go

// Package metrics registers the borg gauges and fills them from borgmatic
// reports.
package metrics

import (
	"sort"

	"github.com/CodeMonkeyCybersecurity/borgmatic-exporter/pkg/borgmatic"
	cerr "github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// RepositoryLabel is the only label on every gauge.
const RepositoryLabel = "repository"

// Gauge names.
const (
	TotalBackups                    = "borg_total_backups"
	TotalChunks                     = "borg_total_chunks"
	TotalCompressedSize             = "borg_total_compressed_size"
	TotalSize                       = "borg_total_size"
	TotalDeduplicatedCompressedSize = "borg_total_deduplicated_compressed_size"
	TotalDeduplicatedSize           = "borg_total_deduplicated_size"

	LastBackupTimestamp                  = "borg_last_backup_timestamp"
	LastBackupDuration                   = "borg_last_backup_duration"
	LastBackupFiles                      = "borg_last_backup_files"
	LastBackupDeduplicatedCompressedSize = "borg_last_backup_deduplicated_compressed_size"
	LastBackupCompressedSize             = "borg_last_backup_compressed_size"
	LastBackupSize                       = "borg_last_backup_size"
)

var gaugeHelp = map[string]string{
	TotalBackups:                         "Total number of Borg backups (archives) in the repository",
	TotalChunks:                          "Total number of chunks in the repository",
	TotalCompressedSize:                  "Total compressed size of all backups in the repository, in bytes",
	TotalSize:                            "Total uncompressed size of all backups in the repository, in bytes",
	TotalDeduplicatedCompressedSize:      "Total compressed and deduplicated size of the repository, in bytes",
	TotalDeduplicatedSize:                "Total deduplicated size of the repository, in bytes",
	LastBackupTimestamp:                  "Start time of the most recent backup, in Unix seconds",
	LastBackupDuration:                   "Duration of the most recent backup, in seconds",
	LastBackupFiles:                      "Number of files in the most recent backup",
	LastBackupDeduplicatedCompressedSize: "Compressed and deduplicated size of the most recent backup, in bytes",
	LastBackupCompressedSize:             "Compressed size of the most recent backup, in bytes",
	LastBackupSize:                       "Uncompressed size of the most recent backup, in bytes",
}

// Metrics holds the registered gauges.
type Metrics struct {
	gauges map[string]*prometheus.GaugeVec
}

// CreateMetrics registers the borg gauges with reg. Calling it again against
// the same registry returns the already registered gauges, so values set by
// earlier collections are kept.
func CreateMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{gauges: make(map[string]*prometheus.GaugeVec, len(gaugeHelp))}

	for _, name := range sortedNames() {
		gv := prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: name,
			Help: gaugeHelp[name],
		}, []string{RepositoryLabel})

		if err := reg.Register(gv); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !cerr.As(err, &are) {
				return nil, cerr.Wrapf(err, "register %s", name)
			}
			existing, ok := are.ExistingCollector.(*prometheus.GaugeVec)
			if !ok {
				return nil, cerr.AssertionFailedf("%s is registered as %T, not a gauge vector", name, are.ExistingCollector)
			}
			gv = existing
		}
		m.gauges[name] = gv
	}
	return m, nil
}

// Names lists every registered gauge name, sorted.
func (m *Metrics) Names() []string {
	names := make([]string, 0, len(m.gauges))
	for name := range m.gauges {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Gauge returns the gauge vector registered under name, or nil.
func (m *Metrics) Gauge(name string) *prometheus.GaugeVec {
	return m.gauges[name]
}

// Apply sets the gauges for one repository. Last backup gauges are left as
// they were when the repository has no archives.
func (m *Metrics) Apply(r borgmatic.Report) {
	set := func(name string, v float64) {
		m.gauges[name].WithLabelValues(r.Repository).Set(v)
	}

	set(TotalBackups, float64(r.Backups))
	set(TotalChunks, *r.Stats.TotalChunks)
	set(TotalCompressedSize, *r.Stats.TotalCSize)
	set(TotalSize, *r.Stats.TotalSize)
	set(TotalDeduplicatedCompressedSize, *r.Stats.UniqueCSize)
	set(TotalDeduplicatedSize, *r.Stats.UniqueSize)

	last := r.LastBackup
	if last == nil {
		return
	}
	set(LastBackupTimestamp, borgmatic.UnixSeconds(last.Start))
	set(LastBackupDuration, last.Duration)
	set(LastBackupFiles, *last.Stats.NFiles)
	set(LastBackupDeduplicatedCompressedSize, *last.Stats.DeduplicatedCompressedSize)
	set(LastBackupCompressedSize, *last.Stats.CompressedSize)
	set(LastBackupSize, *last.Stats.Size)
}

func sortedNames() []string {
	names := make([]string, 0, len(gaugeHelp))
	for name := range gaugeHelp {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
