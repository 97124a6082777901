// pkg/borgmatic/types.go

package borgmatic

import (
	"encoding/json"
	"time"
)

// Repository identifies a borg repository. borg 1.x reports "location",
// newer tooling reports "path"; either one is the metric label.
type Repository struct {
	ID           string `json:"id,omitempty"`
	Location     string `json:"location,omitempty" validate:"required_without=Path"`
	Path         string `json:"path,omitempty" validate:"required_without=Location"`
	Label        string `json:"label,omitempty"`
	LastModified string `json:"last_modified,omitempty"`
}

// Key returns the repository path used as the "repository" label.
func (r Repository) Key() string {
	if r.Location != "" {
		return r.Location
	}
	return r.Path
}

// CacheStats are the repository-wide totals from `borgmatic info --json`.
type CacheStats struct {
	TotalChunks       *float64 `json:"total_chunks" validate:"required"`
	TotalUniqueChunks *float64 `json:"total_unique_chunks,omitempty"`
	TotalSize         *float64 `json:"total_size" validate:"required"`
	TotalCSize        *float64 `json:"total_csize" validate:"required"`
	UniqueSize        *float64 `json:"unique_size" validate:"required"`
	UniqueCSize       *float64 `json:"unique_csize" validate:"required"`
}

type Cache struct {
	Path  string      `json:"path,omitempty"`
	Stats *CacheStats `json:"stats" validate:"required"`
}

// RepositoryInfo is one repository record of the repository info command.
// Archives is only present when info was asked for specific archives
// (--last 1); it is used to fill in stats the archive list lacks.
type RepositoryInfo struct {
	Repository Repository `json:"repository"`
	Cache      *Cache     `json:"cache" validate:"required"`
	Archives   []Archive  `json:"archives,omitempty" validate:"-"`
}

// ArchiveStats are the per-archive sizes. Field names differ between borg
// releases, UnmarshalJSON folds the known spellings together.
type ArchiveStats struct {
	NFiles                     *float64 `json:"nfiles" validate:"required"`
	CompressedSize             *float64 `json:"compressed_size" validate:"required"`
	Size                       *float64 `json:"size" validate:"required"`
	DeduplicatedCompressedSize *float64 `json:"deduplicated_compressed_size" validate:"required"`
	DeduplicatedSize           *float64 `json:"deduplicated_size,omitempty"`
}

func (s *ArchiveStats) UnmarshalJSON(b []byte) error {
	var raw struct {
		NFiles                     *float64 `json:"nfiles"`
		CompressedSize             *float64 `json:"compressed_size"`
		Size                       *float64 `json:"size"`
		OriginalSize               *float64 `json:"original_size"`
		DeduplicatedCompressedSize *float64 `json:"deduplicated_compressed_size"`
		CSizeDeduplicated          *float64 `json:"csize_deduplicated"`
		DeduplicatedSize           *float64 `json:"deduplicated_size"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	s.NFiles = raw.NFiles
	s.CompressedSize = raw.CompressedSize
	s.Size = firstSet(raw.Size, raw.OriginalSize)
	// borg 1.x "deduplicated_size" is already the compressed, deduplicated amount
	s.DeduplicatedCompressedSize = firstSet(raw.DeduplicatedCompressedSize, raw.CSizeDeduplicated, raw.DeduplicatedSize)
	s.DeduplicatedSize = raw.DeduplicatedSize
	return nil
}

// Archive is one backup run. `borgmatic list --json` fills only the
// identifying fields; `borgmatic info --json` adds duration and stats.
type Archive struct {
	Archive  string        `json:"archive,omitempty"`
	Name     string        `json:"name,omitempty"`
	ID       string        `json:"id,omitempty"`
	Start    string        `json:"start" validate:"required"`
	End      string        `json:"end,omitempty"`
	Duration *float64      `json:"duration" validate:"required"`
	Stats    *ArchiveStats `json:"stats" validate:"required"`
}

// Key returns the archive name, whichever field carried it.
func (a Archive) Key() string {
	if a.Name != "" {
		return a.Name
	}
	return a.Archive
}

// ArchiveList is one repository record of the archive list command.
type ArchiveList struct {
	Repository Repository `json:"repository"`
	Archives   []Archive  `json:"archives"`
}

// Report is everything the exporter publishes for one repository after one
// collection pass. It is only built from fully validated records.
type Report struct {
	Repository string
	Config     string
	Stats      CacheStats
	Backups    int
	// LastBackup is nil when the repository has no archives.
	LastBackup *LastBackup
}

// LastBackup is the validated most recent archive.
type LastBackup struct {
	Name     string
	Start    time.Time
	Duration float64
	Stats    ArchiveStats
}

func firstSet(vals ...*float64) *float64 {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}
