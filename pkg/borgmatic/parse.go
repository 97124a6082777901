// pkg/borgmatic/parse.go

package borgmatic

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/CodeMonkeyCybersecurity/borgmatic-exporter/pkg/exporter_err"
	"github.com/CodeMonkeyCybersecurity/borgmatic-exporter/pkg/jsonstream"
	cerr "github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
)

// ErrMalformedOutput marks errors caused by borgmatic output that does not
// have the expected shape. These fail one config or repository, not the pass.
var ErrMalformedOutput = errors.New("malformed borgmatic output")

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// ParseRepositoryInfos reads repository records from info command output.
// Each document is either one record or an array of records.
func ParseRepositoryInfos(docs []json.RawMessage) ([]RepositoryInfo, error) {
	var infos []RepositoryInfo
	for i, doc := range docs {
		if jsonstream.IsArray(doc) {
			var batch []RepositoryInfo
			if err := json.Unmarshal(doc, &batch); err != nil {
				return nil, malformed(err, "info document %d", i)
			}
			infos = append(infos, batch...)
			continue
		}
		var info RepositoryInfo
		if err := json.Unmarshal(doc, &info); err != nil {
			return nil, malformed(err, "info document %d", i)
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// ParseArchiveLists reads archive lists from list command output. A document
// is a list record, an array of list records, or a bare array of archives;
// the latter has no repository and is attributed by the caller.
func ParseArchiveLists(docs []json.RawMessage) ([]ArchiveList, error) {
	var lists []ArchiveList
	for i, doc := range docs {
		if !jsonstream.IsArray(doc) {
			var list ArchiveList
			if err := json.Unmarshal(doc, &list); err != nil {
				return nil, malformed(err, "list document %d", i)
			}
			lists = append(lists, list)
			continue
		}

		var elems []json.RawMessage
		if err := json.Unmarshal(doc, &elems); err != nil {
			return nil, malformed(err, "list document %d", i)
		}
		if len(elems) > 0 && isListRecord(elems[0]) {
			var batch []ArchiveList
			if err := json.Unmarshal(doc, &batch); err != nil {
				return nil, malformed(err, "list document %d", i)
			}
			lists = append(lists, batch...)
			continue
		}

		var archives []Archive
		if err := json.Unmarshal(doc, &archives); err != nil {
			return nil, malformed(err, "list document %d", i)
		}
		lists = append(lists, ArchiveList{Archives: archives})
	}
	return lists, nil
}

// BuildReports joins info and list records per repository, picks the most
// recent archive and validates everything a report needs. Repositories that
// fail validation are left out and their errors returned alongside.
//
// The most recent archive is the last list entry; borg lists archives oldest
// first. When that entry has no stats (plain list output) they are taken from
// the info record's archive with the same name, or its last archive.
func BuildReports(config string, infos []RepositoryInfo, lists []ArchiveList) ([]Report, []error) {
	var problems []error
	if len(infos) == 0 {
		err := cerr.Mark(cerr.Wrapf(exporter_err.ErrNoRepository, "%s", config), ErrMalformedOutput)
		return nil, []error{err}
	}

	byRepo := make(map[string][]Archive, len(lists))
	for _, l := range lists {
		key := l.Repository.Key()
		if key == "" {
			if len(l.Archives) == 0 {
				continue
			}
			if len(infos) != 1 {
				problems = append(problems, cerr.Mark(
					cerr.Newf("%s: archive list without repository and %d repositories configured", config, len(infos)),
					ErrMalformedOutput))
				continue
			}
			key = infos[0].Repository.Key()
		}
		byRepo[key] = append(byRepo[key], l.Archives...)
	}

	reports := make([]Report, 0, len(infos))
	for _, info := range infos {
		report, err := buildReport(config, info, byRepo[info.Repository.Key()])
		if err != nil {
			problems = append(problems, err)
			continue
		}
		reports = append(reports, report)
	}
	return reports, problems
}

func buildReport(config string, info RepositoryInfo, archives []Archive) (Report, error) {
	if err := validate.Struct(info); err != nil {
		return Report{}, invalid(config, info.Repository.Key(), err)
	}
	repo := info.Repository.Key()

	report := Report{
		Repository: repo,
		Config:     config,
		Stats:      *info.Cache.Stats,
		Backups:    len(archives),
	}
	if len(archives) == 0 {
		return report, nil
	}

	last := enrich(archives[len(archives)-1], info.Archives)
	if err := validate.Struct(last); err != nil {
		return Report{}, invalid(config, repo, err)
	}
	start, err := ParseTimestamp(last.Start)
	if err != nil {
		return Report{}, cerr.Mark(cerr.Wrapf(err, "%s: repository %s: last archive start", config, repo), ErrMalformedOutput)
	}

	report.LastBackup = &LastBackup{
		Name:     last.Key(),
		Start:    start,
		Duration: *last.Duration,
		Stats:    *last.Stats,
	}
	return report, nil
}

func enrich(last Archive, detailed []Archive) Archive {
	if last.Stats != nil && last.Duration != nil {
		return last
	}
	if len(detailed) == 0 {
		return last
	}

	src := detailed[len(detailed)-1]
	if name := last.Key(); name != "" {
		for _, a := range detailed {
			if a.Key() == name {
				src = a
				break
			}
		}
	}

	if last.Stats == nil {
		last.Stats = src.Stats
	}
	if last.Duration == nil {
		last.Duration = src.Duration
	}
	if last.Start == "" {
		last.Start = src.Start
	}
	return last
}

func isListRecord(doc json.RawMessage) bool {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(doc, &fields); err != nil {
		return false
	}
	_, hasArchives := fields["archives"]
	_, hasRepository := fields["repository"]
	return hasArchives || hasRepository
}

func malformed(err error, format string, args ...interface{}) error {
	return cerr.Mark(cerr.Wrapf(err, format, args...), ErrMalformedOutput)
}

// invalid turns validator output into one readable error listing missing fields.
func invalid(config, repo string, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return cerr.Mark(cerr.Wrapf(err, "%s: repository %q", config, repo), ErrMalformedOutput)
	}

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		ns := fe.Namespace()
		if i := strings.Index(ns, "."); i >= 0 {
			ns = ns[i+1:]
		}
		fields = append(fields, ns)
	}
	sort.Strings(fields)

	return cerr.Mark(
		fmt.Errorf("%s: repository %q: missing or empty fields: %s", config, repo, strings.Join(fields, ", ")),
		ErrMalformedOutput)
}
