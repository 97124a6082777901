// pkg/config/resolve.go

package config

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/CodeMonkeyCybersecurity/borgmatic-exporter/pkg/exporter_err"
	cerr "github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// ErrNoConfigs is returned when no borgmatic config file could be found.
var ErrNoConfigs = cerr.New("no borgmatic configuration files found")

// ResolveConfigs expands glob patterns and drops paths that do not exist.
// Paths keep the order they were given in; the matches of a single glob are
// sorted. A path seen twice is kept at its first position. An empty result is
// a validation error.
func ResolveConfigs(ctx context.Context, patterns []string) ([]string, error) {
	log := otelzap.Ctx(ctx)
	seen := make(map[string]struct{})
	var out []string

	add := func(path string) {
		if _, dup := seen[path]; dup {
			return
		}
		seen[path] = struct{}{}
		out = append(out, path)
	}

	for _, pattern := range patterns {
		if !isGlob(pattern) {
			if _, err := os.Stat(pattern); err != nil {
				log.Warn("Skipping borgmatic config", zap.String("path", pattern), zap.Error(err))
				continue
			}
			add(pattern)
			continue
		}

		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, exporter_err.NewValidationError("bad config pattern "+pattern, err)
		}
		sort.Strings(matches)
		for _, m := range matches {
			add(m)
		}
	}

	if len(out) == 0 {
		return nil, exporter_err.NewValidationError(ErrNoConfigs.Error(),
			cerr.Wrapf(ErrNoConfigs, "searched %s", strings.Join(patterns, ", ")),
			"pass --borgmatic-config or set "+EnvPrefix+"_BORGMATIC_CONFIG")
	}
	return out, nil
}

func isGlob(p string) bool {
	return strings.ContainsAny(p, "*?[")
}

// LoadEnvFile reads KEY=VALUE pairs (BORG_PASSPHRASE and friends) for the
// borgmatic subprocess. The exporter's own environment is not modified.
func LoadEnvFile(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	vars, err := godotenv.Read(path)
	if err != nil {
		return nil, cerr.Wrapf(err, "read env file %s", path)
	}

	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := make([]string, 0, len(vars))
	for _, k := range keys {
		env = append(env, k+"="+vars[k])
	}
	return env, nil
}
