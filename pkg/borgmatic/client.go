// pkg/borgmatic/client.go

package borgmatic

import (
	"context"

	cerr "github.com/cockroachdb/errors"
	"github.com/hashicorp/go-version"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// Client wraps borgmatic invocations for metric collection.
type Client struct {
	runner   Runner
	commands CommandSet
}

// NewClient creates a client that runs commands through runner.
func NewClient(runner Runner, commands CommandSet) *Client {
	return &Client{runner: runner, commands: commands}
}

// Collection is the outcome of querying one borgmatic config.
type Collection struct {
	Config  string
	Reports []Report
	// Problems are per-repository failures; all marked ErrMalformedOutput.
	Problems []error
}

// Collect runs the info and list commands for one config and turns their
// output into per-repository reports. A returned error means a command could
// not be run; data problems are reported in Collection.Problems instead.
func (c *Client) Collect(ctx context.Context, config string) (*Collection, error) {
	logger := otelzap.Ctx(ctx)

	infoCmd := c.commands.Info(config)
	infoDocs, err := c.runner.Run(ctx, infoCmd)
	if err != nil {
		return nil, cerr.Wrapf(err, "repository info for %s", config)
	}

	listCmd := c.commands.List(config)
	listDocs, err := c.runner.Run(ctx, listCmd)
	if err != nil {
		return nil, cerr.Wrapf(err, "archive list for %s", config)
	}

	col := &Collection{Config: config}

	infos, err := ParseRepositoryInfos(infoDocs)
	if err != nil {
		col.Problems = append(col.Problems, cerr.Wrapf(err, "%s", config))
		return col, nil
	}
	lists, err := ParseArchiveLists(listDocs)
	if err != nil {
		col.Problems = append(col.Problems, cerr.Wrapf(err, "%s", config))
		return col, nil
	}

	col.Reports, col.Problems = BuildReports(config, infos, lists)

	logger.Debug("Collected borgmatic config",
		zap.String("config", config),
		zap.Int("repositories", len(infos)),
		zap.Int("reports", len(col.Reports)),
		zap.Int("problems", len(col.Problems)))

	return col, nil
}

// Version runs `borgmatic --version` and parses the result.
func (c *Client) Version(ctx context.Context) (*version.Version, error) {
	tr, ok := c.runner.(TextRunner)
	if !ok {
		return nil, cerr.New("runner cannot report plain text output")
	}
	out, err := tr.Output(ctx, c.commands.Version())
	if err != nil {
		return nil, cerr.Wrap(err, "borgmatic --version")
	}
	return ParseVersion(string(out))
}
