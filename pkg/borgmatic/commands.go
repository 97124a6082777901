// pkg/borgmatic/commands.go

package borgmatic

import (
	"strings"

	"github.com/CodeMonkeyCybersecurity/borgmatic-exporter/pkg/execute"
)

// DefaultBinary is looked up in PATH.
const DefaultBinary = "borgmatic"

var (
	// DefaultInfoArgs asks for repository totals plus the newest archive's stats.
	DefaultInfoArgs = []string{"info", "--json", "--last", "1"}
	// DefaultListArgs asks for every archive, oldest first.
	DefaultListArgs = []string{"list", "--json"}
)

// Command is an argv. It is never passed through a shell.
type Command struct {
	Name string
	Args []string
}

func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// CommandSet builds the borgmatic invocations for one config path.
type CommandSet struct {
	// Binary is the borgmatic program. It may carry a wrapper and its
	// options ("sudo -n borgmatic") and uses shell quoting for paths with
	// spaces.
	Binary   string
	InfoArgs []string
	ListArgs []string
}

// DefaultCommandSet returns the stock borgmatic invocations.
func DefaultCommandSet() CommandSet {
	return CommandSet{
		Binary:   DefaultBinary,
		InfoArgs: append([]string(nil), DefaultInfoArgs...),
		ListArgs: append([]string(nil), DefaultListArgs...),
	}
}

// Info is the repository info command for a config.
func (s CommandSet) Info(config string) Command {
	return s.build(config, s.InfoArgs, DefaultInfoArgs)
}

// List is the archive list command for a config.
func (s CommandSet) List(config string) Command {
	return s.build(config, s.ListArgs, DefaultListArgs)
}

// Version is `borgmatic --version`.
func (s CommandSet) Version() Command {
	name, args := s.binary()
	return Command{Name: name, Args: append(args, "--version")}
}

func (s CommandSet) build(config string, tail, fallback []string) Command {
	if len(tail) == 0 {
		tail = fallback
	}
	name, prefix := s.binary()
	args := make([]string, 0, len(prefix)+len(tail)+2)
	args = append(args, prefix...)
	args = append(args, "--config", config)
	args = append(args, tail...)
	return Command{Name: name, Args: args}
}

// binary splits Binary into the program and its leading arguments. A value
// that does not parse is used verbatim; Config validation reports it.
func (s CommandSet) binary() (string, []string) {
	if strings.TrimSpace(s.Binary) == "" {
		return DefaultBinary, nil
	}
	argv, err := execute.SplitCommandLine(s.Binary)
	if err != nil {
		return s.Binary, nil
	}
	return argv[0], argv[1:]
}
