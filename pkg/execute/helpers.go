// pkg/execute/helpers.go

package execute

import (
	"os"
	"strings"

	cerr "github.com/cockroachdb/errors"
	"mvdan.cc/sh/v3/shell"
)

func buildCommandString(command string, args ...string) string {
	if len(args) == 0 {
		return command
	}
	return command + " " + strings.Join(args, " ")
}

// SplitCommandLine turns a command line into an argv using POSIX shell quoting
// and variable expansion. Command substitution, pipes and redirections are
// rejected; nothing is ever handed to a shell. It is used for settings that
// name a program, such as "sudo -n borgmatic" or a quoted path.
func SplitCommandLine(line string) ([]string, error) {
	fields, err := shell.Fields(line, os.Getenv)
	if err != nil {
		return nil, cerr.Wrapf(err, "parsing command line %q", line)
	}
	if len(fields) == 0 {
		return nil, cerr.Newf("empty command line %q", line)
	}
	return fields, nil
}

// SplitFields splits a command line on whitespace. Quote characters are kept
// as part of the arguments and nothing is expanded, so
// `echo {"a": 1}` runs echo with the arguments `{"a":` and `1}`.
func SplitFields(line string) ([]string, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, cerr.Newf("empty command line %q", line)
	}
	return fields, nil
}
