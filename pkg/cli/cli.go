// pkg/cli/cli.go

// Package cli holds flag helpers shared by the exporter's cobra commands.
// Flags are registered with cobra and then bound to viper so that a flag,
// an environment variable and a config file key all resolve to one setting.
package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// AddStringFlag adds a string flag and optionally marks it as required.
// Env/Config are handled by Viper if you call BindFlagsToViper.
func AddStringFlag(fs *pflag.FlagSet, name, shorthand, def, help string, required bool) {
	fs.StringP(name, shorthand, def, help)
	if required {
		if err := cobra.MarkFlagRequired(fs, name); err != nil {
			// Cobra still validates required flags at runtime
			fmt.Fprintf(os.Stderr, "warning: failed to mark flag %s as required: %v\n", name, err)
		}
	}
}

// AddBoolFlag adds a boolean flag.
func AddBoolFlag(fs *pflag.FlagSet, name, shorthand string, def bool, help string) {
	fs.BoolP(name, shorthand, def, help)
}

// AddDurationFlag adds a duration flag.
func AddDurationFlag(fs *pflag.FlagSet, name string, def time.Duration, help string) {
	fs.Duration(name, def, help)
}

// AddUint32Flag adds an unsigned counter flag.
func AddUint32Flag(fs *pflag.FlagSet, name string, def uint32, help string) {
	fs.Uint32(name, def, help)
}

// AddStringSliceFlag adds a string slice flag.
func AddStringSliceFlag(fs *pflag.FlagSet, name, shorthand string, def []string, help string) {
	fs.StringSliceP(name, shorthand, def, help)
}

// KeyForFlag maps a flag name to its config key: dashes become underscores
// and the first dash of a known section becomes a dot (telemetry-path →
// telemetry.path).
func KeyForFlag(name string) string {
	for _, section := range []string{"telemetry", "breaker"} {
		if strings.HasPrefix(name, section+"-") {
			return section + "." + strings.ReplaceAll(strings.TrimPrefix(name, section+"-"), "-", "_")
		}
	}
	return strings.ReplaceAll(name, "-", "_")
}

// BindFlagsToViper binds every flag of a command, local and persistent, to
// its config key.
func BindFlagsToViper(cmd *cobra.Command, v *viper.Viper) error {
	var result error
	bind := func(f *pflag.Flag) {
		if err := v.BindPFlag(KeyForFlag(f.Name), f); err != nil {
			result = multierror.Append(result, err)
		}
	}
	cmd.Flags().VisitAll(bind)
	cmd.InheritedFlags().VisitAll(bind)
	return result
}

// SetViperEnvPrefix lets Viper read PREFIX_KEY environment variables, with
// nested keys joined by underscores (telemetry.path → PREFIX_TELEMETRY_PATH).
func SetViperEnvPrefix(v *viper.Viper, prefix string) {
	v.SetEnvPrefix(prefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
}

// GetStringOrEmpty returns the string value or empty string if error.
func GetStringOrEmpty(cmd *cobra.Command, name string) string {
	val, err := cmd.Flags().GetString(name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to get flag %s: %v\n", name, err)
		return ""
	}
	return val
}

// ShowHelp prints the command's help without exiting.
func ShowHelp(cmd *cobra.Command) error {
	return cmd.Help()
}
