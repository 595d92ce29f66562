package main

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/c360/fnruntime/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	LogLevel   string
	LogFormat  string
}

var (
	validLevels  = []string{"debug", "info", "warn", "error"}
	validFormats = []string{"json", "text"}
)

// NewRootCommand creates the root command for the fnruntime CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "fnruntime - function invocation runtime",
		Long: `Serve a single function over HTTP.

The function is selected by its target name and bound to exactly one contract:
plain HTTP, CloudEvent, raw or typed legacy event, or typed request/response.
Events arrive as legacy JSON envelopes or as CloudEvents in binary or
structured mode, and are translated to what the function expects.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(validLevels, opts.LogLevel) {
				return fmt.Errorf("invalid log level %q: must be one of %v", opts.LogLevel, validLevels)
			}
			if !slices.Contains(validFormats, opts.LogFormat) {
				return fmt.Errorf("invalid log format %q: must be one of %v", opts.LogFormat, validFormats)
			}
			return nil
		},
	}

	f := cmd.PersistentFlags()
	f.StringVarP(&opts.ConfigPath, "config", "c", getEnv("FNRUNTIME_CONFIG", ""),
		"path to a JSON or YAML configuration file (env: FNRUNTIME_CONFIG)")
	f.StringVar(&opts.LogLevel, "log-level", getEnv(config.EnvLogLevel, "info"),
		"log level: debug, info, warn, error (env: "+config.EnvLogLevel+")")
	f.StringVar(&opts.LogFormat, "log-format", getEnv(config.EnvLogFormat, "json"),
		"log format: json, text (env: "+config.EnvLogFormat+")")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewTargetsCommand(opts))
	cmd.AddCommand(NewVersionCommand())

	return cmd
}

// NewVersionCommand creates the version command.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build %s)\n", appName, Version, BuildTime)
			return err
		},
	}
}
