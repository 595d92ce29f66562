package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/c360/fnruntime/isolation"
	"github.com/c360/fnruntime/resolver"
)

// NewTargetsCommand creates the targets command.
func NewTargetsCommand(rootOpts *RootOptions) *cobra.Command {
	var artifact string

	cmd := &cobra.Command{
		Use:   "targets",
		Short: "List the registered function targets",
		Long: `List every target that can be served, with the contract it binds to.

Example:
  fnruntime targets
  fnruntime targets --artifact ./build/functions.so`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := newLogger(cmd.ErrOrStderr(), rootOpts.LogLevel, rootOpts.LogFormat)
			scope := isolation.NewScope(isolation.WithLogger(logger))

			registry, err := loadRegistry(cmd.Context(), artifact, scope, logger)
			if err != nil {
				return err
			}
			return listTargets(cmd, registry, resolver.New(registry, resolver.WithScope(scope), resolver.WithLogger(logger)))
		},
	}
	cmd.Flags().StringVar(&artifact, "artifact", "", "also list the functions of this plugin")

	return cmd
}

func listTargets(cmd *cobra.Command, registry *resolver.Registry, res *resolver.Resolver) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "TARGET\tCONTRACT")

	for _, name := range registry.Names() {
		target, err := resolver.ParseTarget(name)
		if err != nil {
			return err
		}
		kind := "function set"
		if c, err := res.Resolve(cmd.Context(), target); err == nil {
			kind = c.Kind.String()
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\n", name, kind)
	}
	return w.Flush()
}
