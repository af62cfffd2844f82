package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/uber/gql-panel-lsp/src/gqlsp/app"
	"github.com/uber/gql-panel-lsp/src/gqlsp/internal/core"
	"github.com/uber/gql-panel-lsp/src/gqlsp/internal/jsonrpcfx"
	"go.uber.org/fx"
)

// Set at link time with -ldflags "-X main._version=...".
var _version = "development"

const _flagStdio = "stdio"

func opts(overrides core.Overrides) fx.Option {
	return fx.Options(
		app.Module,
		fx.Supply(overrides),
	)
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "gqlsp",
		Short:         "GraphQL query panel language server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCommand(), newVersionCommand())
	return root
}

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the language server daemon",
		Long: `Run the language server daemon.

By default the daemon listens on the configured TCP address and writes it to the server info file.
With --stdio it serves a single client over standard input and output.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides, err := serveOverrides(cmd)
			if err != nil {
				return err
			}
			fx.New(opts(overrides)).Run()
			return nil
		},
	}
	cmd.Flags().Bool(_flagStdio, false, "serve a single client over stdin/stdout")
	return cmd
}

// serveOverrides turns command line flags into configuration overrides.
func serveOverrides(cmd *cobra.Command) (core.Overrides, error) {
	overrides := core.Overrides{}
	stdio, err := cmd.Flags().GetBool(_flagStdio)
	if err != nil {
		return nil, err
	}
	if stdio {
		overrides["jsonrpc.transport"] = jsonrpcfx.TransportStdio
	}
	return overrides, nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "gqlsp %s\n", _version)
		},
	}
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
