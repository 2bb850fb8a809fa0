package main

import (
	"fmt"
	"os"

	"github.com/agentuity/fetch-mcp/jina"
	"github.com/spf13/cobra"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "fetch-mcp",
		Short:         "MCP server that fetches web pages and searches the web",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("env-file", ".env", "environment file to load before reading settings")
	root.PersistentFlags().String("log-level", "", "log level: trace, debug, info, warn or error (env LOG_LEVEL)")
	root.PersistentFlags().String("log-format", "", "log format: console or json (env LOG_FORMAT)")
	root.AddCommand(newServeCommand(), newConfigCommand(), newVersionCommand())
	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "fetch-mcp %s (%s)\n", Version, Commit)
		},
	}
}

func newConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective settings with secrets masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			buf, err := settings.YAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(buf)
			return err
		},
	}
}

func main() {
	jina.Version = Version
	jina.Commit = Commit
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}
