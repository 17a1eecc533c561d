package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "trendfit",
		Short:         "Match policy trends to organizations and pick a diverse set worth acting on",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")

	root.AddCommand(collectCmd())
	root.AddCommand(scoreCmd())
	root.AddCommand(recommendCmd())
	root.AddCommand(orgCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(runCmd())

	return root
}

func collectCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Collect feeds into trend signals (or load signals from a file)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCollect(cmd.Context(), file)
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "load signals from a YAML/JSON file instead of the feeds")
	return cmd
}

func scoreCmd() *cobra.Command {
	var (
		orgID      string
		jsonOutput bool
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Show relevance and decision scores of stored signals for one organization",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScore(cmd.Context(), orgID, jsonOutput, limit)
		},
	}

	cmd.Flags().StringVar(&orgID, "org", "", "organization ID")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	cmd.Flags().IntVar(&limit, "limit", 20, "max trends to show")
	cmd.MarkFlagRequired("org")
	return cmd
}

func recommendCmd() *cobra.Command {
	var (
		orgIDs     []string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Select and store a diverse recommendation set per organization",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecommend(cmd.Context(), orgIDs, jsonOutput)
		},
	}

	cmd.Flags().StringSliceVar(&orgIDs, "org", nil, "organization IDs (default: all)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func orgCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "org",
		Short: "Manage organization profiles",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "import FILE",
		Short: "Import organization profiles, watchlists and affinities from YAML/JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOrgImport(cmd.Context(), args[0])
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List organization profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOrgList(cmd.Context())
		},
	})
	return cmd
}

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}

func runCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start daemon with scheduler and HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}
