// Package cli implements the command-line interface for docvec.
package cli

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nickbits/docvec/internal/config"
	"github.com/nickbits/docvec/internal/ui"
)

var (
	// Version information set at build time
	version = "dev"
	commit  = "none"
	date    = "unknown"

	// Global flags
	cfgFile string
	debug   bool
)

// SetVersionInfo sets the version information from build flags.
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "docvec [query]",
	Short: "Local document retrieval over embeddings",
	Long: `docvec ingests text, markdown, and PDF documents, embeds their chunks
using local (Ollama) or cloud (OpenAI) providers, and retrieves the most
relevant passages for a natural language query.

The store lives in memory and persists to a human-inspectable JSON
snapshot between runs.

Examples:
  # Ingest a document corpus
  docvec ingest ./docs

  # Retrieve relevant passages
  docvec "how do refunds work"

  # Show passage text in results
  docvec "how do refunds work" -c`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return cmd.Help()
		}
		return runQuery(cmd, args)
	},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if debug {
			log.SetLevel(log.DebugLevel)
			log.Debug("Debug logging enabled")
		}

		if err := config.Load(cfgFile); err != nil {
			return err
		}

		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	ui.InitLogger()

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/docvec/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(watchCmd)
}

// versionCmd shows version information
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("docvec %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

// runQuery is a convenience wrapper that delegates to the query command
func runQuery(cmd *cobra.Command, args []string) error {
	forwardQueryFlags(cmd)
	return runQueryCmd(cmd, args)
}

// forwardQueryFlags copies the root command's convenience flags into the
// module-level variables the query handler reads.
func forwardQueryFlags(cmd *cobra.Command) {
	if content, _ := cmd.Flags().GetBool("content"); content {
		queryContent = true
	}
	if limit, _ := cmd.Flags().GetInt("limit"); cmd.Flags().Changed("limit") {
		queryLimit = limit
	}
	if minScore, _ := cmd.Flags().GetFloat64("min-score"); cmd.Flags().Changed("min-score") {
		queryMinScore = minScore
	}
}

func init() {
	// Add query flags to root command for convenience
	rootCmd.Flags().BoolP("content", "c", false, "show passage text in results")
	rootCmd.Flags().IntP("limit", "m", 0, "maximum number of results")
	rootCmd.Flags().Float64("min-score", -2, "minimum similarity score (-1 to 1)")
}
