package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "synapse",
	Short: "Critical-thinking challenge backend",
	Long: "Synapse hosts the challenge, progress and leaderboard functions behind a\n" +
		"single HTTP endpoint, and offers the same functions from the command line.",
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides SYNAPSE_DB)")
	rootCmd.PersistentFlags().String("env-file", "", "Path to a .env file (overrides SYNAPSE_ENV_FILE)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(invokeCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(leaderboardCmd)
	rootCmd.AddCommand(llmCmd)
	rootCmd.AddCommand(versionCmd)
}
