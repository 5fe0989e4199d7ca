package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "cleanhome",
		Short:         "Household chore scheduler",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("config", "", "YAML config file")
	rootCmd.PersistentFlags().String("db", "", "SQLite database path (overrides CLEANHOME_DB_PATH)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(monthCmd())
	rootCmd.AddCommand(dueCmd())
	rootCmd.AddCommand(levelsCmd())
	rootCmd.AddCommand(vapidCmd())
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
