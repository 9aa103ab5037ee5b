package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const version = "1.0.0"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "phpeek-pm",
	Short: "Worker instance supervisor",
	Long: `phpeek-pm supervises groups of worker process instances: forking and
reaping them, restarting within a bounded rate, dialing their service
sockets for periodic stats, and exposing a read-only HTTP snapshot.

Examples:
  phpeek-pm serve                      # run the supervisor
  phpeek-pm validate-config            # check a config file without running`,
	Version: version,
	Run: func(cmd *cobra.Command, args []string) {
		serveCmd.Run(cmd, args)
	},
}

// Execute runs the root command, exiting non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "path to configuration file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(validateConfigCmd)
	rootCmd.AddCommand(tuiCmd)
}

// configPath resolves the config file location: the --config flag, then
// PHPEEK_PM_CONFIG, then a fixed system path.
func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if envPath := os.Getenv("PHPEEK_PM_CONFIG"); envPath != "" {
		return envPath
	}
	return "/etc/phpeek-pm/phpeek-pm.yaml"
}
