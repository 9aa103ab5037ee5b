package main

import (
	"fmt"
	"os"

	"github.com/gophpeek/phpeek-pm/internal/config"
	"github.com/spf13/cobra"
)

var validateConfigCmd = &cobra.Command{
	Use:   "validate-config",
	Short: "Validate a configuration file",
	Long:  `Load and validate phpeek-pm's configuration without starting the supervisor.`,
	Run:   runValidateConfig,
}

func init() {
	validateConfigCmd.Flags().Bool("strict", false, "fail on warnings, not just errors")
}

func runValidateConfig(cmd *cobra.Command, args []string) {
	strict, _ := cmd.Flags().GetBool("strict")
	path := configPath()

	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration invalid: %v\n", err)
		os.Exit(1)
	}

	result := cfg.Validate()
	for _, issue := range result.Errors {
		fmt.Printf("ERROR %s: %s\n", issue.Field, issue.Message)
	}
	for _, issue := range result.Warnings {
		fmt.Printf("WARN  %s: %s\n", issue.Field, issue.Message)
	}

	instanceCount := 0
	for _, group := range cfg.Groups {
		for _, module := range group.Modules {
			instanceCount += len(module.Instances)
		}
	}

	if result.HasErrors() {
		fmt.Printf("\n%s: %d error(s), %d warning(s)\n", path, len(result.Errors), len(result.Warnings))
		os.Exit(1)
	}

	fmt.Printf("\n%s: ok (%d group(s), %d instance(s), %d warning(s))\n", path, len(cfg.Groups), instanceCount, len(result.Warnings))

	if strict && len(result.Warnings) > 0 {
		fmt.Println("strict mode: failing due to warnings")
		os.Exit(1)
	}
}
