package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kokoro-ai/taskadmin/internal/cli"
)

var rootCmd = &cobra.Command{
	Use:   "taskadmin",
	Short: "Task template and workflow publishing admin",
}

func main() {
	rootCmd.PersistentFlags().String("db", "", "Database connection string (overrides config and DB_* env vars)")
	rootCmd.PersistentFlags().String("config", "", "Path to the YAML config file")
	rootCmd.PersistentFlags().String("operator", "", "Operator name recorded in the audit log")
	cli.SetupCLI(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
