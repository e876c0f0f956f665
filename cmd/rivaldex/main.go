// Package main provides the rivaldex CLI entry point.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "rivaldex",
		Short:   "Track competitor accounts from the command line",
		Long:    `Rivaldex talks to a running rivaldexd service to add and inspect tracked competitor accounts.`,
		Version: version,
	}

	rootCmd.PersistentFlags().String("api", envOrDefault("RIVALDEX_API", "http://localhost:8080"), "base URL of the rivaldexd service")
	rootCmd.PersistentFlags().String("api-key", os.Getenv("RIVALDEX_API_KEY"), "API key for the rivaldexd service")

	rootCmd.AddCommand(
		newAddCmd(),
		newListCmd(),
		newGetCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
