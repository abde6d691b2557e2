// Package main is the entry point for the attio-hub server and tools.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/robbyautoki/attio-hub/pkg/vault"
)

const (
	appName    = "attio-hub"
	appVersion = "0.1.0"
)

var configPath string

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   appName,
		Short: "Integration execution engine for SaaS automations",
		Long:  "attio-hub wires inbound events (bookings, CRM changes, forms) to sequences of third-party API calls and records what happened.",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(dispatchRemindersCmd())
	rootCmd.AddCommand(keygenCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s\n", appName, appVersion)
		},
	}
}

func keygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate a credential encryption key",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := vault.GenerateEncryptionKey()
			if err != nil {
				return err
			}
			fmt.Println(key)
			return nil
		},
	}
}
