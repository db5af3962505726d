package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the connectd application
var rootCmd = &cobra.Command{
	Use:   "connectd",
	Short: "OAuth connection broker for AgenticMail skills",
	Long: `connectd brokers OAuth 2.0 authorization code flows on behalf of
AgenticMail skills. Skills never handle provider credentials or tokens:
connectd builds the authorization URL, holds the PKCE verifier and CSRF
state while the user approves access, and redeems the authorization code
when the provider redirects back.

It can run as:
  - An HTTP service exposing the connection API (default)
  - An MCP (Model Context Protocol) server for AI assistants`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "connectd version %s\n" .Version}}`)

	// If no subcommand is provided, run the serve command by default
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newProvidersCmd())
	rootCmd.AddCommand(newVersionCmd())
}
