package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the workgate gateway
var rootCmd = &cobra.Command{
	Use:   "workgate",
	Short: "MCP gateway exposing Google Workspace APIs to AI agents",
	Long: `workgate is a Model Context Protocol (MCP) gateway that exposes Gmail,
Calendar, Drive and Forms to AI agents over JSON-RPC 2.0.

Agents authenticate with a bearer token or a browser session cookie; the
gateway keeps the underlying Google OAuth credentials fresh and shields
the upstream APIs with per-operation circuit breakers.`,
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
	rootCmd.SetVersionTemplate(`{{printf "workgate version %s\n" .Version}}`)

	// A local .env is convenient in development; absence is not an error.
	_ = godotenv.Load()

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Display version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("workgate version %s\n", version)
		},
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newTokenCmd())
	rootCmd.AddCommand(newVersionCmd())
}
