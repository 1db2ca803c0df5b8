// Package app provides the entry point for the popcorn-session command-line application.
package app

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/popcorntime/session/pkg/auth/service"
	"github.com/popcorntime/session/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:               "popcorn-session",
	DisableAutoGenTag: true,
	Short:             "popcorn-session manages the Popcorn Time desktop session",
	Long: `popcorn-session manages the Popcorn Time desktop session from the command line.

It drives the same authorization core the desktop shell uses: browser-based
login through the identity provider, token storage in the shared settings
file, and session validation with transparent refresh.`,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		// Re-initialize once flags are parsed so --debug takes effect.
		logger.Initialize()
	},
	Run: func(cmd *cobra.Command, _ []string) {
		// If no subcommand is provided, print help
		if err := cmd.Help(); err != nil {
			logger.Errorf("Error displaying help: %v", err)
		}
	},
}

// NewRootCmd creates a new root command for the popcorn-session CLI.
func NewRootCmd() *cobra.Command {
	// Add persistent flags
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug mode")
	rootCmd.PersistentFlags().String("client-id", "", "OAuth client ID (defaults to the desktop app's)")
	rootCmd.PersistentFlags().String("issuer", "", "Identity provider base URL")
	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		logger.Fatalf("Failed to bind debug flag: %v", err)
	}

	// Add subcommands
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(newSettingsCommand())

	return rootCmd
}

// newService builds the authorization service from the root flags.
func newService(cmd *cobra.Command) (*service.Service, error) {
	clientID, err := cmd.Flags().GetString("client-id")
	if err != nil {
		return nil, err
	}
	issuer, err := cmd.Flags().GetString("issuer")
	if err != nil {
		return nil, err
	}

	return service.New(service.Config{
		ClientID: clientID,
		Issuer:   issuer,
	})
}
