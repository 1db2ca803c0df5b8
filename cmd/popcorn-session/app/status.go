package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/popcorntime/session/pkg/errors"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current session state",
	Long: `Show the current session state.

Validates the stored session against the identity provider, refreshing the
access token if it has expired.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		svc, err := newService(cmd)
		if err != nil {
			return err
		}

		validateErr := svc.Validate(cmd.Context())
		switch {
		case validateErr == nil:
		case errors.IsInvalidSession(validateErr):
			// Not logged in is a status, not a failure.
		default:
			return validateErr
		}

		fmt.Printf("State:    %s\n", svc.State())
		fmt.Printf("Settings: %s\n", svc.Store().Path())
		return nil
	},
}
