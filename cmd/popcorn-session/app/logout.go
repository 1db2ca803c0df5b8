package app

import (
	"fmt"

	"github.com/spf13/cobra"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Log out and clear the stored tokens",
	RunE: func(cmd *cobra.Command, _ []string) error {
		svc, err := newService(cmd)
		if err != nil {
			return err
		}
		if err := svc.Logout(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("Logged out.")
		return nil
	},
}
