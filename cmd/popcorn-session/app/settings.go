package app

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newSettingsCommand() *cobra.Command {
	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "Read and write app settings",
	}

	getCmd := &cobra.Command{
		Use:   "get",
		Short: "Print the current app settings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := newService(cmd)
			if err != nil {
				return err
			}
			settings := svc.Settings()
			fmt.Printf("onboarded: %t\n", settings.Onboarded)
			fmt.Printf("analytics: %t\n", settings.EnableAnalytics)
			return nil
		},
	}

	setCmd := &cobra.Command{
		Use:       "set [onboarded|analytics] [true|false]",
		Short:     "Update an app setting",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"onboarded", "analytics"},
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := strconv.ParseBool(args[1])
			if err != nil {
				return fmt.Errorf("invalid value %q: expected true or false", args[1])
			}

			svc, err := newService(cmd)
			if err != nil {
				return err
			}

			switch args[0] {
			case "onboarded":
				return svc.SetOnboarded(cmd.Context(), value)
			case "analytics":
				return svc.SetEnableAnalytics(cmd.Context(), value)
			default:
				return fmt.Errorf("unknown setting %q", args[0])
			}
		},
	}

	settingsCmd.AddCommand(getCmd)
	settingsCmd.AddCommand(setCmd)
	return settingsCmd
}
