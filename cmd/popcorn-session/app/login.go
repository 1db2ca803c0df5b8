package app

import (
	"fmt"
	"time"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/popcorntime/session/pkg/auth/oauth"
	"github.com/popcorntime/session/pkg/auth/service"
	"github.com/popcorntime/session/pkg/logger"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in through the browser",
	Long: `Log in through the browser.

Opens the identity provider's authorization page in the default browser and
waits for the callback. The resulting tokens are written to the shared
settings file, where the desktop shell picks them up.`,
	RunE: loginCmdFunc,
}

const loginPollInterval = 500 * time.Millisecond

func loginCmdFunc(cmd *cobra.Command, _ []string) error {
	svc, err := newService(cmd)
	if err != nil {
		return err
	}

	if err := svc.Validate(cmd.Context()); err == nil {
		fmt.Println("Already logged in.")
		return nil
	}

	err = svc.AuthorizeInBackground(func(event oauth.Event) error {
		fmt.Printf("Opening browser to complete login: %s\n", event.AuthorizeURL)
		if err := browser.OpenURL(event.AuthorizeURL); err != nil {
			logger.Warnf("Failed to open browser: %v", err)
			fmt.Println("Open the URL above manually to continue.")
		}
		return nil
	})
	if err != nil {
		return err
	}

	// Wait for the background attempt to settle.
	ticker := time.NewTicker(loginPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-cmd.Context().Done():
			return cmd.Context().Err()
		case <-ticker.C:
			switch svc.State() {
			case service.StateAuthenticated:
				fmt.Println("Login successful.")
				return nil
			case service.StateUnauthenticated:
				return fmt.Errorf("login did not complete")
			case service.StateAuthenticating, service.StateRefreshing:
				// still in flight
			}
		}
	}
}
