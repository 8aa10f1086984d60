package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/anthropics/orchx/internal/events"
)

var oauthCmd = &cobra.Command{
	Use:   "oauth",
	Short: "OAuth callback server operations",
}

var oauthServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the single-shot OAuth callback server and print its URL (start_oauth_server)",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Shutdown()

		callbackURL, err := a.StartOAuthServer()
		if err != nil {
			return fmt.Errorf("start oauth server: %w", err)
		}
		fmt.Printf("callback URL: %s\n", callbackURL)
		fmt.Println("waiting for a single callback, or Ctrl-C to cancel...")

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		select {
		case e := <-a.Events():
			if e.Kind == events.KindOAuthCallback {
				fmt.Printf("received authorization code: %s\n", e.OAuthCallback.Code)
			}
		case <-sigCh:
			fmt.Println("\ncancelled")
		}
		return nil
	},
}

func init() {
	oauthCmd.AddCommand(oauthServeCmd)
}
