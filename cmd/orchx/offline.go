package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var offlineCmd = &cobra.Command{
	Use:   "offline",
	Short: "Show what changed in every watched repo while orchx was not running (get_offline_changes)",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Shutdown()

		changes, err := a.GetOfflineChanges()
		if err != nil {
			return fmt.Errorf("get offline changes: %w", err)
		}

		if len(changes) == 0 {
			fmt.Println("no watched projects")
			return nil
		}

		for _, c := range changes {
			fmt.Printf("%s\n", c.RepoFullName)
			if c.LastShutdown == "" {
				fmt.Println("  no prior shutdown marker")
			} else if t, err := time.Parse(time.RFC3339, c.LastShutdown); err == nil {
				fmt.Printf("  last shutdown: %s (%s)\n", c.LastShutdown, humanize.Time(t))
			} else {
				fmt.Printf("  last shutdown: %s\n", c.LastShutdown)
			}
			fmt.Printf("  git diff: %d file(s)\n", len(c.GitChanges))
			for _, f := range c.GitChanges {
				fmt.Printf("    %s\n", f)
			}
			fmt.Printf("  modified since shutdown: %d file(s)\n", len(c.TimestampChanges))
			for _, f := range c.TimestampChanges {
				fmt.Printf("    %s\n", f)
			}
		}
		return nil
	},
}
