package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Manage watched projects",
}

var watchAddCmd = &cobra.Command{
	Use:   "add REPO_FULL_NAME PATH",
	Short: "Start watching a local repository (add_watch_project)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Shutdown()

		if err := a.AddWatchProject(args[0], args[1]); err != nil {
			return fmt.Errorf("add watch project: %w", err)
		}
		fmt.Printf("watching %s at %s\n", args[0], args[1])
		return nil
	},
}

var watchRemoveCmd = &cobra.Command{
	Use:   "remove REPO_FULL_NAME",
	Short: "Stop watching a repository (remove_watch_project)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Shutdown()

		if err := a.RemoveWatchProject(args[0]); err != nil {
			return fmt.Errorf("remove watch project: %w", err)
		}
		fmt.Printf("stopped watching %s\n", args[0])
		return nil
	},
}

var watchToggleCmd = &cobra.Command{
	Use:   "toggle",
	Short: "Toggle watching on or off for every known project (toggle_watch_all)",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Shutdown()

		result := a.ToggleWatchAll()
		state := "disabled"
		if result.Enabled {
			state = "enabled"
		}
		fmt.Printf("watching %s across %d project(s)\n", state, result.ProjectCount)
		return nil
	},
}

var watchStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show watch status for every known project (get_watch_status)",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Shutdown()

		printWatchStatus(a.GetWatchStatus())
		return nil
	},
}

func init() {
	watchCmd.AddCommand(watchAddCmd)
	watchCmd.AddCommand(watchRemoveCmd)
	watchCmd.AddCommand(watchToggleCmd)
	watchCmd.AddCommand(watchStatusCmd)
}
