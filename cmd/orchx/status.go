package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/anthropics/orchx/internal/supervisor"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the watch status table (alias of watch status)",
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

// colorEnabled reports whether stdout is a terminal, the same gate the
// teacher's sibling repos use before reaching for fatih/color: redirected
// output (a log file, a pipe) stays plain text.
func colorEnabled() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

func printWatchStatus(status supervisor.WatchStatus) {
	green := color.New(color.FgGreen).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	if !colorEnabled() {
		green = fmt.Sprint
		gray = fmt.Sprint
		bold = fmt.Sprint
	}

	state := gray("disabled")
	if status.Enabled {
		state = green("enabled")
	}
	fmt.Printf("%s %v\n\n", bold("watching:"), state)

	if len(status.Projects) == 0 {
		fmt.Println("no projects registered")
		return
	}

	fmt.Printf("%-30s %-8s %s\n", "REPO", "STATE", "PATH")
	for _, p := range status.Projects {
		label := gray("idle")
		if p.Watching {
			label = green("active")
		}
		fmt.Printf("%-30s %-8s %s\n", p.RepoFullName, label, p.Path)
	}
}
