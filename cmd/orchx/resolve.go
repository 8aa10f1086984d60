package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve REPO_URL [REPO_URL...]",
	Short: "Match GitHub repository URLs against local git clones (resolve_local_paths)",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Shutdown()

		matches, err := a.ResolveLocalPaths(args)
		if err != nil {
			return fmt.Errorf("resolve local paths: %w", err)
		}

		if len(matches) == 0 {
			fmt.Println("no local clones found")
			return nil
		}
		for repo, path := range matches {
			fmt.Printf("%-30s %s\n", repo, path)
		}
		return nil
	},
}
