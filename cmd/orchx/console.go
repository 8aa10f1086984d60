package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/anthropics/orchx/internal/app"
	"github.com/anthropics/orchx/internal/events"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Interactive console: issue commands and watch live file/commit events",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		c, err := newConsole(a)
		if err != nil {
			return err
		}
		return c.run()
	},
}

// console is the interactive REPL: a readline instance issuing one-line
// commands against the same App methods the CLI subcommands call, with
// live watcher events printed as they arrive on a background goroutine.
type console struct {
	app *app.App
	rl  *readline.Instance

	shutdownOnce sync.Once
}

func newConsole(a *app.App) (*console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "\033[36morchx>\033[0m ",
		HistoryFile:     historyFilePath(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("readline: %w", err)
	}
	return &console{app: a, rl: rl}, nil
}

func historyFilePath() string {
	dir, err := os.UserHomeDir()
	if err != nil {
		return ".orchx_history"
	}
	return dir + "/.orchx_history"
}

func (c *console) run() error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		c.shutdown()
		os.Exit(0)
	}()

	go c.printEvents()

	fmt.Println("orchx console - type 'help' for commands, Ctrl-D to exit")

	for {
		line, err := c.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			if err == io.EOF {
				break
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if err := c.dispatch(line); err != nil {
			fmt.Printf("\033[31merror: %v\033[0m\n", err)
		}
	}

	c.shutdown()
	return nil
}

// printEvents drains the event bus and prints every file-change and
// commit-detected event as it arrives, for as long as the console runs.
func (c *console) printEvents() {
	for e := range c.app.Events() {
		switch e.Kind {
		case events.KindFileChange:
			p := e.FileChange
			line := fmt.Sprintf("[%s] %s %s", p.RepoFullName, p.EventType, p.Path)
			if p.Violation != "" {
				line += fmt.Sprintf(" (violation: %s)", p.Violation)
			}
			fmt.Println(line)
		case events.KindCommitDetected:
			p := e.CommitDetected
			fmt.Printf("[%s] commit detected (total %d)\n", p.RepoFullName, p.Count)
		case events.KindOAuthCallback:
			fmt.Printf("oauth callback received: %s\n", e.OAuthCallback.Code)
		}
	}
}

func (c *console) dispatch(line string) error {
	fields := strings.Fields(line)
	cmd, rest := fields[0], fields[1:]

	switch cmd {
	case "help":
		c.printHelp()
	case "exit", "quit":
		c.shutdown()
		os.Exit(0)
	case "watch":
		return c.dispatchWatch(rest)
	case "offline":
		return c.cmdOffline()
	case "resolve":
		return c.cmdResolve(rest)
	default:
		fmt.Printf("unknown command %q, type 'help'\n", cmd)
	}
	return nil
}

func (c *console) dispatchWatch(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: watch <add|remove|toggle|status> ...")
	}
	switch args[0] {
	case "add":
		if len(args) != 3 {
			return fmt.Errorf("usage: watch add REPO_FULL_NAME PATH")
		}
		if err := c.app.AddWatchProject(args[1], args[2]); err != nil {
			return err
		}
		fmt.Printf("watching %s at %s\n", args[1], args[2])
	case "remove":
		if len(args) != 2 {
			return fmt.Errorf("usage: watch remove REPO_FULL_NAME")
		}
		if err := c.app.RemoveWatchProject(args[1]); err != nil {
			return err
		}
		fmt.Printf("stopped watching %s\n", args[1])
	case "toggle":
		result := c.app.ToggleWatchAll()
		fmt.Printf("watching enabled=%v across %d project(s)\n", result.Enabled, result.ProjectCount)
	case "status":
		printWatchStatus(c.app.GetWatchStatus())
	default:
		return fmt.Errorf("unknown watch subcommand %q", args[0])
	}
	return nil
}

func (c *console) cmdOffline() error {
	changes, err := c.app.GetOfflineChanges()
	if err != nil {
		return err
	}
	for _, ch := range changes {
		fmt.Printf("%s: %d git diff, %d modified since shutdown\n",
			ch.RepoFullName, len(ch.GitChanges), len(ch.TimestampChanges))
	}
	return nil
}

func (c *console) cmdResolve(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: resolve REPO_URL [REPO_URL...]")
	}
	matches, err := c.app.ResolveLocalPaths(args)
	if err != nil {
		return err
	}
	for repo, path := range matches {
		fmt.Printf("%-30s %s\n", repo, path)
	}
	return nil
}

func (c *console) printHelp() {
	fmt.Println(strings.TrimSpace(`
commands:
  watch add REPO PATH     start watching a local repository
  watch remove REPO       stop watching a repository
  watch toggle            toggle watching on/off for every project
  watch status             show watch status
  offline                  show offline changes for every watched project
  resolve URL [URL...]     match repo URLs against local git clones
  help                     show this message
  exit, quit               quit the console
`))
}

func (c *console) shutdown() {
	c.shutdownOnce.Do(func() {
		c.rl.Close()
		if err := c.app.Shutdown(); err != nil {
			fmt.Fprintf(os.Stderr, "shutdown: %v\n", err)
		}
	})
}
