// cmd/wardboard/main.go
//
// This is the entry point for the wardboard dashboard.
// Run it from the directory that should hold the .wardboard folder.
//
// Flow:
// 1. Initialize .wardboard (config, logs, session state)
// 2. Apply one-off flags (-api persists the bed service URL, -token starts a session)
// 3. Launch the TUI

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/wardboard/internal/config"
	"github.com/kingrea/wardboard/internal/session"
	"github.com/kingrea/wardboard/internal/tui"
)

func main() {
	var (
		dir   string
		token string
		api   string
	)
	flag.StringVar(&dir, "dir", "", "project directory holding .wardboard (defaults to the working directory)")
	flag.StringVar(&token, "token", "", "bearer token to store as the active session")
	flag.StringVar(&api, "api", "", "bed service base URL to save in .wardboard/config.yaml")
	flag.Parse()

	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error getting working directory: %v\n", err)
			os.Exit(1)
		}
		dir = cwd
	}

	if err := config.InitWardDir(dir); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing .wardboard directory: %v\n", err)
		os.Exit(1)
	}

	if strings.TrimSpace(api) != "" || strings.TrimSpace(token) != "" {
		if err := applyFlags(dir, api, token); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	app, err := tui.NewApp(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error starting dashboard: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	p := tea.NewProgram(
		app,
		tea.WithAltScreen(), // Use alternate screen buffer (like vim does)
	)

	// Run blocks until the user quits
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running TUI: %v\n", err)
		os.Exit(1)
	}
}

func applyFlags(dir, api, token string) error {
	cfg, err := config.NewConfig(dir)
	if err != nil {
		return err
	}
	if api = strings.TrimSpace(api); api != "" {
		if err := cfg.SetBaseURL(api); err != nil {
			return err
		}
		fmt.Printf("Bed service set to %s\n", cfg.Project.API.BaseURL)
	}
	if token = strings.TrimSpace(token); token != "" {
		store, err := session.FromConfig(cfg)
		if err != nil {
			return err
		}
		if closer, ok := store.(interface{ Close() error }); ok {
			defer closer.Close()
		}
		if err := store.Save(context.Background(), token); err != nil {
			return fmt.Errorf("save session: %w", err)
		}
		fmt.Println("Session saved.")
	}
	return nil
}
