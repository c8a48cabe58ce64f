// Package main is the entry point for orbwatch. It wires the
// configuration, store, extraction engine, and monitor together and
// runs either the TUI or a headless monitoring loop.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/orbwatch/internal/alerts"
	"github.com/j-veylop/orbwatch/internal/analytics"
	"github.com/j-veylop/orbwatch/internal/app"
	"github.com/j-veylop/orbwatch/internal/config"
	"github.com/j-veylop/orbwatch/internal/db"
	"github.com/j-veylop/orbwatch/internal/extract"
	"github.com/j-veylop/orbwatch/internal/logger"
	"github.com/j-veylop/orbwatch/internal/monitor"
	"github.com/j-veylop/orbwatch/internal/version"
)

func main() {
	headless := false
	for _, arg := range os.Args[1:] {
		switch arg {
		case "-v", "--version":
			fmt.Println(version.Info())
			os.Exit(0)
		case "-h", "--help":
			printUsage()
			os.Exit(0)
		case "--headless":
			headless = true
		default:
			fmt.Fprintf(os.Stderr, "Unknown flag: %s\n\n", arg)
			printUsage()
			os.Exit(1)
		}
	}

	if err := run(headless); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run contains the main application logic, separated for cleaner error handling.
func run(headless bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	database, err := db.New(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := database.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: error closing database: %v\n", closeErr)
		}
	}()

	patterns, err := config.WatchPatterns(cfg.PatternsPath)
	if err != nil {
		return fmt.Errorf("failed to load extraction patterns: %w", err)
	}
	defer patterns.Close()

	engine := extract.NewEngine(extract.Options{
		BaseURL:    cfg.PortalBaseURL,
		UseBrowser: cfg.EnableBrowser,
		Patterns:   patterns,
	})

	notifier := alerts.New(alerts.Options{
		Low:            cfg.LowThreshold,
		Critical:       cfg.CriticalThreshold,
		Cooldown:       cfg.AlertCooldown,
		Enabled:        cfg.EnableNotifications,
		NotifyOnChange: cfg.NotifyOnChange,
	})

	mon := monitor.New(cfg, engine, database, analytics.New(database), notifier)

	if headless {
		return runHeadless(mon)
	}
	return runTUI(cfg, mon)
}

// runHeadless runs the monitoring loop without a UI. Alerts still go
// out as desktop notifications when enabled.
func runHeadless(mon *monitor.Monitor) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mon.Run(ctx)
	return nil
}

// runTUI starts the monitor in the background and runs the Bubble Tea
// program on top of it. Logs move to a file so they do not corrupt the
// terminal.
func runTUI(cfg *config.Config, mon *monitor.Monitor) error {
	logFile, err := logger.UseFile(filepath.Join(filepath.Dir(cfg.DatabasePath), "orbwatch.log"))
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logFile.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mon.Run(ctx)

	model := app.NewModel(cfg, mon)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	p := tea.NewProgram(model, tea.WithAltScreen())

	go func() {
		<-sigChan
		p.Send(tea.Quit())
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	mon.Stop()
	return nil
}

// printUsage prints the command-line usage information.
func printUsage() {
	fmt.Println(`orbwatch - credit balance monitor for Orb-billed services

Usage:
  orbwatch [flags]

Flags:
  -h, --help      Show this help message
  -v, --version   Show version information
      --headless  Run the monitor loop without the TUI

Keyboard Shortcuts:
  r               Refresh balance now
  w, Tab          Cycle analytics window (24h, 7d, 30d)
  ?               Toggle help
  q, Ctrl+C       Quit

Environment Variables:
  ORBWATCH_TOKEN           Portal link token (required)
  ORBWATCH_PORTAL_URL      Portal base URL
  ORBWATCH_DATABASE_PATH   SQLite database path
  ORBWATCH_PATTERNS_PATH   Extraction pattern file path
  ORBWATCH_POLL_INTERVAL   Polling interval (default: 1m)
  ORBWATCH_LOW_THRESHOLD   Low balance alert threshold (default: 500)
  ORBWATCH_CRITICAL_THRESHOLD
                           Critical balance alert threshold (default: 100)
  ORBWATCH_NOTIFICATIONS   Enable desktop notifications (default: true)
  ORBWATCH_BROWSER         Enable the headless browser fallback (default: true)

Configuration:
  The application looks for .env files in the following locations:
  - Current directory
  - ~/.config/orbwatch/.env

For more information, visit: https://github.com/j-veylop/orbwatch`)
}
