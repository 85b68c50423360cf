package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"rewardvault/cmd/internal/scenario"
	"rewardvault/config"
	"rewardvault/core/state"
	"rewardvault/native/vault"
	"rewardvault/observability/logging"
	"rewardvault/storage"
)

const (
	simulateCommand = "simulate"
	inspectCommand  = "inspect"
	defaultConfig   = "./config.toml"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case simulateCommand:
		err = runSimulate(os.Args[2:], os.Stdout)
	case inspectCommand:
		err = runInspect(os.Args[2:], os.Stdout)
	default:
		usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: vaultctl <command> [flags]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  %s -scenario file.yaml   replay a scenario on an in-memory vault\n", simulateCommand)
	fmt.Fprintf(os.Stderr, "  %s -config config.toml   dump the stored vault state of a stopped daemon\n", inspectCommand)
}

func runSimulate(args []string, out io.Writer) error {
	fs := flag.NewFlagSet(simulateCommand, flag.ExitOnError)
	path := fs.String("scenario", "", "Path to the YAML scenario file")
	verbose := fs.Bool("v", false, "Log engine activity to stderr")
	fs.Parse(args)

	if *path == "" {
		return fmt.Errorf("-scenario is required")
	}
	sc, err := scenario.Load(*path)
	if err != nil {
		return err
	}
	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(logging.NewHandler(os.Stderr, level))

	result, runErr := scenario.Run(context.Background(), sc, logger)
	if result != nil {
		if err := writeJSON(out, result); err != nil {
			return err
		}
	}
	return runErr
}

type inspection struct {
	Pool      *vault.RewardPool   `json:"pool"`
	Ledger    *vault.ShareLedger  `json:"ledger"`
	Rate      *vault.RateSnapshot `json:"rate"`
	Positions []*vault.Position   `json:"positions"`
}

func runInspect(args []string, out io.Writer) error {
	fs := flag.NewFlagSet(inspectCommand, flag.ExitOnError)
	configPath := fs.String("config", defaultConfig, "Path to the vaultd config file")
	fs.Parse(args)

	cfg, err := config.LoadExisting(*configPath)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	db, err := storage.Open(cfg.DatabaseBackend, cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open database (is vaultd still running?): %w", err)
	}
	defer db.Close()
	return inspect(state.NewManager(db), out)
}

func inspect(manager *state.Manager, out io.Writer) error {
	var report inspection
	var err error
	if report.Pool, err = manager.LoadPool(); err != nil {
		return err
	}
	if report.Pool == nil {
		return vault.ErrNotInitialized
	}
	if report.Ledger, err = manager.LoadLedger(); err != nil {
		return err
	}
	if report.Rate, err = manager.LoadRate(); err != nil {
		return err
	}
	if report.Positions, err = manager.Positions(); err != nil {
		return err
	}
	return writeJSON(out, report)
}

func writeJSON(out io.Writer, value any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}
