package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"rewardvault/core/state"
	"rewardvault/native/vault"
	"rewardvault/storage"
)

func TestSimulatePrintsResult(t *testing.T) {
	var out bytes.Buffer
	path := filepath.Join("..", "internal", "scenario", "testdata", "zero_shares.yaml")
	require.NoError(t, runSimulate([]string{"-scenario", path}, &out))

	var result struct {
		RunID    string                     `json:"runId"`
		Scenario string                     `json:"scenario"`
		Accounts map[string]json.RawMessage `json:"accounts"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &result))
	require.Equal(t, "zero-shares", result.Scenario)
	require.NotEmpty(t, result.RunID)
	require.Equal(t, "2000", string(result.Accounts["vault"]))
}

func TestSimulateRequiresScenario(t *testing.T) {
	require.Error(t, runSimulate(nil, &bytes.Buffer{}))
}

func TestInspectDumpsState(t *testing.T) {
	manager := state.NewManager(storage.NewMemDB())
	require.True(t, errors.Is(inspect(manager, &bytes.Buffer{}), vault.ErrNotInitialized))

	pool := vault.NewRewardPool(big.NewInt(100))
	ledger := vault.NewShareLedger()
	pos := vault.NewPosition(vault.PositionKey{Validator: "v1", Participant: "alice"}, big.NewInt(0))
	require.NoError(t, manager.Commit(&vault.Changeset{
		Pool:      pool,
		Ledger:    ledger,
		Rate:      vault.NewRateSnapshot(3),
		Positions: []*vault.Position{pos},
	}))

	var out bytes.Buffer
	require.NoError(t, inspect(manager, &out))
	var report map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	require.Contains(t, report, "pool")
	require.Contains(t, string(report["positions"]), "alice")
}

func TestInspectMissingConfigIsNotCreated(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	err := runInspect([]string{"-config", path}, &bytes.Buffer{})
	require.ErrorContains(t, err, "failed to read config")

	_, statErr := os.Stat(path)
	require.True(t, os.IsNotExist(statErr))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}
