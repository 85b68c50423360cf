package scenario

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestRunTestdataScenarios(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)
	for _, path := range paths {
		path := path
		t.Run(filepath.Base(path), func(t *testing.T) {
			sc, err := Load(path)
			require.NoError(t, err)
			result, err := Run(context.Background(), sc, nil)
			require.NoError(t, err)
			require.Len(t, result.Steps, len(sc.Steps))
			_, err = uuid.Parse(result.RunID)
			require.NoError(t, err)
			require.NotEmpty(t, result.Events)

			final := result.Final
			held := result.Accounts[vaultAccount]
			outstanding := final.Allocatable.Int64() + final.Committed.Int64() + final.CarryRemainder.Int64()
			require.Equal(t, outstanding+final.TotalPrincipal.Int64(), held.Int64())
		})
	}
}

func TestRunReportsFailedExpectation(t *testing.T) {
	sc, err := Parse([]byte(`
name: wrong-payout
allocation: "100"
accounts:
  owner: "1000"
  alice: "10"
steps:
  - op: deposit
    amount: "1000"
  - op: addValidator
    validator: v1
  - op: stake
    validator: v1
    participant: alice
    amount: "10"
  - op: mine
    blocks: 2
  - op: redeem
    validator: v1
    participant: alice
    expect:
      paid: "300"
`))
	require.NoError(t, err)
	result, err := Run(context.Background(), sc, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "paid: expected 300, got 200")
	require.Len(t, result.Steps, 5)
}

func TestRunUnexpectedErrorStops(t *testing.T) {
	sc, err := Parse([]byte(`
allocation: "100"
steps:
  - op: withdraw
    amount: "1"
  - op: deposit
    amount: "1"
`))
	require.NoError(t, err)
	_, err = Run(context.Background(), sc, nil)
	require.ErrorContains(t, err, "step 0 (withdraw)")
}

func TestRunHonoursContext(t *testing.T) {
	sc, err := Parse([]byte("allocation: \"1\"\nsteps:\n  - op: balances\n"))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Run(ctx, sc, nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestParseRejectsInvalidScenarios(t *testing.T) {
	cases := map[string]string{
		"allocation":  "allocation: \"0\"\n",
		"unknown op":  "allocation: \"1\"\nsteps:\n  - op: teleport\n",
		"amount":      "allocation: \"1\"\nsteps:\n  - op: deposit\n    amount: \"-4\"\n",
		"validator":   "allocation: \"1\"\nsteps:\n  - op: addValidator\n",
		"participant": "allocation: \"1\"\nsteps:\n  - op: redeem\n    validator: v1\n",
		"account":     "allocation: \"1\"\naccounts:\n  alice: \"lots\"\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			require.Error(t, err)
		})
	}
}

func TestResultIsJSONEncodable(t *testing.T) {
	sc, err := Load(filepath.Join("testdata", "deposit_remainder.yaml"))
	require.NoError(t, err)
	result, err := Run(context.Background(), sc, nil)
	require.NoError(t, err)
	payload, err := json.Marshal(result)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(payload), `"scenario":"deposit-remainder"`))
}
