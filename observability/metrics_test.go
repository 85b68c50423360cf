package observability

import (
	"math/big"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestAPIObserveSplitsOutcomes(t *testing.T) {
	m := API()
	before := testutil.ToFloat64(m.requests.WithLabelValues("balances", "GET", "success"))
	beforeErr := testutil.ToFloat64(m.errors.WithLabelValues("balances", "404"))

	m.Observe("balances", "get", 200, 5*time.Millisecond)
	m.Observe("balances", "GET", 404, time.Millisecond)

	require.Equal(t, before+1, testutil.ToFloat64(m.requests.WithLabelValues("balances", "GET", "success")))
	require.Equal(t, beforeErr+1, testutil.ToFloat64(m.errors.WithLabelValues("balances", "404")))
}

func TestAPIRecordThrottle(t *testing.T) {
	m := API()
	before := testutil.ToFloat64(m.throttles.WithLabelValues("unknown"))
	m.RecordThrottle("  ")
	require.Equal(t, before+1, testutil.ToFloat64(m.throttles.WithLabelValues("unknown")))
}

func TestTransfersRecordVolume(t *testing.T) {
	m := Transfers()
	before := testutil.ToFloat64(m.volume.WithLabelValues("in"))
	m.RecordTransfer("IN", big.NewInt(250))
	require.Equal(t, before+250, testutil.ToFloat64(m.volume.WithLabelValues("in")))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var api *apiMetrics
	var transfers *transferMetrics
	require.NotPanics(t, func() {
		api.Observe("x", "GET", 200, time.Second)
		api.RecordThrottle("x")
		transfers.RecordTransfer("in", big.NewInt(1))
	})
}

func TestBigToFloat(t *testing.T) {
	require.Zero(t, bigToFloat(nil))
	require.Equal(t, float64(1e18), bigToFloat(new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)))
}
