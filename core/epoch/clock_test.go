package epoch

import (
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if err := (Config{Length: 0}).Validate(); err == nil {
		t.Fatalf("expected zero length to be rejected")
	}
	if _, err := NewClock(Config{}, NewManualHeight(0)); err == nil {
		t.Fatalf("expected NewClock to reject zero length")
	}
}

func TestClockEpochAt(t *testing.T) {
	clock, err := NewClock(Config{GenesisHeight: 100, Length: 10}, NewManualHeight(0))
	if err != nil {
		t.Fatalf("new clock: %v", err)
	}
	cases := map[uint64]uint64{
		0:   0,
		99:  0,
		100: 0,
		109: 0,
		110: 1,
		255: 15,
	}
	for height, want := range cases {
		if got := clock.EpochAt(height); got != want {
			t.Fatalf("height %d: expected epoch %d, got %d", height, want, got)
		}
	}
}

func TestClockFollowsManualHeight(t *testing.T) {
	source := NewManualHeight(0)
	clock, err := NewClock(DefaultConfig(), source)
	if err != nil {
		t.Fatalf("new clock: %v", err)
	}
	if clock.CurrentEpoch() != 0 {
		t.Fatalf("expected epoch 0")
	}
	source.Mine(7)
	if clock.CurrentEpoch() != 7 {
		t.Fatalf("expected epoch 7, got %d", clock.CurrentEpoch())
	}
}

func TestWallClockHeight(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	wc := NewWallClock(start, 5*time.Second)
	wc.now = func() time.Time { return start.Add(23 * time.Second) }
	if got := wc.Height(); got != 4 {
		t.Fatalf("expected height 4, got %d", got)
	}
	wc.now = func() time.Time { return start.Add(-time.Minute) }
	if got := wc.Height(); got != 0 {
		t.Fatalf("expected height 0 before start, got %d", got)
	}
}
