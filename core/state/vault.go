package state

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"rewardvault/native/vault"
)

// LoadPool returns the persisted reward pool, or nil before initialisation.
func (m *Manager) LoadPool() (*vault.RewardPool, error) {
	var stored storedPool
	ok, err := m.KVGet(vaultPoolKey, &stored)
	if err != nil || !ok {
		return nil, err
	}
	return stored.toPool(), nil
}

// LoadLedger returns the persisted share ledger, or nil before initialisation.
func (m *Manager) LoadLedger() (*vault.ShareLedger, error) {
	var stored storedLedger
	ok, err := m.KVGet(vaultLedgerKey, &stored)
	if err != nil || !ok {
		return nil, err
	}
	return stored.toLedger(), nil
}

// LoadRate returns the persisted exchange rate, or nil before initialisation.
func (m *Manager) LoadRate() (*vault.RateSnapshot, error) {
	var stored storedRate
	ok, err := m.KVGet(vaultRateKey, &stored)
	if err != nil || !ok {
		return nil, err
	}
	return stored.toRate(), nil
}

// LoadPosition returns the participant position, or nil when none exists.
func (m *Manager) LoadPosition(key vault.PositionKey) (*vault.Position, error) {
	var stored storedPosition
	ok, err := m.KVGet(vaultPositionKey(key), &stored)
	if err != nil || !ok {
		return nil, err
	}
	return stored.toPosition(), nil
}

// Positions lists every stored position ordered by key.
func (m *Manager) Positions() ([]*vault.Position, error) {
	keys, err := m.db.Keys(vaultPositionsRoot)
	if err != nil {
		return nil, err
	}
	out := make([]*vault.Position, 0, len(keys))
	for _, key := range keys {
		data, err := m.db.Get(key)
		if err != nil {
			return nil, err
		}
		var stored storedPosition
		if err := rlp.DecodeBytes(data, &stored); err != nil {
			return nil, fmt.Errorf("state: decode position %q: %w", key, err)
		}
		out = append(out, stored.toPosition())
	}
	return out, nil
}

// Commit writes the changeset in one batch so readers never observe a
// partially applied vault operation.
func (m *Manager) Commit(cs *vault.Changeset) error {
	if cs == nil {
		return nil
	}
	batch := m.db.NewBatch()
	put := func(key []byte, value interface{}) error {
		encoded, err := rlp.EncodeToBytes(value)
		if err != nil {
			return fmt.Errorf("state: encode %q: %w", key, err)
		}
		batch.Put(key, encoded)
		return nil
	}
	if cs.Pool != nil {
		if err := put(vaultPoolKey, newStoredPool(cs.Pool)); err != nil {
			return err
		}
	}
	if cs.Ledger != nil {
		if err := put(vaultLedgerKey, newStoredLedger(cs.Ledger)); err != nil {
			return err
		}
	}
	if cs.Rate != nil {
		if err := put(vaultRateKey, newStoredRate(cs.Rate)); err != nil {
			return err
		}
	}
	for _, pos := range cs.Positions {
		if pos == nil {
			continue
		}
		if err := put(vaultPositionKey(pos.Key()), newStoredPosition(pos)); err != nil {
			return err
		}
	}
	if batch.Len() == 0 {
		return nil
	}
	return batch.Write()
}
