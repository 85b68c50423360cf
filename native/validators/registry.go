package validators

import (
	"errors"
	"fmt"
	"strings"
)

var errNotInitialised = errors.New("validators: registry not initialised")

type registryState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

// Validator is the registry record consulted by the vault when deciding
// whether a validator's shares participate in the totals. Operator and
// commission settings live on the vault ledger.
type Validator struct {
	ID     string
	Active bool
	// Transitions counts status changes, for audit.
	Transitions uint64
}

// Registry persists validator status in the shared key-value state.
type Registry struct {
	state registryState
}

// NewRegistry constructs a registry backed by the provided state accessor.
func NewRegistry(state registryState) *Registry {
	return &Registry{state: state}
}

func normalizeID(value string) string {
	return strings.TrimSpace(value)
}

func validatorKey(id string) []byte {
	return []byte(fmt.Sprintf("validators/%s", id))
}

// Validator fetches the record for id. ok=false means it was never registered.
func (r *Registry) Validator(id string) (*Validator, bool, error) {
	if r == nil || r.state == nil {
		return nil, false, errNotInitialised
	}
	normalized := normalizeID(id)
	if normalized == "" {
		return nil, false, nil
	}
	var stored Validator
	ok, err := r.state.KVGet(validatorKey(normalized), &stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &stored, true, nil
}

// Register records an inactive validator. Registering an existing validator
// returns the stored record unchanged.
func (r *Registry) Register(id string) (*Validator, error) {
	if r == nil || r.state == nil {
		return nil, errNotInitialised
	}
	normalized := normalizeID(id)
	if normalized == "" {
		return nil, fmt.Errorf("validators: id required")
	}
	existing, _, err := r.Validator(normalized)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	record := &Validator{ID: normalized}
	if err := r.state.KVPut(validatorKey(normalized), record); err != nil {
		return nil, err
	}
	return record, nil
}

// IsActive reports whether id is registered and active. Unknown validators
// are inactive.
func (r *Registry) IsActive(id string) (bool, error) {
	record, ok, err := r.Validator(id)
	if err != nil || !ok {
		return false, err
	}
	return record.Active, nil
}

// SetActive flips the status, registering the validator when missing.
func (r *Registry) SetActive(id string, active bool) error {
	record, ok, err := r.Validator(id)
	if err != nil {
		return err
	}
	if !ok {
		if record, err = r.Register(id); err != nil {
			return err
		}
	}
	if record.Active == active {
		return nil
	}
	record.Active = active
	record.Transitions++
	return r.state.KVPut(validatorKey(record.ID), record)
}
