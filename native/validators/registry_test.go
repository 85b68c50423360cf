package validators

import (
	"bytes"
	"encoding/json"
	"testing"
)

type memKV struct {
	data map[string][]byte
}

func newMemKV() *memKV { return &memKV{data: make(map[string][]byte)} }

func (m *memKV) KVGet(key []byte, out interface{}) (bool, error) {
	raw, ok := m.data[string(key)]
	if !ok {
		return false, nil
	}
	return true, json.NewDecoder(bytes.NewReader(raw)).Decode(out)
}

func (m *memKV) KVPut(key []byte, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.data[string(key)] = raw
	return nil
}

func TestRegistryLifecycle(t *testing.T) {
	reg := NewRegistry(newMemKV())

	active, err := reg.IsActive("val-1")
	if err != nil || active {
		t.Fatalf("unknown validator should be inactive: %v %v", active, err)
	}

	record, err := reg.Register(" val-1 ")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if record.ID != "val-1" || record.Active {
		t.Fatalf("unexpected record %+v", record)
	}

	if err := reg.SetActive("val-1", true); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if err := reg.SetActive("val-1", true); err != nil {
		t.Fatalf("repeat activate: %v", err)
	}
	if err := reg.SetActive("val-1", false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	stored, ok, err := reg.Validator("val-1")
	if err != nil || !ok {
		t.Fatalf("lookup: %v %v", ok, err)
	}
	if stored.Active || stored.Transitions != 2 {
		t.Fatalf("unexpected stored record %+v", stored)
	}
}

func TestRegistrySetActiveRegistersMissing(t *testing.T) {
	reg := NewRegistry(newMemKV())
	if err := reg.SetActive("val-2", true); err != nil {
		t.Fatalf("set active: %v", err)
	}
	active, err := reg.IsActive("val-2")
	if err != nil || !active {
		t.Fatalf("expected val-2 active, got %v %v", active, err)
	}
	again, err := reg.Register("val-2")
	if err != nil || !again.Active {
		t.Fatalf("re-register should keep the stored status: %+v %v", again, err)
	}
	if _, err := reg.Register(""); err == nil {
		t.Fatalf("expected empty id to be rejected")
	}
}

func TestRegistryNotInitialised(t *testing.T) {
	var reg *Registry
	if _, err := reg.IsActive("val"); err == nil {
		t.Fatalf("expected error from nil registry")
	}
}
