package events

import (
	"math/big"
	"testing"
)

func TestVaultSharesEventType(t *testing.T) {
	added := VaultShares{Added: true, Validator: "val-1", Participant: "alice", Amount: big.NewInt(5)}
	if added.EventType() != TypeVaultSharesAdded {
		t.Fatalf("unexpected type %s", added.EventType())
	}
	removed := VaultShares{Validator: "val-1", Participant: "alice"}
	evt := removed.Event()
	if evt.Type != TypeVaultSharesRemoved {
		t.Fatalf("unexpected type %s", evt.Type)
	}
	if evt.Attributes["amount"] != "0" {
		t.Fatalf("nil amount should render as 0, got %q", evt.Attributes["amount"])
	}
}

func TestRateAdvancedOmitsEmptyOptionalAttributes(t *testing.T) {
	evt := VaultRateAdvanced{From: 1, To: 4, Distributed: big.NewInt(300), RatePerShare: big.NewInt(7)}.Event()
	if evt.Epoch != 4 {
		t.Fatalf("expected epoch 4, got %d", evt.Epoch)
	}
	if _, ok := evt.Attributes["deferredEpochs"]; ok {
		t.Fatalf("deferredEpochs should be omitted")
	}
	if _, ok := evt.Attributes["returnedCarry"]; ok {
		t.Fatalf("returnedCarry should be omitted")
	}

	evt = VaultRateAdvanced{From: 1, To: 4, DeferredSpan: 3, ReturnedCarry: big.NewInt(1)}.Event()
	if evt.Attributes["deferredEpochs"] != "3" || evt.Attributes["returnedCarry"] != "1" {
		t.Fatalf("unexpected attributes %v", evt.Attributes)
	}
}

func TestRecorderKeepsOrder(t *testing.T) {
	rec := &Recorder{}
	rec.Emit(VaultDeposited{Amount: big.NewInt(1)})
	rec.Emit(VaultRedeemed{Paid: big.NewInt(1)})
	rec.Emit(nil)

	got := rec.Types()
	if len(got) != 2 || got[0] != TypeVaultDeposited || got[1] != TypeVaultRedeemed {
		t.Fatalf("unexpected recorded types %v", got)
	}

	var nilRec *Recorder
	nilRec.Emit(VaultDeposited{})
	if nilRec.Events() != nil {
		t.Fatalf("nil recorder should return nil")
	}
}

func TestValidatorConfigEvents(t *testing.T) {
	evt := VaultValidatorConfigured{Epoch: 3, Validator: "val-1", Operator: "op-1", CommissionRate: 500}.Event()
	if evt.Type != TypeVaultValidatorConfigured || evt.Epoch != 3 {
		t.Fatalf("unexpected event %+v", evt)
	}
	if evt.Attributes["operator"] != "op-1" || evt.Attributes["commissionRate"] != "500" {
		t.Fatalf("unexpected attributes %v", evt.Attributes)
	}

	paid := VaultCommissionRedeemed{Validator: "val-1", Operator: "op-1"}.Event()
	if paid.Type != TypeVaultCommissionRedeemed || paid.Attributes["paid"] != "0" {
		t.Fatalf("unexpected event %+v", paid)
	}

	capEvt := VaultCapChanged{Previous: 0, Current: 4}.Event()
	if capEvt.Type != TypeVaultCapChanged || capEvt.Attributes["previous"] != "0" || capEvt.Attributes["current"] != "4" {
		t.Fatalf("unexpected event %+v", capEvt)
	}
}
