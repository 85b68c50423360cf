package events

import (
	"math/big"
	"strconv"

	"rewardvault/core/types"
)

const (
	// TypeVaultDeposited is emitted when reward tokens enter the pool.
	TypeVaultDeposited = "vault.rewards.deposited"
	// TypeVaultWithdrawn is emitted when the owner takes reward tokens out of the pool.
	TypeVaultWithdrawn = "vault.rewards.withdrawn"
	// TypeVaultAllocationChanged is emitted when the per-epoch allocation is updated.
	TypeVaultAllocationChanged = "vault.allocation.changed"
	// TypeVaultSharesAdded is emitted when a participant stakes behind a validator.
	TypeVaultSharesAdded = "vault.shares.added"
	// TypeVaultSharesRemoved is emitted when a participant unstakes.
	TypeVaultSharesRemoved = "vault.shares.removed"
	// TypeVaultRedeemed is emitted when accrued rewards are paid out.
	TypeVaultRedeemed = "vault.rewards.redeemed"
	// TypeVaultRateAdvanced is emitted when the exchange rate moves to a later epoch.
	TypeVaultRateAdvanced = "vault.rate.advanced"
	// TypeVaultValidatorStatus is emitted when a validator enters or leaves the share totals.
	TypeVaultValidatorStatus = "vault.validator.status"
	// TypeVaultValidatorConfigured is emitted when a validator's operator or commission changes.
	TypeVaultValidatorConfigured = "vault.validator.configured"
	// TypeVaultCommissionRedeemed is emitted when an operator collects accrued commission.
	TypeVaultCommissionRedeemed = "vault.commission.redeemed"
	// TypeVaultCapChanged is emitted when the delegation cap multiplier is updated.
	TypeVaultCapChanged = "vault.cap.changed"
)

// VaultDeposited captures a reward deposit and the resulting pool split.
type VaultDeposited struct {
	Epoch       uint64
	From        string
	Amount      *big.Int
	Allocatable *big.Int
	Carry       *big.Int
}

// EventType satisfies the Event interface.
func (VaultDeposited) EventType() string { return TypeVaultDeposited }

// Event converts the structured payload into a broadcastable event.
func (e VaultDeposited) Event() *types.Event {
	return &types.Event{
		Type:  TypeVaultDeposited,
		Epoch: e.Epoch,
		Attributes: map[string]string{
			"from":        e.From,
			"amount":      formatAmount(e.Amount),
			"allocatable": formatAmount(e.Allocatable),
			"carry":       formatAmount(e.Carry),
		},
	}
}

// VaultWithdrawn captures an owner reward withdrawal.
type VaultWithdrawn struct {
	Epoch       uint64
	To          string
	Amount      *big.Int
	Allocatable *big.Int
	Carry       *big.Int
}

// EventType satisfies the Event interface.
func (VaultWithdrawn) EventType() string { return TypeVaultWithdrawn }

// Event converts the structured payload into a broadcastable event.
func (e VaultWithdrawn) Event() *types.Event {
	return &types.Event{
		Type:  TypeVaultWithdrawn,
		Epoch: e.Epoch,
		Attributes: map[string]string{
			"to":          e.To,
			"amount":      formatAmount(e.Amount),
			"allocatable": formatAmount(e.Allocatable),
			"carry":       formatAmount(e.Carry),
		},
	}
}

// VaultAllocationChanged captures a change of the per-epoch allocation.
type VaultAllocationChanged struct {
	Epoch    uint64
	Previous *big.Int
	Current  *big.Int
}

// EventType satisfies the Event interface.
func (VaultAllocationChanged) EventType() string { return TypeVaultAllocationChanged }

// Event converts the structured payload into a broadcastable event.
func (e VaultAllocationChanged) Event() *types.Event {
	return &types.Event{
		Type:  TypeVaultAllocationChanged,
		Epoch: e.Epoch,
		Attributes: map[string]string{
			"previous": formatAmount(e.Previous),
			"current":  formatAmount(e.Current),
		},
	}
}

// VaultShares captures a stake or unstake against a validator.
type VaultShares struct {
	Added       bool
	Epoch       uint64
	Validator   string
	Participant string
	Amount      *big.Int
	NewShares   *big.Int
	TotalShares *big.Int
}

// EventType satisfies the Event interface.
func (e VaultShares) EventType() string {
	if e.Added {
		return TypeVaultSharesAdded
	}
	return TypeVaultSharesRemoved
}

// Event converts the structured payload into a broadcastable event.
func (e VaultShares) Event() *types.Event {
	return &types.Event{
		Type:  e.EventType(),
		Epoch: e.Epoch,
		Attributes: map[string]string{
			"validator":   e.Validator,
			"participant": e.Participant,
			"amount":      formatAmount(e.Amount),
			"newShares":   formatAmount(e.NewShares),
			"totalShares": formatAmount(e.TotalShares),
		},
	}
}

// VaultRedeemed captures a reward payout.
type VaultRedeemed struct {
	Epoch       uint64
	Validator   string
	Participant string
	Paid        *big.Int
	Dust        *big.Int
}

// EventType satisfies the Event interface.
func (VaultRedeemed) EventType() string { return TypeVaultRedeemed }

// Event converts the structured payload into a broadcastable event.
func (e VaultRedeemed) Event() *types.Event {
	return &types.Event{
		Type:  TypeVaultRedeemed,
		Epoch: e.Epoch,
		Attributes: map[string]string{
			"validator":   e.Validator,
			"participant": e.Participant,
			"paid":        formatAmount(e.Paid),
			"dust":        formatAmount(e.Dust),
		},
	}
}

// VaultRateAdvanced captures an exchange rate update.
type VaultRateAdvanced struct {
	From          uint64
	To            uint64
	Distributed   *big.Int
	RatePerShare  *big.Int
	DeferredSpan  uint64
	ReturnedCarry *big.Int
}

// EventType satisfies the Event interface.
func (VaultRateAdvanced) EventType() string { return TypeVaultRateAdvanced }

// Event converts the structured payload into a broadcastable event.
func (e VaultRateAdvanced) Event() *types.Event {
	attrs := map[string]string{
		"from":         strconv.FormatUint(e.From, 10),
		"to":           strconv.FormatUint(e.To, 10),
		"distributed":  formatAmount(e.Distributed),
		"ratePerShare": formatAmount(e.RatePerShare),
	}
	if e.DeferredSpan > 0 {
		attrs["deferredEpochs"] = strconv.FormatUint(e.DeferredSpan, 10)
	}
	if e.ReturnedCarry != nil && e.ReturnedCarry.Sign() > 0 {
		attrs["returnedCarry"] = e.ReturnedCarry.String()
	}
	return &types.Event{Type: TypeVaultRateAdvanced, Epoch: e.To, Attributes: attrs}
}

// VaultValidatorStatus captures a validator joining or leaving the share totals.
type VaultValidatorStatus struct {
	Epoch       uint64
	Validator   string
	Active      bool
	Shares      *big.Int
	TotalShares *big.Int
}

// EventType satisfies the Event interface.
func (VaultValidatorStatus) EventType() string { return TypeVaultValidatorStatus }

// Event converts the structured payload into a broadcastable event.
func (e VaultValidatorStatus) Event() *types.Event {
	return &types.Event{
		Type:  TypeVaultValidatorStatus,
		Epoch: e.Epoch,
		Attributes: map[string]string{
			"validator":   e.Validator,
			"active":      strconv.FormatBool(e.Active),
			"shares":      formatAmount(e.Shares),
			"totalShares": formatAmount(e.TotalShares),
		},
	}
}

// VaultValidatorConfigured captures a validator's operator and commission settings.
type VaultValidatorConfigured struct {
	Epoch          uint64
	Validator      string
	Operator       string
	CommissionRate uint64
}

// EventType satisfies the Event interface.
func (VaultValidatorConfigured) EventType() string { return TypeVaultValidatorConfigured }

// Event converts the structured payload into a broadcastable event.
func (e VaultValidatorConfigured) Event() *types.Event {
	return &types.Event{
		Type:  TypeVaultValidatorConfigured,
		Epoch: e.Epoch,
		Attributes: map[string]string{
			"validator":      e.Validator,
			"operator":       e.Operator,
			"commissionRate": strconv.FormatUint(e.CommissionRate, 10),
		},
	}
}

// VaultCommissionRedeemed captures a commission payout to a validator operator.
type VaultCommissionRedeemed struct {
	Epoch     uint64
	Validator string
	Operator  string
	Paid      *big.Int
}

// EventType satisfies the Event interface.
func (VaultCommissionRedeemed) EventType() string { return TypeVaultCommissionRedeemed }

// Event converts the structured payload into a broadcastable event.
func (e VaultCommissionRedeemed) Event() *types.Event {
	return &types.Event{
		Type:  TypeVaultCommissionRedeemed,
		Epoch: e.Epoch,
		Attributes: map[string]string{
			"validator": e.Validator,
			"operator":  e.Operator,
			"paid":      formatAmount(e.Paid),
		},
	}
}

// VaultCapChanged captures a change of the delegation cap multiplier.
type VaultCapChanged struct {
	Epoch    uint64
	Previous uint64
	Current  uint64
}

// EventType satisfies the Event interface.
func (VaultCapChanged) EventType() string { return TypeVaultCapChanged }

// Event converts the structured payload into a broadcastable event.
func (e VaultCapChanged) Event() *types.Event {
	return &types.Event{
		Type:  TypeVaultCapChanged,
		Epoch: e.Epoch,
		Attributes: map[string]string{
			"previous": strconv.FormatUint(e.Previous, 10),
			"current":  strconv.FormatUint(e.Current, 10),
		},
	}
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
