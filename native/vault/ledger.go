package vault

import (
	"fmt"
	"math/big"
	"strings"
)

func normalizeID(id string) string {
	return strings.TrimSpace(id)
}

func (l *ShareLedger) validator(id string) (*ValidatorShares, error) {
	v, ok := l.Validators[normalizeID(id)]
	if !ok || v == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownValidator, id)
	}
	return v, nil
}

// addValidator registers an empty validator checkpointed at the global rate.
// An empty operator defaults to the validator id.
func (l *ShareLedger) addValidator(id, operator string, commission uint64, active bool, global *big.Int) (*ValidatorShares, error) {
	id = normalizeID(id)
	if id == "" {
		return nil, fmt.Errorf("%w: empty id", ErrUnknownValidator)
	}
	if _, exists := l.Validators[id]; exists {
		return nil, fmt.Errorf("%w: %q", ErrValidatorExists, id)
	}
	if commission >= BasisPoints {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCommission, commission)
	}
	operator = normalizeID(operator)
	if operator == "" {
		operator = id
	}
	v := &ValidatorShares{
		ID:             id,
		Shares:         big.NewInt(0),
		Active:         true,
		Offset:         copyBig(global),
		Frozen:         big.NewInt(0),
		Operator:       operator,
		CommissionRate: commission,
		Delegated:      big.NewInt(0),
		Checkpoint:     big.NewInt(0),
		DelegatorRate:  big.NewInt(0),
		Commission:     big.NewInt(0),
	}
	if !active {
		v.Frozen = v.Rate(global)
		v.Active = false
	}
	l.Validators[id] = v
	return v, nil
}

// setActive moves a validator in or out of TotalShares. The caller must have
// advanced the rate to the current epoch first: disabling freezes the
// validator at the current rate and enabling rebases it so the disabled span
// earns nothing.
func (l *ShareLedger) setActive(id string, active bool, global *big.Int) (bool, error) {
	v, err := l.validator(id)
	if err != nil {
		return false, err
	}
	if v.Active == active {
		return false, nil
	}
	if active {
		v.Offset = new(big.Int).Sub(copyBig(global), copyBig(v.Frozen))
		v.Frozen = big.NewInt(0)
		v.Active = true
		l.TotalShares = new(big.Int).Add(copyBig(l.TotalShares), copyBig(v.Shares))
		return true, nil
	}
	v.Frozen = v.Rate(global)
	v.Offset = big.NewInt(0)
	v.Active = false
	l.TotalShares = new(big.Int).Sub(copyBig(l.TotalShares), copyBig(v.Shares))
	return true, nil
}

// addShares credits amount to the validator. Delegated shares are tracked
// separately so commission and the delegation cap apply to them only.
func (l *ShareLedger) addShares(id string, amount *big.Int, delegated bool) error {
	if !validAmount(amount) {
		return ErrInvalidAmount
	}
	v, err := l.validator(id)
	if err != nil {
		return err
	}
	principal, err := addChecked(l.TotalPrincipal, amount)
	if err != nil {
		return err
	}
	l.TotalPrincipal = principal
	v.Shares = new(big.Int).Add(copyBig(v.Shares), amount)
	if delegated {
		v.Delegated = new(big.Int).Add(copyBig(v.Delegated), amount)
	}
	if v.Active {
		l.TotalShares = new(big.Int).Add(copyBig(l.TotalShares), amount)
	}
	return nil
}

func (l *ShareLedger) removeShares(id string, amount *big.Int, delegated bool) error {
	if !validAmount(amount) {
		return ErrInvalidAmount
	}
	v, err := l.validator(id)
	if err != nil {
		return err
	}
	if amount.Cmp(copyBig(v.Shares)) > 0 {
		return fmt.Errorf("%w: validator %q holds %s shares, removing %s", ErrUnderflow, v.ID, v.Shares, amount)
	}
	if delegated && amount.Cmp(copyBig(v.Delegated)) > 0 {
		return fmt.Errorf("%w: validator %q holds %s delegated shares, removing %s", ErrUnderflow, v.ID, v.Delegated, amount)
	}
	v.Shares = new(big.Int).Sub(copyBig(v.Shares), amount)
	if delegated {
		v.Delegated = new(big.Int).Sub(copyBig(v.Delegated), amount)
	}
	l.TotalPrincipal = new(big.Int).Sub(copyBig(l.TotalPrincipal), amount)
	if v.Active {
		l.TotalShares = new(big.Int).Sub(copyBig(l.TotalShares), amount)
	}
	return nil
}

// Consistent reports whether TotalShares equals the sum of active validator
// shares and TotalPrincipal the sum of all validator shares, and no validator
// has more delegated shares than shares.
func (l *ShareLedger) Consistent() bool {
	active, all := big.NewInt(0), big.NewInt(0)
	for _, v := range l.Validators {
		if copyBig(v.Delegated).Cmp(copyBig(v.Shares)) > 0 {
			return false
		}
		all.Add(all, copyBig(v.Shares))
		if v.Active {
			active.Add(active, copyBig(v.Shares))
		}
	}
	return active.Cmp(copyBig(l.TotalShares)) == 0 && all.Cmp(copyBig(l.TotalPrincipal)) == 0
}
