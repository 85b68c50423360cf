package bank

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	"rewardvault/observability"
	"rewardvault/storage"
)

var (
	ErrInvalidAmount       = errors.New("bank: amount must be positive")
	ErrInsufficientBalance = errors.New("bank: insufficient balance")
	ErrInvalidAccount      = errors.New("bank: account required")
	ErrBalanceOverflow     = errors.New("bank: balance overflow")
)

var balancePrefix = []byte("bank/balance/")

func balanceKey(account string) []byte {
	return append(append([]byte(nil), balancePrefix...), account...)
}

// Ledger is the token transfer ledger backing the vault. Balances are kept
// per account in the shared key-value store; the vault account holds staked
// principal and reward funds.
type Ledger struct {
	mu    sync.Mutex
	db    storage.Database
	vault string
}

// NewLedger binds the ledger to db with vaultAccount as the custody account.
func NewLedger(db storage.Database, vaultAccount string) *Ledger {
	vaultAccount = strings.TrimSpace(vaultAccount)
	if vaultAccount == "" {
		vaultAccount = "vault"
	}
	return &Ledger{db: db, vault: vaultAccount}
}

// VaultAccount returns the custody account name.
func (l *Ledger) VaultAccount() string { return l.vault }

// Balance returns the balance of account, zero when never credited.
func (l *Ledger) Balance(account string) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance(account)
}

func (l *Ledger) balance(account string) (*big.Int, error) {
	account = strings.TrimSpace(account)
	if account == "" {
		return nil, ErrInvalidAccount
	}
	data, err := l.db.Get(balanceKey(account))
	if errors.Is(err, storage.ErrNotFound) {
		return big.NewInt(0), nil
	}
	if err != nil {
		return nil, err
	}
	value := new(big.Int)
	if err := rlp.DecodeBytes(data, value); err != nil {
		return nil, fmt.Errorf("bank: decode balance %q: %w", account, err)
	}
	return value, nil
}

func encodeBalance(value *big.Int) ([]byte, error) {
	if _, overflow := uint256.FromBig(value); overflow {
		return nil, ErrBalanceOverflow
	}
	return rlp.EncodeToBytes(value)
}

// Mint credits account out of thin air. Used to fund simulations and tests.
func (l *Ledger) Mint(account string, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	current, err := l.balance(account)
	if err != nil {
		return err
	}
	encoded, err := encodeBalance(new(big.Int).Add(current, amount))
	if err != nil {
		return err
	}
	if err := l.db.Put(balanceKey(strings.TrimSpace(account)), encoded); err != nil {
		return err
	}
	observability.Transfers().RecordTransfer("mint", amount)
	return nil
}

// Transfer moves amount from one account to another in a single batch.
func (l *Ledger) Transfer(from, to string, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	l.mu.Lock()
	defer l.mu.Unlock()

	fromBal, err := l.balance(from)
	if err != nil {
		return err
	}
	if fromBal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s holds %s, needs %s", ErrInsufficientBalance, from, fromBal, amount)
	}
	if from == to {
		return nil
	}
	toBal, err := l.balance(to)
	if err != nil {
		return err
	}
	fromEnc, err := encodeBalance(new(big.Int).Sub(fromBal, amount))
	if err != nil {
		return err
	}
	toEnc, err := encodeBalance(new(big.Int).Add(toBal, amount))
	if err != nil {
		return err
	}
	batch := l.db.NewBatch()
	batch.Put(balanceKey(from), fromEnc)
	batch.Put(balanceKey(to), toEnc)
	if err := batch.Write(); err != nil {
		return err
	}
	observability.Transfers().RecordTransfer(l.direction(from, to), amount)
	return nil
}

func (l *Ledger) direction(from, to string) string {
	switch {
	case to == l.vault:
		return "in"
	case from == l.vault:
		return "out"
	default:
		return "internal"
	}
}

// TransferIn moves amount from account into the vault.
func (l *Ledger) TransferIn(from string, amount *big.Int) error {
	return l.Transfer(from, l.vault, amount)
}

// TransferOut moves amount from the vault to account.
func (l *Ledger) TransferOut(to string, amount *big.Int) error {
	return l.Transfer(l.vault, to, amount)
}
