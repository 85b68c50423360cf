package routes

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"rewardvault/gateway/middleware"
	"rewardvault/native/bank"
	nativecommon "rewardvault/native/common"
	"rewardvault/native/vault"
)

const writeRequestLimit = 1 << 20 // 1 MiB

const (
	// ScopeOwner grants pool funding, allocation, validator administration
	// and minting.
	ScopeOwner = "vault:owner"
	// ScopeStake lets the token subject stake, unstake and redeem on its own
	// behalf, and collect commission for validators it operates.
	ScopeStake = "vault:stake"
)

// VaultWriter is the mutating slice of the vault engine served to
// authenticated clients.
type VaultWriter interface {
	Deposit(amount *big.Int) (*vault.Receipt, error)
	Withdraw(amount *big.Int) (*vault.Receipt, error)
	SetEpochAllocation(amount *big.Int) (*vault.Receipt, error)
	SetMaxCapMultiplier(multiplier uint64) (*vault.Receipt, error)
	AddValidator(id, operator string, commissionRate uint64) (*vault.Receipt, error)
	EnableValidator(id string) (*vault.Receipt, error)
	DisableValidator(id string) (*vault.Receipt, error)
	SetCommissionRate(id string, commissionRate uint64) (*vault.Receipt, error)
	AddShares(validator, participant string, amount *big.Int) (*vault.Receipt, error)
	RemoveShares(validator, participant string, amount *big.Int) (*vault.Receipt, error)
	Redeem(validator, participant string) (*vault.Receipt, error)
	RedeemCommission(validator string) (*vault.Receipt, error)
}

// Minter credits token balances.
type Minter interface {
	Mint(account string, amount *big.Int) error
}

type writeRoutes struct {
	reader VaultReader
	writer VaultWriter
	minter Minter
}

type amountRequest struct {
	Amount string `json:"amount"`
}

type stakeRequest struct {
	Validator string `json:"validator"`
	Amount    string `json:"amount"`
}

type redeemRequest struct {
	Validator string `json:"validator"`
}

type validatorRequest struct {
	ID             string `json:"id"`
	Operator       string `json:"operator"`
	CommissionRate uint64 `json:"commissionRate"`
}

type commissionRequest struct {
	CommissionRate uint64 `json:"commissionRate"`
}

type capRequest struct {
	Multiplier uint64 `json:"multiplier"`
}

type mintRequest struct {
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

type mintResponse struct {
	Account string   `json:"account"`
	Amount  *big.Int `json:"amount"`
}

func (wr *writeRoutes) mount(r chi.Router, auth *middleware.Authenticator, obs *middleware.Observability) {
	r.Route("/owner", func(or chi.Router) {
		or.Use(auth.Middleware(ScopeOwner))
		or.With(observe(obs, "deposit")).Post("/deposit", wr.deposit)
		or.With(observe(obs, "withdraw")).Post("/withdraw", wr.withdraw)
		or.With(observe(obs, "allocation")).Post("/allocation", wr.setAllocation)
		or.With(observe(obs, "max_cap")).Post("/max-cap", wr.setMaxCap)
		or.With(observe(obs, "add_validator")).Post("/validators", wr.addValidator)
		or.With(observe(obs, "enable_validator")).Post("/validators/{id}/enable", wr.enableValidator)
		or.With(observe(obs, "disable_validator")).Post("/validators/{id}/disable", wr.disableValidator)
		or.With(observe(obs, "commission_rate")).Post("/validators/{id}/commission", wr.setCommission)
		if wr.minter != nil {
			or.With(observe(obs, "mint")).Post("/mint", wr.mint)
		}
	})
	r.Group(func(sr chi.Router) {
		sr.Use(auth.Middleware(ScopeStake))
		sr.With(observe(obs, "stake")).Post("/stake", wr.stake)
		sr.With(observe(obs, "unstake")).Post("/unstake", wr.unstake)
		sr.With(observe(obs, "redeem")).Post("/redeem", wr.redeem)
		sr.With(observe(obs, "redeem_commission")).Post("/validators/{id}/commission/redeem", wr.redeemCommission)
	})
}

func decodeRequest(r *http.Request, out any) error {
	if r.Body == nil {
		return errors.New("missing request body")
	}
	defer r.Body.Close()

	data, err := io.ReadAll(io.LimitReader(r.Body, writeRequestLimit))
	if err != nil {
		return fmt.Errorf("read request body: %w", err)
	}
	if len(data) == 0 {
		return errors.New("request body is empty")
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

func parseAmount(raw string) (*big.Int, error) {
	value, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok || value.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be a positive base-10 integer, got %q", raw)
	}
	return value, nil
}

func (wr *writeRoutes) decodeAmount(w http.ResponseWriter, r *http.Request) (*big.Int, bool) {
	var req amountRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return nil, false
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeBadRequest(w, err)
		return nil, false
	}
	return amount, true
}

func writeReceipt(w http.ResponseWriter, receipt *vault.Receipt, err error) {
	if err != nil {
		writeVaultError(w, err)
		return
	}
	writeJSON(w, receipt)
}

func (wr *writeRoutes) deposit(w http.ResponseWriter, r *http.Request) {
	amount, ok := wr.decodeAmount(w, r)
	if !ok {
		return
	}
	receipt, err := wr.writer.Deposit(amount)
	writeReceipt(w, receipt, err)
}

func (wr *writeRoutes) withdraw(w http.ResponseWriter, r *http.Request) {
	amount, ok := wr.decodeAmount(w, r)
	if !ok {
		return
	}
	receipt, err := wr.writer.Withdraw(amount)
	writeReceipt(w, receipt, err)
}

func (wr *writeRoutes) setAllocation(w http.ResponseWriter, r *http.Request) {
	amount, ok := wr.decodeAmount(w, r)
	if !ok {
		return
	}
	receipt, err := wr.writer.SetEpochAllocation(amount)
	writeReceipt(w, receipt, err)
}

func (wr *writeRoutes) setMaxCap(w http.ResponseWriter, r *http.Request) {
	var req capRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	receipt, err := wr.writer.SetMaxCapMultiplier(req.Multiplier)
	writeReceipt(w, receipt, err)
}

func (wr *writeRoutes) addValidator(w http.ResponseWriter, r *http.Request) {
	var req validatorRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	if strings.TrimSpace(req.ID) == "" {
		writeBadRequest(w, errors.New("validator id required"))
		return
	}
	receipt, err := wr.writer.AddValidator(req.ID, req.Operator, req.CommissionRate)
	writeReceipt(w, receipt, err)
}

func (wr *writeRoutes) enableValidator(w http.ResponseWriter, r *http.Request) {
	receipt, err := wr.writer.EnableValidator(chi.URLParam(r, "id"))
	writeReceipt(w, receipt, err)
}

func (wr *writeRoutes) disableValidator(w http.ResponseWriter, r *http.Request) {
	receipt, err := wr.writer.DisableValidator(chi.URLParam(r, "id"))
	writeReceipt(w, receipt, err)
}

func (wr *writeRoutes) setCommission(w http.ResponseWriter, r *http.Request) {
	var req commissionRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	receipt, err := wr.writer.SetCommissionRate(chi.URLParam(r, "id"), req.CommissionRate)
	writeReceipt(w, receipt, err)
}

func (wr *writeRoutes) mint(w http.ResponseWriter, r *http.Request) {
	var req mintRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	account := strings.TrimSpace(req.Account)
	if account == "" {
		writeBadRequest(w, errors.New("account required"))
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := wr.minter.Mint(account, amount); err != nil {
		writeVaultError(w, err)
		return
	}
	writeJSON(w, mintResponse{Account: account, Amount: amount})
}

// subjectOf returns the token subject every participant route acts for.
func subjectOf(w http.ResponseWriter, r *http.Request) (string, bool) {
	subject := middleware.Subject(r.Context())
	if subject == "" {
		writeJSONError(w, http.StatusForbidden, errors.New("token subject required"))
		return "", false
	}
	return subject, true
}

func (wr *writeRoutes) decodeStake(w http.ResponseWriter, r *http.Request) (string, string, *big.Int, bool) {
	who, ok := subjectOf(w, r)
	if !ok {
		return "", "", nil, false
	}
	var req stakeRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return "", "", nil, false
	}
	if strings.TrimSpace(req.Validator) == "" {
		writeBadRequest(w, errors.New("validator required"))
		return "", "", nil, false
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeBadRequest(w, err)
		return "", "", nil, false
	}
	return req.Validator, who, amount, true
}

func (wr *writeRoutes) stake(w http.ResponseWriter, r *http.Request) {
	validator, who, amount, ok := wr.decodeStake(w, r)
	if !ok {
		return
	}
	receipt, err := wr.writer.AddShares(validator, who, amount)
	writeReceipt(w, receipt, err)
}

func (wr *writeRoutes) unstake(w http.ResponseWriter, r *http.Request) {
	validator, who, amount, ok := wr.decodeStake(w, r)
	if !ok {
		return
	}
	receipt, err := wr.writer.RemoveShares(validator, who, amount)
	writeReceipt(w, receipt, err)
}

func (wr *writeRoutes) redeem(w http.ResponseWriter, r *http.Request) {
	who, ok := subjectOf(w, r)
	if !ok {
		return
	}
	var req redeemRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	if strings.TrimSpace(req.Validator) == "" {
		writeBadRequest(w, errors.New("validator required"))
		return
	}
	receipt, err := wr.writer.Redeem(req.Validator, who)
	writeReceipt(w, receipt, err)
}

// redeemCommission pays accrued commission to the validator's operator. Only
// the operator may trigger it.
func (wr *writeRoutes) redeemCommission(w http.ResponseWriter, r *http.Request) {
	who, ok := subjectOf(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	v, err := wr.reader.Validator(id)
	if err != nil {
		writeVaultError(w, err)
		return
	}
	if v.Operator != who {
		writeJSONError(w, http.StatusForbidden, fmt.Errorf("%s does not operate validator %s", who, v.ID))
		return
	}
	receipt, err := wr.writer.RedeemCommission(v.ID)
	writeReceipt(w, receipt, err)
}

// writeVaultError maps engine and ledger errors onto HTTP statuses.
func writeVaultError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, vault.ErrInvalidAmount), errors.Is(err, vault.ErrInvalidCommission),
		errors.Is(err, bank.ErrInvalidAmount), errors.Is(err, bank.ErrInvalidAccount):
		writeBadRequest(w, err)
	case errors.Is(err, vault.ErrUnknownValidator), errors.Is(err, vault.ErrUnknownPosition):
		writeJSONError(w, http.StatusNotFound, err)
	case errors.Is(err, vault.ErrValidatorExists), errors.Is(err, vault.ErrInsufficientPool),
		errors.Is(err, vault.ErrUnderflow), errors.Is(err, vault.ErrNothingToRedeem),
		errors.Is(err, vault.ErrDelegationCap), errors.Is(err, vault.ErrFutureEpoch),
		errors.Is(err, vault.ErrTransferFailed), errors.Is(err, vault.ErrAlreadyInitialized),
		errors.Is(err, bank.ErrBalanceOverflow):
		writeJSONError(w, http.StatusConflict, err)
	case errors.Is(err, vault.ErrNotInitialized), errors.Is(err, nativecommon.ErrModulePaused):
		writeJSONError(w, http.StatusServiceUnavailable, err)
	default:
		writeInternalError(w, err)
	}
}
