package routes

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"rewardvault/gateway/middleware"
)

type vaultRoutes struct {
	reader VaultReader
}

type validatorResponse struct {
	ID             string   `json:"id"`
	Active         bool     `json:"active"`
	Shares         *big.Int `json:"shares"`
	Delegated      *big.Int `json:"delegated"`
	Operator       string   `json:"operator"`
	CommissionRate uint64   `json:"commissionRate"`
	// Commission is the whole tokens the operator can collect now.
	Commission *big.Int `json:"commission"`
}

type positionResponse struct {
	Validator   string   `json:"validator"`
	Participant string   `json:"participant"`
	Shares      *big.Int `json:"shares"`
	Accrued     *big.Int `json:"accrued"`
	Redeemable  *big.Int `json:"redeemable"`
}

func (vr *vaultRoutes) mount(r chi.Router, obs *middleware.Observability) {
	r.With(observe(obs, "balances")).Get("/balances", vr.balances)
	r.With(observe(obs, "validator")).Get("/validators/{id}", vr.validator)
	r.With(observe(obs, "position")).Get("/positions/{validator}/{participant}", vr.position)
}

func observe(obs *middleware.Observability, route string) func(http.Handler) http.Handler {
	if obs == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return obs.Middleware(route)
}

func (vr *vaultRoutes) balances(w http.ResponseWriter, r *http.Request) {
	balances, err := vr.reader.Balances()
	if err != nil {
		writeVaultError(w, err)
		return
	}
	writeJSON(w, balances)
}

func (vr *vaultRoutes) validator(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		writeBadRequest(w, errors.New("validator id required"))
		return
	}
	v, err := vr.reader.Validator(id)
	if err != nil {
		writeVaultError(w, err)
		return
	}
	writeJSON(w, validatorResponse{
		ID:             v.ID,
		Active:         v.Active,
		Shares:         v.Shares,
		Delegated:      v.Delegated,
		Operator:       v.Operator,
		CommissionRate: v.CommissionRate,
		Commission:     v.PendingCommission(),
	})
}

func (vr *vaultRoutes) position(w http.ResponseWriter, r *http.Request) {
	validator := strings.TrimSpace(chi.URLParam(r, "validator"))
	participant := strings.TrimSpace(chi.URLParam(r, "participant"))
	if validator == "" || participant == "" {
		writeBadRequest(w, errors.New("validator and participant required"))
		return
	}
	pos, redeemable, err := vr.reader.Preview(validator, participant)
	if err != nil {
		writeVaultError(w, err)
		return
	}
	writeJSON(w, positionResponse{
		Validator:   pos.Validator,
		Participant: pos.Participant,
		Shares:      pos.Shares,
		Accrued:     pos.Accrued,
		Redeemable:  redeemable,
	})
}

func writeJSON(w http.ResponseWriter, body any) {
	payload, err := json.Marshal(body)
	if err != nil {
		writeInternalError(w, fmt.Errorf("marshal response: %w", err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func writeBadRequest(w http.ResponseWriter, err error) {
	writeJSONError(w, http.StatusBadRequest, err)
}

func writeInternalError(w http.ResponseWriter, err error) {
	writeJSONError(w, http.StatusInternalServerError, err)
}

func writeJSONError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	message := strings.TrimSpace(err.Error())
	if message == "" {
		message = http.StatusText(status)
	}
	payload, marshalErr := json.Marshal(map[string]string{"error": message})
	if marshalErr != nil {
		payload = []byte(`{"error":"internal error"}`)
	}
	_, _ = w.Write(payload)
}
