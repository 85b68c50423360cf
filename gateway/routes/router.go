package routes

import (
	"errors"
	"math/big"
	"net/http"

	"github.com/go-chi/chi/v5"

	"rewardvault/gateway/middleware"
	"rewardvault/native/vault"
)

// VaultReader is the read-only slice of the vault engine served over HTTP
// without authentication.
type VaultReader interface {
	Balances() (vault.Balances, error)
	Validator(id string) (*vault.ValidatorShares, error)
	Preview(validator, participant string) (*vault.Position, *big.Int, error)
}

// RateLimitKey is the limiter bucket shared by every /v1 route.
const RateLimitKey = "vault"

type Config struct {
	Vault VaultReader
	// Writer enables the authenticated write routes. It requires Auth.
	Writer        VaultWriter
	Minter        Minter
	Auth          *middleware.Authenticator
	RateLimiter   *middleware.RateLimiter
	Observability *middleware.Observability
}

func New(cfg Config) (http.Handler, error) {
	if cfg.Vault == nil {
		return nil, errors.New("routes: vault reader required")
	}
	if cfg.Writer != nil && cfg.Auth == nil {
		return nil, errors.New("routes: write routes require an authenticator")
	}
	r := chi.NewRouter()
	obs := cfg.Observability

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	vr := &vaultRoutes{reader: cfg.Vault}
	r.Route("/v1", func(sr chi.Router) {
		if cfg.RateLimiter != nil {
			sr.Use(cfg.RateLimiter.Middleware(RateLimitKey))
		}
		vr.mount(sr, obs)
		if cfg.Writer != nil {
			wr := &writeRoutes{reader: cfg.Vault, writer: cfg.Writer, minter: cfg.Minter}
			wr.mount(sr, cfg.Auth, obs)
		}
	})

	if obs != nil {
		r.Handle("/metrics", obs.MetricsHandler())
	}
	return r, nil
}
