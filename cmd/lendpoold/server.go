package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lendpool/crypto"
	"lendpool/native/lending"
)

// api serves the read-only inspection surface over the ledger. Mutations
// arrive through the host embedding the engine, never over HTTP.
type api struct {
	engine *lending.Engine
	logger *slog.Logger
}

func newRouter(engine *lending.Engine, logger *slog.Logger) http.Handler {
	a := &api{engine: engine, logger: logger}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", a.handleHealthz)
	r.Handle("/metrics", promhttp.Handler())
	r.Route("/v1", func(r chi.Router) {
		r.Get("/params", a.handleParams)
		r.Get("/markets/{asset}", a.handleMarket)
		r.Get("/positions/{user}/{asset}", a.handlePosition)
		r.Get("/accounts/{user}/health", a.handleAccountHealth)
	})
	return r
}

func (a *api) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		a.logger.Error("encode response", "error", err)
	}
}

func (a *api) writeError(w http.ResponseWriter, status int, err error) {
	a.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (a *api) handleHealthz(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type paramsResponse struct {
	Owner              string `json:"owner"`
	BaseRateBps        uint64 `json:"baseRateBps"`
	OptimalUtilBps     uint64 `json:"optimalUtilizationBps"`
	Slope1Bps          uint64 `json:"slope1Bps"`
	Slope2Bps          uint64 `json:"slope2Bps"`
	CollateralFactor   uint64 `json:"collateralFactorBps"`
	LiquidationThresh  uint64 `json:"liquidationThresholdBps"`
	CloseFactorBps     uint64 `json:"closeFactorBps"`
	BonusMinBps        uint64 `json:"liquidationBonusMinBps"`
	BonusMaxBps        uint64 `json:"liquidationBonusMaxBps"`
	ReserveFactorBps   uint64 `json:"reserveFactorBps"`
	FlashLoanFeeBps    uint64 `json:"flashLoanFeeBps"`
	TWAPPeriodSeconds  uint64 `json:"twapPeriodSeconds"`
	PriceMaxAgeSeconds uint64 `json:"priceMaxAgeSeconds"`
	FlashLoansEnabled  bool   `json:"flashLoansEnabled"`
	Paused             bool   `json:"paused"`
}

func (a *api) handleParams(w http.ResponseWriter, r *http.Request) {
	params, err := a.engine.Params()
	if err != nil {
		a.writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	a.writeJSON(w, http.StatusOK, paramsResponse{
		Owner:              params.Owner.String(),
		BaseRateBps:        params.Interest.BaseRateBps,
		OptimalUtilBps:     params.Interest.OptimalUtilBps,
		Slope1Bps:          params.Interest.Slope1Bps,
		Slope2Bps:          params.Interest.Slope2Bps,
		CollateralFactor:   params.Risk.CollateralFactorBps,
		LiquidationThresh:  params.Risk.LiquidationThresholdBps,
		CloseFactorBps:     params.Risk.CloseFactorBps,
		BonusMinBps:        params.Risk.LiquidationBonusMinBps,
		BonusMaxBps:        params.Risk.LiquidationBonusMaxBps,
		ReserveFactorBps:   params.Risk.ReserveFactorBps,
		FlashLoanFeeBps:    params.Risk.FlashLoanFeeBps,
		TWAPPeriodSeconds:  params.TWAPPeriodSeconds,
		PriceMaxAgeSeconds: params.PriceMaxAgeSeconds,
		FlashLoansEnabled:  params.FlashLoansEnabled,
		Paused:             params.Paused,
	})
}

func pathAddress(r *http.Request, param string) (crypto.Address, error) {
	raw := chi.URLParam(r, param)
	if raw == "" {
		return crypto.Address{}, errors.New("missing " + param)
	}
	return crypto.DecodeAddress(raw)
}

type marketResponse struct {
	Supported             bool   `json:"supported"`
	Decimals              uint8  `json:"decimals"`
	TotalCollateral       string `json:"totalCollateral"`
	TotalBorrows          string `json:"totalBorrows"`
	SupplyIndex           string `json:"supplyIndex"`
	SupplyIndexLastUpdate uint64 `json:"supplyIndexLastUpdate"`
	ManualPrice           string `json:"manualPrice"`
	OraclePair            string `json:"oraclePair,omitempty"`
	TreasuryReserve       string `json:"treasuryReserve"`
}

func (a *api) handleMarket(w http.ResponseWriter, r *http.Request) {
	asset, err := pathAddress(r, "asset")
	if err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	market, err := a.engine.Market(asset)
	if err != nil {
		a.writeError(w, http.StatusNotFound, err)
		return
	}
	resp := marketResponse{
		Supported:             market.Supported,
		Decimals:              market.Decimals,
		TotalCollateral:       market.TotalCollateral.Dec(),
		TotalBorrows:          market.TotalBorrows.Dec(),
		SupplyIndex:           market.SupplyIndex.Dec(),
		SupplyIndexLastUpdate: market.SupplyIndexLastUpdate,
		ManualPrice:           market.ManualPrice.Dec(),
		TreasuryReserve:       market.TreasuryReserve.Dec(),
	}
	if !market.OraclePair.IsZero() {
		resp.OraclePair = market.OraclePair.String()
	}
	a.writeJSON(w, http.StatusOK, resp)
}

type positionResponse struct {
	Collateral     string `json:"collateral"`
	Debt           string `json:"debt"`
	SupplyIndex    string `json:"supplyIndex"`
	LastUpdateTime uint64 `json:"lastUpdateTime"`
}

func (a *api) handlePosition(w http.ResponseWriter, r *http.Request) {
	user, err := pathAddress(r, "user")
	if err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	asset, err := pathAddress(r, "asset")
	if err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	position, err := a.engine.Position(user, asset)
	if err != nil {
		a.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if position == nil {
		a.writeError(w, http.StatusNotFound, errors.New("no position"))
		return
	}
	a.writeJSON(w, http.StatusOK, positionResponse{
		Collateral:     position.Collateral.Dec(),
		Debt:           position.Debt.Dec(),
		SupplyIndex:    position.SupplyIndex.Dec(),
		LastUpdateTime: position.LastUpdateTime,
	})
}

type healthResponse struct {
	TotalCollateralValue string `json:"totalCollateralValue"`
	TotalBorrowValue     string `json:"totalBorrowValue"`
	HealthFactor         string `json:"healthFactor"`
	Healthy              bool   `json:"healthy"`
}

func (a *api) handleAccountHealth(w http.ResponseWriter, r *http.Request) {
	user, err := pathAddress(r, "user")
	if err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	health, err := a.engine.AccountHealth(user)
	if err != nil {
		a.writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	a.writeJSON(w, http.StatusOK, healthResponse{
		TotalCollateralValue: health.TotalCollateralValue.Dec(),
		TotalBorrowValue:     health.TotalBorrowValue.Dec(),
		HealthFactor:         health.HealthFactor.Dec(),
		Healthy:              health.Healthy,
	})
}
