package rpc

import (
	"fmt"
	"math/big"
	"net/http"
	"time"

	"novasale/native/sale"
	"novasale/observability/metrics"
)

func (s *Server) handlePurchase(w http.ResponseWriter, req *RPCRequest, agentInitiated bool) {
	var params purchaseParams
	if err := parseParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	user, err := parseAddress("user", params.User)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	referrer, err := parseOptionalAddress("referrer", params.Referrer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, err := parseBig("amount", params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	attached, err := parseOptionalBig("attachedValue", params.AttachedValue)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}

	var receipt *sale.PurchaseReceipt
	if agentInitiated {
		receipt, err = s.engine.PurchaseFor(user, referrer, params.Asset, amount, attached)
	} else {
		receipt, err = s.engine.Purchase(user, referrer, params.Asset, amount, attached)
	}
	if err != nil {
		writeError(w, http.StatusOK, req.ID, codeServerError, err.Error(), nil)
		return
	}
	writeResult(w, req.ID, formatReceipt(receipt))
}

func (s *Server) handleClaim(w http.ResponseWriter, req *RPCRequest) {
	var params claimParams
	if err := parseParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseAddress("caller", params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	paid, err := s.engine.Ledger().Claim(caller, params.Assets)
	if err != nil {
		writeError(w, http.StatusOK, req.ID, codeServerError, err.Error(), nil)
		return
	}
	payouts := make(map[string]string, len(paid))
	for _, p := range paid {
		metrics.Sale().RewardClaimed(p.Asset)
		payouts[p.Asset] = formatAmount(p.Amount)
	}
	writeResult(w, req.ID, map[string]interface{}{
		"caller":  formatAddress(caller),
		"payouts": payouts,
	})
}

// --- Administration ---

func (s *Server) handleActivate(w http.ResponseWriter, req *RPCRequest) {
	if err := s.engine.Ledger().ActivateSale(); err != nil {
		writeError(w, http.StatusOK, req.ID, codeServerError, err.Error(), nil)
		return
	}
	writeResult(w, req.ID, saleStateResult{State: s.engine.Ledger().SaleStatus().String()})
}

func (s *Server) handleDeactivate(w http.ResponseWriter, req *RPCRequest) {
	if err := s.engine.Ledger().DeactivateSale(); err != nil {
		writeError(w, http.StatusOK, req.ID, codeServerError, err.Error(), nil)
		return
	}
	writeResult(w, req.ID, saleStateResult{State: s.engine.Ledger().SaleStatus().String()})
}

func (s *Server) handleConfigureRound(w http.ResponseWriter, req *RPCRequest) {
	var params configureRoundParams
	if err := parseParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	price, err := parseBig("price", params.Price)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	supply, err := parseBig("supply", params.Supply)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	index, err := s.engine.Ledger().ConfigureRound(price, supply)
	if err != nil {
		writeError(w, http.StatusOK, req.ID, codeServerError, err.Error(), nil)
		return
	}
	writeResult(w, req.ID, roundIndexParams{Index: index})
}

func (s *Server) handleStartRound(w http.ResponseWriter, req *RPCRequest) {
	var params roundIndexParams
	if err := parseParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.engine.Ledger().StartRound(params.Index); err != nil {
		writeError(w, http.StatusOK, req.ID, codeServerError, err.Error(), nil)
		return
	}
	round, err := s.engine.Ledger().RoundAt(params.Index)
	if err != nil {
		writeError(w, http.StatusOK, req.ID, codeServerError, err.Error(), nil)
		return
	}
	writeResult(w, req.ID, formatRound(round, params.Index))
}

func (s *Server) handleEndRound(w http.ResponseWriter, req *RPCRequest) {
	var params roundIndexParams
	if err := parseParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.engine.Ledger().EndRound(params.Index); err != nil {
		writeError(w, http.StatusOK, req.ID, codeServerError, err.Error(), nil)
		return
	}
	round, err := s.engine.Ledger().RoundAt(params.Index)
	if err != nil {
		writeError(w, http.StatusOK, req.ID, codeServerError, err.Error(), nil)
		return
	}
	writeResult(w, req.ID, formatRound(round, params.Index))
}

func (s *Server) handleSetRoundPrice(w http.ResponseWriter, req *RPCRequest) {
	var params adjustRoundParams
	if err := parseParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	price, err := parseBig("price", params.Price)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.engine.Ledger().AdjustRoundPrice(params.Index, price); err != nil {
		writeError(w, http.StatusOK, req.ID, codeServerError, err.Error(), nil)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleSetRoundSupply(w http.ResponseWriter, req *RPCRequest) {
	var params adjustRoundParams
	if err := parseParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	supply, err := parseBig("supply", params.Supply)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.engine.Ledger().AdjustRoundSupply(params.Index, supply); err != nil {
		writeError(w, http.StatusOK, req.ID, codeServerError, err.Error(), nil)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleRegisterReferral(w http.ResponseWriter, req *RPCRequest) {
	s.handleReferralToggle(w, req, s.engine.Ledger().RegisterReferral)
}

func (s *Server) handleEnableReferral(w http.ResponseWriter, req *RPCRequest) {
	s.handleReferralToggle(w, req, s.engine.Ledger().EnableReferral)
}

func (s *Server) handleDisableReferral(w http.ResponseWriter, req *RPCRequest) {
	s.handleReferralToggle(w, req, s.engine.Ledger().DisableReferral)
}

func (s *Server) handleReferralToggle(w http.ResponseWriter, req *RPCRequest, fn func(sale.Address) error) {
	var params addressParams
	if err := parseParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	addr, err := parseAddress("referral", params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := fn(addr); err != nil {
		writeError(w, http.StatusOK, req.ID, codeServerError, err.Error(), nil)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleSetGlobalRates(w http.ResponseWriter, req *RPCRequest) {
	var params ratesParams
	if err := parseParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.engine.Ledger().SetGlobalRates(params.Primary, params.Secondary); err != nil {
		writeError(w, http.StatusOK, req.ID, codeServerError, err.Error(), nil)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleSetReferralRates(w http.ResponseWriter, req *RPCRequest) {
	var params ratesParams
	if err := parseParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	addr, err := parseAddress("referral", params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.engine.Ledger().SetReferralRates(addr, params.Primary, params.Secondary); err != nil {
		writeError(w, http.StatusOK, req.ID, codeServerError, err.Error(), nil)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleSetAuthorization(w http.ResponseWriter, req *RPCRequest) {
	var params authorizationParams
	if err := parseParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	addr, err := parseAddress("user", params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.engine.Ledger().SetAuthorization(addr, params.Authorized); err != nil {
		writeError(w, http.StatusOK, req.ID, codeServerError, err.Error(), nil)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleSetCurrencyPrice(w http.ResponseWriter, req *RPCRequest) {
	var params currencyPriceParams
	if err := parseParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	price, err := parseBig("price", params.Price)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	currency, ok := s.currencies.Currency(params.Symbol)
	if !ok {
		writeError(w, http.StatusOK, req.ID, codeServerError, fmt.Sprintf("currency %s not whitelisted", params.Symbol), nil)
		return
	}
	if currency.Fixed {
		writeError(w, http.StatusOK, req.ID, codeServerError, fmt.Sprintf("currency %s is pegged", currency.Symbol), nil)
		return
	}
	source, ok := currency.Source.(*sale.StaticPriceSource)
	if !ok {
		writeError(w, http.StatusOK, req.ID, codeServerError, fmt.Sprintf("currency %s price feed is not operator-settable", currency.Symbol), nil)
		return
	}
	updatedAt := time.Now()
	if params.Timestamp > 0 {
		updatedAt = time.Unix(params.Timestamp, 0)
	}
	source.Set(price, updatedAt)
	writeResult(w, req.ID, true)
}

// --- Reads ---

func (s *Server) handleSaleState(w http.ResponseWriter, req *RPCRequest) {
	writeResult(w, req.ID, saleStateResult{State: s.engine.Ledger().SaleStatus().String()})
}

func (s *Server) handleCurrentRound(w http.ResponseWriter, req *RPCRequest) {
	round, index, ok := s.engine.Ledger().CurrentRound()
	if !ok {
		writeError(w, http.StatusOK, req.ID, codeServerError, "no active round", nil)
		return
	}
	writeResult(w, req.ID, formatRound(round, index))
}

func (s *Server) handleGetRound(w http.ResponseWriter, req *RPCRequest) {
	var params roundIndexParams
	if err := parseParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	round, err := s.engine.Ledger().RoundAt(params.Index)
	if err != nil {
		writeError(w, http.StatusOK, req.ID, codeServerError, err.Error(), nil)
		return
	}
	writeResult(w, req.ID, formatRound(round, params.Index))
}

func (s *Server) handleRoundCount(w http.ResponseWriter, req *RPCRequest) {
	writeResult(w, req.ID, map[string]uint64{"count": s.engine.Ledger().RoundCount()})
}

func (s *Server) handleTotalSold(w http.ResponseWriter, req *RPCRequest) {
	writeResult(w, req.ID, amountResult{Amount: formatAmount(s.engine.Ledger().TotalSold())})
}

func (s *Server) handleBalanceOf(w http.ResponseWriter, req *RPCRequest) {
	var params balanceParams
	if err := parseParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	addr, err := parseAddress("user", params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	writeResult(w, req.ID, amountResult{Amount: formatAmount(s.engine.Ledger().BalanceOf(addr, params.Round))})
}

func (s *Server) handleFundsOf(w http.ResponseWriter, req *RPCRequest) {
	s.handleAddressAmount(w, req, s.engine.Ledger().FundsOf)
}

func (s *Server) handleLimitOf(w http.ResponseWriter, req *RPCRequest) {
	s.handleAddressAmount(w, req, s.engine.Ledger().LimitOf)
}

func (s *Server) handleMaxLimitOf(w http.ResponseWriter, req *RPCRequest) {
	s.handleAddressAmount(w, req, s.engine.Ledger().MaxLimitOf)
}

func (s *Server) handlePointsOf(w http.ResponseWriter, req *RPCRequest) {
	s.handleAddressAmount(w, req, s.engine.Ledger().PointsOf)
}

func (s *Server) handleAddressAmount(w http.ResponseWriter, req *RPCRequest, fn func(sale.Address) *big.Int) {
	var params addressParams
	if err := parseParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	addr, err := parseAddress("address", params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	writeResult(w, req.ID, amountResult{Amount: formatAmount(fn(addr))})
}

func (s *Server) handleRewardBalanceOf(w http.ResponseWriter, req *RPCRequest) {
	var params rewardBalanceParams
	if err := parseParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	addr, err := parseAddress("referral", params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	writeResult(w, req.ID, amountResult{Amount: formatAmount(s.engine.Ledger().RewardBalanceOf(addr, params.Asset))})
}

func (s *Server) handleReferralOf(w http.ResponseWriter, req *RPCRequest) {
	var params addressParams
	if err := parseParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	addr, err := parseAddress("referral", params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	ledger := s.engine.Ledger()
	ref, ok := ledger.ReferralOf(addr)
	if !ok {
		writeError(w, http.StatusOK, req.ID, codeServerError, "referral account not found", nil)
		return
	}
	primary, secondary := ledger.EffectiveRatesOf(addr)
	writeResult(w, req.ID, referralResult{
		Address:       formatAddress(addr),
		Enabled:       ref.Enabled,
		PrimaryRate:   primary,
		SecondaryRate: secondary,
		ReferralCount: ledger.ReferralCountOf(addr),
	})
}

func (s *Server) handleResolveReferrer(w http.ResponseWriter, req *RPCRequest) {
	var params resolveReferrerParams
	if err := parseParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	user, err := parseAddress("user", params.User)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	supplied, err := parseOptionalAddress("referrer", params.Referrer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	resolved := s.engine.Ledger().ResolveReferrer(user, supplied)
	writeResult(w, req.ID, map[string]string{"referrer": formatAddress(resolved)})
}

func (s *Server) handleIsAuthorized(w http.ResponseWriter, req *RPCRequest) {
	var params addressParams
	if err := parseParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	addr, err := parseAddress("user", params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	writeResult(w, req.ID, map[string]bool{"authorized": s.engine.Ledger().IsAuthorized(addr)})
}
