package rpc

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"novasale/native/sale"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
)

// Server exposes the sale engine over JSON-RPC 2.0. Mutating methods require
// a bearer token sourced from the NOVASALE_RPC_TOKEN environment variable.
type Server struct {
	engine     *sale.Engine
	currencies *sale.Registry
	authToken  string
}

func NewServer(engine *sale.Engine, currencies *sale.Registry) *Server {
	token := strings.TrimSpace(os.Getenv("NOVASALE_RPC_TOKEN"))
	return &Server{engine: engine, currencies: currencies, authToken: token}
}

// Handler returns the HTTP handler serving the RPC endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handle)
	return mux
}

func (s *Server) Start(addr string) error {
	return http.ListenAndServe(addr, s.Handler())
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	switch req.Method {
	case "sale_purchase":
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handlePurchase(w, req, false)
	case "sale_purchaseFor":
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handlePurchase(w, req, true)
	case "sale_claim":
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleClaim(w, req)
	case "sale_activate":
		s.handleAdmin(w, r, req, s.handleActivate)
	case "sale_deactivate":
		s.handleAdmin(w, r, req, s.handleDeactivate)
	case "sale_configureRound":
		s.handleAdmin(w, r, req, s.handleConfigureRound)
	case "sale_startRound":
		s.handleAdmin(w, r, req, s.handleStartRound)
	case "sale_endRound":
		s.handleAdmin(w, r, req, s.handleEndRound)
	case "sale_setRoundPrice":
		s.handleAdmin(w, r, req, s.handleSetRoundPrice)
	case "sale_setRoundSupply":
		s.handleAdmin(w, r, req, s.handleSetRoundSupply)
	case "sale_registerReferral":
		s.handleAdmin(w, r, req, s.handleRegisterReferral)
	case "sale_enableReferral":
		s.handleAdmin(w, r, req, s.handleEnableReferral)
	case "sale_disableReferral":
		s.handleAdmin(w, r, req, s.handleDisableReferral)
	case "sale_setGlobalRates":
		s.handleAdmin(w, r, req, s.handleSetGlobalRates)
	case "sale_setReferralRates":
		s.handleAdmin(w, r, req, s.handleSetReferralRates)
	case "sale_setAuthorization":
		s.handleAdmin(w, r, req, s.handleSetAuthorization)
	case "sale_setCurrencyPrice":
		s.handleAdmin(w, r, req, s.handleSetCurrencyPrice)
	case "sale_saleState":
		s.handleSaleState(w, req)
	case "sale_currentRound":
		s.handleCurrentRound(w, req)
	case "sale_getRound":
		s.handleGetRound(w, req)
	case "sale_roundCount":
		s.handleRoundCount(w, req)
	case "sale_totalSold":
		s.handleTotalSold(w, req)
	case "sale_balanceOf":
		s.handleBalanceOf(w, req)
	case "sale_fundsOf":
		s.handleFundsOf(w, req)
	case "sale_rewardBalanceOf":
		s.handleRewardBalanceOf(w, req)
	case "sale_limitOf":
		s.handleLimitOf(w, req)
	case "sale_maxLimitOf":
		s.handleMaxLimitOf(w, req)
	case "sale_pointsOf":
		s.handlePointsOf(w, req)
	case "sale_referralOf":
		s.handleReferralOf(w, req)
	case "sale_resolveReferrer":
		s.handleResolveReferrer(w, req)
	case "sale_isAuthorized":
		s.handleIsAuthorized(w, req)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("method %s not found", req.Method), nil)
	}
}

func (s *Server) handleAdmin(w http.ResponseWriter, r *http.Request, req *RPCRequest, fn func(http.ResponseWriter, *RPCRequest)) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	fn(w, req)
}

func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.authToken == "" {
		return &RPCError{Code: codeUnauthorized, Message: "RPC authentication token not configured"}
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing Authorization header"}
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return &RPCError{Code: codeUnauthorized, Message: "Authorization header must use Bearer scheme"}
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing bearer token"}
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
		return &RPCError{Code: codeUnauthorized, Message: "invalid RPC credentials"}
	}
	return nil
}
