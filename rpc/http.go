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
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stellavault/core"
	"stellavault/observability"
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

// Server exposes the node over JSON-RPC 2.0 on a single POST endpoint,
// with health and metrics endpoints beside it. Mutating methods require a
// bearer token taken from SVT_RPC_TOKEN.
type Server struct {
	node      *core.Node
	authToken string
}

// NewServer wraps a node for RPC serving.
func NewServer(node *core.Node) *Server {
	return &Server{
		node:      node,
		authToken: strings.TrimSpace(os.Getenv("SVT_RPC_TOKEN")),
	}
}

// Router builds the HTTP mux: JSON-RPC at /, liveness at /healthz and
// Prometheus metrics at /metrics.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Post("/", s.handle)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// Start serves the router on addr, blocking until the listener fails.
func (s *Server) Start(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return srv.ListenAndServe()
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
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj})
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result})
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

	started := time.Now()
	outcome := s.dispatch(w, r, req)
	observability.RPC().ObserveRequest(req.Method, outcome, time.Since(started))
}

// dispatch routes a request to its handler and reports the outcome label
// recorded in metrics.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, req *RPCRequest) string {
	handler, found := s.route(req.Method)
	if !found {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", req.Method)
		return "not_found"
	}
	if handler.privileged {
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return "unauthorized"
		}
	}
	if ok := handler.fn(w, r, req); !ok {
		observability.RPC().ObserveError(req.Method, "handler")
		return "error"
	}
	return "ok"
}

type routeEntry struct {
	fn         func(http.ResponseWriter, *http.Request, *RPCRequest) bool
	privileged bool
}

func (s *Server) route(method string) (routeEntry, bool) {
	switch method {
	case "platform_getConfig":
		return routeEntry{fn: s.handlePlatformGetConfig}, true
	case "platform_toggleLegacyTrading":
		return routeEntry{fn: s.handlePlatformToggleLegacy, privileged: true}, true
	case "svt_mint":
		return routeEntry{fn: s.handleMint, privileged: true}, true
	case "svt_getEvents":
		return routeEntry{fn: s.handleGetEvents}, true
	case "vault_create":
		return routeEntry{fn: s.handleVaultCreate, privileged: true}, true
	case "vault_get":
		return routeEntry{fn: s.handleVaultGet}, true
	case "vault_holdings":
		return routeEntry{fn: s.handleVaultHoldings}, true
	case "vault_togglePause":
		return routeEntry{fn: s.handleVaultTogglePause, privileged: true}, true
	case "vault_addAsset":
		return routeEntry{fn: s.handleVaultAddAsset, privileged: true}, true
	case "vault_removeAsset":
		return routeEntry{fn: s.handleVaultRemoveAsset, privileged: true}, true
	case "vault_openAccount":
		return routeEntry{fn: s.handleVaultOpenAccount, privileged: true}, true
	case "vault_closeAccount":
		return routeEntry{fn: s.handleVaultCloseAccount, privileged: true}, true
	case "vault_deposit":
		return routeEntry{fn: s.handleVaultDeposit, privileged: true}, true
	case "vault_withdraw":
		return routeEntry{fn: s.handleVaultWithdraw, privileged: true}, true
	case "alloc_create":
		return routeEntry{fn: s.handleAllocationCreate, privileged: true}, true
	case "alloc_get":
		return routeEntry{fn: s.handleAllocationGet}, true
	case "alloc_list":
		return routeEntry{fn: s.handleAllocationList}, true
	case "alloc_pause":
		return routeEntry{fn: s.handleAllocationPause, privileged: true}, true
	case "alloc_resume":
		return routeEntry{fn: s.handleAllocationResume, privileged: true}, true
	case "alloc_startSync":
		return routeEntry{fn: s.handleAllocationStartSync, privileged: true}, true
	case "alloc_finishSync":
		return routeEntry{fn: s.handleAllocationFinishSync, privileged: true}, true
	case "alloc_markInitialized":
		return routeEntry{fn: s.handleAllocationMarkInitialized, privileged: true}, true
	case "alloc_openAccount":
		return routeEntry{fn: s.handleAllocationOpenAccount, privileged: true}, true
	case "alloc_closeAccount":
		return routeEntry{fn: s.handleAllocationCloseAccount, privileged: true}, true
	case "alloc_settle":
		return routeEntry{fn: s.handleAllocationSettle, privileged: true}, true
	case "alloc_withdraw":
		return routeEntry{fn: s.handleAllocationWithdraw, privileged: true}, true
	case "alloc_close":
		return routeEntry{fn: s.handleAllocationClose, privileged: true}, true
	case "trade_swap":
		return routeEntry{fn: s.handleTradeSwap, privileged: true}, true
	case "trade_legacySwap":
		return routeEntry{fn: s.handleTradeLegacySwap, privileged: true}, true
	}
	return routeEntry{}, false
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
