package rpc

import (
	"net/http"

	coretypes "stellavault/core/types"
)

type platformConfigResult struct {
	Admin                string `json:"admin"`
	PlatformFeeBps       uint16 `json:"platformFeeBps"`
	PerformanceFeeBps    uint16 `json:"performanceFeeBps"`
	LegacyTradingEnabled bool   `json:"legacyTradingEnabled"`
}

func (s *Server) handlePlatformGetConfig(w http.ResponseWriter, _ *http.Request, req *RPCRequest) bool {
	cfg, err := s.node.PlatformConfig()
	if err != nil {
		return writeModuleError(w, req.ID, err)
	}
	writeResult(w, req.ID, platformConfigResult{
		Admin:                formatAddress(cfg.Admin),
		PlatformFeeBps:       cfg.PlatformFeeBps,
		PerformanceFeeBps:    cfg.PerformanceFeeBps,
		LegacyTradingEnabled: cfg.LegacyTradingEnabled,
	})
	return true
}

type callerParams struct {
	Caller string `json:"caller"`
}

type toggleResult struct {
	Enabled bool `json:"enabled"`
}

func (s *Server) handlePlatformToggleLegacy(w http.ResponseWriter, _ *http.Request, req *RPCRequest) bool {
	var params callerParams
	if !decodeParams(w, req, &params) {
		return false
	}
	caller, err := parseVaultAddress(params.Caller)
	if err != nil {
		return invalidParams(w, req, err)
	}
	enabled, err := s.node.ToggleLegacyTrading(caller)
	if err != nil {
		return writeModuleError(w, req.ID, err)
	}
	writeResult(w, req.ID, toggleResult{Enabled: enabled})
	return true
}

type mintParams struct {
	Caller string `json:"caller"`
	To     string `json:"to"`
	Asset  string `json:"asset"`
	Amount string `json:"amount"`
}

func (s *Server) handleMint(w http.ResponseWriter, _ *http.Request, req *RPCRequest) bool {
	var params mintParams
	if !decodeParams(w, req, &params) {
		return false
	}
	caller, err := parseVaultAddress(params.Caller)
	if err != nil {
		return invalidParams(w, req, err)
	}
	to, err := parseVaultAddress(params.To)
	if err != nil {
		return invalidParams(w, req, err)
	}
	amount, err := parsePositiveBigInt(params.Amount)
	if err != nil {
		return invalidParams(w, req, err)
	}
	if err := s.node.Mint(caller, to, params.Asset, amount); err != nil {
		return writeModuleError(w, req.ID, err)
	}
	writeResult(w, req.ID, true)
	return true
}

type eventsResult struct {
	Events []*coretypes.Event `json:"events"`
}

func (s *Server) handleGetEvents(w http.ResponseWriter, _ *http.Request, req *RPCRequest) bool {
	writeResult(w, req.ID, eventsResult{Events: s.node.Events()})
	return true
}
