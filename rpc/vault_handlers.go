package rpc

import (
	"math/big"
	"net/http"
)

type vaultCreateParams struct {
	Owner     string `json:"owner"`
	Authority string `json:"authority"`
	BaseAsset string `json:"baseAsset"`
}

func (s *Server) handleVaultCreate(w http.ResponseWriter, _ *http.Request, req *RPCRequest) bool {
	var params vaultCreateParams
	if !decodeParams(w, req, &params) {
		return false
	}
	owner, err := parseVaultAddress(params.Owner)
	if err != nil {
		return invalidParams(w, req, err)
	}
	authority, err := parseVaultAddress(params.Authority)
	if err != nil {
		return invalidParams(w, req, err)
	}
	v, err := s.node.VaultCreate(owner, authority, params.BaseAsset)
	if err != nil {
		return writeModuleError(w, req.ID, err)
	}
	writeResult(w, req.ID, formatVault(v))
	return true
}

type vaultOwnerParams struct {
	Owner string `json:"owner"`
}

func (s *Server) handleVaultGet(w http.ResponseWriter, _ *http.Request, req *RPCRequest) bool {
	var params vaultOwnerParams
	if !decodeParams(w, req, &params) {
		return false
	}
	owner, err := parseVaultAddress(params.Owner)
	if err != nil {
		return invalidParams(w, req, err)
	}
	v, ok, err := s.node.VaultGet(owner)
	if err != nil {
		return writeModuleError(w, req.ID, err)
	}
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeVaultNotFound, "vault not found", nil)
		return false
	}
	writeResult(w, req.ID, formatVault(v))
	return true
}

func (s *Server) handleVaultHoldings(w http.ResponseWriter, _ *http.Request, req *RPCRequest) bool {
	var params vaultOwnerParams
	if !decodeParams(w, req, &params) {
		return false
	}
	owner, err := parseVaultAddress(params.Owner)
	if err != nil {
		return invalidParams(w, req, err)
	}
	holdings, err := s.node.VaultHoldings(owner)
	if err != nil {
		return writeModuleError(w, req.ID, err)
	}
	out := make([]holdingJSON, 0, len(holdings))
	for _, h := range holdings {
		out = append(out, holdingJSON{Asset: h.Asset, Balance: h.Balance.String()})
	}
	writeResult(w, req.ID, out)
	return true
}

type pauseResult struct {
	Paused bool `json:"paused"`
}

func (s *Server) handleVaultTogglePause(w http.ResponseWriter, _ *http.Request, req *RPCRequest) bool {
	var params vaultOwnerParams
	if !decodeParams(w, req, &params) {
		return false
	}
	owner, err := parseVaultAddress(params.Owner)
	if err != nil {
		return invalidParams(w, req, err)
	}
	paused, err := s.node.VaultTogglePause(owner)
	if err != nil {
		return writeModuleError(w, req.ID, err)
	}
	writeResult(w, req.ID, pauseResult{Paused: paused})
	return true
}

type vaultAssetParams struct {
	Owner string `json:"owner"`
	Asset string `json:"asset"`
}

func (s *Server) vaultAssetOp(w http.ResponseWriter, req *RPCRequest, op func(owner [20]byte, asset string) error) bool {
	var params vaultAssetParams
	if !decodeParams(w, req, &params) {
		return false
	}
	owner, err := parseVaultAddress(params.Owner)
	if err != nil {
		return invalidParams(w, req, err)
	}
	if err := op(owner, params.Asset); err != nil {
		return writeModuleError(w, req.ID, err)
	}
	writeResult(w, req.ID, true)
	return true
}

func (s *Server) handleVaultAddAsset(w http.ResponseWriter, _ *http.Request, req *RPCRequest) bool {
	return s.vaultAssetOp(w, req, s.node.VaultAddAsset)
}

func (s *Server) handleVaultRemoveAsset(w http.ResponseWriter, _ *http.Request, req *RPCRequest) bool {
	return s.vaultAssetOp(w, req, s.node.VaultRemoveAsset)
}

func (s *Server) handleVaultOpenAccount(w http.ResponseWriter, _ *http.Request, req *RPCRequest) bool {
	return s.vaultAssetOp(w, req, s.node.VaultOpenAccount)
}

func (s *Server) handleVaultCloseAccount(w http.ResponseWriter, _ *http.Request, req *RPCRequest) bool {
	return s.vaultAssetOp(w, req, s.node.VaultCloseAccount)
}

type vaultAmountParams struct {
	Owner  string `json:"owner"`
	Asset  string `json:"asset"`
	Amount string `json:"amount"`
}

func (s *Server) handleVaultDeposit(w http.ResponseWriter, _ *http.Request, req *RPCRequest) bool {
	return s.vaultAmountOp(w, req, s.node.VaultDeposit)
}

func (s *Server) handleVaultWithdraw(w http.ResponseWriter, _ *http.Request, req *RPCRequest) bool {
	return s.vaultAmountOp(w, req, s.node.VaultWithdraw)
}

func (s *Server) vaultAmountOp(w http.ResponseWriter, req *RPCRequest, op func(owner [20]byte, asset string, amount *big.Int) error) bool {
	var params vaultAmountParams
	if !decodeParams(w, req, &params) {
		return false
	}
	owner, err := parseVaultAddress(params.Owner)
	if err != nil {
		return invalidParams(w, req, err)
	}
	amount, err := parsePositiveBigInt(params.Amount)
	if err != nil {
		return invalidParams(w, req, err)
	}
	if err := op(owner, params.Asset, amount); err != nil {
		return writeModuleError(w, req.ID, err)
	}
	writeResult(w, req.ID, true)
	return true
}
