package rpc

import (
	"net/http"
)

type allocationKeyParams struct {
	Owner    string `json:"owner"`
	Strategy string `json:"strategy"`
}

func (a allocationKeyParams) decode() (owner, strategy [20]byte, err error) {
	if owner, err = parseVaultAddress(a.Owner); err != nil {
		return
	}
	strategy, err = parseVaultAddress(a.Strategy)
	return
}

type allocationCreateParams struct {
	Owner    string `json:"owner"`
	Strategy string `json:"strategy"`
	Amount   string `json:"amount"`
}

func (s *Server) handleAllocationCreate(w http.ResponseWriter, _ *http.Request, req *RPCRequest) bool {
	var params allocationCreateParams
	if !decodeParams(w, req, &params) {
		return false
	}
	owner, err := parseVaultAddress(params.Owner)
	if err != nil {
		return invalidParams(w, req, err)
	}
	strategy, err := parseVaultAddress(params.Strategy)
	if err != nil {
		return invalidParams(w, req, err)
	}
	amount, err := parsePositiveBigInt(params.Amount)
	if err != nil {
		return invalidParams(w, req, err)
	}
	alloc, err := s.node.AllocationCreate(owner, strategy, amount)
	if err != nil {
		return writeModuleError(w, req.ID, err)
	}
	writeResult(w, req.ID, formatAllocation(alloc, nil))
	return true
}

func (s *Server) handleAllocationGet(w http.ResponseWriter, _ *http.Request, req *RPCRequest) bool {
	var params allocationKeyParams
	if !decodeParams(w, req, &params) {
		return false
	}
	owner, strategy, err := params.decode()
	if err != nil {
		return invalidParams(w, req, err)
	}
	alloc, holdings, err := s.node.AllocationGet(owner, strategy)
	if err != nil {
		return writeModuleError(w, req.ID, err)
	}
	writeResult(w, req.ID, formatAllocation(alloc, holdings))
	return true
}

func (s *Server) handleAllocationList(w http.ResponseWriter, _ *http.Request, req *RPCRequest) bool {
	var params vaultOwnerParams
	if !decodeParams(w, req, &params) {
		return false
	}
	owner, err := parseVaultAddress(params.Owner)
	if err != nil {
		return invalidParams(w, req, err)
	}
	allocs, err := s.node.AllocationList(owner)
	if err != nil {
		return writeModuleError(w, req.ID, err)
	}
	out := make([]allocationJSON, 0, len(allocs))
	for _, alloc := range allocs {
		out = append(out, formatAllocation(alloc, nil))
	}
	writeResult(w, req.ID, out)
	return true
}

// allocationOp factors the many owner+strategy transitions that differ
// only in which node method they call.
func (s *Server) allocationOp(w http.ResponseWriter, req *RPCRequest, op func(owner, strategy [20]byte) error) bool {
	var params allocationKeyParams
	if !decodeParams(w, req, &params) {
		return false
	}
	owner, strategy, err := params.decode()
	if err != nil {
		return invalidParams(w, req, err)
	}
	if err := op(owner, strategy); err != nil {
		return writeModuleError(w, req.ID, err)
	}
	writeResult(w, req.ID, true)
	return true
}

type allocationCallerParams struct {
	Caller   string `json:"caller"`
	Owner    string `json:"owner"`
	Strategy string `json:"strategy"`
}

func (s *Server) allocationCallerOp(w http.ResponseWriter, req *RPCRequest, op func(caller, owner, strategy [20]byte) error) bool {
	var params allocationCallerParams
	if !decodeParams(w, req, &params) {
		return false
	}
	caller, err := parseVaultAddress(params.Caller)
	if err != nil {
		return invalidParams(w, req, err)
	}
	owner, err := parseVaultAddress(params.Owner)
	if err != nil {
		return invalidParams(w, req, err)
	}
	strategy, err := parseVaultAddress(params.Strategy)
	if err != nil {
		return invalidParams(w, req, err)
	}
	if err := op(caller, owner, strategy); err != nil {
		return writeModuleError(w, req.ID, err)
	}
	writeResult(w, req.ID, true)
	return true
}

func (s *Server) handleAllocationPause(w http.ResponseWriter, _ *http.Request, req *RPCRequest) bool {
	return s.allocationOp(w, req, s.node.AllocationPause)
}

func (s *Server) handleAllocationResume(w http.ResponseWriter, _ *http.Request, req *RPCRequest) bool {
	return s.allocationOp(w, req, s.node.AllocationResume)
}

func (s *Server) handleAllocationStartSync(w http.ResponseWriter, _ *http.Request, req *RPCRequest) bool {
	return s.allocationCallerOp(w, req, s.node.AllocationStartSync)
}

func (s *Server) handleAllocationFinishSync(w http.ResponseWriter, _ *http.Request, req *RPCRequest) bool {
	return s.allocationCallerOp(w, req, s.node.AllocationFinishSync)
}

func (s *Server) handleAllocationMarkInitialized(w http.ResponseWriter, _ *http.Request, req *RPCRequest) bool {
	return s.allocationCallerOp(w, req, s.node.AllocationMarkInitialized)
}

type allocationAssetParams struct {
	Owner    string `json:"owner"`
	Strategy string `json:"strategy"`
	Asset    string `json:"asset"`
}

func (s *Server) allocationAssetOp(w http.ResponseWriter, req *RPCRequest, op func(owner, strategy [20]byte, asset string) error) bool {
	var params allocationAssetParams
	if !decodeParams(w, req, &params) {
		return false
	}
	owner, err := parseVaultAddress(params.Owner)
	if err != nil {
		return invalidParams(w, req, err)
	}
	strategy, err := parseVaultAddress(params.Strategy)
	if err != nil {
		return invalidParams(w, req, err)
	}
	if err := op(owner, strategy, params.Asset); err != nil {
		return writeModuleError(w, req.ID, err)
	}
	writeResult(w, req.ID, true)
	return true
}

func (s *Server) handleAllocationOpenAccount(w http.ResponseWriter, _ *http.Request, req *RPCRequest) bool {
	return s.allocationAssetOp(w, req, s.node.AllocationOpenAccount)
}

func (s *Server) handleAllocationCloseAccount(w http.ResponseWriter, _ *http.Request, req *RPCRequest) bool {
	return s.allocationAssetOp(w, req, s.node.AllocationCloseAccount)
}

func (s *Server) handleAllocationSettle(w http.ResponseWriter, _ *http.Request, req *RPCRequest) bool {
	return s.allocationCallerOp(w, req, s.node.AllocationSettle)
}

type withdrawResult struct {
	Amount string `json:"amount"`
}

func (s *Server) handleAllocationWithdraw(w http.ResponseWriter, _ *http.Request, req *RPCRequest) bool {
	var params allocationKeyParams
	if !decodeParams(w, req, &params) {
		return false
	}
	owner, strategy, err := params.decode()
	if err != nil {
		return invalidParams(w, req, err)
	}
	amount, err := s.node.AllocationWithdraw(owner, strategy)
	if err != nil {
		return writeModuleError(w, req.ID, err)
	}
	writeResult(w, req.ID, withdrawResult{Amount: amount.String()})
	return true
}

func (s *Server) handleAllocationClose(w http.ResponseWriter, _ *http.Request, req *RPCRequest) bool {
	return s.allocationOp(w, req, s.node.AllocationClose)
}
