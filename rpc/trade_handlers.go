package rpc

import (
	"encoding/hex"
	"net/http"
	"strings"

	"stellavault/native/trade"
)

type accountRefJSON struct {
	Holder string `json:"holder"`
	Asset  string `json:"asset"`
}

func (a accountRefJSON) decode() (trade.AccountRef, error) {
	holder, err := parseVaultAddress(a.Holder)
	if err != nil {
		return trade.AccountRef{}, err
	}
	return trade.AccountRef{Holder: holder, Asset: strings.ToUpper(strings.TrimSpace(a.Asset))}, nil
}

type swapParams struct {
	Caller       string         `json:"caller"`
	Owner        string         `json:"owner"`
	Strategy     string         `json:"strategy"`
	AmountIn     string         `json:"amountIn"`
	MinAmountOut string         `json:"minAmountOut"`
	Executor     string         `json:"executor"`
	Payload      string         `json:"payload,omitempty"`
	Input        accountRefJSON `json:"input"`
	Output       accountRefJSON `json:"output"`
	FeeAccount   accountRefJSON `json:"feeAccount"`
}

func formatReceipt(receipt *trade.Receipt) receiptJSON {
	return receiptJSON{
		Fee:            receipt.Fee.String(),
		SwapAmount:     receipt.SwapAmount.String(),
		AmountSpent:    receipt.AmountSpent.String(),
		AmountReceived: receipt.AmountReceived.String(),
		ValueUpdated:   receipt.ValueUpdated,
	}
}

func parsePayloadHex(value string) ([]byte, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	if trimmed == "" {
		return nil, nil
	}
	return hex.DecodeString(trimmed)
}

func (s *Server) handleTradeSwap(w http.ResponseWriter, r *http.Request, req *RPCRequest) bool {
	var params swapParams
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
	amountIn, err := parsePositiveBigInt(params.AmountIn)
	if err != nil {
		return invalidParams(w, req, err)
	}
	minAmountOut, err := parseNonNegativeBigInt(params.MinAmountOut)
	if err != nil {
		return invalidParams(w, req, err)
	}
	executor, err := parseVaultAddress(params.Executor)
	if err != nil {
		return invalidParams(w, req, err)
	}
	payload, err := parsePayloadHex(params.Payload)
	if err != nil {
		return invalidParams(w, req, err)
	}
	input, err := params.Input.decode()
	if err != nil {
		return invalidParams(w, req, err)
	}
	output, err := params.Output.decode()
	if err != nil {
		return invalidParams(w, req, err)
	}
	feeAccount, err := params.FeeAccount.decode()
	if err != nil {
		return invalidParams(w, req, err)
	}

	receipt, err := s.node.Swap(r.Context(), caller, trade.SwapParams{
		Owner:        owner,
		Strategy:     strategy,
		AmountIn:     amountIn,
		MinAmountOut: minAmountOut,
		Payload:      payload,
		Executor:     executor,
		Input:        input,
		Output:       output,
		FeeAccount:   feeAccount,
	})
	if err != nil {
		return writeModuleError(w, req.ID, err)
	}
	writeResult(w, req.ID, formatReceipt(receipt))
	return true
}

type legacySwapParams struct {
	Caller     string         `json:"caller"`
	Owner      string         `json:"owner"`
	Operation  string         `json:"operation"`
	Executor   string         `json:"executor"`
	Input      accountRefJSON `json:"input"`
	Output     accountRefJSON `json:"output"`
	FeeAccount accountRefJSON `json:"feeAccount"`
}

func (s *Server) handleTradeLegacySwap(w http.ResponseWriter, r *http.Request, req *RPCRequest) bool {
	var params legacySwapParams
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
	rawOp, err := parsePayloadHex(params.Operation)
	if err != nil {
		return invalidParams(w, req, err)
	}
	executor, err := parseVaultAddress(params.Executor)
	if err != nil {
		return invalidParams(w, req, err)
	}
	input, err := params.Input.decode()
	if err != nil {
		return invalidParams(w, req, err)
	}
	output, err := params.Output.decode()
	if err != nil {
		return invalidParams(w, req, err)
	}
	feeAccount, err := params.FeeAccount.decode()
	if err != nil {
		return invalidParams(w, req, err)
	}

	receipt, err := s.node.LegacySwap(r.Context(), caller, owner, rawOp, executor, input, output, feeAccount)
	if err != nil {
		return writeModuleError(w, req.ID, err)
	}
	writeResult(w, req.ID, formatReceipt(receipt))
	return true
}
