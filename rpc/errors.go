package rpc

import (
	"errors"
	"net/http"

	"stellavault/core"
	"stellavault/native/allocation"
	"stellavault/native/platform"
	"stellavault/native/trade"
	"stellavault/native/vault"
	"stellavault/state"
)

// Stable error codes so clients can branch without parsing messages. Each
// module owns a decade of the -32000 extension space.
const (
	codePlatformNotInitialized = -32020
	codePlatformForbidden      = -32021

	codeVaultNotFound       = -32030
	codeVaultExists         = -32031
	codeVaultForbidden      = -32032
	codeVaultPaused         = -32033
	codeVaultTokenDenied    = -32034
	codeVaultNonZeroBalance = -32035

	codeAllocationNotFound       = -32040
	codeAllocationExists         = -32041
	codeAllocationForbidden      = -32042
	codeAllocationPaused         = -32043
	codeAllocationNotPaused      = -32044
	codeAllocationLifecycle      = -32045
	codeAllocationNotSettled     = -32046
	codeAllocationUnderfunded    = -32047
	codeAllocationResidualAssets = -32048

	codeTradeForbidden      = -32060
	codeTradePaused         = -32061
	codeTradeNotInitialized = -32062
	codeTradeOwnership      = -32063
	codeTradeTopology       = -32064
	codeTradeFeeDestination = -32065
	codeTradeSlippage       = -32066
	codeTradeFeeEvasion     = -32067
	codeTradeTokenDenied    = -32068
	codeTradeLegacyDisabled = -32069
	codeTradePayload        = -32070

	codeStateAccountMissing = -32080
	codeStateInsufficient   = -32081
)

type errorMapping struct {
	target error
	code   int
	status int
}

var errorMappings = []errorMapping{
	{platform.ErrNotInitialized, codePlatformNotInitialized, http.StatusConflict},
	{platform.ErrAlreadyInitialized, codePlatformNotInitialized, http.StatusConflict},
	{platform.ErrUnauthorized, codePlatformForbidden, http.StatusForbidden},
	{core.ErrNotAdmin, codePlatformForbidden, http.StatusForbidden},

	{vault.ErrNotFound, codeVaultNotFound, http.StatusNotFound},
	{vault.ErrAlreadyExists, codeVaultExists, http.StatusConflict},
	{vault.ErrUnauthorized, codeVaultForbidden, http.StatusForbidden},
	{vault.ErrPaused, codeVaultPaused, http.StatusConflict},
	{vault.ErrTokenNotAllowed, codeVaultTokenDenied, http.StatusBadRequest},
	{vault.ErrNonZeroBalance, codeVaultNonZeroBalance, http.StatusConflict},

	{allocation.ErrNotFound, codeAllocationNotFound, http.StatusNotFound},
	{allocation.ErrAlreadyExists, codeAllocationExists, http.StatusConflict},
	{allocation.ErrVaultNotFound, codeVaultNotFound, http.StatusNotFound},
	{allocation.ErrUnauthorized, codeAllocationForbidden, http.StatusForbidden},
	{allocation.ErrPaused, codeAllocationPaused, http.StatusConflict},
	{allocation.ErrNotPaused, codeAllocationNotPaused, http.StatusConflict},
	{allocation.ErrAlreadyInitialized, codeAllocationLifecycle, http.StatusConflict},
	{allocation.ErrNotSyncing, codeAllocationLifecycle, http.StatusConflict},
	{allocation.ErrNotSettled, codeAllocationNotSettled, http.StatusConflict},
	{allocation.ErrInsufficientFunds, codeAllocationUnderfunded, http.StatusConflict},
	{allocation.ErrMintMismatch, codeAllocationResidualAssets, http.StatusConflict},
	{allocation.ErrNonZeroBalance, codeAllocationResidualAssets, http.StatusConflict},

	{trade.ErrUnauthorized, codeTradeForbidden, http.StatusForbidden},
	{trade.ErrAllocationPaused, codeTradePaused, http.StatusConflict},
	{trade.ErrNotInitialized, codeTradeNotInitialized, http.StatusConflict},
	{trade.ErrInvalidAccountOwner, codeTradeOwnership, http.StatusBadRequest},
	{trade.ErrInvalidSwapTopology, codeTradeTopology, http.StatusBadRequest},
	{trade.ErrInvalidFeeDestination, codeTradeFeeDestination, http.StatusBadRequest},
	{trade.ErrSlippageExceeded, codeTradeSlippage, http.StatusConflict},
	{trade.ErrFeeEvasion, codeTradeFeeEvasion, http.StatusConflict},
	{trade.ErrTokenNotAllowed, codeTradeTokenDenied, http.StatusBadRequest},
	{trade.ErrLegacyTradingDisabled, codeTradeLegacyDisabled, http.StatusConflict},
	{trade.ErrInvalidPayload, codeTradePayload, http.StatusBadRequest},
	{trade.ErrAccountNotFound, codeStateAccountMissing, http.StatusNotFound},

	{state.ErrAccountNotFound, codeStateAccountMissing, http.StatusNotFound},
	{state.ErrInsufficientFunds, codeStateInsufficient, http.StatusConflict},
	{state.ErrNonZeroBalance, codeVaultNonZeroBalance, http.StatusConflict},
	{state.ErrInvalidAmount, codeInvalidParams, http.StatusBadRequest},
}

// writeModuleError translates an engine error into its stable RPC code.
// Unmapped errors fall through as an internal server error.
func writeModuleError(w http.ResponseWriter, id interface{}, err error) bool {
	for _, mapping := range errorMappings {
		if errors.Is(err, mapping.target) {
			writeError(w, mapping.status, id, mapping.code, err.Error(), nil)
			return false
		}
	}
	writeError(w, http.StatusInternalServerError, id, codeServerError, "internal error", err.Error())
	return false
}
