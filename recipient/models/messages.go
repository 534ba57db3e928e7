package models

// User-facing address errors. Any of them disables submission.
const (
	ErrMsgCW20NotSupported  = "IBC transfers are not supported for cw20 tokens."
	ErrMsgInvalidAddress    = "The entered address is invalid."
	ErrMsgUnsupportedChain  = "The entered address belongs to a chain that is not supported."
	ErrMsgEvmOnlyCrossChain = "Transfers to other chains are not supported from EVM-only chains."
	ErrMsgNoVerifiedRoutes  = "No verified routes available"
	ErrMsgLedgerAppFormat   = "Please open the %s app on your Ledger to send to %s."
)

// User-facing address warnings. Submission stays possible.
const (
	WarnMsgSelfTransfer        = "You are sending to same address within your own wallet"
	WarnMsgUnverifiedChannel   = "You are using an unverified IBC channel. Funds sent over a wrong channel may be lost."
	WarnMsgCentralizedExchange = "Sending IBC tokens to a centralized exchange may result in loss of funds."
)
