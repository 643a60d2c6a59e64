package wallet

import "errors"

// Wallet-level errors: conditions that belong to the orchestrator
// itself rather than to the cryptography (package crypto) or wire
// format (package cashu) layers below it.
var (
	ErrWalletNotInitialized      = errors.New("wallet not initialized")
	ErrWalletAlreadyInitialized  = errors.New("wallet already initialized")
	ErrBalanceMismatch           = errors.New("sum of inputs does not equal sum of outputs plus fee")
	ErrQuoteExpired              = errors.New("quote has expired")
	ErrQuotePending              = errors.New("quote is pending")
	ErrQuoteNotFound             = errors.New("quote not found")
	ErrAlreadySpent              = errors.New("proof already spent")
	ErrUnsupportedMint           = errors.New("mint does not support the requested operation")
	ErrSignatureRequired         = errors.New("quote requires a signed mint request")
	ErrNoMintForToken            = errors.New("wallet has no keysets for token's mint")
)
