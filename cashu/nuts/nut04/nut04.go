// Package nut04 contains the wire types for minting: requesting a quote
// and exchanging paid-for blinded messages for signatures.
//
// See https://github.com/cashubtc/nuts/blob/main/04.md
package nut04

import "github.com/nutvault/wallet/cashu"

// State is a mint quote's lifecycle state.
type State int

const (
	Unpaid State = iota
	Paid
	Issued
)

func (s State) String() string {
	switch s {
	case Unpaid:
		return "UNPAID"
	case Paid:
		return "PAID"
	case Issued:
		return "ISSUED"
	default:
		return "UNKNOWN"
	}
}

func StateFromString(s string) State {
	switch s {
	case "PAID":
		return Paid
	case "ISSUED":
		return Issued
	default:
		return Unpaid
	}
}

type PostMintQuoteBolt11Request struct {
	Amount uint64 `json:"amount"`
	Unit   string `json:"unit"`
	// Pubkey is an optional NUT-20 locking key: only signatures from the
	// matching private key may mint against this quote once it is paid.
	Pubkey string `json:"pubkey,omitempty"`
}

type PostMintQuoteBolt11Response struct {
	Quote   string `json:"quote"`
	Request string `json:"request"`
	State   string `json:"state"`
	Expiry  int64  `json:"expiry"`
	Pubkey  string `json:"pubkey,omitempty"`
}

type PostMintBolt11Request struct {
	Quote   string                `json:"quote"`
	Outputs cashu.BlindedMessages `json:"outputs"`
	// Signature is the NUT-20 BIP340 signature over quote+outputs,
	// required when the quote was created with a locking pubkey.
	Signature string `json:"signature,omitempty"`
}

type PostMintBolt11Response struct {
	Signatures cashu.BlindedSignatures `json:"signatures"`
}
