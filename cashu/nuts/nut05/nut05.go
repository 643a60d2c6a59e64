// Package nut05 contains the wire types for melting: paying a Lightning
// invoice by spending proofs.
//
// See https://github.com/cashubtc/nuts/blob/main/05.md
package nut05

import "github.com/nutvault/wallet/cashu"

// State is a melt quote's lifecycle state.
type State int

const (
	MeltUnpaid State = iota
	MeltPending
	MeltPaid
)

func (s State) String() string {
	switch s {
	case MeltUnpaid:
		return "UNPAID"
	case MeltPending:
		return "PENDING"
	case MeltPaid:
		return "PAID"
	default:
		return "UNKNOWN"
	}
}

func StateFromString(s string) State {
	switch s {
	case "PENDING":
		return MeltPending
	case "PAID":
		return MeltPaid
	default:
		return MeltUnpaid
	}
}

type PostMeltQuoteBolt11Request struct {
	Request string `json:"request"`
	Unit    string `json:"unit"`
}

type PostMeltQuoteBolt11Response struct {
	Quote      string `json:"quote"`
	Amount     uint64 `json:"amount"`
	FeeReserve uint64 `json:"fee_reserve"`
	State      string `json:"state"`
	Expiry     int64  `json:"expiry"`
	Preimage   string `json:"payment_preimage,omitempty"`
}

type PostMeltBolt11Request struct {
	Quote  string       `json:"quote"`
	Inputs cashu.Proofs `json:"inputs"`
	// Outputs carries optional blank blinded messages for change, when
	// the sum of inputs exceeds amount+fee_reserve.
	Outputs cashu.BlindedMessages `json:"outputs,omitempty"`
}

type PostMeltBolt11Response struct {
	State    string                  `json:"state"`
	Preimage string                  `json:"payment_preimage"`
	Change   cashu.BlindedSignatures `json:"change,omitempty"`
}
