// Package nut03 contains the wire types for the swap operation.
//
// See https://github.com/cashubtc/nuts/blob/main/03.md
package nut03

import "github.com/nutvault/wallet/cashu"

type PostSwapRequest struct {
	Inputs  cashu.Proofs          `json:"inputs"`
	Outputs cashu.BlindedMessages `json:"outputs"`
}

type PostSwapResponse struct {
	Signatures cashu.BlindedSignatures `json:"signatures"`
}
