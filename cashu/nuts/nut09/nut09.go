// Package nut09 contains the wire types for restoring signatures for
// previously-issued blinded messages from deterministic secrets.
//
// See https://github.com/cashubtc/nuts/blob/main/09.md
package nut09

import "github.com/nutvault/wallet/cashu"

type PostRestoreRequest struct {
	Outputs cashu.BlindedMessages `json:"outputs"`
}

type PostRestoreResponse struct {
	Outputs    cashu.BlindedMessages   `json:"outputs"`
	Signatures cashu.BlindedSignatures `json:"signatures"`
}
