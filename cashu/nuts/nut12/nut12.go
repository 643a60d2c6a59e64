// Package nut12 verifies the DLEQ proofs mints attach to blind signatures,
// letting a wallet check a signature is genuine without trusting the mint's
// transport layer.
//
// See https://github.com/cashubtc/nuts/blob/main/12.md
package nut12

import (
	"encoding/hex"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/nutvault/wallet/cashu"
	"github.com/nutvault/wallet/crypto"
)

// VerifyProofsDLEQ verifies the DLEQ proof on each proof that carries one.
// Proofs without a DLEQ proof are skipped rather than rejected, since
// carrying one is optional per NUT-12.
func VerifyProofsDLEQ(proofs cashu.Proofs, keyset crypto.WalletKeyset) bool {
	for _, proof := range proofs {
		if proof.DLEQ == nil {
			continue
		}

		pubkey, ok := keyset.PublicKeys[proof.Amount]
		if !ok {
			return false
		}

		if !VerifyProofDLEQ(proof, pubkey) {
			return false
		}
	}
	return true
}

// VerifyProofDLEQ checks the DLEQ proof carried on an already-unblinded
// proof against the keyset's public key A for the proof's amount.
func VerifyProofDLEQ(proof cashu.Proof, A *secp256k1.PublicKey) bool {
	dleqProof, r, err := ParseDLEQ(*proof.DLEQ)
	if err != nil || r == nil {
		return false
	}

	CBytes, err := hex.DecodeString(proof.C)
	if err != nil {
		return false
	}
	C, err := secp256k1.ParsePubKey(CBytes)
	if err != nil {
		return false
	}

	ok, err := crypto.VerifyDLEQCarol(A, []byte(proof.Secret), r, C, dleqProof)
	if err != nil {
		return false
	}
	return ok
}

// VerifyBlindSignatureDLEQ checks a DLEQ proof against the raw blinded
// message and blinded signature, before unblinding. This is the check a
// wallet runs right after a mint/swap response arrives.
func VerifyBlindSignatureDLEQ(dleq cashu.DLEQProof, A *secp256k1.PublicKey, B_str string, C_str string) bool {
	dleqProof, _, err := ParseDLEQ(dleq)
	if err != nil {
		return false
	}

	B_bytes, err := hex.DecodeString(B_str)
	if err != nil {
		return false
	}
	B_, err := secp256k1.ParsePubKey(B_bytes)
	if err != nil {
		return false
	}

	C_bytes, err := hex.DecodeString(C_str)
	if err != nil {
		return false
	}
	C_, err := secp256k1.ParsePubKey(C_bytes)
	if err != nil {
		return false
	}

	return crypto.VerifyDLEQAlice(A, B_, C_, dleqProof)
}

// ParseDLEQ decodes the hex-encoded e, s and (if present) r fields of a
// wire DLEQProof into a crypto.DLEQProof and the blinding factor r.
func ParseDLEQ(dleq cashu.DLEQProof) (*crypto.DLEQProof, *secp256k1.PrivateKey, error) {
	ebytes, err := hex.DecodeString(dleq.E)
	if err != nil {
		return nil, nil, err
	}
	var e secp256k1.ModNScalar
	e.SetByteSlice(ebytes)

	sbytes, err := hex.DecodeString(dleq.S)
	if err != nil {
		return nil, nil, err
	}
	var s secp256k1.ModNScalar
	s.SetByteSlice(sbytes)

	proof := &crypto.DLEQProof{E: &e, S: &s}

	if dleq.R == "" {
		return proof, nil, nil
	}

	rbytes, err := hex.DecodeString(dleq.R)
	if err != nil {
		return nil, nil, err
	}
	r := secp256k1.PrivKeyFromBytes(rbytes)

	return proof, r, nil
}
