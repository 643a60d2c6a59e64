package crypto

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// Blind computes the blinded message B_ = Y + rG, where Y = hash_to_curve(secret)
// and r is the 32-byte blinding factor. It returns B_ and the private key
// wrapping r so the caller can persist r for the later Unblind call.
func Blind(secret []byte, blindingFactor []byte) (B_ *secp256k1.PublicKey, r *secp256k1.PrivateKey, err error) {
	Y, err := HashToCurve(secret)
	if err != nil {
		return nil, nil, err
	}

	r, rPub := btcec.PrivKeyFromBytes(blindingFactor)
	B_ = addPoints(Y, rPub)
	return B_, r, nil
}

// Sign computes C_ = k*B_, the mint's blinded signature over a blinded
// message using keyset private key k.
func Sign(B_ *secp256k1.PublicKey, k *secp256k1.PrivateKey) *secp256k1.PublicKey {
	return scalarMult(&k.Key, B_)
}

// Unblind computes C = C_ - rK, recovering the unblinded signature from the
// mint's blinded signature C_, the blinding factor r, and the keyset public
// key K.
func Unblind(C_ *secp256k1.PublicKey, r *secp256k1.PrivateKey, K *secp256k1.PublicKey) *secp256k1.PublicKey {
	var rNeg secp256k1.ModNScalar
	rNeg.NegateVal(&r.Key)
	rK := scalarMult(&rNeg, K)
	return addPoints(C_, rK)
}

// VerifyLocal checks that k*hash_to_curve(secret) == C, the core BDHKE
// validity check, without any network round trip.
func VerifyLocal(secret []byte, k *secp256k1.PrivateKey, C *secp256k1.PublicKey) (bool, error) {
	Y, err := HashToCurve(secret)
	if err != nil {
		return false, err
	}
	expected := scalarMult(&k.Key, Y)
	return C.IsEqual(expected), nil
}
