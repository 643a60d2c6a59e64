package crypto

import (
	"crypto/sha256"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// DLEQProof is a non-interactive zero-knowledge proof that the same scalar
// k satisfies both A = k*G and C_ = k*B_, letting a holder verify a mint
// signed with the private key matching its published public key without
// learning k. See NUT-12.
type DLEQProof struct {
	E *secp256k1.ModNScalar
	S *secp256k1.ModNScalar
}

func dleqChallenge(points ...*secp256k1.PublicKey) *secp256k1.ModNScalar {
	h := sha256.New()
	for _, p := range points {
		h.Write(p.SerializeUncompressed())
	}
	sum := h.Sum(nil)

	var e secp256k1.ModNScalar
	e.SetByteSlice(sum)
	return &e
}

// ProveDLEQ produces a DLEQ proof for a signature C_ = k*B_ issued under
// private key k with public key A = k*G, using the nonce the caller
// passes in.
func ProveDLEQ(k *secp256k1.PrivateKey, B_ *secp256k1.PublicKey, nonce *secp256k1.PrivateKey) *DLEQProof {
	G := generatorPoint()
	A := k.PubKey()
	C_ := scalarMult(&k.Key, B_)

	R1 := scalarMult(&nonce.Key, G)
	R2 := scalarMult(&nonce.Key, B_)

	e := dleqChallenge(R1, R2, A, C_)

	var ek secp256k1.ModNScalar
	ek.Mul2(e, &k.Key)
	var s secp256k1.ModNScalar
	s.Add2(&nonce.Key, &ek)

	return &DLEQProof{E: e, S: &s}
}

// VerifyDLEQAlice checks a DLEQ proof against the mint's public key A, the
// blinded message B_ and the blinded signature C_. This is the check a
// wallet runs right after minting/swapping, while it still has B_ in hand.
func VerifyDLEQAlice(A, B_, C_ *secp256k1.PublicKey, proof *DLEQProof) bool {
	G := generatorPoint()

	sG := scalarMult(proof.S, G)
	eA := scalarMult(proof.E, A)
	R1 := addPoints(sG, negatePoint(eA))

	sB_ := scalarMult(proof.S, B_)
	eC_ := scalarMult(proof.E, C_)
	R2 := addPoints(sB_, negatePoint(eC_))

	computed := dleqChallenge(R1, R2, A, C_)
	return proof.E.Equals(computed)
}

// VerifyDLEQCarol checks a DLEQ proof carried on an already-unblinded proof,
// reconstructing B_ and C_ from the secret, the original blinding factor r
// and the unblinded signature C. This is the check a later holder (who
// received the proof from someone else and never saw B_) runs.
func VerifyDLEQCarol(A *secp256k1.PublicKey, secret []byte, r *secp256k1.PrivateKey, C *secp256k1.PublicKey, proof *DLEQProof) (bool, error) {
	Y, err := HashToCurve(secret)
	if err != nil {
		return false, err
	}

	rG := scalarMult(&r.Key, generatorPoint())
	B_ := addPoints(Y, rG)

	rA := scalarMult(&r.Key, A)
	C_ := addPoints(C, rA)

	return VerifyDLEQAlice(A, B_, C_, proof), nil
}
