package crypto

import "github.com/decred/dcrd/dcrec/secp256k1/v4"

// generatorPoint returns the secp256k1 base point G.
func generatorPoint() *secp256k1.PublicKey {
	one := new(secp256k1.ModNScalar).SetInt(1)
	return secp256k1.NewPrivateKey(one).PubKey()
}

func addPoints(a, b *secp256k1.PublicKey) *secp256k1.PublicKey {
	var aj, bj, sum secp256k1.JacobianPoint
	a.AsJacobian(&aj)
	b.AsJacobian(&bj)
	secp256k1.AddNonConst(&aj, &bj, &sum)
	sum.ToAffine()
	return secp256k1.NewPublicKey(&sum.X, &sum.Y)
}

func scalarMult(k *secp256k1.ModNScalar, p *secp256k1.PublicKey) *secp256k1.PublicKey {
	var pj, rj secp256k1.JacobianPoint
	p.AsJacobian(&pj)
	secp256k1.ScalarMultNonConst(k, &pj, &rj)
	rj.ToAffine()
	return secp256k1.NewPublicKey(&rj.X, &rj.Y)
}

func negatePoint(p *secp256k1.PublicKey) *secp256k1.PublicKey {
	negOne := new(secp256k1.ModNScalar).SetInt(1)
	negOne.Negate()
	return scalarMult(negOne, p)
}
