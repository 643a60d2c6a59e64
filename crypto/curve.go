package crypto

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

const domainSeparator = "Secp256k1_HashToCurve_Cashu_"

// maxHashToCurveIterations bounds the counter retry loop. Each candidate
// parses as a valid point with probability ~1/2, so this is never
// exhausted in practice.
const maxHashToCurveIterations = 1 << 16

// HashToCurve maps a secret message onto a secp256k1 point, deterministically
// and without any known discrete log, per NUT-00: it hashes
// domainSeparator||message, then appends a little-endian uint32 counter and
// rehashes until the candidate parses as a point with even Y.
func HashToCurve(message []byte) (*secp256k1.PublicKey, error) {
	prefixed := make([]byte, 0, len(domainSeparator)+len(message))
	prefixed = append(prefixed, domainSeparator...)
	prefixed = append(prefixed, message...)
	msgHash := sha256.Sum256(prefixed)

	buf := make([]byte, len(msgHash)+4)
	copy(buf, msgHash[:])

	for counter := uint32(0); counter < maxHashToCurveIterations; counter++ {
		binary.LittleEndian.PutUint32(buf[len(msgHash):], counter)
		candidate := sha256.Sum256(buf)

		compressed := append([]byte{0x02}, candidate[:]...)
		if point, err := secp256k1.ParsePubKey(compressed); err == nil {
			return point, nil
		}
	}
	return nil, ErrHashToCurveExhausted
}
