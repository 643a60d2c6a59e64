package wallet

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"

	"github.com/nutvault/wallet/cashu"
	"github.com/nutvault/wallet/cashu/nuts/nut10"
	"github.com/nutvault/wallet/cashu/nuts/nut11"
)

// ErrInvalidSigAll is returned when a SIG_ALL-locked token carries a
// missing or unverifiable witness.
var ErrInvalidSigAll = errors.New("invalid SIG_ALL signature")

// VerifySigAll checks a SIG_ALL-locked set of outgoing blinded messages
// against the P2PK spending condition carried by the proofs they spend,
// the way a mint does in a swap, but run client-side so a wallet can
// reject a bad token before it ever reaches the mint. Proofs without a
// SIG_ALL flag are left untouched; VerifySigAll is a no-op for them.
func VerifySigAll(proofs cashu.Proofs, outputs cashu.BlindedMessages) error {
	if !nut11.ProofsSigAll(proofs) {
		return nil
	}

	secret, err := nut10.DeserializeSecret(proofs[0].Secret)
	if err != nil {
		return err
	}
	pubkeys, err := nut11.PublicKeys(secret)
	if err != nil {
		return err
	}
	tags, err := nut11.ParseP2PKTags(secret.Tags)
	if err != nil {
		return err
	}
	nSigs := tags.NSigs
	if nSigs < 1 {
		nSigs = 1
	}

	for _, output := range outputs {
		if output.Witness == "" {
			return ErrInvalidSigAll
		}

		var witness nut11.P2PKWitness
		if err := json.Unmarshal([]byte(output.Witness), &witness); err != nil {
			return ErrInvalidSigAll
		}
		if nut11.DuplicateSignatures(witness.Signatures) {
			return ErrInvalidSigAll
		}

		msg, err := hex.DecodeString(output.B_)
		if err != nil {
			return ErrInvalidSigAll
		}
		hash := sha256.Sum256(msg)

		if !nut11.HasValidSignatures(hash[:], witness, nSigs, pubkeys) {
			return ErrInvalidSigAll
		}
	}

	return nil
}
