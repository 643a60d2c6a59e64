package wallet

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/nutvault/wallet/cashu"
	"github.com/nutvault/wallet/cashu/nuts/nut13"
	"github.com/nutvault/wallet/crypto"
)

// BlindedOutputs is a counter-advancing batch of blinded messages for a
// single keyset, plus the secrets and blinding factors a wallet needs to
// unblind whatever signatures the mint returns for them. Every secret is
// derived deterministically from the wallet's seed and the keyset's
// counter, so the batch can be regenerated later purely from the
// mnemonic (restoration) without storing r or the secret anywhere.
type BlindedOutputs struct {
	Messages cashu.BlindedMessages
	Secrets  []string
	Rs       []*secp256k1.PrivateKey
}

// DeriveOutputs derives len(amounts) deterministic blinded messages for
// a keyset, starting at counter and incrementing by one per output.
func DeriveOutputs(master *hdkeychain.ExtendedKey, keysetId string, counter uint32, amounts []uint64) (*BlindedOutputs, error) {
	keysetPath, err := nut13.DeriveKeysetPath(master, keysetId)
	if err != nil {
		return nil, fmt.Errorf("deriving keyset path: %v", err)
	}

	out := &BlindedOutputs{
		Messages: make(cashu.BlindedMessages, len(amounts)),
		Secrets:  make([]string, len(amounts)),
		Rs:       make([]*secp256k1.PrivateKey, len(amounts)),
	}

	for i, amount := range amounts {
		idx := counter + uint32(i)

		secret, err := nut13.DeriveSecret(keysetPath, idx)
		if err != nil {
			return nil, fmt.Errorf("deriving secret at index %d: %v", idx, err)
		}

		r, err := nut13.DeriveBlindingFactor(keysetPath, idx)
		if err != nil {
			return nil, fmt.Errorf("deriving blinding factor at index %d: %v", idx, err)
		}

		B_, r, err := crypto.Blind([]byte(secret), r.Serialize())
		if err != nil {
			return nil, fmt.Errorf("blinding output at index %d: %v", idx, err)
		}

		out.Messages[i] = cashu.NewBlindedMessage(keysetId, amount, B_)
		out.Secrets[i] = secret
		out.Rs[i] = r
	}

	return out, nil
}

// UnblindSignature recovers a proof's unblinded signature C from the
// mint's blinded signature C_, hex-encoded.
func UnblindSignature(C_Hex string, r *secp256k1.PrivateKey, K *secp256k1.PublicKey) (string, error) {
	C_Bytes, err := hex.DecodeString(C_Hex)
	if err != nil {
		return "", err
	}
	C_, err := secp256k1.ParsePubKey(C_Bytes)
	if err != nil {
		return "", err
	}

	C := crypto.Unblind(C_, r, K)
	return hex.EncodeToString(C.SerializeCompressed()), nil
}
