package wallet

import (
	"crypto/rand"
	"encoding/hex"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/nutvault/wallet/cashu"
	"github.com/nutvault/wallet/cashu/nuts/nut10"
	"github.com/nutvault/wallet/cashu/nuts/nut11"
	"github.com/nutvault/wallet/crypto"
)

func sigAllLockedProof(t *testing.T, pubkeyHex string) cashu.Proof {
	t.Helper()
	secret := nut10.WellKnownSecret{
		Data: pubkeyHex,
		Tags: [][]string{{nut11.SIGFLAG, nut11.SIGALL}},
	}
	serialized, err := nut10.SerializeSecret(nut10.P2PK, secret)
	if err != nil {
		t.Fatalf("SerializeSecret: %v", err)
	}
	return cashu.Proof{Secret: serialized}
}

func blindedOutput(t *testing.T) cashu.BlindedMessage {
	t.Helper()
	var secret [32]byte
	if _, err := rand.Read(secret[:]); err != nil {
		t.Fatalf("rand.Read: %v", err)
	}
	var blinding [32]byte
	if _, err := rand.Read(blinding[:]); err != nil {
		t.Fatalf("rand.Read: %v", err)
	}
	B_, _, err := crypto.Blind(secret[:], blinding[:])
	if err != nil {
		t.Fatalf("Blind: %v", err)
	}
	return cashu.BlindedMessage{Amount: 1, Id: "ks1", B_: hex.EncodeToString(B_.SerializeCompressed())}
}

// TestVerifySigAllAcceptsProperlySignedOutputs checks that outputs signed
// by the key a SIG_ALL proof is locked to pass verification.
func TestVerifySigAllAcceptsProperlySignedOutputs(t *testing.T) {
	lockKey, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatalf("NewPrivateKey: %v", err)
	}
	pubkeyHex := hex.EncodeToString(lockKey.PubKey().SerializeCompressed())
	proofs := cashu.Proofs{sigAllLockedProof(t, pubkeyHex)}

	outputs := cashu.BlindedMessages{blindedOutput(t), blindedOutput(t)}
	signed, err := nut11.AddSignatureToOutputs(outputs, lockKey)
	if err != nil {
		t.Fatalf("AddSignatureToOutputs: %v", err)
	}

	if err := VerifySigAll(proofs, signed); err != nil {
		t.Fatalf("expected properly signed outputs to verify, got %v", err)
	}
}

func TestVerifySigAllRejectsMissingWitness(t *testing.T) {
	lockKey, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatalf("NewPrivateKey: %v", err)
	}
	pubkeyHex := hex.EncodeToString(lockKey.PubKey().SerializeCompressed())
	proofs := cashu.Proofs{sigAllLockedProof(t, pubkeyHex)}

	outputs := cashu.BlindedMessages{blindedOutput(t)}
	if err := VerifySigAll(proofs, outputs); err != ErrInvalidSigAll {
		t.Fatalf("expected ErrInvalidSigAll for an unsigned output, got %v", err)
	}
}

func TestVerifySigAllRejectsWrongSigningKey(t *testing.T) {
	lockKey, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatalf("NewPrivateKey: %v", err)
	}
	wrongKey, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatalf("NewPrivateKey: %v", err)
	}
	pubkeyHex := hex.EncodeToString(lockKey.PubKey().SerializeCompressed())
	proofs := cashu.Proofs{sigAllLockedProof(t, pubkeyHex)}

	outputs := cashu.BlindedMessages{blindedOutput(t)}
	signed, err := nut11.AddSignatureToOutputs(outputs, wrongKey)
	if err != nil {
		t.Fatalf("AddSignatureToOutputs: %v", err)
	}

	if err := VerifySigAll(proofs, signed); err != ErrInvalidSigAll {
		t.Fatalf("expected ErrInvalidSigAll for a wrong signing key, got %v", err)
	}
}

// TestVerifySigAllIsNoopWithoutSigAllFlag checks that proofs without the
// SIG_ALL flag are left unverified by VerifySigAll, even if the outputs
// carry no witness at all.
func TestVerifySigAllIsNoopWithoutSigAllFlag(t *testing.T) {
	proofs := cashu.Proofs{{Secret: "plain secret, no spending condition"}}
	outputs := cashu.BlindedMessages{blindedOutput(t)}

	if err := VerifySigAll(proofs, outputs); err != nil {
		t.Fatalf("expected a no-op for non-SIG_ALL proofs, got %v", err)
	}
}
