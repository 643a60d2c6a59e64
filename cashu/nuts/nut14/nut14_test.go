package nut14

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/nutvault/wallet/cashu"
	"github.com/nutvault/wallet/cashu/nuts/nut10"
	"github.com/nutvault/wallet/cashu/nuts/nut11"
)

func hashLock(preimage string) string {
	preimageBytes, _ := hex.DecodeString(preimage)
	hash := sha256.Sum256(preimageBytes)
	return hex.EncodeToString(hash[:])
}

func signWitness(t *testing.T, secret string, key *btcec.PrivateKey) string {
	t.Helper()
	hash := sha256.Sum256([]byte(secret))
	sig, err := schnorr.Sign(key, hash[:])
	if err != nil {
		t.Fatalf("schnorr.Sign: %v", err)
	}
	return hex.EncodeToString(sig.Serialize())
}

// TestHTLCRedeem covers four HTLC redemption outcomes: correct
// preimage plus a valid signature is spendable; a wrong preimage before
// locktime is rejected; a wrong preimage after locktime with a valid
// refund signature is spendable; a wrong preimage after locktime signed
// by a key that is not the refund key is rejected.
func TestHTLCRedeem(t *testing.T) {
	preimage := "00112233445566778899aabbccddeeff0011223344556677889900aabbccdd"
	wrongPreimage := "ffeeddccbbaa99887766554433221100ffeeddccbbaa998877665544332211"

	signingKey, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatalf("NewPrivateKey: %v", err)
	}
	refundKey, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatalf("NewPrivateKey: %v", err)
	}

	t.Run("correct preimage with valid signature is spendable", func(t *testing.T) {
		secret := nut10.WellKnownSecret{
			Data: hashLock(preimage),
			Tags: [][]string{
				{PUBKEYS, hex.EncodeToString(signingKey.PubKey().SerializeCompressed())},
				{NSIGS, "1"},
			},
		}
		serialized, err := nut10.SerializeSecret(nut10.HTLC, secret)
		if err != nil {
			t.Fatalf("SerializeSecret: %v", err)
		}
		proofs := cashu.Proofs{{Secret: serialized}}

		proofs, err = AddWitnessHTLC(proofs, secret, preimage, signingKey)
		if err != nil {
			t.Fatalf("AddWitnessHTLC: %v", err)
		}

		if err := VerifyHTLCProof(proofs[0], secret); err != nil {
			t.Fatalf("expected proof to be spendable, got %v", err)
		}
	})

	t.Run("wrong preimage before locktime is rejected", func(t *testing.T) {
		secret := nut10.WellKnownSecret{
			Data: hashLock(preimage),
			Tags: [][]string{
				{PUBKEYS, hex.EncodeToString(signingKey.PubKey().SerializeCompressed())},
				{NSIGS, "1"},
				{LOCKTIME, strconv.FormatInt(time.Now().Add(time.Hour).Unix(), 10)},
			},
		}
		serialized, err := nut10.SerializeSecret(nut10.HTLC, secret)
		if err != nil {
			t.Fatalf("SerializeSecret: %v", err)
		}
		proofs := cashu.Proofs{{Secret: serialized}}

		proofs, err = AddWitnessHTLC(proofs, secret, wrongPreimage, signingKey)
		if err != nil {
			t.Fatalf("AddWitnessHTLC: %v", err)
		}

		if err := VerifyHTLCProof(proofs[0], secret); err != InvalidPreimageErr {
			t.Fatalf("expected InvalidPreimageErr, got %v", err)
		}
	})

	t.Run("wrong preimage after locktime with valid refund signature is spendable", func(t *testing.T) {
		secret := nut10.WellKnownSecret{
			Data: hashLock(preimage),
			Tags: [][]string{
				{PUBKEYS, hex.EncodeToString(signingKey.PubKey().SerializeCompressed())},
				{NSIGS, "1"},
				{LOCKTIME, strconv.FormatInt(time.Now().Add(-time.Hour).Unix(), 10)},
				{REFUND, hex.EncodeToString(refundKey.PubKey().SerializeCompressed())},
			},
		}
		serialized, err := nut10.SerializeSecret(nut10.HTLC, secret)
		if err != nil {
			t.Fatalf("SerializeSecret: %v", err)
		}
		proof := cashu.Proof{Secret: serialized}

		witness := HTLCWitness{
			Preimage:   wrongPreimage,
			Signatures: []string{signWitness(t, proof.Secret, refundKey)},
		}
		witnessJSON, err := json.Marshal(witness)
		if err != nil {
			t.Fatalf("marshal witness: %v", err)
		}
		proof.Witness = string(witnessJSON)

		if err := VerifyHTLCProof(proof, secret); err != nil {
			t.Fatalf("expected refund path to be spendable, got %v", err)
		}
	})

	t.Run("wrong preimage after locktime with unrelated refund signature is rejected", func(t *testing.T) {
		secret := nut10.WellKnownSecret{
			Data: hashLock(preimage),
			Tags: [][]string{
				{PUBKEYS, hex.EncodeToString(signingKey.PubKey().SerializeCompressed())},
				{NSIGS, "1"},
				{LOCKTIME, strconv.FormatInt(time.Now().Add(-time.Hour).Unix(), 10)},
				{REFUND, hex.EncodeToString(refundKey.PubKey().SerializeCompressed())},
			},
		}
		serialized, err := nut10.SerializeSecret(nut10.HTLC, secret)
		if err != nil {
			t.Fatalf("SerializeSecret: %v", err)
		}
		proof := cashu.Proof{Secret: serialized}

		otherKey, err := btcec.NewPrivateKey()
		if err != nil {
			t.Fatalf("NewPrivateKey: %v", err)
		}
		witness := HTLCWitness{
			Preimage:   wrongPreimage,
			Signatures: []string{signWitness(t, proof.Secret, otherKey)},
		}
		witnessJSON, err := json.Marshal(witness)
		if err != nil {
			t.Fatalf("marshal witness: %v", err)
		}
		proof.Witness = string(witnessJSON)

		if err := VerifyHTLCProof(proof, secret); err != nut11.NotEnoughSignaturesErr {
			t.Fatalf("expected NotEnoughSignaturesErr, got %v", err)
		}
	})
}
