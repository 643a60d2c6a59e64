package cashu

import (
	"encoding/hex"
	"testing"

	"pgregory.net/rapid"
)

func genProof(t *rapid.T) Proof {
	idBytes := rapid.SliceOfN(rapid.Byte(), 8, 8).Draw(t, "id")
	secretBytes := rapid.SliceOfN(rapid.Byte(), 32, 32).Draw(t, "secret")
	cBytes := rapid.SliceOfN(rapid.Byte(), 33, 33).Draw(t, "C")
	cBytes[0] = 0x02 | (cBytes[0] & 1)

	return Proof{
		Amount: rapid.Uint64Range(1, 1<<40).Draw(t, "amount"),
		Id:     hex.EncodeToString(idBytes),
		Secret: hex.EncodeToString(secretBytes),
		C:      hex.EncodeToString(cBytes),
	}
}

// TestTokenV3RoundTripProperty checks that for any set of proofs, encoding
// to a V3 token string and decoding it back yields the same proofs.
func TestTokenV3RoundTripProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 5).Draw(rt, "n")
		proofs := make(Proofs, n)
		for i := range proofs {
			proofs[i] = genProof(rt)
		}

		token, err := NewTokenV3(proofs, "https://mint.example", Sat, false)
		if err != nil {
			rt.Fatalf("NewTokenV3: %v", err)
		}

		serialized, err := token.Serialize()
		if err != nil {
			rt.Fatalf("Serialize: %v", err)
		}

		decoded, err := DecodeTokenV3(serialized)
		if err != nil {
			rt.Fatalf("DecodeTokenV3: %v", err)
		}

		got := decoded.Proofs()
		if len(got) != len(proofs) {
			rt.Fatalf("expected %d proofs, got %d", len(proofs), len(got))
		}
		for i := range proofs {
			if got[i] != proofs[i] {
				rt.Fatalf("proof %d mismatch: expected %+v, got %+v", i, proofs[i], got[i])
			}
		}
	})
}

// TestTokenV4RoundTripProperty checks that the total amount of a CBOR V4
// token survives a serialize/decode round trip.
func TestTokenV4RoundTripProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 5).Draw(rt, "n")
		proofs := make(Proofs, n)
		for i := range proofs {
			proofs[i] = genProof(rt)
		}

		token, err := NewTokenV4(proofs, "https://mint.example", Sat, false)
		if err != nil {
			rt.Fatalf("NewTokenV4: %v", err)
		}

		serialized, err := token.Serialize()
		if err != nil {
			rt.Fatalf("Serialize: %v", err)
		}

		decoded, err := DecodeTokenV4(serialized)
		if err != nil {
			rt.Fatalf("DecodeTokenV4: %v", err)
		}

		gotAmount := decoded.Amount()
		var wantAmount uint64
		for _, p := range proofs {
			wantAmount += p.Amount
		}
		if gotAmount != wantAmount {
			rt.Fatalf("expected total amount %d, got %d", wantAmount, gotAmount)
		}
	})
}

// TestAmountSplitSumsToAmount checks that AmountSplit always decomposes an
// amount into powers of two that sum back to the original.
func TestAmountSplitSumsToAmount(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		amount := rapid.Uint64Range(0, 1<<32).Draw(rt, "amount")
		parts := AmountSplit(amount)

		var sum uint64
		for _, p := range parts {
			sum += p
			if p == 0 || (p&(p-1)) != 0 {
				rt.Fatalf("part %d is not a power of two", p)
			}
		}
		if sum != amount {
			rt.Fatalf("parts of %d summed to %d", amount, sum)
		}
	})
}
