package wallet

import (
	"testing"

	"github.com/nutvault/wallet/cashu"
	"github.com/nutvault/wallet/crypto"
	"github.com/nutvault/wallet/wallet/store"
)

func testProof(id, secret string, amount uint64) store.StoredProof {
	return store.StoredProof{
		Proof: cashu.Proof{Amount: amount, Id: id, Secret: secret, C: "02" + secret},
		State: store.Available,
	}
}

func TestFeeSumsAndCeilDivides(t *testing.T) {
	keysets := map[string]crypto.WalletKeyset{
		"ks1": {Id: "ks1", InputFeePpk: 100},
		"ks2": {Id: "ks2", InputFeePpk: 250},
	}
	proofs := cashu.Proofs{
		{Id: "ks1", Amount: 1},
		{Id: "ks1", Amount: 2},
		{Id: "ks2", Amount: 4},
	}
	// (100 + 100 + 250) = 450 -> ceil(450/1000) = 1
	if fee := Fee(proofs, keysets); fee != 1 {
		t.Fatalf("expected fee 1, got %d", fee)
	}

	proofs = append(proofs, cashu.Proof{Id: "ks2", Amount: 8})
	// (100+100+250+250) = 700 -> ceil(700/1000) = 1
	if fee := Fee(proofs, keysets); fee != 1 {
		t.Fatalf("expected fee 1, got %d", fee)
	}

	proofs = append(proofs, cashu.Proof{Id: "ks2", Amount: 16})
	// 950 -> still 1
	if fee := Fee(proofs, keysets); fee != 1 {
		t.Fatalf("expected fee 1, got %d", fee)
	}

	proofs = append(proofs, cashu.Proof{Id: "ks2", Amount: 32})
	// 1200 -> ceil = 2
	if fee := Fee(proofs, keysets); fee != 2 {
		t.Fatalf("expected fee 2, got %d", fee)
	}
}

func TestFeeUnknownKeysetIsZero(t *testing.T) {
	proofs := cashu.Proofs{{Id: "unknown", Amount: 4}}
	if fee := Fee(proofs, map[string]crypto.WalletKeyset{}); fee != 0 {
		t.Fatalf("expected fee 0 for unknown keyset, got %d", fee)
	}
}

func TestSelectNoProofsReturnsErr(t *testing.T) {
	_, err := Select(nil, nil, "sat", 10)
	if err != ErrNoSpendableProofs {
		t.Fatalf("expected ErrNoSpendableProofs, got %v", err)
	}
}

func TestSelectInsufficientBalance(t *testing.T) {
	keysets := map[string]crypto.WalletKeyset{"ks1": {Id: "ks1", Unit: "sat"}}
	available := []store.StoredProof{testProof("ks1", "s1", 4)}
	_, err := Select(available, keysets, "sat", 10)
	if err != ErrInsufficientBalance {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
}

func TestSelectPrefersSingleKeysetAndFewestProofs(t *testing.T) {
	keysets := map[string]crypto.WalletKeyset{
		"ks1": {Id: "ks1", Unit: "sat"},
		"ks2": {Id: "ks2", Unit: "sat"},
	}
	// ks1 alone can cover 10 with one proof (16); ks2 needs two proofs
	// (8+4) to cover 10. Selecting across both keysets would also work
	// but single-keyset and fewest-proofs should both point to ks1.
	available := []store.StoredProof{
		testProof("ks1", "a", 16),
		testProof("ks2", "b", 8),
		testProof("ks2", "c", 4),
	}

	sel, err := Select(available, keysets, "sat", 10)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(sel.Proofs) != 1 || sel.Proofs[0].Id != "ks1" {
		t.Fatalf("expected single ks1 proof, got %+v", sel.Proofs)
	}
}

func TestSelectIgnoresWrongUnit(t *testing.T) {
	keysets := map[string]crypto.WalletKeyset{
		"ks1": {Id: "ks1", Unit: "usd"},
	}
	available := []store.StoredProof{testProof("ks1", "a", 100)}
	_, err := Select(available, keysets, "sat", 10)
	if err != ErrInsufficientBalance {
		t.Fatalf("expected ErrInsufficientBalance for mismatched unit, got %v", err)
	}
}

func TestSelectTrimsRedundantProofs(t *testing.T) {
	keysets := map[string]crypto.WalletKeyset{"ks1": {Id: "ks1", Unit: "sat"}}
	// 8 alone already covers 8; the smaller 4 and 2 proofs should be
	// trimmed off rather than included alongside it.
	available := []store.StoredProof{
		testProof("ks1", "a", 8),
		testProof("ks1", "b", 4),
		testProof("ks1", "c", 2),
	}
	sel, err := Select(available, keysets, "sat", 8)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(sel.Proofs) != 1 || sel.Proofs[0].Amount != 8 {
		t.Fatalf("expected a single 8-amount proof, got %+v", sel.Proofs)
	}
}

func TestChangeAmountsDecomposesByDenomination(t *testing.T) {
	keyset := crypto.WalletKeyset{
		PublicKeys: crypto.PublicKeys{1: nil, 2: nil, 4: nil, 8: nil, 16: nil},
	}
	amounts := ChangeAmounts(13, keyset)
	var sum uint64
	for _, a := range amounts {
		sum += a
	}
	if sum != 13 {
		t.Fatalf("expected amounts to sum to 13, got %d (%v)", sum, amounts)
	}
	if len(amounts) == 0 || amounts[0] != 8 {
		t.Fatalf("expected largest denomination first, got %v", amounts)
	}
}
