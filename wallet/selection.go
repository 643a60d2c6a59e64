package wallet

import (
	"errors"
	"sort"

	"github.com/nutvault/wallet/cashu"
	"github.com/nutvault/wallet/crypto"
	"github.com/nutvault/wallet/wallet/store"
)

var (
	// ErrInsufficientBalance is returned when no combination of available
	// proofs covers the requested amount plus its fee.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrNoSpendableProofs is returned when there are no available
	// proofs to select from at all.
	ErrNoSpendableProofs = errors.New("no spendable proofs")
)

// Fee computes the NUT-02 input fee for a set of proofs: the per-mille
// fee rate of each proof's keyset, summed and ceiling-divided by 1000.
// A keyset missing from the lookup (or missing an input_fee_ppk) is
// treated as zero-fee, matching mint.Mint.TransactionFees.
func Fee(proofs cashu.Proofs, keysets map[string]crypto.WalletKeyset) uint {
	var ppk uint
	for _, p := range proofs {
		if ks, ok := keysets[p.Id]; ok {
			ppk += ks.InputFeePpk
		}
	}
	return (ppk + 999) / 1000
}

// Selection is a chosen set of input proofs and the fee they incur.
type Selection struct {
	Proofs cashu.Proofs
	Fee    uint
}

// Select finds available proofs of the given unit covering amount plus
// the fee their own selection incurs. It prefers, in order: drawing
// from a single keyset, the lowest fee, and then the fewest proofs;
// among solutions tied on all three it prefers the smallest remainder
// over the target. Ties within a candidate's own construction are
// broken deterministically by ascending (keyset id, secret).
func Select(available []store.StoredProof, keysets map[string]crypto.WalletKeyset, unit string, amount uint64) (*Selection, error) {
	if len(available) == 0 {
		return nil, ErrNoSpendableProofs
	}

	byKeyset := make(map[string][]store.StoredProof)
	var ofUnit []store.StoredProof
	for _, p := range available {
		ks, known := keysets[p.Id]
		if known && ks.Unit != unit {
			continue
		}
		byKeyset[p.Id] = append(byKeyset[p.Id], p)
		ofUnit = append(ofUnit, p)
	}

	type candidate struct {
		proofs       cashu.Proofs
		fee          uint
		singleKeyset bool
	}
	var candidates []candidate

	keysetIds := make([]string, 0, len(byKeyset))
	for id := range byKeyset {
		keysetIds = append(keysetIds, id)
	}
	sort.Strings(keysetIds)
	for _, id := range keysetIds {
		if proofs, fee, ok := coverPool(byKeyset[id], keysets, amount); ok {
			candidates = append(candidates, candidate{proofs, fee, true})
		}
	}
	if proofs, fee, ok := coverPool(ofUnit, keysets, amount); ok {
		candidates = append(candidates, candidate{proofs, fee, false})
	}

	if len(candidates) == 0 {
		return nil, ErrInsufficientBalance
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.singleKeyset != b.singleKeyset {
			return a.singleKeyset
		}
		if a.fee != b.fee {
			return a.fee < b.fee
		}
		if len(a.proofs) != len(b.proofs) {
			return len(a.proofs) < len(b.proofs)
		}
		ra := a.proofs.Amount() - amount - uint64(a.fee)
		rb := b.proofs.Amount() - amount - uint64(b.fee)
		return ra < rb
	})

	best := candidates[0]
	return &Selection{Proofs: best.proofs, Fee: best.fee}, nil
}

// coverPool greedily builds the smallest (proof count), lowest-remainder
// covering set of a pool for amount, largest proofs first, then trims
// any proof that turns out to be redundant once the fee it was pulled
// in to cover shrinks.
func coverPool(pool []store.StoredProof, keysets map[string]crypto.WalletKeyset, amount uint64) (cashu.Proofs, uint, bool) {
	sorted := make([]store.StoredProof, len(pool))
	copy(sorted, pool)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Amount != sorted[j].Amount {
			return sorted[i].Amount > sorted[j].Amount
		}
		if sorted[i].Id != sorted[j].Id {
			return sorted[i].Id < sorted[j].Id
		}
		return sorted[i].Secret < sorted[j].Secret
	})

	var chosen cashu.Proofs
	var total uint64
	for _, p := range sorted {
		if total >= amount+uint64(Fee(chosen, keysets)) {
			break
		}
		chosen = append(chosen, p.Proof)
		total += p.Amount
	}

	if total < amount+uint64(Fee(chosen, keysets)) {
		return nil, 0, false
	}

	for len(chosen) > 0 {
		trimmed := chosen[:len(chosen)-1]
		if trimmed.Amount() < amount+uint64(Fee(trimmed, keysets)) {
			break
		}
		chosen = trimmed
	}

	return chosen, Fee(chosen, keysets), true
}

// ChangeAmounts decomposes a remainder into denominations a keyset
// actually signs for, largest to smallest, following the standard
// powers-of-two denomination scheme.
func ChangeAmounts(remainder uint64, keyset crypto.WalletKeyset) []uint64 {
	supported := make([]uint64, 0, len(keyset.PublicKeys))
	for amount := range keyset.PublicKeys {
		supported = append(supported, amount)
	}
	sort.Slice(supported, func(i, j int) bool { return supported[i] > supported[j] })

	var amounts []uint64
	for _, amount := range supported {
		for remainder >= amount {
			amounts = append(amounts, amount)
			remainder -= amount
		}
	}
	return amounts
}
