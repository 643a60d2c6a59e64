package wallet

import (
	"fmt"

	"github.com/nutvault/wallet/crypto"
	"github.com/nutvault/wallet/wallet/store"
)

// KeysetSyncResult is the three-way diff produced by syncing a mint's
// keysets against local state: which ones we had never seen before,
// which ones just became active, and which ones just became inactive.
type KeysetSyncResult struct {
	NewlySeen     []crypto.WalletKeyset
	NewlyActive   []crypto.WalletKeyset
	NewlyInactive []crypto.WalletKeyset
}

// SyncKeysets fetches the full keyset list a mint currently advertises,
// diffs it against what the store already knows for that mint, persists
// anything new or changed, and reports the diff.
//
// A keyset already known locally never loses its stored key material or
// counter here: only the active flag and input fee are refreshed from the
// mint, since counters are wallet-local state a mint has no view into.
func SyncKeysets(client MintClient, st store.Store, mintURL string) (*KeysetSyncResult, error) {
	advertised, err := client.GetAllKeysets(mintURL)
	if err != nil {
		return nil, fmt.Errorf("getting keysets from mint: %v", err)
	}

	known := make(map[string]crypto.WalletKeyset)
	for _, ks := range st.GetKeysets()[mintURL] {
		known[ks.Id] = ks
	}

	result := &KeysetSyncResult{}
	for _, ks := range advertised.Keysets {
		existing, wasKnown := known[ks.Id]
		if !wasKnown {
			keys, err := fetchKeysetKeys(client, mintURL, ks.Id)
			if err != nil {
				return nil, err
			}
			wk := crypto.WalletKeyset{
				Id:          ks.Id,
				MintURL:     mintURL,
				Unit:        ks.Unit,
				Active:      ks.Active,
				PublicKeys:  keys,
				InputFeePpk: ks.InputFeePpk,
			}
			if err := st.SaveKeyset(&wk); err != nil {
				return nil, err
			}
			result.NewlySeen = append(result.NewlySeen, wk)
			if ks.Active {
				result.NewlyActive = append(result.NewlyActive, wk)
			}
			continue
		}

		if ks.Active != existing.Active || ks.InputFeePpk != existing.InputFeePpk {
			existing.Active = ks.Active
			existing.InputFeePpk = ks.InputFeePpk
			if err := st.SaveKeyset(&existing); err != nil {
				return nil, err
			}
			if ks.Active {
				result.NewlyActive = append(result.NewlyActive, existing)
			} else {
				result.NewlyInactive = append(result.NewlyInactive, existing)
			}
		}
	}

	return result, nil
}

// fetchKeysetKeys retrieves and validates the public keys of a single
// keyset, rejecting any response whose keys don't hash to the requested id.
func fetchKeysetKeys(client MintClient, mintURL, id string) (crypto.PublicKeys, error) {
	resp, err := client.GetKeysetById(mintURL, id)
	if err != nil {
		return nil, fmt.Errorf("getting keyset '%s' keys: %v", id, err)
	}

	for _, ks := range resp.Keysets {
		if ks.Id != id {
			continue
		}
		if crypto.DeriveKeysetId(ks.Keys) != id {
			return nil, fmt.Errorf("keyset '%s' returned keys that hash to a different id", id)
		}
		return ks.Keys, nil
	}

	return nil, fmt.Errorf("mint did not return keyset '%s'", id)
}

// ActiveKeyset returns the keyset a mint currently wants new blinded
// messages to target, for the given unit.
func ActiveKeyset(st store.Store, mintURL string, unit string) (*crypto.WalletKeyset, error) {
	for _, ks := range st.GetKeysets()[mintURL] {
		if ks.Active && ks.Unit == unit {
			cp := ks
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("no active keyset for mint '%s' unit '%s'", mintURL, unit)
}

// InactiveKeysets returns the keysets a mint no longer signs new
// messages with for the given unit, but that may still hold proofs
// worth swapping or spending.
func InactiveKeysets(st store.Store, mintURL string, unit string) []crypto.WalletKeyset {
	var out []crypto.WalletKeyset
	for _, ks := range st.GetKeysets()[mintURL] {
		if !ks.Active && ks.Unit == unit {
			out = append(out, ks)
		}
	}
	return out
}
