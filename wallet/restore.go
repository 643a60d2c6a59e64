package wallet

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/tyler-smith/go-bip39"

	"github.com/nutvault/wallet/cashu"
	"github.com/nutvault/wallet/cashu/nuts/nut06"
	"github.com/nutvault/wallet/cashu/nuts/nut07"
	"github.com/nutvault/wallet/cashu/nuts/nut09"
	"github.com/nutvault/wallet/crypto"
	"github.com/nutvault/wallet/wallet/store"
)

// restoreBatchSize is how many blinded messages a restore request asks
// the mint to resign at a time.
const restoreBatchSize = 100

// maxEmptyBatches is how many consecutive empty responses a restore
// walks through, per keyset, before deciding the counter has gone past
// every output the wallet ever issued.
const maxEmptyBatches = 3

// Restore recreates a wallet's proof set from a mnemonic alone, by
// replaying the deterministic secret derivation against every sat keyset
// a set of mints has ever published and asking each mint to resign
// whichever of those blinded messages it recognizes. Mints whose info
// does not advertise restore support are skipped. It returns the
// total value recovered.
func Restore(client MintClient, st store.Store, mnemonic string, mints []string) (uint64, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return 0, errors.New("invalid mnemonic")
	}

	seed := bip39.NewSeed(mnemonic, "")
	masterKey, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return 0, err
	}
	if err := st.SaveMnemonicSeed(mnemonic, seed); err != nil {
		return 0, err
	}

	restored := cashu.Proofs{}
	for _, mintURL := range mints {
		info, err := client.GetMintInfo(mintURL)
		if err != nil {
			return 0, fmt.Errorf("getting info from mint '%s': %v", mintURL, err)
		}
		if !mintSupportsRestore(info) {
			continue
		}

		keysets, err := client.GetAllKeysets(mintURL)
		if err != nil {
			return 0, err
		}

		for _, keyset := range keysets.Keysets {
			if keyset.Unit != cashu.Sat.String() {
				continue
			}
			if _, err := hex.DecodeString(keyset.Id); err != nil {
				continue
			}

			keysetProofs, counter, err := restoreKeyset(client, mintURL, masterKey, keyset.Id)
			if err != nil {
				return 0, err
			}
			restored = append(restored, keysetProofs...)

			keysetKeys, err := fetchKeysetKeys(client, mintURL, keyset.Id)
			if err != nil {
				return 0, err
			}
			walletKeyset := crypto.WalletKeyset{
				Id:          keyset.Id,
				MintURL:     mintURL,
				Unit:        keyset.Unit,
				Active:      keyset.Active,
				PublicKeys:  keysetKeys,
				Counter:     counter,
				InputFeePpk: keyset.InputFeePpk,
			}
			if err := st.SaveKeyset(&walletKeyset); err != nil {
				return 0, err
			}
		}
	}

	if err := st.AddProofs(restored); err != nil {
		return 0, fmt.Errorf("saving restored proofs: %v", err)
	}

	return restored.Amount(), nil
}

func mintSupportsRestore(info *nut06.MintInfo) bool {
	nut7, ok := info.Nuts[7].(map[string]interface{})
	nut9, ok2 := info.Nuts[9].(map[string]interface{})
	return ok && ok2 && nut7["supported"] == true && nut9["supported"] == true
}

// restoreKeyset walks a single keyset's counter space in batches,
// stopping after maxEmptyBatches consecutive batches come back with no
// signatures. It returns the recovered unspent proofs and the counter
// value the wallet should resume issuing new outputs from.
func restoreKeyset(client MintClient, mintURL string, master *hdkeychain.ExtendedKey, keysetId string) (cashu.Proofs, uint32, error) {
	keysetKeys, err := fetchKeysetKeys(client, mintURL, keysetId)
	if err != nil {
		return nil, 0, err
	}

	var counter uint32
	var recovered cashu.Proofs
	emptyBatches := 0

	for emptyBatches < maxEmptyBatches {
		amounts := make([]uint64, restoreBatchSize)
		outputs, err := DeriveOutputs(master, keysetId, counter, amounts)
		if err != nil {
			return nil, 0, err
		}
		counter += restoreBatchSize

		resp, err := client.PostRestore(mintURL, nut09.PostRestoreRequest{Outputs: outputs.Messages})
		if err != nil {
			return nil, 0, fmt.Errorf("restoring signatures from mint '%s': %v", mintURL, err)
		}

		if len(resp.Signatures) == 0 {
			emptyBatches++
			continue
		}
		emptyBatches = 0

		if len(resp.Outputs) != len(resp.Signatures) {
			return nil, 0, errors.New("restore response outputs and signatures length mismatch")
		}

		Ys := make([]string, 0, len(resp.Signatures))
		bySecret := make(map[string]cashu.Proof, len(resp.Signatures))
		for i, sig := range resp.Signatures {
			pubkey, ok := keysetKeys[sig.Amount]
			if !ok {
				return nil, 0, errors.New("key not found for restored signature amount")
			}

			idx := matchingOutputIndex(outputs.Messages, resp.Outputs[i].B_)
			if idx < 0 {
				continue
			}

			C, err := UnblindSignature(sig.C_, outputs.Rs[idx], pubkey)
			if err != nil {
				return nil, 0, err
			}

			Y, err := crypto.HashToCurve([]byte(outputs.Secrets[idx]))
			if err != nil {
				return nil, 0, err
			}
			Yhex := hex.EncodeToString(Y.SerializeCompressed())
			Ys = append(Ys, Yhex)
			bySecret[Yhex] = cashu.Proof{
				Amount: sig.Amount,
				Secret: outputs.Secrets[idx],
				C:      C,
				Id:     sig.Id,
			}
		}

		states, err := client.PostCheckProofState(mintURL, nut07.PostCheckStateRequest{Ys: Ys})
		if err != nil {
			return nil, 0, err
		}

		for _, state := range states.States {
			if len(state.Witness) > 0 {
				continue
			}
			if state.State == nut07.Unspent {
				if proof, ok := bySecret[state.Y]; ok {
					recovered = append(recovered, proof)
				}
			}
		}
	}

	return recovered, counter, nil
}

func matchingOutputIndex(messages cashu.BlindedMessages, B_ string) int {
	for i, msg := range messages {
		if msg.B_ == B_ {
			return i
		}
	}
	return -1
}
