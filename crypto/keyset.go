package crypto

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"sort"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// MaxKeysetOrder bounds the amounts a keyset signs for: 2^0 .. 2^(MaxKeysetOrder-1).
const MaxKeysetOrder = 60

// MintKeyset holds one mint's private signing keys for a unit, one keypair
// per power-of-two amount. It exists here mainly so unit tests can stand up
// a minimal signer without pulling in a mint server.
type MintKeyset struct {
	Id                string
	Unit              string
	Active            bool
	DerivationPathIdx uint32
	Keys              map[uint64]KeyPair
	InputFeePpk       uint
}

type KeyPair struct {
	PrivateKey *secp256k1.PrivateKey
	PublicKey  *secp256k1.PublicKey
}

// DeriveKeysetPath derives the BIP32 path m/0'/0'/index' a mint uses to
// generate the signing keys for its index'th keyset of a given unit.
func DeriveKeysetPath(master *hdkeychain.ExtendedKey, index uint32) (*hdkeychain.ExtendedKey, error) {
	purpose, err := master.Derive(hdkeychain.HardenedKeyStart + 0)
	if err != nil {
		return nil, err
	}

	unitPath, err := purpose.Derive(hdkeychain.HardenedKeyStart + 0)
	if err != nil {
		return nil, err
	}

	return unitPath.Derive(hdkeychain.HardenedKeyStart + index)
}

// GenerateKeyset derives a full set of signing keypairs for amounts
// 1, 2, 4, ... 2^(MaxKeysetOrder-1) under master at the given index.
func GenerateKeyset(master *hdkeychain.ExtendedKey, index uint32, unit string, inputFeePpk uint) (*MintKeyset, error) {
	keysetPath, err := DeriveKeysetPath(master, index)
	if err != nil {
		return nil, err
	}

	keys := make(map[uint64]KeyPair, MaxKeysetOrder)
	pks := make(PublicKeys, MaxKeysetOrder)
	for i := 0; i < MaxKeysetOrder; i++ {
		amount := uint64(math.Pow(2, float64(i)))
		amountPath, err := keysetPath.Derive(hdkeychain.HardenedKeyStart + uint32(i))
		if err != nil {
			return nil, err
		}

		privKey, err := amountPath.ECPrivKey()
		if err != nil {
			return nil, err
		}
		pubKey, err := amountPath.ECPubKey()
		if err != nil {
			return nil, err
		}

		keys[amount] = KeyPair{PrivateKey: privKey, PublicKey: pubKey}
		pks[amount] = pubKey
	}

	return &MintKeyset{
		Id:                DeriveKeysetId(pks),
		Unit:              unit,
		Active:            true,
		DerivationPathIdx: index,
		Keys:              keys,
		InputFeePpk:       inputFeePpk,
	}, nil
}

// PublicKeys maps amount to public key; it marshals to JSON with its keys
// sorted by amount so wire output is deterministic.
type PublicKeys map[uint64]*secp256k1.PublicKey

func (pks PublicKeys) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	amounts := make([]uint64, 0, len(pks))
	for k := range pks {
		amounts = append(amounts, k)
	}
	slices.Sort(amounts)

	for j, amount := range amounts {
		if j != 0 {
			buf.WriteByte(',')
		}
		fmt.Fprintf(&buf, "%q:%q", fmt.Sprintf("%d", amount), hex.EncodeToString(pks[amount].SerializeCompressed()))
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (pks *PublicKeys) UnmarshalJSON(data []byte) error {
	var tempKeys map[uint64]string
	if err := json.Unmarshal(data, &tempKeys); err != nil {
		return err
	}

	out := make(PublicKeys, len(tempKeys))
	for amount, key := range tempKeys {
		keyBytes, err := hex.DecodeString(key)
		if err != nil {
			return err
		}
		publicKey, err := secp256k1.ParsePubKey(keyBytes)
		if err != nil {
			return fmt.Errorf("invalid public key: %v", err)
		}
		out[amount] = publicKey
	}
	*pks = out
	return nil
}

// DeriveKeysetId computes a keyset's deterministic ID:
//   - sort public keys by amount ascending
//   - concatenate the compressed public keys
//   - sha256 the concatenation
//   - take the first 14 hex characters, prefixed with version byte "00"
func DeriveKeysetId(keyset PublicKeys) string {
	type entry struct {
		amount uint64
		pk     *secp256k1.PublicKey
	}
	entries := make([]entry, 0, len(keyset))
	for amount, key := range keyset {
		entries = append(entries, entry{amount, key})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].amount < entries[j].amount })

	concat := make([]byte, 0, len(entries)*33)
	for _, e := range entries {
		concat = append(concat, e.pk.SerializeCompressed()...)
	}
	hash := sha256.Sum256(concat)

	return "00" + hex.EncodeToString(hash[:])[:14]
}

// PublicKeys returns the keyset's public half, the form a mint publishes
// and a wallet stores.
func (ks *MintKeyset) PublicKeys() PublicKeys {
	pubkeys := make(PublicKeys, len(ks.Keys))
	for amount, key := range ks.Keys {
		pubkeys[amount] = key.PublicKey
	}
	return pubkeys
}

type keyPairTemp struct {
	PrivateKey []byte `json:"private_key"`
	PublicKey  []byte `json:"public_key"`
}

func (kp KeyPair) MarshalJSON() ([]byte, error) {
	var privKey []byte
	if kp.PrivateKey != nil {
		privKey = kp.PrivateKey.Serialize()
	}
	return json.Marshal(keyPairTemp{
		PrivateKey: privKey,
		PublicKey:  kp.PublicKey.SerializeCompressed(),
	})
}

func (kp *KeyPair) UnmarshalJSON(data []byte) error {
	aux := &keyPairTemp{}
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}

	if len(aux.PrivateKey) > 0 {
		kp.PrivateKey = secp256k1.PrivKeyFromBytes(aux.PrivateKey)
	}
	pub, err := secp256k1.ParsePubKey(aux.PublicKey)
	if err != nil {
		return err
	}
	kp.PublicKey = pub
	return nil
}

// KeysetsMap groups a wallet's known keysets by mint URL.
type KeysetsMap map[string][]WalletKeyset

// WalletKeyset is a mint's keyset as tracked by a wallet: the public keys
// it signs with, whether it is currently active (new blinded messages
// should only ever target an active keyset), the deterministic-secret
// counter, and the per-input fee rate it charges.
type WalletKeyset struct {
	Id          string
	MintURL     string
	Unit        string
	Active      bool
	PublicKeys  PublicKeys
	Counter     uint32
	InputFeePpk uint
}

type walletKeysetTemp struct {
	Id          string
	MintURL     string
	Unit        string
	Active      bool
	PublicKeys  map[uint64][]byte
	Counter     uint32
	InputFeePpk uint
}

func (wk WalletKeyset) MarshalJSON() ([]byte, error) {
	pks := make(map[uint64][]byte, len(wk.PublicKeys))
	for k, v := range wk.PublicKeys {
		pks[k] = v.SerializeCompressed()
	}
	return json.Marshal(walletKeysetTemp{
		Id:          wk.Id,
		MintURL:     wk.MintURL,
		Unit:        wk.Unit,
		Active:      wk.Active,
		PublicKeys:  pks,
		Counter:     wk.Counter,
		InputFeePpk: wk.InputFeePpk,
	})
}

func (wk *WalletKeyset) UnmarshalJSON(data []byte) error {
	temp := &walletKeysetTemp{}
	if err := json.Unmarshal(data, temp); err != nil {
		return err
	}

	wk.Id = temp.Id
	wk.MintURL = temp.MintURL
	wk.Unit = temp.Unit
	wk.Active = temp.Active
	wk.Counter = temp.Counter
	wk.InputFeePpk = temp.InputFeePpk

	wk.PublicKeys = make(PublicKeys, len(temp.PublicKeys))
	for k, v := range temp.PublicKeys {
		pk, err := secp256k1.ParsePubKey(v)
		if err != nil {
			return err
		}
		wk.PublicKeys[k] = pk
	}
	return nil
}
