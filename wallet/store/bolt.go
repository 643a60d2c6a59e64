package store

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/nutvault/wallet/cashu"
	"github.com/nutvault/wallet/crypto"
	bolt "go.etcd.io/bbolt"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"
)

const (
	proofsBucket    = "proofs"
	keysetsBucket   = "keysets"
	mintQuoteBucket = "mint_quotes"
	meltQuoteBucket = "melt_quotes"
	seedBucket      = "seed"

	mnemonicKey = "mnemonic"
	seedKey     = "seed"
	saltKey     = "salt"
	seedSaltKey = "seed_salt"
)

// scryptN/r/p follow the parameters recommended for interactive logins;
// the wallet calls this once at startup, not per-operation.
const (
	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
)

// Bolt is a durable Store backed by a single bbolt file. If opened with
// a passphrase, the mnemonic/seed are sealed with scrypt+chacha20poly1305
// before being written; without one they are stored in plain bytes, same
// as a bare key-value cache, and a warning is logged once.
type Bolt struct {
	db         *bolt.DB
	passphrase string
	logger     *slog.Logger
}

// OpenBolt opens (creating if absent) a bbolt-backed store at dir/wallet.db.
// passphrase may be empty; if non-empty it is used to encrypt the mnemonic
// and seed at rest.
func OpenBolt(dir string, passphrase string, logger *slog.Logger) (*Bolt, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := bolt.Open(filepath.Join(dir, "wallet.db"), 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("error opening wallet store: %v", err)
	}

	b := &Bolt{db: db, passphrase: passphrase, logger: logger}
	if err := b.init(); err != nil {
		return nil, err
	}

	if passphrase == "" {
		logger.Warn("wallet store opened without a passphrase; mnemonic and seed are stored in plaintext")
	}

	return b, nil
}

func (b *Bolt) init() error {
	return b.db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{proofsBucket, keysetsBucket, mintQuoteBucket, meltQuoteBucket, seedBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *Bolt) Close() error { return b.db.Close() }

func (b *Bolt) seal(plaintext []byte) ([]byte, []byte, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return nil, nil, err
	}

	key, err := scrypt.Key([]byte(b.passphrase), salt, scryptN, scryptR, scryptP, chacha20poly1305.KeySize)
	if err != nil {
		return nil, nil, err
	}

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, nil, err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, err
	}

	sealed := aead.Seal(nonce, nonce, plaintext, nil)
	return sealed, salt, nil
}

func (b *Bolt) unseal(sealed, salt []byte) ([]byte, error) {
	key, err := scrypt.Key([]byte(b.passphrase), salt, scryptN, scryptR, scryptP, chacha20poly1305.KeySize)
	if err != nil {
		return nil, err
	}

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}

	if len(sealed) < aead.NonceSize() {
		return nil, errors.New("corrupt sealed data")
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	return aead.Open(nil, nonce, ciphertext, nil)
}

func (b *Bolt) SaveMnemonicSeed(mnemonic string, seed []byte) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(seedBucket))

		if b.passphrase == "" {
			if err := bucket.Put([]byte(mnemonicKey), []byte(mnemonic)); err != nil {
				return err
			}
			return bucket.Put([]byte(seedKey), seed)
		}

		sealedMnemonic, salt, err := b.seal([]byte(mnemonic))
		if err != nil {
			return err
		}
		sealedSeed, seedSalt, err := b.seal(seed)
		if err != nil {
			return err
		}

		if err := bucket.Put([]byte(saltKey), salt); err != nil {
			return err
		}
		if err := bucket.Put([]byte(seedSaltKey), seedSalt); err != nil {
			return err
		}
		if err := bucket.Put([]byte(mnemonicKey), sealedMnemonic); err != nil {
			return err
		}
		return bucket.Put([]byte(seedKey), sealedSeed)
	})
}

func (b *Bolt) GetMnemonic() string {
	var mnemonic string
	b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(seedBucket))
		raw := bucket.Get([]byte(mnemonicKey))
		if raw == nil {
			return nil
		}
		if b.passphrase == "" {
			mnemonic = string(raw)
			return nil
		}
		salt := bucket.Get([]byte(saltKey))
		plain, err := b.unseal(raw, salt)
		if err != nil {
			b.logger.Error("failed to decrypt mnemonic", "error", err)
			return nil
		}
		mnemonic = string(plain)
		return nil
	})
	return mnemonic
}

func (b *Bolt) GetSeed() []byte {
	var seed []byte
	b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(seedBucket))
		raw := bucket.Get([]byte(seedKey))
		if raw == nil {
			return nil
		}
		if b.passphrase == "" {
			seed = raw
			return nil
		}
		salt := bucket.Get([]byte(seedSaltKey))
		plain, err := b.unseal(raw, salt)
		if err != nil {
			b.logger.Error("failed to decrypt seed", "error", err)
			return nil
		}
		seed = plain
		return nil
	})
	return seed
}

func (b *Bolt) AddProofs(proofs cashu.Proofs) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(proofsBucket))
		for _, p := range proofs {
			key := []byte(proofKey(p.Id, p.Secret))
			if bucket.Get(key) != nil {
				return ErrDuplicateProof
			}
		}
		for _, p := range proofs {
			key := []byte(proofKey(p.Id, p.Secret))
			data, err := json.Marshal(StoredProof{Proof: p, State: Available})
			if err != nil {
				return err
			}
			if err := bucket.Put(key, data); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *Bolt) RemoveProofs(proofs cashu.Proofs) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(proofsBucket))
		for _, p := range proofs {
			if err := bucket.Delete([]byte(proofKey(p.Id, p.Secret))); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *Bolt) Contains(keysetId, secret string) bool {
	found := false
	b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(proofsBucket))
		found = bucket.Get([]byte(proofKey(keysetId, secret))) != nil
		return nil
	})
	return found
}

func (b *Bolt) forEachProof(fn func(StoredProof) error) error {
	return b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(proofsBucket))
		c := bucket.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var sp StoredProof
			if err := json.Unmarshal(v, &sp); err != nil {
				continue
			}
			if err := fn(sp); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *Bolt) Count() int {
	count := 0
	b.forEachProof(func(StoredProof) error { count++; return nil })
	return count
}

func (b *Bolt) GetAll() []StoredProof {
	out := []StoredProof{}
	b.forEachProof(func(sp StoredProof) error { out = append(out, sp); return nil })
	return out
}

func (b *Bolt) GetAvailable() []StoredProof {
	out := []StoredProof{}
	b.forEachProof(func(sp StoredProof) error {
		if sp.State == Available {
			out = append(out, sp)
		}
		return nil
	})
	return out
}

func (b *Bolt) GetAvailableByKeyset(keysetId string) []StoredProof {
	out := []StoredProof{}
	b.forEachProof(func(sp StoredProof) error {
		if sp.State == Available && sp.Id == keysetId {
			out = append(out, sp)
		}
		return nil
	})
	return out
}

func (b *Bolt) setState(keysetId string, secrets []string, state ProofState, quoteId string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(proofsBucket))
		for _, secret := range secrets {
			key := []byte(proofKey(keysetId, secret))
			raw := bucket.Get(key)
			if raw == nil {
				return ErrProofNotFound
			}
			var sp StoredProof
			if err := json.Unmarshal(raw, &sp); err != nil {
				return err
			}
			sp.State = state
			if state == Reserved {
				sp.QuoteId = quoteId
			} else {
				sp.QuoteId = ""
			}
			data, err := json.Marshal(sp)
			if err != nil {
				return err
			}
			if err := bucket.Put(key, data); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *Bolt) MarkReserved(keysetId string, secrets []string, quoteId string) error {
	return b.setState(keysetId, secrets, Reserved, quoteId)
}

func (b *Bolt) MarkAvailable(keysetId string, secrets []string) error {
	return b.setState(keysetId, secrets, Available, "")
}

func (b *Bolt) MarkSpent(keysetId string, secrets []string) error {
	return b.setState(keysetId, secrets, Spent, "")
}

func (b *Bolt) GetReservedByQuoteId(quoteId string) []StoredProof {
	out := []StoredProof{}
	b.forEachProof(func(sp StoredProof) error {
		if sp.State == Reserved && sp.QuoteId == quoteId {
			out = append(out, sp)
		}
		return nil
	})
	return out
}

func (b *Bolt) Balance() uint64 {
	var total uint64
	b.forEachProof(func(sp StoredProof) error {
		if sp.State != Spent {
			total += sp.Amount
		}
		return nil
	})
	return total
}

func (b *Bolt) BalanceByKeyset(keysetId string) uint64 {
	var total uint64
	b.forEachProof(func(sp StoredProof) error {
		if sp.State != Spent && sp.Id == keysetId {
			total += sp.Amount
		}
		return nil
	})
	return total
}

func (b *Bolt) SaveKeyset(keyset *crypto.WalletKeyset) error {
	data, err := json.Marshal(keyset)
	if err != nil {
		return fmt.Errorf("invalid keyset: %v", err)
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(keysetsBucket))
		mintBucket, err := bucket.CreateBucketIfNotExists([]byte(keyset.MintURL))
		if err != nil {
			return err
		}
		return mintBucket.Put([]byte(keyset.Id), data)
	})
}

func (b *Bolt) GetKeysets() crypto.KeysetsMap {
	out := make(crypto.KeysetsMap)
	b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(keysetsBucket))
		return bucket.ForEach(func(mintURL, _ []byte) error {
			mintBucket := bucket.Bucket(mintURL)
			if mintBucket == nil {
				return nil
			}
			var keysets []crypto.WalletKeyset
			c := mintBucket.Cursor()
			for k, v := c.First(); k != nil; k, v = c.Next() {
				var ks crypto.WalletKeyset
				if err := json.Unmarshal(v, &ks); err != nil {
					return err
				}
				keysets = append(keysets, ks)
			}
			out[string(mintURL)] = keysets
			return nil
		})
	})
	return out
}

func (b *Bolt) GetKeyset(id string) *crypto.WalletKeyset {
	var keyset *crypto.WalletKeyset
	b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(keysetsBucket))
		return bucket.ForEach(func(mintURL, _ []byte) error {
			mintBucket := bucket.Bucket(mintURL)
			if mintBucket == nil {
				return nil
			}
			raw := mintBucket.Get([]byte(id))
			if raw == nil {
				return nil
			}
			var ks crypto.WalletKeyset
			if err := json.Unmarshal(raw, &ks); err != nil {
				return err
			}
			keyset = &ks
			return nil
		})
	})
	return keyset
}

func (b *Bolt) updateKeyset(id string, fn func(*crypto.WalletKeyset)) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(keysetsBucket))
		found := false
		err := bucket.ForEach(func(mintURL, _ []byte) error {
			mintBucket := bucket.Bucket(mintURL)
			if mintBucket == nil {
				return nil
			}
			raw := mintBucket.Get([]byte(id))
			if raw == nil {
				return nil
			}
			var ks crypto.WalletKeyset
			if err := json.Unmarshal(raw, &ks); err != nil {
				return err
			}
			fn(&ks)
			found = true
			data, err := json.Marshal(ks)
			if err != nil {
				return err
			}
			return mintBucket.Put([]byte(id), data)
		})
		if err != nil {
			return err
		}
		if !found {
			return ErrKeysetNotFound
		}
		return nil
	})
}

func (b *Bolt) IncrementKeysetCounter(id string, n uint32) error {
	return b.updateKeyset(id, func(ks *crypto.WalletKeyset) { ks.Counter += n })
}

func (b *Bolt) SetKeysetCounter(id string, n uint32) error {
	return b.updateKeyset(id, func(ks *crypto.WalletKeyset) { ks.Counter = n })
}

func (b *Bolt) GetKeysetCounter(id string) uint32 {
	ks := b.GetKeyset(id)
	if ks == nil {
		return 0
	}
	return ks.Counter
}

func (b *Bolt) SaveMintQuote(quote MintQuote) error {
	data, err := json.Marshal(quote)
	if err != nil {
		return fmt.Errorf("invalid mint quote: %v", err)
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(mintQuoteBucket)).Put([]byte(quote.QuoteId), data)
	})
}

func (b *Bolt) GetMintQuotes() []MintQuote {
	var quotes []MintQuote
	b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(mintQuoteBucket))
		c := bucket.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var q MintQuote
			if err := json.Unmarshal(v, &q); err != nil {
				continue
			}
			quotes = append(quotes, q)
		}
		return nil
	})
	return quotes
}

func (b *Bolt) GetMintQuoteById(id string) *MintQuote {
	var quote *MintQuote
	b.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket([]byte(mintQuoteBucket)).Get([]byte(id))
		if raw == nil {
			return nil
		}
		var q MintQuote
		if err := json.Unmarshal(raw, &q); err != nil {
			return nil
		}
		quote = &q
		return nil
	})
	return quote
}

func (b *Bolt) SaveMeltQuote(quote MeltQuote) error {
	data, err := json.Marshal(quote)
	if err != nil {
		return fmt.Errorf("invalid melt quote: %v", err)
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(meltQuoteBucket)).Put([]byte(quote.QuoteId), data)
	})
}

func (b *Bolt) GetMeltQuotes() []MeltQuote {
	var quotes []MeltQuote
	b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(meltQuoteBucket))
		c := bucket.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var q MeltQuote
			if err := json.Unmarshal(v, &q); err != nil {
				continue
			}
			quotes = append(quotes, q)
		}
		return nil
	})
	return quotes
}

func (b *Bolt) GetMeltQuoteById(id string) *MeltQuote {
	var quote *MeltQuote
	b.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket([]byte(meltQuoteBucket)).Get([]byte(id))
		if raw == nil {
			return nil
		}
		var q MeltQuote
		if err := json.Unmarshal(raw, &q); err != nil {
			return nil
		}
		quote = &q
		return nil
	})
	return quote
}
