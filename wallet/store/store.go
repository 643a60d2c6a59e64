// Package store persists everything a wallet needs across restarts:
// proofs (with their available/reserved/spent lifecycle), keysets and
// their deterministic-secret counters, in-flight mint/melt quotes, and
// the mnemonic/seed.
package store

import (
	"encoding/json"
	"errors"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/nutvault/wallet/cashu"
	"github.com/nutvault/wallet/cashu/nuts/nut04"
	"github.com/nutvault/wallet/cashu/nuts/nut05"
	"github.com/nutvault/wallet/crypto"
)

// ProofState is a proof's position in the available -> reserved -> spent
// lifecycle. Reserved proofs return to available on rollback; spent is
// terminal.
type ProofState int

const (
	Available ProofState = iota
	Reserved
	Spent
)

func (s ProofState) String() string {
	switch s {
	case Available:
		return "available"
	case Reserved:
		return "reserved"
	case Spent:
		return "spent"
	default:
		return "unknown"
	}
}

// StoredProof wraps a cashu.Proof with the bookkeeping the store needs:
// its lifecycle state and, for reserved proofs, which operation holds it.
type StoredProof struct {
	cashu.Proof
	State ProofState
	// QuoteId ties a proof reserved for a melt to the melt quote that
	// may still return it as change on failure.
	QuoteId string
}

var (
	ErrDuplicateProof = errors.New("proof already exists in store")
	ErrProofNotFound  = errors.New("proof not found in store")
	ErrKeysetNotFound = errors.New("keyset not found in store")
)

// proofKey identifies a proof uniquely by (keyset_id, secret).
func proofKey(keysetId, secret string) string {
	return keysetId + ":" + secret
}

// MintQuote is a locally-tracked record of a mint quote requested from
// a mint, including the NUT-20 locking key if one was generated.
type MintQuote struct {
	QuoteId        string
	Mint           string
	Method         string
	State          nut04.State
	Unit           string
	PaymentRequest string
	Amount         uint64
	CreatedAt      int64
	SettledAt      int64
	QuoteExpiry    uint64
	PrivateKey     *secp256k1.PrivateKey
}

type mintQuoteWire struct {
	QuoteId        string
	Mint           string
	Method         string
	State          nut04.State
	Unit           string
	PaymentRequest string
	Amount         uint64
	CreatedAt      int64
	SettledAt      int64
	QuoteExpiry    uint64
	PrivateKey     []byte
}

func (mq MintQuote) MarshalJSON() ([]byte, error) {
	wire := mintQuoteWire{
		QuoteId:        mq.QuoteId,
		Mint:           mq.Mint,
		Method:         mq.Method,
		State:          mq.State,
		Unit:           mq.Unit,
		PaymentRequest: mq.PaymentRequest,
		Amount:         mq.Amount,
		CreatedAt:      mq.CreatedAt,
		SettledAt:      mq.SettledAt,
		QuoteExpiry:    mq.QuoteExpiry,
	}
	if mq.PrivateKey != nil {
		wire.PrivateKey = mq.PrivateKey.Serialize()
	}
	return json.Marshal(wire)
}

func (mq *MintQuote) UnmarshalJSON(data []byte) error {
	var wire mintQuoteWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	mq.QuoteId = wire.QuoteId
	mq.Mint = wire.Mint
	mq.Method = wire.Method
	mq.State = wire.State
	mq.Unit = wire.Unit
	mq.PaymentRequest = wire.PaymentRequest
	mq.Amount = wire.Amount
	mq.CreatedAt = wire.CreatedAt
	mq.SettledAt = wire.SettledAt
	mq.QuoteExpiry = wire.QuoteExpiry
	if len(wire.PrivateKey) > 0 {
		mq.PrivateKey = secp256k1.PrivKeyFromBytes(wire.PrivateKey)
	}
	return nil
}

// MeltQuote is a locally-tracked record of a melt quote requested from
// a mint.
type MeltQuote struct {
	QuoteId        string
	Mint           string
	Method         string
	State          nut05.State
	Unit           string
	PaymentRequest string
	Amount         uint64
	FeeReserve     uint64
	Preimage       string
	CreatedAt      int64
	SettledAt      int64
	QuoteExpiry    uint64
}

// Store is the full persistence contract the wallet orchestrator and
// keyset manager depend on.
type Store interface {
	// Proofs
	AddProofs(proofs cashu.Proofs) error
	RemoveProofs(proofs cashu.Proofs) error
	Contains(keysetId, secret string) bool
	Count() int
	GetAll() []StoredProof
	GetAvailable() []StoredProof
	GetAvailableByKeyset(keysetId string) []StoredProof
	MarkReserved(keysetId string, secrets []string, quoteId string) error
	MarkAvailable(keysetId string, secrets []string) error
	MarkSpent(keysetId string, secrets []string) error
	GetReservedByQuoteId(quoteId string) []StoredProof
	Balance() uint64
	BalanceByKeyset(keysetId string) uint64

	// Keysets
	SaveKeyset(keyset *crypto.WalletKeyset) error
	GetKeysets() crypto.KeysetsMap
	GetKeyset(id string) *crypto.WalletKeyset
	IncrementKeysetCounter(id string, n uint32) error
	SetKeysetCounter(id string, n uint32) error
	GetKeysetCounter(id string) uint32

	// Quotes
	SaveMintQuote(quote MintQuote) error
	GetMintQuotes() []MintQuote
	GetMintQuoteById(id string) *MintQuote
	SaveMeltQuote(quote MeltQuote) error
	GetMeltQuotes() []MeltQuote
	GetMeltQuoteById(id string) *MeltQuote

	// Seed
	SaveMnemonicSeed(mnemonic string, seed []byte) error
	GetSeed() []byte
	GetMnemonic() string

	Close() error
}
