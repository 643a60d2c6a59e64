package store

import (
	"sync"

	"github.com/nutvault/wallet/cashu"
	"github.com/nutvault/wallet/crypto"
)

// Memory is an in-process Store, guarded by a single mutex. It is meant
// for tests and short-lived processes; Bolt is the durable counterpart.
type Memory struct {
	mu sync.Mutex

	proofs  map[string]StoredProof
	keysets map[string]*crypto.WalletKeyset
	mintQs  map[string]MintQuote
	meltQs  map[string]MeltQuote

	mnemonic string
	seed     []byte
}

func NewMemory() *Memory {
	return &Memory{
		proofs:  make(map[string]StoredProof),
		keysets: make(map[string]*crypto.WalletKeyset),
		mintQs:  make(map[string]MintQuote),
		meltQs:  make(map[string]MeltQuote),
	}
}

func (m *Memory) AddProofs(proofs cashu.Proofs) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range proofs {
		key := proofKey(p.Id, p.Secret)
		if _, exists := m.proofs[key]; exists {
			return ErrDuplicateProof
		}
	}
	for _, p := range proofs {
		key := proofKey(p.Id, p.Secret)
		m.proofs[key] = StoredProof{Proof: p, State: Available}
	}
	return nil
}

func (m *Memory) RemoveProofs(proofs cashu.Proofs) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range proofs {
		delete(m.proofs, proofKey(p.Id, p.Secret))
	}
	return nil
}

func (m *Memory) Contains(keysetId, secret string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.proofs[proofKey(keysetId, secret)]
	return ok
}

func (m *Memory) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.proofs)
}

func (m *Memory) GetAll() []StoredProof {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]StoredProof, 0, len(m.proofs))
	for _, p := range m.proofs {
		out = append(out, p)
	}
	return out
}

func (m *Memory) GetAvailable() []StoredProof {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]StoredProof, 0, len(m.proofs))
	for _, p := range m.proofs {
		if p.State == Available {
			out = append(out, p)
		}
	}
	return out
}

func (m *Memory) GetAvailableByKeyset(keysetId string) []StoredProof {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []StoredProof{}
	for _, p := range m.proofs {
		if p.State == Available && p.Id == keysetId {
			out = append(out, p)
		}
	}
	return out
}

func (m *Memory) setState(keysetId string, secrets []string, state ProofState, quoteId string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, secret := range secrets {
		key := proofKey(keysetId, secret)
		p, ok := m.proofs[key]
		if !ok {
			return ErrProofNotFound
		}
		p.State = state
		if state == Reserved {
			p.QuoteId = quoteId
		} else {
			p.QuoteId = ""
		}
		m.proofs[key] = p
	}
	return nil
}

func (m *Memory) MarkReserved(keysetId string, secrets []string, quoteId string) error {
	return m.setState(keysetId, secrets, Reserved, quoteId)
}

func (m *Memory) MarkAvailable(keysetId string, secrets []string) error {
	return m.setState(keysetId, secrets, Available, "")
}

func (m *Memory) MarkSpent(keysetId string, secrets []string) error {
	return m.setState(keysetId, secrets, Spent, "")
}

func (m *Memory) GetReservedByQuoteId(quoteId string) []StoredProof {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []StoredProof{}
	for _, p := range m.proofs {
		if p.State == Reserved && p.QuoteId == quoteId {
			out = append(out, p)
		}
	}
	return out
}

func (m *Memory) Balance() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total uint64
	for _, p := range m.proofs {
		if p.State != Spent {
			total += p.Amount
		}
	}
	return total
}

func (m *Memory) BalanceByKeyset(keysetId string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total uint64
	for _, p := range m.proofs {
		if p.State != Spent && p.Id == keysetId {
			total += p.Amount
		}
	}
	return total
}

func (m *Memory) SaveKeyset(keyset *crypto.WalletKeyset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *keyset
	m.keysets[keyset.Id] = &cp
	return nil
}

func (m *Memory) GetKeysets() crypto.KeysetsMap {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(crypto.KeysetsMap)
	for _, ks := range m.keysets {
		out[ks.MintURL] = append(out[ks.MintURL], *ks)
	}
	return out
}

func (m *Memory) GetKeyset(id string) *crypto.WalletKeyset {
	m.mu.Lock()
	defer m.mu.Unlock()
	ks, ok := m.keysets[id]
	if !ok {
		return nil
	}
	cp := *ks
	return &cp
}

func (m *Memory) IncrementKeysetCounter(id string, n uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ks, ok := m.keysets[id]
	if !ok {
		return ErrKeysetNotFound
	}
	ks.Counter += n
	return nil
}

func (m *Memory) SetKeysetCounter(id string, n uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ks, ok := m.keysets[id]
	if !ok {
		return ErrKeysetNotFound
	}
	ks.Counter = n
	return nil
}

func (m *Memory) GetKeysetCounter(id string) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	ks, ok := m.keysets[id]
	if !ok {
		return 0
	}
	return ks.Counter
}

func (m *Memory) SaveMintQuote(quote MintQuote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mintQs[quote.QuoteId] = quote
	return nil
}

func (m *Memory) GetMintQuotes() []MintQuote {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MintQuote, 0, len(m.mintQs))
	for _, q := range m.mintQs {
		out = append(out, q)
	}
	return out
}

func (m *Memory) GetMintQuoteById(id string) *MintQuote {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.mintQs[id]
	if !ok {
		return nil
	}
	return &q
}

func (m *Memory) SaveMeltQuote(quote MeltQuote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.meltQs[quote.QuoteId] = quote
	return nil
}

func (m *Memory) GetMeltQuotes() []MeltQuote {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MeltQuote, 0, len(m.meltQs))
	for _, q := range m.meltQs {
		out = append(out, q)
	}
	return out
}

func (m *Memory) GetMeltQuoteById(id string) *MeltQuote {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.meltQs[id]
	if !ok {
		return nil
	}
	return &q
}

func (m *Memory) SaveMnemonicSeed(mnemonic string, seed []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mnemonic = mnemonic
	m.seed = seed
	return nil
}

func (m *Memory) GetSeed() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seed
}

func (m *Memory) GetMnemonic() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mnemonic
}

func (m *Memory) Close() error { return nil }
