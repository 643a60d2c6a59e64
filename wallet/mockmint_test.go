package wallet

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/nutvault/wallet/cashu"
	"github.com/nutvault/wallet/cashu/nuts/nut01"
	"github.com/nutvault/wallet/cashu/nuts/nut02"
	"github.com/nutvault/wallet/cashu/nuts/nut03"
	"github.com/nutvault/wallet/cashu/nuts/nut04"
	"github.com/nutvault/wallet/cashu/nuts/nut05"
	"github.com/nutvault/wallet/cashu/nuts/nut06"
	"github.com/nutvault/wallet/cashu/nuts/nut07"
	"github.com/nutvault/wallet/cashu/nuts/nut09"
	"github.com/nutvault/wallet/crypto"
)

// mockMint is a minimal in-process signer standing in for a mint server,
// used only to exercise the wallet's protocol logic in unit tests. It does
// not speak Lightning: mint and melt quotes settle immediately.
type mockMint struct {
	mu sync.Mutex

	active  *crypto.MintKeyset
	keysets map[string]*crypto.MintKeyset

	mintQuotes map[string]*nut04.PostMintQuoteBolt11Response
	meltQuotes map[string]*nut05.PostMeltQuoteBolt11Response

	spentY map[string]bool
	issued map[string]issuedOutput // keyed by B_
}

type issuedOutput struct {
	amount uint64
	id     string
}

func newMockMint(unit string) (*mockMint, error) {
	seed, err := hdkeychain.GenerateSeed(hdkeychain.RecommendedSeedLen)
	if err != nil {
		return nil, err
	}
	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, err
	}
	ks, err := crypto.GenerateKeyset(master, 0, unit, 0)
	if err != nil {
		return nil, err
	}

	return &mockMint{
		active:     ks,
		keysets:    map[string]*crypto.MintKeyset{ks.Id: ks},
		mintQuotes: make(map[string]*nut04.PostMintQuoteBolt11Response),
		meltQuotes: make(map[string]*nut05.PostMeltQuoteBolt11Response),
		spentY:     make(map[string]bool),
		issued:     make(map[string]issuedOutput),
	}, nil
}

func (m *mockMint) GetMintInfo(string) (*nut06.MintInfo, error) {
	return &nut06.MintInfo{
		Name: "mock mint",
		Nuts: nut06.NutsMap{
			7:  map[string]any{"supported": true},
			9:  map[string]any{"supported": true},
			20: map[string]any{"supported": true},
		},
	}, nil
}

func (m *mockMint) GetActiveKeysets(mintURL string) (*nut01.GetKeysResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &nut01.GetKeysResponse{Keysets: []nut01.Keyset{
		{Id: m.active.Id, Unit: m.active.Unit, Keys: m.active.PublicKeys()},
	}}, nil
}

func (m *mockMint) GetAllKeysets(mintURL string) (*nut02.GetKeysetsResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	resp := &nut02.GetKeysetsResponse{}
	for _, ks := range m.keysets {
		resp.Keysets = append(resp.Keysets, nut02.Keyset{
			Id: ks.Id, Unit: ks.Unit, Active: ks.Active, InputFeePpk: ks.InputFeePpk,
		})
	}
	return resp, nil
}

func (m *mockMint) GetKeysetById(mintURL, id string) (*nut01.GetKeysResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ks, ok := m.keysets[id]
	if !ok {
		return nil, fmt.Errorf("unknown keyset %s", id)
	}
	return &nut01.GetKeysResponse{Keysets: []nut01.Keyset{{Id: ks.Id, Unit: ks.Unit, Keys: ks.PublicKeys()}}}, nil
}

func (m *mockMint) PostMintQuoteBolt11(mintURL string, req nut04.PostMintQuoteBolt11Request) (*nut04.PostMintQuoteBolt11Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, err := cashu.GenerateRandomQuoteId()
	if err != nil {
		return nil, err
	}
	resp := &nut04.PostMintQuoteBolt11Response{
		Quote:   id,
		Request: mockInvoice(req.Amount),
		State:   nut04.Paid.String(),
		Pubkey:  req.Pubkey,
	}
	m.mintQuotes[id] = resp
	return resp, nil
}

func (m *mockMint) GetMintQuoteState(mintURL, quoteId string) (*nut04.PostMintQuoteBolt11Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	resp, ok := m.mintQuotes[quoteId]
	if !ok {
		return nil, fmt.Errorf("unknown quote %s", quoteId)
	}
	return resp, nil
}

func (m *mockMint) PostMintBolt11(mintURL string, req nut04.PostMintBolt11Request) (*nut04.PostMintBolt11Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	quote, ok := m.mintQuotes[req.Quote]
	if !ok || nut04.StateFromString(quote.State) != nut04.Paid {
		return nil, fmt.Errorf("quote %s not payable", req.Quote)
	}

	sigs, err := m.sign(req.Outputs)
	if err != nil {
		return nil, err
	}
	quote.State = nut04.Issued.String()
	return &nut04.PostMintBolt11Response{Signatures: sigs}, nil
}

func (m *mockMint) PostSwap(mintURL string, req nut03.PostSwapRequest) (*nut03.PostSwapResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range req.Inputs {
		y, err := crypto.HashToCurve([]byte(p.Secret))
		if err != nil {
			return nil, err
		}
		m.spentY[hex.EncodeToString(y.SerializeCompressed())] = true
	}

	sigs, err := m.sign(req.Outputs)
	if err != nil {
		return nil, err
	}
	return &nut03.PostSwapResponse{Signatures: sigs}, nil
}

func (m *mockMint) PostMeltQuoteBolt11(mintURL string, req nut05.PostMeltQuoteBolt11Request) (*nut05.PostMeltQuoteBolt11Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, err := cashu.GenerateRandomQuoteId()
	if err != nil {
		return nil, err
	}
	amount, err := parseMockInvoice(req.Request)
	if err != nil {
		return nil, err
	}
	resp := &nut05.PostMeltQuoteBolt11Response{
		Quote:  id,
		Amount: amount,
		State:  nut05.MeltUnpaid.String(),
	}
	m.meltQuotes[id] = resp
	return resp, nil
}

func (m *mockMint) GetMeltQuoteState(mintURL, quoteId string) (*nut05.PostMeltQuoteBolt11Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	resp, ok := m.meltQuotes[quoteId]
	if !ok {
		return nil, fmt.Errorf("unknown quote %s", quoteId)
	}
	return resp, nil
}

func (m *mockMint) PostMeltBolt11(mintURL string, req nut05.PostMeltBolt11Request) (*nut05.PostMeltBolt11Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	quote, ok := m.meltQuotes[req.Quote]
	if !ok {
		return nil, fmt.Errorf("unknown quote %s", req.Quote)
	}

	for _, p := range req.Inputs {
		y, err := crypto.HashToCurve([]byte(p.Secret))
		if err != nil {
			return nil, err
		}
		m.spentY[hex.EncodeToString(y.SerializeCompressed())] = true
	}

	var change cashu.BlindedSignatures
	if len(req.Outputs) > 0 {
		sigs, err := m.sign(req.Outputs)
		if err != nil {
			return nil, err
		}
		change = sigs
	}

	quote.State = nut05.MeltPaid.String()
	quote.Preimage = "mockpreimage"
	return &nut05.PostMeltBolt11Response{State: quote.State, Preimage: quote.Preimage, Change: change}, nil
}

func (m *mockMint) PostCheckProofState(mintURL string, req nut07.PostCheckStateRequest) (*nut07.PostCheckStateResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	resp := &nut07.PostCheckStateResponse{}
	for _, y := range req.Ys {
		state := nut07.Unspent
		if m.spentY[y] {
			state = nut07.Spent
		}
		resp.States = append(resp.States, nut07.ProofState{Y: y, State: state})
	}
	return resp, nil
}

func (m *mockMint) PostRestore(mintURL string, req nut09.PostRestoreRequest) (*nut09.PostRestoreResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	resp := &nut09.PostRestoreResponse{}
	for _, msg := range req.Outputs {
		issued, ok := m.issued[msg.B_]
		if !ok {
			continue
		}
		ks, ok := m.keysets[issued.id]
		if !ok {
			continue
		}
		kp, ok := ks.Keys[issued.amount]
		if !ok {
			continue
		}

		B_bytes, err := hex.DecodeString(msg.B_)
		if err != nil {
			return nil, err
		}
		B_, err := secp256k1.ParsePubKey(B_bytes)
		if err != nil {
			return nil, err
		}
		C_ := crypto.Sign(B_, kp.PrivateKey)

		resp.Outputs = append(resp.Outputs, msg)
		resp.Signatures = append(resp.Signatures, cashu.BlindedSignature{
			Amount: issued.amount,
			Id:     issued.id,
			C_:     hex.EncodeToString(C_.SerializeCompressed()),
		})
	}
	return resp, nil
}

// sign produces a blind signature plus DLEQ proof for each output under
// the keyset that output names, recording each one so a later restore can
// recognize it.
func (m *mockMint) sign(outputs cashu.BlindedMessages) (cashu.BlindedSignatures, error) {
	sigs := make(cashu.BlindedSignatures, len(outputs))
	for i, msg := range outputs {
		ks, ok := m.keysets[msg.Id]
		if !ok {
			return nil, fmt.Errorf("unknown keyset %s", msg.Id)
		}
		kp, ok := ks.Keys[msg.Amount]
		if !ok {
			return nil, fmt.Errorf("keyset %s has no key for amount %d", msg.Id, msg.Amount)
		}

		B_bytes, err := hex.DecodeString(msg.B_)
		if err != nil {
			return nil, err
		}
		B_, err := secp256k1.ParsePubKey(B_bytes)
		if err != nil {
			return nil, err
		}

		C_ := crypto.Sign(B_, kp.PrivateKey)

		var nonceBytes [32]byte
		if _, err := rand.Read(nonceBytes[:]); err != nil {
			return nil, err
		}
		nonce := secp256k1.PrivKeyFromBytes(nonceBytes[:])
		dleq := crypto.ProveDLEQ(kp.PrivateKey, B_, nonce)
		eBytes := dleq.E.Bytes()
		sBytes := dleq.S.Bytes()

		sigs[i] = cashu.BlindedSignature{
			Amount: msg.Amount,
			Id:     msg.Id,
			C_:     hex.EncodeToString(C_.SerializeCompressed()),
			DLEQ: &cashu.DLEQProof{
				E: hex.EncodeToString(eBytes[:]),
				S: hex.EncodeToString(sBytes[:]),
			},
		}
		m.issued[msg.B_] = issuedOutput{amount: msg.Amount, id: msg.Id}
	}
	return sigs, nil
}

func mockInvoice(amount uint64) string {
	return "lnmock1" + strconv.FormatUint(amount, 10)
}

func parseMockInvoice(request string) (uint64, error) {
	amount := strings.TrimPrefix(request, "lnmock1")
	return strconv.ParseUint(amount, 10, 64)
}
