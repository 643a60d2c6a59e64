// Package wallet implements the Cashu wallet core: everything a client
// needs to hold, move and account for ecash against one or more mints,
// independent of any particular transport, UI or platform keystore.
package wallet

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/google/uuid"
	"github.com/tyler-smith/go-bip39"

	"github.com/nutvault/wallet/cashu"
	"github.com/nutvault/wallet/cashu/nuts/nut03"
	"github.com/nutvault/wallet/cashu/nuts/nut04"
	"github.com/nutvault/wallet/cashu/nuts/nut05"
	"github.com/nutvault/wallet/cashu/nuts/nut12"
	"github.com/nutvault/wallet/cashu/nuts/nut20"
	"github.com/nutvault/wallet/crypto"
	"github.com/nutvault/wallet/wallet/store"
)

// Config carries everything needed to stand up a Wallet beyond the
// MintClient/Store/logger dependencies, which are constructor-injected
// rather than looked up through a global.
type Config struct {
	MintURL string
	Unit    string
}

// Wallet is the single logical owner of a user's ecash state: proofs,
// keysets and their counters, and in-flight quotes. Every mutating
// operation is serialised through mu, the "serialised actor" pattern;
// read-only queries may run concurrently with each other.
type Wallet struct {
	mu sync.Mutex

	client MintClient
	store  store.Store
	logger *slog.Logger
	clock  Clock

	mintURL string
	unit    string

	masterKey *hdkeychain.ExtendedKey

	// balanceUpdates is sent to, non-blocking, after every successful
	// commit. A full channel drops the update rather than stalling the
	// operation that produced it.
	balanceUpdates chan uint64
	metrics        *Metrics
}

// Clock is a swappable source of "now" that a wallet holds; no wallet
// method reads it at present.
type Clock interface {
	Now() int64
}

// New constructs a Wallet over an existing store. If the store has no
// seed yet, one is generated and persisted; otherwise the existing
// mnemonic is loaded and re-derived. It then syncs the configured
// mint's keysets before returning.
func New(ctx context.Context, cfg Config, client MintClient, st store.Store, logger *slog.Logger) (*Wallet, error) {
	if logger == nil {
		logger = slog.Default()
	}
	unit := cfg.Unit
	if unit == "" {
		unit = cashu.Sat.String()
	}

	w := &Wallet{
		client:         client,
		store:          st,
		logger:         logger,
		mintURL:        cfg.MintURL,
		unit:           unit,
		balanceUpdates: make(chan uint64, 16),
	}

	mnemonic := st.GetMnemonic()
	if mnemonic == "" {
		generated, err := GenerateMnemonic()
		if err != nil {
			return nil, fmt.Errorf("generating mnemonic: %v", err)
		}
		mnemonic = generated
		seed := bip39.NewSeed(mnemonic, "")
		if err := st.SaveMnemonicSeed(mnemonic, seed); err != nil {
			return nil, fmt.Errorf("saving seed: %v", err)
		}
	}

	seed := st.GetSeed()
	if len(seed) == 0 {
		seed = bip39.NewSeed(mnemonic, "")
	}
	masterKey, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, fmt.Errorf("deriving master key: %v", err)
	}
	w.masterKey = masterKey

	if cfg.MintURL != "" {
		if _, err := SyncKeysets(client, st, cfg.MintURL); err != nil {
			return nil, fmt.Errorf("syncing keysets: %v", err)
		}
	}

	return w, nil
}

// GenerateMnemonic returns a fresh BIP39 12-word mnemonic.
func GenerateMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(128)
	if err != nil {
		return "", err
	}
	return bip39.NewMnemonic(entropy)
}

// UseMetrics attaches a Prometheus observer; pass nil to disable.
func (w *Wallet) UseMetrics(m *Metrics) {
	w.metrics = m
}

// BalanceUpdates returns the channel a caller can range over to learn
// about balance changes as they commit. It is lossy: a slow reader
// misses updates rather than blocking the wallet.
func (w *Wallet) BalanceUpdates() <-chan uint64 {
	return w.balanceUpdates
}

// Balance returns the total value of all non-spent proofs.
func (w *Wallet) Balance() uint64 {
	return w.store.Balance()
}

func (w *Wallet) opID() string {
	return uuid.NewString()
}

func (w *Wallet) publishBalance() {
	balance := w.store.Balance()
	w.metrics.observeBalance(balance)
	select {
	case w.balanceUpdates <- balance:
	default:
	}
}

// --- Mint -------------------------------------------------------------

// RequestMintQuote starts a deposit: it asks the mint for an invoice
// (or other payment-method request) of the given amount and persists
// the quote locally so MintTokens can later redeem it.
func (w *Wallet) RequestMintQuote(ctx context.Context, amount uint64) (*store.MintQuote, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	id := w.opID()
	resp, err := w.client.PostMintQuoteBolt11(w.mintURL, nut04.PostMintQuoteBolt11Request{
		Amount: amount,
		Unit:   w.unit,
	})
	if err != nil {
		w.logger.Error("mint quote request failed", "op", id, "error", err)
		w.metrics.observeOperation("mint_quote", "error")
		return nil, err
	}

	quote := store.MintQuote{
		QuoteId:        resp.Quote,
		Mint:           w.mintURL,
		Method:         cashu.BOLT11Method,
		State:          nut04.StateFromString(resp.State),
		Unit:           w.unit,
		PaymentRequest: resp.Request,
		Amount:         amount,
		QuoteExpiry:    uint64(resp.Expiry),
	}
	if err := w.store.SaveMintQuote(quote); err != nil {
		return nil, err
	}

	w.logger.Info("mint quote requested", "op", id, "quote", quote.QuoteId, "amount", amount)
	w.metrics.observeOperation("mint_quote", "ok")
	return &quote, nil
}

// MintQuoteState polls a mint quote's current payment state.
func (w *Wallet) MintQuoteState(ctx context.Context, quoteId string) (nut04.State, error) {
	resp, err := w.client.GetMintQuoteState(w.mintURL, quoteId)
	if err != nil {
		return nut04.Unpaid, err
	}
	return nut04.StateFromString(resp.State), nil
}

// MintTokens completes a deposit: once the quote's invoice has been
// paid, it derives a batch of deterministic outputs summing to the
// quote amount, submits them, verifies the signatures, and commits the
// resulting proofs. The keyset counter only advances once the mint
// call succeeds; on any failure it is left untouched.
func (w *Wallet) MintTokens(ctx context.Context, quoteId string) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	id := w.opID()
	quote := w.store.GetMintQuoteById(quoteId)
	if quote == nil {
		return 0, ErrQuoteNotFound
	}

	keyset, err := ActiveKeyset(w.store, w.mintURL, w.unit)
	if err != nil {
		return 0, err
	}

	counter := w.store.GetKeysetCounter(keyset.Id)
	amounts := cashu.AmountSplit(quote.Amount)
	outputs, err := DeriveOutputs(w.masterKey, keyset.Id, counter, amounts)
	if err != nil {
		return 0, err
	}

	req := nut04.PostMintBolt11Request{Quote: quoteId, Outputs: outputs.Messages}
	if quote.PrivateKey != nil {
		sig, err := nut20.SignMintQuote(quote.PrivateKey, quoteId, outputs.Messages)
		if err != nil {
			return 0, err
		}
		req.Signature = hex.EncodeToString(sig.Serialize())
	}

	resp, err := w.client.PostMintBolt11(w.mintURL, req)
	if err != nil {
		w.logger.Error("mint request failed", "op", id, "quote", quoteId, "error", err)
		w.metrics.observeOperation("mint", "error")
		return 0, err
	}

	proofs, err := unblindProofs(outputs, resp.Signatures, *keyset)
	if err != nil {
		return 0, err
	}

	if err := w.store.SetKeysetCounter(keyset.Id, counter+uint32(len(amounts))); err != nil {
		return 0, err
	}
	if err := w.store.AddProofs(proofs); err != nil {
		return 0, err
	}

	quote.State = nut04.Issued
	if err := w.store.SaveMintQuote(*quote); err != nil {
		return 0, err
	}

	w.logger.Info("mint completed", "op", id, "quote", quoteId, "amount", proofs.Amount())
	w.metrics.observeOperation("mint", "ok")
	w.publishBalance()
	return proofs.Amount(), nil
}

// --- Send ---------------------------------------------------------------

// Send produces a token worth exactly amount for an external recipient.
// It always swaps first, so the proofs that end up in the token were
// never seen by anyone but this wallet and the mint, defeating a
// sender-side double-spend of the originals.
func (w *Wallet) Send(ctx context.Context, amount uint64) (cashu.Token, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	id := w.opID()
	sendProofs, _, err := w.swapLocked(id, amount, true)
	if err != nil {
		w.metrics.observeOperation("send", "error")
		return nil, err
	}

	token, err := cashu.NewTokenV4(sendProofs, w.mintURL, cashu.Sat, true)
	if err != nil {
		return nil, err
	}

	w.logger.Info("send completed", "op", id, "amount", amount)
	w.metrics.observeOperation("send", "ok")
	w.publishBalance()
	return token, nil
}

// --- Receive --------------------------------------------------------------

// Receive redeems an incoming token: the received proofs are swapped
// for freshly-blinded ones of this wallet's own keyset before being
// committed, so a sender who kept a copy of the token cannot race this
// wallet to spend it first.
func (w *Wallet) Receive(ctx context.Context, tokenStr string) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	id := w.opID()
	token, err := cashu.DecodeToken(tokenStr)
	if err != nil {
		w.metrics.observeOperation("receive", "error")
		return 0, err
	}
	if token.Mint() != w.mintURL {
		w.metrics.observeOperation("receive", "error")
		return 0, ErrNoMintForToken
	}
	knownKeysets := keysetLookup(w.store, w.mintURL)
	for _, p := range token.Proofs() {
		if _, ok := knownKeysets[p.Id]; !ok {
			w.metrics.observeOperation("receive", "error")
			return 0, ErrNoMintForToken
		}
	}

	proofs := token.Proofs()
	if cashu.CheckDuplicateProofs(proofs) {
		w.metrics.observeOperation("receive", "error")
		return 0, cashu.DuplicateProofs
	}

	keyset, err := ActiveKeyset(w.store, w.mintURL, w.unit)
	if err != nil {
		return 0, err
	}
	if err := verifyIncomingDLEQ(proofs, w.store); err != nil {
		w.metrics.observeOperation("receive", "error")
		return 0, err
	}

	fee := Fee(proofs, keysetLookup(w.store, w.mintURL))
	received := proofs.Amount() - uint64(fee)

	counter := w.store.GetKeysetCounter(keyset.Id)
	outputs, err := DeriveOutputs(w.masterKey, keyset.Id, counter, cashu.AmountSplit(received))
	if err != nil {
		return 0, err
	}

	resp, err := w.client.PostSwap(w.mintURL, nut03.PostSwapRequest{Inputs: proofs, Outputs: outputs.Messages})
	if err != nil {
		w.logger.Error("receive swap failed", "op", id, "error", err)
		w.metrics.observeOperation("receive", "error")
		return 0, err
	}

	newProofs, err := unblindProofs(outputs, resp.Signatures, *keyset)
	if err != nil {
		return 0, err
	}

	if err := w.store.SetKeysetCounter(keyset.Id, counter+uint32(len(outputs.Messages))); err != nil {
		return 0, err
	}
	if err := w.store.AddProofs(newProofs); err != nil {
		return 0, err
	}

	w.logger.Info("receive completed", "op", id, "amount", received)
	w.metrics.observeOperation("receive", "ok")
	w.publishBalance()
	return received, nil
}

// --- Melt -----------------------------------------------------------------

// RequestMeltQuote asks the mint how many proofs (amount + fee reserve)
// it would need to pay a given payment request on the wallet's behalf.
func (w *Wallet) RequestMeltQuote(ctx context.Context, paymentRequest string) (*store.MeltQuote, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	resp, err := w.client.PostMeltQuoteBolt11(w.mintURL, nut05.PostMeltQuoteBolt11Request{
		Request: paymentRequest,
		Unit:    w.unit,
	})
	if err != nil {
		return nil, err
	}

	quote := store.MeltQuote{
		QuoteId:        resp.Quote,
		Mint:           w.mintURL,
		Method:         cashu.BOLT11Method,
		State:          nut05.StateFromString(resp.State),
		Unit:           w.unit,
		PaymentRequest: paymentRequest,
		Amount:         resp.Amount,
		FeeReserve:     resp.FeeReserve,
		QuoteExpiry:    uint64(resp.Expiry),
	}
	if err := w.store.SaveMeltQuote(quote); err != nil {
		return nil, err
	}
	return &quote, nil
}

// Melt pays a Lightning invoice by spending proofs through the mint.
// Selected inputs are reserved before the network call and either
// marked spent (on PAID) or rolled back to available (on anything
// else), so a transport failure never leaves the store in a
// partially-committed state.
func (w *Wallet) Melt(ctx context.Context, quoteId string) (*nut05.PostMeltBolt11Response, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	id := w.opID()
	quote := w.store.GetMeltQuoteById(quoteId)
	if quote == nil {
		return nil, ErrQuoteNotFound
	}

	needed := quote.Amount + quote.FeeReserve
	selection, err := Select(w.store.GetAvailable(), keysetLookup(w.store, w.mintURL), w.unit, needed)
	if err != nil {
		w.metrics.observeOperation("melt", "error")
		return nil, err
	}

	if err := reserve(w.store, selection.Proofs, quoteId); err != nil {
		return nil, err
	}

	keyset, err := ActiveKeyset(w.store, w.mintURL, w.unit)
	if err != nil {
		rollback(w.store, selection.Proofs)
		return nil, err
	}

	remainder := selection.Proofs.Amount() - needed
	var changeOutputs *BlindedOutputs
	counter := w.store.GetKeysetCounter(keyset.Id)
	if remainder > 0 {
		changeOutputs, err = DeriveOutputs(w.masterKey, keyset.Id, counter, ChangeAmounts(remainder, *keyset))
		if err != nil {
			rollback(w.store, selection.Proofs)
			return nil, err
		}
	}

	req := nut05.PostMeltBolt11Request{Quote: quoteId, Inputs: selection.Proofs}
	if changeOutputs != nil {
		req.Outputs = changeOutputs.Messages
	}

	resp, err := w.client.PostMeltBolt11(w.mintURL, req)
	if err != nil {
		w.logger.Error("melt request failed", "op", id, "quote", quoteId, "error", err)
		rollback(w.store, selection.Proofs)
		w.metrics.observeOperation("melt", "error")
		return nil, err
	}

	state := nut05.StateFromString(resp.State)
	if state != nut05.MeltPaid {
		rollback(w.store, selection.Proofs)
		w.metrics.observeOperation("melt", "error")
		return resp, ErrQuotePending
	}

	if err := markSpent(w.store, selection.Proofs); err != nil {
		return resp, err
	}

	if changeOutputs != nil && len(resp.Change) > 0 {
		changeProofs, err := unblindProofs(changeOutputs, resp.Change, *keyset)
		if err == nil {
			if err := w.store.SetKeysetCounter(keyset.Id, counter+uint32(len(changeOutputs.Messages))); err == nil {
				w.store.AddProofs(changeProofs)
			}
		}
	}

	quote.State = state
	quote.Preimage = resp.Preimage
	w.store.SaveMeltQuote(*quote)

	w.logger.Info("melt completed", "op", id, "quote", quoteId)
	w.metrics.observeOperation("melt", "ok")
	w.publishBalance()
	return resp, nil
}

// --- Swap -----------------------------------------------------------------

// Swap exchanges available proofs for newly-blinded ones of the same
// total value, minus the swap's own fee. It is used internally by Send
// (to mint recipient-bound proofs the sender never held) and can also
// be called directly to defragment a wallet's denominations or rotate
// off a keyset about to go inactive.
func (w *Wallet) Swap(ctx context.Context, amount uint64) (cashu.Proofs, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	id := w.opID()
	proofs, _, err := w.swapLocked(id, amount, false)
	if err != nil {
		w.metrics.observeOperation("swap", "error")
		return nil, err
	}
	w.metrics.observeOperation("swap", "ok")
	w.publishBalance()
	return proofs, nil
}

// swapLocked performs a swap for `amount`, returning the proofs meant
// for the counterparty (the send amount) and committing the change to
// the store. Callers must hold w.mu. When forSend is false the full
// swapped amount is committed to the store as well as returned as "send"
// proofs, and there is no change
// split preference; for a Send call the split targets exactly `amount`.
func (w *Wallet) swapLocked(opID string, amount uint64, forSend bool) (sendProofs cashu.Proofs, changeProofs cashu.Proofs, err error) {
	keysets := keysetLookup(w.store, w.mintURL)
	selection, err := Select(w.store.GetAvailable(), keysets, w.unit, amount)
	if err != nil {
		return nil, nil, err
	}

	if err := reserve(w.store, selection.Proofs, opID); err != nil {
		return nil, nil, err
	}

	keyset, err := ActiveKeyset(w.store, w.mintURL, w.unit)
	if err != nil {
		rollback(w.store, selection.Proofs)
		return nil, nil, err
	}

	total := selection.Proofs.Amount()
	remainder := total - amount - uint64(selection.Fee)

	counter := w.store.GetKeysetCounter(keyset.Id)
	sendAmounts := cashu.AmountSplit(amount)
	changeAmounts := ChangeAmounts(remainder, *keyset)

	allAmounts := append(append([]uint64{}, sendAmounts...), changeAmounts...)
	outputs, err := DeriveOutputs(w.masterKey, keyset.Id, counter, allAmounts)
	if err != nil {
		rollback(w.store, selection.Proofs)
		return nil, nil, err
	}

	resp, err := w.client.PostSwap(w.mintURL, nut03.PostSwapRequest{Inputs: selection.Proofs, Outputs: outputs.Messages})
	if err != nil {
		w.logger.Error("swap failed", "op", opID, "error", err)
		rollback(w.store, selection.Proofs)
		return nil, nil, err
	}

	allProofs, err := unblindProofs(outputs, resp.Signatures, *keyset)
	if err != nil {
		rollback(w.store, selection.Proofs)
		return nil, nil, err
	}

	if err := w.store.SetKeysetCounter(keyset.Id, counter+uint32(len(allAmounts))); err != nil {
		return nil, nil, err
	}
	if err := markSpent(w.store, selection.Proofs); err != nil {
		return nil, nil, err
	}

	sendProofs = allProofs[:len(sendAmounts)]
	changeProofs = allProofs[len(sendAmounts):]
	if len(changeProofs) > 0 {
		if err := w.store.AddProofs(changeProofs); err != nil {
			return nil, nil, err
		}
	}

	if !forSend {
		if err := w.store.AddProofs(sendProofs); err != nil {
			return nil, nil, err
		}
		return append(sendProofs, changeProofs...), nil, nil
	}
	return sendProofs, changeProofs, nil
}

// --- Restore --------------------------------------------------------------

// Restore rebuilds proof state for one or more mints from a mnemonic
// alone. See restore.go for the batch/empty-batch walk.
func (w *Wallet) Restore(ctx context.Context, mnemonic string, mints []string) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Restore(w.client, w.store, mnemonic, mints)
}

// --- shared helpers ---------------------------------------------------

func keysetLookup(st store.Store, mintURL string) map[string]crypto.WalletKeyset {
	out := make(map[string]crypto.WalletKeyset)
	for _, ks := range st.GetKeysets()[mintURL] {
		out[ks.Id] = ks
	}
	return out
}

func reserve(st store.Store, proofs cashu.Proofs, opID string) error {
	byKeyset := groupSecretsByKeyset(proofs)
	for keysetId, secrets := range byKeyset {
		if err := st.MarkReserved(keysetId, secrets, opID); err != nil {
			return err
		}
	}
	return nil
}

func rollback(st store.Store, proofs cashu.Proofs) {
	byKeyset := groupSecretsByKeyset(proofs)
	for keysetId, secrets := range byKeyset {
		st.MarkAvailable(keysetId, secrets)
	}
}

func markSpent(st store.Store, proofs cashu.Proofs) error {
	byKeyset := groupSecretsByKeyset(proofs)
	for keysetId, secrets := range byKeyset {
		if err := st.MarkSpent(keysetId, secrets); err != nil {
			return err
		}
	}
	return nil
}

func groupSecretsByKeyset(proofs cashu.Proofs) map[string][]string {
	out := make(map[string][]string)
	for _, p := range proofs {
		out[p.Id] = append(out[p.Id], p.Secret)
	}
	return out
}

// unblindProofs turns a mint's blind signatures back into spendable
// proofs, matched positionally against the outputs that produced them.
// It rejects the whole batch if any signature carries an invalid DLEQ
// proof.
func unblindProofs(outputs *BlindedOutputs, sigs cashu.BlindedSignatures, keyset crypto.WalletKeyset) (cashu.Proofs, error) {
	if len(sigs) != len(outputs.Secrets) || len(sigs) != len(outputs.Rs) {
		return nil, fmt.Errorf("unblinding: mismatched lengths (%d sigs, %d outputs)", len(sigs), len(outputs.Secrets))
	}

	proofs := make(cashu.Proofs, len(sigs))
	for i, sig := range sigs {
		pubkey, ok := keyset.PublicKeys[sig.Amount]
		if !ok {
			return nil, fmt.Errorf("no key for amount %d in keyset '%s'", sig.Amount, keyset.Id)
		}

		if sig.DLEQ != nil && !nut12.VerifyBlindSignatureDLEQ(*sig.DLEQ, pubkey, outputs.Messages[i].B_, sig.C_) {
			return nil, fmt.Errorf("invalid DLEQ proof for amount %d", sig.Amount)
		}

		C, err := UnblindSignature(sig.C_, outputs.Rs[i], pubkey)
		if err != nil {
			return nil, err
		}

		proof := cashu.Proof{Amount: sig.Amount, Id: sig.Id, Secret: outputs.Secrets[i], C: C}
		if sig.DLEQ != nil {
			proof.DLEQ = &cashu.DLEQProof{
				E: sig.DLEQ.E,
				S: sig.DLEQ.S,
				R: hex.EncodeToString(outputs.Rs[i].Serialize()),
			}
		}
		proofs[i] = proof
	}
	return proofs, nil
}

// verifyIncomingDLEQ checks the DLEQ proof (if any) on every received
// proof against the keyset that signed it.
func verifyIncomingDLEQ(proofs cashu.Proofs, st store.Store) error {
	byKeyset := make(map[string]cashu.Proofs)
	for _, p := range proofs {
		byKeyset[p.Id] = append(byKeyset[p.Id], p)
	}
	for keysetId, ps := range byKeyset {
		keyset := st.GetKeyset(keysetId)
		if keyset == nil {
			continue
		}
		if !nut12.VerifyProofsDLEQ(ps, *keyset) {
			return fmt.Errorf("invalid DLEQ proof for keyset '%s'", keysetId)
		}
	}
	return nil
}
