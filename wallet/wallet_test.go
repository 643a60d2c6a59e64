package wallet

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/nutvault/wallet/wallet/store"
)

const testMintURL = "https://mock.mint"

func newTestWallet(t *testing.T, mint *mockMint, st store.Store) *Wallet {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	w, err := New(context.Background(), Config{MintURL: testMintURL}, mint, st, logger)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return w
}

func TestMintSendReceive(t *testing.T) {
	mint, err := newMockMint("sat")
	if err != nil {
		t.Fatalf("newMockMint: %v", err)
	}

	sender := newTestWallet(t, mint, store.NewMemory())
	receiver := newTestWallet(t, mint, store.NewMemory())

	quote, err := sender.RequestMintQuote(context.Background(), 64)
	if err != nil {
		t.Fatalf("RequestMintQuote: %v", err)
	}

	minted, err := sender.MintTokens(context.Background(), quote.QuoteId)
	if err != nil {
		t.Fatalf("MintTokens: %v", err)
	}
	if minted != 64 {
		t.Fatalf("expected 64 minted, got %d", minted)
	}
	if sender.Balance() != 64 {
		t.Fatalf("expected balance 64, got %d", sender.Balance())
	}

	token, err := sender.Send(context.Background(), 40)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if token.Amount() != 40 {
		t.Fatalf("expected token amount 40, got %d", token.Amount())
	}
	if sender.Balance() != 24 {
		t.Fatalf("expected sender balance 24 after send, got %d", sender.Balance())
	}

	serialized, err := token.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	received, err := receiver.Receive(context.Background(), serialized)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if received != 40 {
		t.Fatalf("expected 40 received, got %d", received)
	}
	if receiver.Balance() != 40 {
		t.Fatalf("expected receiver balance 40, got %d", receiver.Balance())
	}
}

func TestReceiveRejectsWrongMint(t *testing.T) {
	mintA, err := newMockMint("sat")
	if err != nil {
		t.Fatalf("newMockMint: %v", err)
	}
	mintB, err := newMockMint("sat")
	if err != nil {
		t.Fatalf("newMockMint: %v", err)
	}

	sender := newTestWallet(t, mintA, store.NewMemory())
	quote, err := sender.RequestMintQuote(context.Background(), 16)
	if err != nil {
		t.Fatalf("RequestMintQuote: %v", err)
	}
	if _, err := sender.MintTokens(context.Background(), quote.QuoteId); err != nil {
		t.Fatalf("MintTokens: %v", err)
	}
	token, err := sender.Send(context.Background(), 16)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	serialized, err := token.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	receiver := newTestWallet(t, mintB, store.NewMemory())
	if _, err := receiver.Receive(context.Background(), serialized); err != ErrNoMintForToken {
		t.Fatalf("expected ErrNoMintForToken, got %v", err)
	}
}

func TestSwapDefragments(t *testing.T) {
	mint, err := newMockMint("sat")
	if err != nil {
		t.Fatalf("newMockMint: %v", err)
	}
	w := newTestWallet(t, mint, store.NewMemory())

	quote, err := w.RequestMintQuote(context.Background(), 100)
	if err != nil {
		t.Fatalf("RequestMintQuote: %v", err)
	}
	if _, err := w.MintTokens(context.Background(), quote.QuoteId); err != nil {
		t.Fatalf("MintTokens: %v", err)
	}

	proofs, err := w.Swap(context.Background(), 100)
	if err != nil {
		t.Fatalf("Swap: %v", err)
	}
	if proofs.Amount() != 100 {
		t.Fatalf("expected swapped amount 100, got %d", proofs.Amount())
	}
	if w.Balance() != 100 {
		t.Fatalf("expected balance unchanged at 100, got %d", w.Balance())
	}
}

func TestMeltPaysInvoice(t *testing.T) {
	mint, err := newMockMint("sat")
	if err != nil {
		t.Fatalf("newMockMint: %v", err)
	}
	w := newTestWallet(t, mint, store.NewMemory())

	quote, err := w.RequestMintQuote(context.Background(), 50)
	if err != nil {
		t.Fatalf("RequestMintQuote: %v", err)
	}
	if _, err := w.MintTokens(context.Background(), quote.QuoteId); err != nil {
		t.Fatalf("MintTokens: %v", err)
	}

	meltQuote, err := w.RequestMeltQuote(context.Background(), mockInvoice(30))
	if err != nil {
		t.Fatalf("RequestMeltQuote: %v", err)
	}

	resp, err := w.Melt(context.Background(), meltQuote.QuoteId)
	if err != nil {
		t.Fatalf("Melt: %v", err)
	}
	if resp.Preimage == "" {
		t.Fatalf("expected a payment preimage")
	}
	if w.Balance() != 20 {
		t.Fatalf("expected balance 20 after melt, got %d", w.Balance())
	}
}

func TestRestoreRecoversProofs(t *testing.T) {
	mint, err := newMockMint("sat")
	if err != nil {
		t.Fatalf("newMockMint: %v", err)
	}

	originalStore := store.NewMemory()
	original := newTestWallet(t, mint, originalStore)

	quote, err := original.RequestMintQuote(context.Background(), 48)
	if err != nil {
		t.Fatalf("RequestMintQuote: %v", err)
	}
	if _, err := original.MintTokens(context.Background(), quote.QuoteId); err != nil {
		t.Fatalf("MintTokens: %v", err)
	}

	mnemonic := originalStore.GetMnemonic()
	if mnemonic == "" {
		t.Fatal("expected a persisted mnemonic")
	}

	restoreStore := store.NewMemory()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	restored, err := New(context.Background(), Config{}, mint, restoreStore, logger)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	amount, err := restored.Restore(context.Background(), mnemonic, []string{testMintURL})
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if amount != 48 {
		t.Fatalf("expected to recover 48, got %d", amount)
	}
	if restored.Balance() != 48 {
		t.Fatalf("expected balance 48 after restore, got %d", restored.Balance())
	}
}
