// Package cashu contains the core structs and logic of the Cashu ecash
// protocol: proofs, blinded messages and signatures, and the error
// taxonomy used throughout the module.
package cashu

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

type Unit int

const (
	Sat Unit = iota

	BOLT11Method = "bolt11"
)

func (unit Unit) String() string {
	switch unit {
	case Sat:
		return "sat"
	default:
		return "unknown"
	}
}

func UnitFromString(s string) (Unit, error) {
	switch s {
	case "sat":
		return Sat, nil
	default:
		return 0, ErrInvalidUnit
	}
}

// BlindedMessage is an output: a blinded secret a wallet asks a mint to
// sign. See NUT-00.
type BlindedMessage struct {
	Amount  uint64 `json:"amount"`
	B_      string `json:"B_"`
	Id      string `json:"id"`
	Witness string `json:"witness,omitempty"`
}

func NewBlindedMessage(id string, amount uint64, B_ *secp256k1.PublicKey) BlindedMessage {
	return BlindedMessage{Amount: amount, B_: hex.EncodeToString(B_.SerializeCompressed()), Id: id}
}

type BlindedMessages []BlindedMessage

func (bm BlindedMessages) Amount() uint64 {
	var total uint64
	for _, msg := range bm {
		total += msg.Amount
	}
	return total
}

// AmountChecked is like Amount but fails closed on overflow instead of
// silently wrapping, for call sites that feed the total into a balance or
// fee comparison.
func (bm BlindedMessages) AmountChecked() (uint64, error) {
	var total uint64
	for _, msg := range bm {
		sum, overflowed := OverflowAddUint64(total, msg.Amount)
		if overflowed {
			return 0, ErrAmountOverflows
		}
		total = sum
	}
	return total, nil
}

// OverflowAddUint64 adds a and b, reporting whether the result wrapped.
func OverflowAddUint64(a, b uint64) (uint64, bool) {
	sum := a + b
	return sum, sum < a
}

// UnderflowSubUint64 subtracts b from a, reporting whether the result
// would have gone negative.
func UnderflowSubUint64(a, b uint64) (uint64, bool) {
	if b > a {
		return 0, true
	}
	return a - b, false
}

// SortBlindedMessages sorts messages, their corresponding secrets and
// blinding factors together by amount ascending, the order a mint's swap
// response signatures come back in.
func SortBlindedMessages(messages BlindedMessages, secrets []string, rs []*secp256k1.PrivateKey) {
	for i := 0; i < len(messages)-1; i++ {
		for j := i + 1; j < len(messages); j++ {
			if messages[i].Amount > messages[j].Amount {
				messages[i], messages[j] = messages[j], messages[i]
				secrets[i], secrets[j] = secrets[j], secrets[i]
				rs[i], rs[j] = rs[j], rs[i]
			}
		}
	}
}

// BlindedSignature is a mint's signature over a BlindedMessage. See NUT-00.
type BlindedSignature struct {
	Amount uint64 `json:"amount"`
	C_     string `json:"C_"`
	Id     string `json:"id"`
	// pointer so that omitempty actually omits it; an empty struct value
	// would still get marshalled.
	DLEQ *DLEQProof `json:"dleq,omitempty"`
}

type BlindedSignatures []BlindedSignature

func (bs BlindedSignatures) Amount() uint64 {
	var total uint64
	for _, sig := range bs {
		total += sig.Amount
	}
	return total
}

// Proof is an unblinded, spendable token. See NUT-00.
type Proof struct {
	Amount  uint64 `json:"amount"`
	Id      string `json:"id"`
	Secret  string `json:"secret"`
	C       string `json:"C"`
	Witness string `json:"witness,omitempty"`
	DLEQ    *DLEQProof `json:"dleq,omitempty"`
}

type Proofs []Proof

// Amount returns the sum amount of a set of proofs.
func (proofs Proofs) Amount() uint64 {
	var total uint64
	for _, proof := range proofs {
		total += proof.Amount
	}
	return total
}

// DLEQProof is the hex-encoded wire form of a crypto.DLEQProof. R is only
// present on a Proof's DLEQ (never on a BlindedSignature's): it carries the
// blinding factor so a later holder, who never saw the blinded message,
// can still verify the mint's signature.
type DLEQProof struct {
	E string `json:"e"`
	S string `json:"s"`
	R string `json:"r,omitempty"`
}

// Given an amount, returns the list of powers-of-two amounts that sum to
// it, e.g. 13 -> [1, 4, 8], the decomposition used to build blinded
// messages or split operations.
func AmountSplit(amount uint64) []uint64 {
	rv := make([]uint64, 0)
	for pos := 0; amount > 0; pos++ {
		if amount&1 == 1 {
			rv = append(rv, 1<<pos)
		}
		amount >>= 1
	}
	return rv
}

func CheckDuplicateProofs(proofs Proofs) bool {
	seen := make(map[Proof]bool, len(proofs))
	for _, proof := range proofs {
		if seen[proof] {
			return true
		}
		seen[proof] = true
	}
	return false
}

func GenerateRandomQuoteId() (string, error) {
	randomBytes := make([]byte, 32)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", err
	}
	hash := sha256.Sum256(randomBytes)
	return hex.EncodeToString(hash[:]), nil
}

func Max(x, y uint64) uint64 {
	if x > y {
		return x
	}
	return y
}

func Count(amounts []uint64, amount uint64) uint {
	var count uint
	for _, amt := range amounts {
		if amt == amount {
			count++
		}
	}
	return count
}
