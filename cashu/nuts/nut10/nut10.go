// Package nut10 contains well-known secrets: a spending condition wrapped
// in a JSON-array-of-two encoding so that mints can enforce additional
// rules (P2PK, HTLC) beyond raw blind signatures.
//
// See https://github.com/cashubtc/nuts/blob/main/10.md
package nut10

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nutvault/wallet/cashu"
)

type SecretKind int

const (
	AnyoneCanSpend SecretKind = iota
	P2PK
	HTLC
)

func (kind SecretKind) String() string {
	switch kind {
	case P2PK:
		return "P2PK"
	case HTLC:
		return "HTLC"
	default:
		return "anyonecanspend"
	}
}

// SecretType inspects a proof's secret and reports its NUT-10 kind,
// returning AnyoneCanSpend if the secret is not a well-known secret.
func SecretType(proof cashu.Proof) SecretKind {
	var rawJsonSecret []json.RawMessage
	if err := json.Unmarshal([]byte(proof.Secret), &rawJsonSecret); err != nil {
		return AnyoneCanSpend
	}

	if len(rawJsonSecret) < 2 {
		return AnyoneCanSpend
	}

	var kind string
	if err := json.Unmarshal(rawJsonSecret[0], &kind); err != nil {
		return AnyoneCanSpend
	}

	switch kind {
	case "P2PK":
		return P2PK
	case "HTLC":
		return HTLC
	}

	return AnyoneCanSpend
}

// WellKnownSecret is the data half of a NUT-10 secret: ["kind", data].
type WellKnownSecret struct {
	Nonce string     `json:"nonce"`
	Data  string     `json:"data"`
	Tags  [][]string `json:"tags,omitempty"`
}

// SerializeSecret returns the json string to be put in the secret field of a proof.
func SerializeSecret(kind SecretKind, secretData WellKnownSecret) (string, error) {
	jsonSecret, err := json.Marshal(secretData)
	if err != nil {
		return "", err
	}

	secret := fmt.Sprintf("[\"%s\", %v]", kind.String(), string(jsonSecret))
	return secret, nil
}

// DeserializeSecret returns the WellKnownSecret encoded in secret.
// It returns an error if secret is not valid according to NUT-10.
func DeserializeSecret(secret string) (WellKnownSecret, error) {
	var rawJsonSecret []json.RawMessage
	if err := json.Unmarshal([]byte(secret), &rawJsonSecret); err != nil {
		return WellKnownSecret{}, err
	}

	if len(rawJsonSecret) < 2 {
		return WellKnownSecret{}, errors.New("invalid secret: length < 2")
	}

	var kind string
	if err := json.Unmarshal(rawJsonSecret[0], &kind); err != nil {
		return WellKnownSecret{}, errors.New("invalid kind for secret")
	}

	var secretData WellKnownSecret
	if err := json.Unmarshal(rawJsonSecret[1], &secretData); err != nil {
		return WellKnownSecret{}, fmt.Errorf("invalid secret: %v", err)
	}

	return secretData, nil
}

// SpendingCondition is the caller-facing request to build a new well-known
// secret of a given kind.
type SpendingCondition struct {
	Kind SecretKind
	Data string
	Tags [][]string
}

// NewSecretFromSpendingCondition generates a fresh random nonce and
// serializes spendingCondition into a NUT-10 secret string.
func NewSecretFromSpendingCondition(spendingCondition SpendingCondition) (string, error) {
	if spendingCondition.Kind != P2PK && spendingCondition.Kind != HTLC {
		return "", fmt.Errorf("invalid NUT-10 kind '%s' to create new secret", spendingCondition.Kind)
	}

	nonceBytes := make([]byte, 32)
	if _, err := rand.Read(nonceBytes); err != nil {
		return "", err
	}

	secretData := WellKnownSecret{
		Nonce: hex.EncodeToString(nonceBytes),
		Data:  spendingCondition.Data,
		Tags:  spendingCondition.Tags,
	}

	return SerializeSecret(spendingCondition.Kind, secretData)
}
