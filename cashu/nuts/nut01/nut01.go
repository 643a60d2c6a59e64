// Package nut01 contains the wire types for mint public key distribution.
//
// See https://github.com/cashubtc/nuts/blob/main/01.md
package nut01

import (
	"encoding/json"

	"github.com/nutvault/wallet/crypto"
)

type GetKeysResponse struct {
	Keysets []Keyset `json:"keysets"`
}

type Keyset struct {
	Id   string            `json:"id"`
	Unit string            `json:"unit"`
	Keys crypto.PublicKeys `json:"keys"`
}

func (kr *GetKeysResponse) UnmarshalJSON(data []byte) error {
	var temp struct {
		Keysets []json.RawMessage
	}
	if err := json.Unmarshal(data, &temp); err != nil {
		return err
	}

	keysets := make([]Keyset, len(temp.Keysets))
	for i, raw := range temp.Keysets {
		var keyset Keyset
		if err := json.Unmarshal(raw, &keyset); err != nil {
			return err
		}
		keysets[i] = keyset
	}
	kr.Keysets = keysets
	return nil
}

func (ks *Keyset) UnmarshalJSON(data []byte) error {
	var temp struct {
		Id   string
		Unit string
		Keys json.RawMessage
	}
	if err := json.Unmarshal(data, &temp); err != nil {
		return err
	}

	ks.Id = temp.Id
	ks.Unit = temp.Unit

	publicKeys := make(crypto.PublicKeys, len(temp.Keys))
	if err := json.Unmarshal(temp.Keys, &publicKeys); err != nil {
		return err
	}
	ks.Keys = publicKeys
	return nil
}
