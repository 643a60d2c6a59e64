package cashu

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Token is a self-contained ecash envelope: a set of proofs plus the mint
// that issued them. See NUT-00's token format.
type Token interface {
	Proofs() Proofs
	Mint() string
	Amount() uint64
	Serialize() (string, error)
}

// DecodeToken accepts either a V3 ("cashuA...") or V4 ("cashuB...") token
// string and returns the decoded Token.
func DecodeToken(tokenstr string) (Token, error) {
	if token, err := DecodeTokenV4(tokenstr); err == nil {
		return token, nil
	}
	tokenV3, err := DecodeTokenV3(tokenstr)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %v", err)
	}
	return tokenV3, nil
}

// TokenV3 is the JSON + base64url token envelope, prefixed "cashuA".
type TokenV3 struct {
	Token []TokenV3Proof `json:"token"`
	Unit  string         `json:"unit"`
	Memo  string         `json:"memo,omitempty"`
}

type TokenV3Proof struct {
	Mint   string `json:"mint"`
	Proofs Proofs `json:"proofs"`
}

func NewTokenV3(proofs Proofs, mint string, unit Unit, includeDLEQ bool) (TokenV3, error) {
	if unit != Sat {
		return TokenV3{}, ErrInvalidUnit
	}

	if !includeDLEQ {
		stripped := make(Proofs, len(proofs))
		copy(stripped, proofs)
		for i := range stripped {
			stripped[i].DLEQ = nil
		}
		proofs = stripped
	}

	return TokenV3{
		Token: []TokenV3Proof{{Mint: mint, Proofs: proofs}},
		Unit:  unit.String(),
	}, nil
}

func DecodeTokenV3(tokenstr string) (*TokenV3, error) {
	if len(tokenstr) < 6 || tokenstr[:6] != "cashuA" {
		return nil, ErrInvalidTokenV3
	}
	base64Token := tokenstr[6:]

	tokenBytes, err := base64.URLEncoding.DecodeString(base64Token)
	if err != nil {
		tokenBytes, err = base64.RawURLEncoding.DecodeString(base64Token)
		if err != nil {
			return nil, fmt.Errorf("error decoding token: %v", err)
		}
	}

	var token TokenV3
	if err := json.Unmarshal(tokenBytes, &token); err != nil {
		return nil, fmt.Errorf("error unmarshaling token: %v", err)
	}
	if len(token.Token) == 0 {
		return nil, ErrInvalidTokenV3
	}
	return &token, nil
}

func (t TokenV3) Proofs() Proofs {
	proofs := make(Proofs, 0, len(t.Token))
	for _, tokenProof := range t.Token {
		proofs = append(proofs, tokenProof.Proofs...)
	}
	return proofs
}

func (t TokenV3) Mint() string {
	return t.Token[0].Mint
}

func (t TokenV3) Amount() uint64 {
	return t.Proofs().Amount()
}

func (t TokenV3) Serialize() (string, error) {
	jsonBytes, err := json.Marshal(t)
	if err != nil {
		return "", err
	}
	return "cashuA" + base64.URLEncoding.EncodeToString(jsonBytes), nil
}

// TokenV4 is the CBOR + base64url-nopad token envelope, prefixed "cashuB".
// Field names are deliberately short ("t", "d", "m", "u", "i", "p", ...)
// to keep the CBOR encoding compact.
type TokenV4 struct {
	TokenProofs []TokenV4Proof `json:"t"`
	Memo        string         `json:"d,omitempty"`
	MintURL     string         `json:"m"`
	Unit        string         `json:"u"`
}

type TokenV4Proof struct {
	Id     []byte    `json:"i"`
	Proofs []ProofV4 `json:"p"`
}

func (tp *TokenV4Proof) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Id     string    `json:"i"`
		Proofs []ProofV4 `json:"p"`
	}{
		Id:     hex.EncodeToString(tp.Id),
		Proofs: tp.Proofs,
	})
}

type ProofV4 struct {
	Amount  uint64  `json:"a"`
	Secret  string  `json:"s"`
	C       []byte  `json:"c"`
	Witness string  `json:"w,omitempty"`
	DLEQ    *DLEQV4 `json:"d,omitempty"`
}

func (p *ProofV4) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Amount  uint64  `json:"a"`
		Secret  string  `json:"s"`
		C       string  `json:"c"`
		Witness string  `json:"w,omitempty"`
		DLEQ    *DLEQV4 `json:"d,omitempty"`
	}{
		Amount:  p.Amount,
		Secret:  p.Secret,
		C:       hex.EncodeToString(p.C),
		Witness: p.Witness,
		DLEQ:    p.DLEQ,
	})
}

type DLEQV4 struct {
	E []byte `json:"e"`
	S []byte `json:"s"`
	R []byte `json:"r"`
}

func (d *DLEQV4) MarshalJSON() ([]byte, error) {
	return json.Marshal(DLEQProof{
		E: hex.EncodeToString(d.E),
		S: hex.EncodeToString(d.S),
		R: hex.EncodeToString(d.R),
	})
}

// NewTokenV4 builds a V4 token, grouping proofs by keyset id as the CBOR
// layout requires. It never silently drops to V3: a malformed DLEQ proof
// or non-hex keyset id is a hard error, not a fallback.
func NewTokenV4(proofs Proofs, mint string, unit Unit, includeDLEQ bool) (TokenV4, error) {
	if unit != Sat {
		return TokenV4{}, ErrInvalidUnit
	}

	byKeyset := make(map[string][]ProofV4)
	order := make([]string, 0)
	for _, proof := range proofs {
		C, err := hex.DecodeString(proof.C)
		if err != nil {
			return TokenV4{}, fmt.Errorf("invalid C: %v", err)
		}
		proofV4 := ProofV4{
			Amount:  proof.Amount,
			Secret:  proof.Secret,
			C:       C,
			Witness: proof.Witness,
		}

		if includeDLEQ && proof.DLEQ != nil {
			e, err := hex.DecodeString(proof.DLEQ.E)
			if err != nil {
				return TokenV4{}, fmt.Errorf("invalid e in DLEQ proof: %v", err)
			}
			s, err := hex.DecodeString(proof.DLEQ.S)
			if err != nil {
				return TokenV4{}, fmt.Errorf("invalid s in DLEQ proof: %v", err)
			}
			if len(proof.DLEQ.R) == 0 {
				return TokenV4{}, fmt.Errorf("r in DLEQ proof cannot be empty")
			}
			r, err := hex.DecodeString(proof.DLEQ.R)
			if err != nil {
				return TokenV4{}, fmt.Errorf("invalid r in DLEQ proof: %v", err)
			}
			proofV4.DLEQ = &DLEQV4{E: e, S: s, R: r}
		}

		if _, seen := byKeyset[proof.Id]; !seen {
			order = append(order, proof.Id)
		}
		byKeyset[proof.Id] = append(byKeyset[proof.Id], proofV4)
	}

	tokenProofs := make([]TokenV4Proof, 0, len(order))
	for _, id := range order {
		idBytes, err := hex.DecodeString(id)
		if err != nil {
			return TokenV4{}, fmt.Errorf("invalid keyset id: %v", err)
		}
		tokenProofs = append(tokenProofs, TokenV4Proof{Id: idBytes, Proofs: byKeyset[id]})
	}

	return TokenV4{MintURL: mint, Unit: unit.String(), TokenProofs: tokenProofs}, nil
}

func DecodeTokenV4(tokenstr string) (*TokenV4, error) {
	if len(tokenstr) < 6 || tokenstr[:6] != "cashuB" {
		return nil, ErrInvalidTokenV4
	}
	base64Token := tokenstr[6:]

	tokenBytes, err := base64.RawURLEncoding.DecodeString(base64Token)
	if err != nil {
		tokenBytes, err = base64.URLEncoding.DecodeString(base64Token)
		if err != nil {
			return nil, fmt.Errorf("error decoding token: %v", err)
		}
	}

	var tokenV4 TokenV4
	if err := cbor.Unmarshal(tokenBytes, &tokenV4); err != nil {
		return nil, fmt.Errorf("cbor.Unmarshal: %v", err)
	}
	return &tokenV4, nil
}

func (t TokenV4) Proofs() Proofs {
	proofs := make(Proofs, 0)
	for _, tokenV4Proof := range t.TokenProofs {
		keysetId := hex.EncodeToString(tokenV4Proof.Id)
		for _, proofV4 := range tokenV4Proof.Proofs {
			proof := Proof{
				Amount:  proofV4.Amount,
				Id:      keysetId,
				Secret:  proofV4.Secret,
				C:       hex.EncodeToString(proofV4.C),
				Witness: proofV4.Witness,
			}
			if proofV4.DLEQ != nil {
				proof.DLEQ = &DLEQProof{
					E: hex.EncodeToString(proofV4.DLEQ.E),
					S: hex.EncodeToString(proofV4.DLEQ.S),
					R: hex.EncodeToString(proofV4.DLEQ.R),
				}
			}
			proofs = append(proofs, proof)
		}
	}
	return proofs
}

func (t TokenV4) Mint() string {
	return t.MintURL
}

func (t TokenV4) Amount() uint64 {
	return t.Proofs().Amount()
}

func (t TokenV4) Serialize() (string, error) {
	cborData, err := cbor.Marshal(t)
	if err != nil {
		return "", err
	}
	return "cashuB" + base64.RawURLEncoding.EncodeToString(cborData), nil
}
