package wallet

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nutvault/wallet/cashu"
	"github.com/nutvault/wallet/cashu/nuts/nut01"
	"github.com/nutvault/wallet/cashu/nuts/nut02"
	"github.com/nutvault/wallet/cashu/nuts/nut03"
	"github.com/nutvault/wallet/cashu/nuts/nut04"
	"github.com/nutvault/wallet/cashu/nuts/nut05"
	"github.com/nutvault/wallet/cashu/nuts/nut06"
	"github.com/nutvault/wallet/cashu/nuts/nut07"
	"github.com/nutvault/wallet/cashu/nuts/nut09"
)

// MintClient is everything the orchestrator needs from a mint. It names
// one method per endpoint a wallet calls; transport, TLS and retry
// policy belong to the implementation, not to this contract.
type MintClient interface {
	GetMintInfo(mintURL string) (*nut06.MintInfo, error)
	GetActiveKeysets(mintURL string) (*nut01.GetKeysResponse, error)
	GetAllKeysets(mintURL string) (*nut02.GetKeysetsResponse, error)
	GetKeysetById(mintURL, id string) (*nut01.GetKeysResponse, error)

	PostMintQuoteBolt11(mintURL string, req nut04.PostMintQuoteBolt11Request) (*nut04.PostMintQuoteBolt11Response, error)
	GetMintQuoteState(mintURL, quoteId string) (*nut04.PostMintQuoteBolt11Response, error)
	PostMintBolt11(mintURL string, req nut04.PostMintBolt11Request) (*nut04.PostMintBolt11Response, error)

	PostSwap(mintURL string, req nut03.PostSwapRequest) (*nut03.PostSwapResponse, error)

	PostMeltQuoteBolt11(mintURL string, req nut05.PostMeltQuoteBolt11Request) (*nut05.PostMeltQuoteBolt11Response, error)
	GetMeltQuoteState(mintURL, quoteId string) (*nut05.PostMeltQuoteBolt11Response, error)
	PostMeltBolt11(mintURL string, req nut05.PostMeltBolt11Request) (*nut05.PostMeltBolt11Response, error)

	PostCheckProofState(mintURL string, req nut07.PostCheckStateRequest) (*nut07.PostCheckStateResponse, error)

	PostRestore(mintURL string, req nut09.PostRestoreRequest) (*nut09.PostRestoreResponse, error)
}

// HTTPClient is the default MintClient, speaking the NUT-specified REST
// API over net/http. It carries no retry or backoff policy of its own:
// callers that need resilience wrap it or retry at the orchestrator
// level instead.
type HTTPClient struct {
	httpClient *http.Client
}

func NewHTTPClient() *HTTPClient {
	return &HTTPClient{httpClient: &http.Client{Timeout: 30 * time.Second}}
}

func (c *HTTPClient) GetMintInfo(mintURL string) (*nut06.MintInfo, error) {
	var out nut06.MintInfo
	if err := c.get(mintURL+"/v1/info", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) GetActiveKeysets(mintURL string) (*nut01.GetKeysResponse, error) {
	var out nut01.GetKeysResponse
	if err := c.get(mintURL+"/v1/keys", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) GetAllKeysets(mintURL string) (*nut02.GetKeysetsResponse, error) {
	var out nut02.GetKeysetsResponse
	if err := c.get(mintURL+"/v1/keysets", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) GetKeysetById(mintURL, id string) (*nut01.GetKeysResponse, error) {
	var out nut01.GetKeysResponse
	if err := c.get(mintURL+"/v1/keys/"+id, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) PostMintQuoteBolt11(mintURL string, req nut04.PostMintQuoteBolt11Request) (*nut04.PostMintQuoteBolt11Response, error) {
	var out nut04.PostMintQuoteBolt11Response
	if err := c.post(mintURL+"/v1/mint/quote/bolt11", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) GetMintQuoteState(mintURL, quoteId string) (*nut04.PostMintQuoteBolt11Response, error) {
	var out nut04.PostMintQuoteBolt11Response
	if err := c.get(mintURL+"/v1/mint/quote/bolt11/"+quoteId, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) PostMintBolt11(mintURL string, req nut04.PostMintBolt11Request) (*nut04.PostMintBolt11Response, error) {
	var out nut04.PostMintBolt11Response
	if err := c.post(mintURL+"/v1/mint/bolt11", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) PostSwap(mintURL string, req nut03.PostSwapRequest) (*nut03.PostSwapResponse, error) {
	var out nut03.PostSwapResponse
	if err := c.post(mintURL+"/v1/swap", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) PostMeltQuoteBolt11(mintURL string, req nut05.PostMeltQuoteBolt11Request) (*nut05.PostMeltQuoteBolt11Response, error) {
	var out nut05.PostMeltQuoteBolt11Response
	if err := c.post(mintURL+"/v1/melt/quote/bolt11", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) GetMeltQuoteState(mintURL, quoteId string) (*nut05.PostMeltQuoteBolt11Response, error) {
	var out nut05.PostMeltQuoteBolt11Response
	if err := c.get(mintURL+"/v1/melt/quote/bolt11/"+quoteId, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) PostMeltBolt11(mintURL string, req nut05.PostMeltBolt11Request) (*nut05.PostMeltBolt11Response, error) {
	var out nut05.PostMeltBolt11Response
	if err := c.post(mintURL+"/v1/melt/bolt11", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) PostCheckProofState(mintURL string, req nut07.PostCheckStateRequest) (*nut07.PostCheckStateResponse, error) {
	var out nut07.PostCheckStateResponse
	if err := c.post(mintURL+"/v1/checkstate", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) PostRestore(mintURL string, req nut09.PostRestoreRequest) (*nut09.PostRestoreResponse, error) {
	var out nut09.PostRestoreResponse
	if err := c.post(mintURL+"/v1/restore", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) get(url string, out any) error {
	resp, err := c.httpClient.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decode(resp, out)
}

func (c *HTTPClient) post(url string, body, out any) error {
	requestBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("json.Marshal: %v", err)
	}

	resp, err := c.httpClient.Post(url, "application/json", bytes.NewBuffer(requestBody))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decode(resp, out)
}

func decode(resp *http.Response, out any) error {
	if resp.StatusCode == http.StatusBadRequest {
		var errResponse cashu.Error
		if err := json.NewDecoder(resp.Body).Decode(&errResponse); err != nil {
			return fmt.Errorf("could not decode error response from mint: %v", err)
		}
		return errResponse
	}

	if resp.StatusCode != http.StatusOK {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		return fmt.Errorf("unexpected response from mint (%d): %s", resp.StatusCode, body)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("error reading response from mint: %v", err)
	}
	return nil
}
