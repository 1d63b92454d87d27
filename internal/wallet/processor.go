package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/worldrepublic/republic/internal/platform/errors"
)

// transferMethod is the ERC-20 signature the engine executes on the
// token contract.
const transferMethod = "function transfer(address to, uint256 amount)"

// processorTimeout bounds a single write-contract call, including the
// engine's own submission latency.
const processorTimeout = 30 * time.Second

// TransferCall describes one on-chain token transfer for the engine to
// submit. AmountMinor is the integer amount in the token's smallest
// unit.
type TransferCall struct {
	From        string
	ChainID     string
	To          string
	AmountMinor string
}

// Processor submits token transfers to an execution backend and
// returns the backend's transaction id.
type Processor interface {
	SubmitTransfer(ctx context.Context, call TransferCall) (string, error)
}

// HTTPProcessor calls a remote engine write-contract endpoint.
type HTTPProcessor struct {
	url           string
	secretKey     string
	tokenContract string
	client        *http.Client
}

// NewHTTPProcessor creates a processor that POSTs write-contract
// requests to the given URL.
func NewHTTPProcessor(url, secretKey, tokenContract string, client *http.Client) *HTTPProcessor {
	if client == nil {
		client = &http.Client{Timeout: processorTimeout}
	}
	return &HTTPProcessor{
		url:           url,
		secretKey:     secretKey,
		tokenContract: tokenContract,
		client:        client,
	}
}

type writeContractRequest struct {
	ExecutionOptions executionOptions    `json:"executionOptions"`
	Params           []writeContractCall `json:"params"`
}

type executionOptions struct {
	From    string `json:"from"`
	ChainID string `json:"chainId"`
}

type writeContractCall struct {
	ContractAddress string   `json:"contractAddress"`
	Method          string   `json:"method"`
	Params          []string `json:"params"`
}

type writeContractResponse struct {
	Result struct {
		Transactions []struct {
			ID string `json:"id"`
		} `json:"transactions"`
	} `json:"result"`
}

// SubmitTransfer submits one ERC-20 transfer and returns the engine's
// queued transaction id.
func (h *HTTPProcessor) SubmitTransfer(ctx context.Context, call TransferCall) (string, error) {
	body := writeContractRequest{
		ExecutionOptions: executionOptions{From: call.From, ChainID: call.ChainID},
		Params: []writeContractCall{{
			ContractAddress: h.tokenContract,
			Method:          transferMethod,
			Params:          []string{call.To, call.AmountMinor},
		}},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("encode write-contract request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build write-contract request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-secret-key", h.secretKey)

	resp, err := h.client.Do(req)
	if err != nil {
		return "", errors.Wrap(errors.CodeProcessorFailure, "write-contract request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", errors.New(errors.CodeProcessorFailure, fmt.Sprintf("write-contract returned %s", resp.Status))
	}

	var result writeContractResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", errors.Wrap(errors.CodeProcessorNoID, "decode write-contract response", err)
	}
	if len(result.Result.Transactions) == 0 || result.Result.Transactions[0].ID == "" {
		return "", errors.New(errors.CodeProcessorNoID, "write-contract response carried no transaction id")
	}
	return result.Result.Transactions[0].ID, nil
}
