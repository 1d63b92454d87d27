package wallet

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	platformerrors "github.com/worldrepublic/republic/internal/platform/errors"
)

func TestHTTPProcessorSubmitsWriteContract(t *testing.T) {
	var gotSecret, gotContentType string
	var gotBody writeContractRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSecret = r.Header.Get("x-secret-key")
		gotContentType = r.Header.Get("Content-Type")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write([]byte(`{"result":{"transactions":[{"id":"queued-42"}]}}`)); err != nil {
			t.Errorf("write response: %v", err)
		}
	}))
	defer server.Close()

	processor := NewHTTPProcessor(server.URL, "secret-1", TokenContractAddress, server.Client())
	txID, err := processor.SubmitTransfer(context.Background(), TransferCall{
		From:        sourceAddressDefault,
		ChainID:     "56",
		To:          "0x1111111111111111111111111111111111111111",
		AmountMinor: "10300000000000000000",
	})
	if err != nil {
		t.Fatalf("SubmitTransfer: %v", err)
	}
	if txID != "queued-42" {
		t.Fatalf("txID = %q, want queued-42", txID)
	}
	if gotSecret != "secret-1" {
		t.Fatalf("x-secret-key = %q, want secret-1", gotSecret)
	}
	if gotContentType != "application/json" {
		t.Fatalf("content type = %q, want application/json", gotContentType)
	}
	if gotBody.ExecutionOptions.From != sourceAddressDefault || gotBody.ExecutionOptions.ChainID != "56" {
		t.Fatalf("execution options = %+v", gotBody.ExecutionOptions)
	}
	if len(gotBody.Params) != 1 {
		t.Fatalf("params = %d, want 1", len(gotBody.Params))
	}
	call := gotBody.Params[0]
	if call.ContractAddress != TokenContractAddress {
		t.Fatalf("contract = %q, want token contract", call.ContractAddress)
	}
	if call.Method != transferMethod {
		t.Fatalf("method = %q", call.Method)
	}
	if len(call.Params) != 2 || call.Params[0] != "0x1111111111111111111111111111111111111111" || call.Params[1] != "10300000000000000000" {
		t.Fatalf("call params = %v", call.Params)
	}
}

func TestHTTPProcessorNonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "engine unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	processor := NewHTTPProcessor(server.URL, "secret-1", TokenContractAddress, server.Client())
	_, err := processor.SubmitTransfer(context.Background(), TransferCall{ChainID: "56"})
	if platformerrors.CodeOf(err) != platformerrors.CodeProcessorFailure {
		t.Fatalf("err = %v, want processor failure", err)
	}
}

func TestHTTPProcessorMissingTransactionID(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"empty transactions", `{"result":{"transactions":[]}}`},
		{"blank id", `{"result":{"transactions":[{"id":""}]}}`},
		{"no result", `{}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if _, err := w.Write([]byte(tc.body)); err != nil {
					t.Errorf("write response: %v", err)
				}
			}))
			defer server.Close()

			processor := NewHTTPProcessor(server.URL, "secret-1", TokenContractAddress, server.Client())
			_, err := processor.SubmitTransfer(context.Background(), TransferCall{ChainID: "56"})
			if platformerrors.CodeOf(err) != platformerrors.CodeProcessorNoID {
				t.Fatalf("err = %v, want processor no-id", err)
			}
		})
	}
}

func TestHTTPProcessorUnreachableEngine(t *testing.T) {
	processor := NewHTTPProcessor("http://127.0.0.1:0", "secret-1", TokenContractAddress, nil)
	_, err := processor.SubmitTransfer(context.Background(), TransferCall{ChainID: "56"})
	if platformerrors.CodeOf(err) != platformerrors.CodeProcessorFailure {
		t.Fatalf("err = %v, want processor failure", err)
	}
}
