package razorpay

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	pkgerrors "github.com/plantomart/plantomart-backend/pkg/errors"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{},
	}
}

func TestCreateOrderRequest(t *testing.T) {
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		if req.URL.String() != "http://rzp.test/v1/orders" {
			t.Fatalf("unexpected URL %q", req.URL.String())
		}
		user, pass, ok := req.BasicAuth()
		if !ok || user != "rzp_test_key" || pass != "shh" {
			t.Fatalf("basic auth missing or wrong")
		}
		var payload map[string]any
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if payload["amount"].(float64) != 49900 || payload["currency"] != "INR" {
			t.Fatalf("unexpected payload %v", payload)
		}
		notes := payload["notes"].(map[string]any)
		if notes["product_id"] != "p-1" {
			t.Fatalf("notes not forwarded: %v", notes)
		}
		return jsonResponse(http.StatusOK, `{"id":"order_Abc","amount":49900,"currency":"INR","receipt":"r-1","status":"created","entity":"order"}`), nil
	})

	client, err := NewClient("rzp_test_key", "shh", WithBaseURL("http://rzp.test"), WithHTTPClient(&http.Client{Transport: rt}))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	order, err := client.CreateOrder(context.Background(), OrderRequest{
		Amount:   49900,
		Currency: "INR",
		Receipt:  "r-1",
		Notes:    map[string]string{"product_id": "p-1"},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if order.ID != "order_Abc" || order.Status != "created" {
		t.Fatalf("unexpected order %+v", order)
	}
}

func TestCreateOrderMapsFailures(t *testing.T) {
	cases := []struct {
		name string
		resp *http.Response
		code pkgerrors.Code
	}{
		{"bad request", jsonResponse(http.StatusBadRequest, `{"error":{"description":"amount too low"}}`), pkgerrors.CodeValidation},
		{"server error", jsonResponse(http.StatusBadGateway, `oops`), pkgerrors.CodeDependency},
		{"not json", jsonResponse(http.StatusOK, `<html>`), pkgerrors.CodeInvalidResponse},
		{"missing id", jsonResponse(http.StatusOK, `{"amount":1}`), pkgerrors.CodeInvalidResponse},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rt := roundTripFunc(func(*http.Request) (*http.Response, error) { return tc.resp, nil })
			client, err := NewClient("k", "s", WithHTTPClient(&http.Client{Transport: rt}))
			if err != nil {
				t.Fatalf("new client: %v", err)
			}
			_, err = client.CreateOrder(context.Background(), OrderRequest{Amount: 100, Currency: "INR"})
			if !pkgerrors.Is(err, tc.code) {
				t.Fatalf("expected %s, got %v", tc.code, err)
			}
		})
	}
}

func TestCreateOrderValidatesInput(t *testing.T) {
	client, err := NewClient("k", "s")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := client.CreateOrder(context.Background(), OrderRequest{Amount: 0, Currency: "INR"}); !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for zero amount, got %v", err)
	}
}

func TestNewClientRequiresCredentials(t *testing.T) {
	if _, err := NewClient(" ", "secret"); err == nil {
		t.Fatalf("expected error for missing key id")
	}
	client, err := NewClient("k", "s", WithTimeout(3*time.Second))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if client.httpClient.Timeout != 3*time.Second {
		t.Fatalf("timeout option not applied")
	}
}

func TestVerifyPaymentSignature(t *testing.T) {
	sig := SignPayment("secret", "order_1", "pay_1")
	if !VerifyPaymentSignature("secret", "order_1", "pay_1", sig) {
		t.Fatalf("expected valid signature")
	}
	if !VerifyPaymentSignature("secret", "order_1", "pay_1", strings.ToUpper(sig)) {
		t.Fatalf("hex case should not matter")
	}
	if VerifyPaymentSignature("secret", "order_1", "pay_2", sig) {
		t.Fatalf("signature must bind the payment id")
	}
	if VerifyPaymentSignature("other", "order_1", "pay_1", sig) {
		t.Fatalf("signature must bind the secret")
	}
	if VerifyPaymentSignature("secret", "order_1", "pay_1", "") {
		t.Fatalf("empty signature must fail")
	}
}
