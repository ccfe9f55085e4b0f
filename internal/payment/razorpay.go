package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

var decimalHundred = decimal.NewFromInt(100)

const (
	defaultBaseURL = "https://api.razorpay.com"
	linkExpiry     = 24 * time.Hour
)

// RazorpayClient talks to the Razorpay Payment Links API with basic auth.
type RazorpayClient struct {
	KeyID       string
	KeySecret   string
	BaseURL     string
	CallbackURL string
	HTTPClient  *http.Client
}

func NewRazorpayClient(keyID, keySecret, callbackURL string) *RazorpayClient {
	return &RazorpayClient{
		KeyID:       keyID,
		KeySecret:   keySecret,
		BaseURL:     defaultBaseURL,
		CallbackURL: callbackURL,
		HTTPClient:  &http.Client{Timeout: 30 * time.Second},
	}
}

type paymentLinkResponse struct {
	ID       string `json:"id"`
	ShortURL string `json:"short_url"`
	URL      string `json:"url"`
	Status   string `json:"status"`
	Payments []struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"payments"`
}

func (r *RazorpayClient) CreatePaymentRequest(ctx context.Context, req Request) (*Handle, error) {
	currency := req.Currency
	if currency == "" {
		currency = "INR"
	}

	// Amount is sent in the currency's minor unit.
	payload := map[string]interface{}{
		"amount":         req.Amount.Mul(decimalHundred).IntPart(),
		"currency":       currency,
		"accept_partial": false,
		"expire_by":      time.Now().Add(linkExpiry).Unix(),
		"reference_id":   req.Reference,
		"description":    req.Description,
		"customer": map[string]string{
			"name":    req.Customer.Name,
			"email":   req.Customer.Email,
			"contact": req.Customer.Contact,
		},
		"notify":          map[string]bool{"sms": true, "email": true},
		"reminder_enable": true,
		"notes":           req.Notes,
		"callback_url":    r.CallbackURL,
		"callback_method": "get",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding payment link payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.BaseURL+"/v1/payment_links", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.SetBasicAuth(r.KeyID, r.KeySecret)
	httpReq.Header.Set("Content-Type", "application/json")

	var link paymentLinkResponse
	if err := r.do(httpReq, &link); err != nil {
		return nil, fmt.Errorf("creating payment link: %w", err)
	}

	payURL := link.ShortURL
	if payURL == "" {
		payURL = link.URL
	}
	return &Handle{ProviderReference: link.ID, PayURL: payURL}, nil
}

func (r *RazorpayClient) CheckStatus(ctx context.Context, providerReference string) (*StatusResult, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, r.BaseURL+"/v1/payment_links/"+providerReference, nil)
	if err != nil {
		return nil, err
	}
	httpReq.SetBasicAuth(r.KeyID, r.KeySecret)

	var link paymentLinkResponse
	if err := r.do(httpReq, &link); err != nil {
		return nil, fmt.Errorf("fetching payment link %s: %w", providerReference, err)
	}

	result := &StatusResult{Status: link.Status}
	if link.Status != "paid" {
		return result, nil
	}
	for _, p := range link.Payments {
		if p.Status == "captured" {
			result.Paid = true
			result.PaymentID = p.ID
			break
		}
	}
	return result, nil
}

func (r *RazorpayClient) do(req *http.Request, out interface{}) error {
	resp, err := r.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("gateway returned %d: %s", resp.StatusCode, truncate(body, 256))
	}
	return json.Unmarshal(body, out)
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
