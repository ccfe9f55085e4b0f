package scan

import (
	"encoding/json"
	"errors"
	"net/url"
	"regexp"
	"strings"
)

var ErrInvalidCredential = errors.New("invalid QR credential")

// CredentialForm tags which historical payload shape a scan carried.
type CredentialForm string

const (
	FormCanonical CredentialForm = "canonical"
	FormBare      CredentialForm = "bare"
	FormURL       CredentialForm = "url"
)

type Credential struct {
	OrderNumber string
	Form        CredentialForm
}

var urlParamPattern = regexp.MustCompile(`(?i)(?:OrderNumber|order)=([^&\s]+)`)

// ParseCredential normalizes the scanned payload to an order number.
// Canonical payloads are JSON {orderNumber, orderId, timestamp}; legacy
// tickets carry a bare order number or a URL with an OrderNumber/order
// query parameter. Unknown shapes are attempted as bare order numbers
// rather than rejected outright.
func ParseCredential(raw string) (*Credential, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, ErrInvalidCredential
	}

	var canonical struct {
		OrderNumber string `json:"orderNumber"`
	}
	if err := json.Unmarshal([]byte(trimmed), &canonical); err == nil {
		if canonical.OrderNumber == "" {
			return nil, ErrInvalidCredential
		}
		return &Credential{OrderNumber: canonical.OrderNumber, Form: FormCanonical}, nil
	}

	if match := urlParamPattern.FindStringSubmatch(trimmed); match != nil {
		value := match[1]
		if decoded, err := url.QueryUnescape(value); err == nil {
			value = decoded
		}
		return &Credential{OrderNumber: value, Form: FormURL}, nil
	}

	return &Credential{OrderNumber: trimmed, Form: FormBare}, nil
}

// normalizeScannedBy collapses the legacy array-shaped scanned-by value to
// its most recent entry.
func normalizeScannedBy(raw string) string {
	if !strings.HasPrefix(strings.TrimSpace(raw), "[") {
		return raw
	}
	var entries []string
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return raw
	}
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i] != "" {
			return entries[i]
		}
	}
	return "Unknown"
}
