package ordering

import (
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"
)

// Credential is the canonical redemption payload embedded in the ticket QR.
// Field names are fixed: scanners in the field decode QR images printed
// from older revisions of this payload.
type Credential struct {
	OrderNumber string    `json:"orderNumber"`
	OrderID     string    `json:"orderId"`
	IssuedAt    time.Time `json:"timestamp"`
}

// BuildCredential returns the JSON payload and a PNG data URL rendering it.
func BuildCredential(orderID uuid.UUID, orderNumber string, issuedAt time.Time) (payload, imageDataURL string, err error) {
	raw, err := json.Marshal(Credential{
		OrderNumber: orderNumber,
		OrderID:     orderID.String(),
		IssuedAt:    issuedAt.UTC(),
	})
	if err != nil {
		return "", "", err
	}

	png, err := qrcode.Encode(string(raw), qrcode.Medium, 256)
	if err != nil {
		return "", "", err
	}
	return string(raw), "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
