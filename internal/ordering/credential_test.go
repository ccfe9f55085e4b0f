package ordering

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildCredential(t *testing.T) {
	orderID := uuid.New()
	issuedAt := time.Date(2026, 5, 2, 10, 30, 0, 0, time.UTC)

	payload, image, err := BuildCredential(orderID, "UE1714651234567890", issuedAt)
	require.NoError(t, err)

	var decoded struct {
		OrderNumber string    `json:"orderNumber"`
		OrderID     string    `json:"orderId"`
		IssuedAt    time.Time `json:"timestamp"`
	}
	require.NoError(t, json.Unmarshal([]byte(payload), &decoded))
	assert.Equal(t, "UE1714651234567890", decoded.OrderNumber)
	assert.Equal(t, orderID.String(), decoded.OrderID)
	assert.True(t, decoded.IssuedAt.Equal(issuedAt))

	assert.Contains(t, image, "data:image/png;base64,")
}
