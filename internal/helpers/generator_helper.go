package helpers

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"strconv"
	"time"
)

// GenerateOrderNumber builds the client-facing order number from the
// current time plus a random suffix. Uniqueness is ultimately enforced by
// the unique index on orders.order_number.
func GenerateOrderNumber() string {
	n, err := rand.Int(rand.Reader, big.NewInt(1000))
	suffix := int64(0)
	if err == nil {
		suffix = n.Int64()
	}
	return fmt.Sprintf("UE%d%03d", time.Now().UnixMilli(), suffix)
}

// GenerateShortID returns a random lowercase hex identifier of n bytes
// (2n characters), used for short links and booking session tokens.
func GenerateShortID(n int) (string, error) {
	byt := make([]byte, n)
	if _, err := rand.Read(byt); err != nil {
		return "", err
	}
	return hex.EncodeToString(byt), nil
}

func StringToInt(s string) (int, error) {
	return strconv.Atoi(s)
}
