package helpers

import (
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateOrderNumber(t *testing.T) {
	before := time.Now().UnixMilli()
	number := GenerateOrderNumber()
	after := time.Now().UnixMilli()

	require.True(t, strings.HasPrefix(number, "UE"))
	digits := strings.TrimPrefix(number, "UE")
	require.Len(t, digits, 16)

	millis, err := strconv.ParseInt(digits[:13], 10, 64)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, millis, before)
	assert.LessOrEqual(t, millis, after)
}

func TestGenerateOrderNumberUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		number := GenerateOrderNumber()
		assert.False(t, seen[number], "duplicate order number %s", number)
		seen[number] = true
		time.Sleep(time.Millisecond)
	}
}

func TestGenerateShortID(t *testing.T) {
	id, err := GenerateShortID(4)
	require.NoError(t, err)
	assert.Len(t, id, 8)

	other, err := GenerateShortID(4)
	require.NoError(t, err)
	assert.NotEqual(t, id, other)
}

func TestStringToInt(t *testing.T) {
	n, err := StringToInt("42")
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	_, err = StringToInt("forty-two")
	assert.Error(t, err)
}
