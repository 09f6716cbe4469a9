package domain

import (
	"bytes"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var orderNumberRe = regexp.MustCompile(`^ORD-\d{8}-[0-9A-Z]{4}$`)

func TestNewOrderNumber_Format(t *testing.T) {
	now := time.Date(2026, 3, 7, 23, 30, 0, 0, time.UTC)
	for i := 0; i < 50; i++ {
		n, err := NewOrderNumber(now)
		require.NoError(t, err)
		assert.Regexp(t, orderNumberRe, n)
		assert.Equal(t, "ORD-20260307-", n[:13])
	}
}

func TestNewOrderNumber_SkipsBiasedBytes(t *testing.T) {
	now := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	// 255 and 252 are rejected, 0 -> '0', 10 -> 'A', 35 -> 'Z', 36 -> '0'
	src := bytes.NewReader([]byte{255, 0, 252, 10, 35, 36})
	n, err := newOrderNumber(now, src)
	require.NoError(t, err)
	assert.Equal(t, "ORD-20260102-0AZ0", n)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("boom") }

func TestNewOrderNumber_EntropyError(t *testing.T) {
	_, err := newOrderNumber(time.Now(), failingReader{})
	assert.Error(t, err)
}
