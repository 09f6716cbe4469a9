package domain

import (
	"crypto/rand"
	"fmt"
	"io"
	"time"
)

const base36Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// NewOrderNumber формирует номер вида ORD-<YYYYMMDD>-<4 символа base36>
func NewOrderNumber(now time.Time) (string, error) {
	return newOrderNumber(now, rand.Reader)
}

func newOrderNumber(now time.Time, r io.Reader) (string, error) {
	suffix := make([]byte, 0, 4)
	buf := make([]byte, 1)
	for len(suffix) < 4 {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", fmt.Errorf("order number entropy: %w", err)
		}
		// 252 = 7*36, reject the tail to keep the distribution uniform
		if buf[0] >= 252 {
			continue
		}
		suffix = append(suffix, base36Alphabet[buf[0]%36])
	}
	return fmt.Sprintf("ORD-%s-%s", now.UTC().Format("20060102"), suffix), nil
}
