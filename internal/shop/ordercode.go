package shop

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const (
	codeSuffixMin   = 100000
	codeSuffixSpan  = 900000
	maxCodeAttempts = 8
)

// NewOrderCode returns ORD-<yyyymmdd UTC>-<6 digits>. Uniqueness is enforced by
// the store; Checkout draws again on collision.
func NewOrderCode(now time.Time) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeSuffixSpan))
	if err != nil {
		return "", fmt.Errorf("order code: %w", err)
	}
	return fmt.Sprintf("ORD-%s-%06d", now.UTC().Format("20060102"), n.Int64()+codeSuffixMin), nil
}
