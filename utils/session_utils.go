package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"time"
)

const (
	base36Alphabet   = "0123456789abcdefghijklmnopqrstuvwxyz"
	sessionSuffixLen = 9
)

// GenerateSessionID returns session_<unix-ms>_<9 base36 chars>. It is unique
// enough for analytics deduplication, not a secret.
func GenerateSessionID(now time.Time) string {
	return fmt.Sprintf("session_%d_%s", now.UnixMilli(), randomBase36(sessionSuffixLen, now))
}

// GenerateOrderID mirrors the order_<unix-ms> ids the checkout emits.
func GenerateOrderID(now time.Time) string {
	return "order_" + strconv.FormatInt(now.UnixMilli(), 10)
}

func randomBase36(n int, now time.Time) string {
	b := make([]byte, n)
	max := big.NewInt(int64(len(base36Alphabet)))
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			// Fallback: derive from the clock so ids stay well-formed.
			b[i] = base36Alphabet[(now.UnixNano()>>(i*4))%int64(len(base36Alphabet))]
			continue
		}
		b[i] = base36Alphabet[idx.Int64()]
	}
	return string(b)
}
