package newebpay

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

const (
	MaxOrderNoLength = 30

	PrefixSingle = "S"
	PrefixPeriod = "P"

	base36Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	suffixLength   = 8
)

// GenerateOrderNo is prefix + base36 millisecond timestamp + random base36 suffix.
func (v *Vault) GenerateOrderNo(prefix string) (string, error) {
	suffix, err := randomBase36(suffixLength)
	if err != nil {
		return "", fmt.Errorf("generate order number: %w", err)
	}
	ts := strings.ToUpper(strconv.FormatInt(v.now().UnixMilli(), 36))
	return truncateOrderNo(prefix + ts + suffix), nil
}

// DeriveOrderNo maps a client-supplied idempotency key to a stable order number.
func (v *Vault) DeriveOrderNo(prefix, clientKey string) string {
	mac := hmac.New(sha256.New, []byte(v.hashKey))
	mac.Write([]byte(prefix))
	mac.Write([]byte{0})
	mac.Write([]byte(clientKey))
	n := new(big.Int).SetBytes(mac.Sum(nil)[:16])
	return truncateOrderNo(prefix + strings.ToUpper(n.Text(36)))
}

var alphabetSize = big.NewInt(int64(len(base36Alphabet)))

// randomBase36 draws every character uniformly from the alphabet.
func randomBase36(n int) (string, error) {
	buf := make([]byte, n)
	for i := range buf {
		idx, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", err
		}
		buf[i] = base36Alphabet[idx.Int64()]
	}
	return string(buf), nil
}

func truncateOrderNo(s string) string {
	if len(s) > MaxOrderNoLength {
		return s[:MaxOrderNoLength]
	}
	return s
}
