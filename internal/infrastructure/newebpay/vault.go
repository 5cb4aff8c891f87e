package newebpay

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/vibepay/newebpay-bridge/internal/domain/errors"
)

const (
	keyLength = 32
	ivLength  = 16

	DefaultVersion = "2.0"
	PeriodVersion  = "1.0"
	QueryVersion   = "1.3"
)

var ErrCipherLength = errors.New("cipher text is empty or not block aligned")

type Kind string

const (
	KindMPG    Kind = "MPG"
	KindPeriod Kind = "PERIOD"
)

type VaultConfig struct {
	MerchantID string
	HashKey    string
	HashIV     string
	Version    string
	Now        func() time.Time
}

// Vault holds the merchant secrets for the process lifetime. Its String form
// never includes key material.
type Vault struct {
	merchantID string
	hashKey    string
	hashIV     string
	version    string
	block      cipher.Block
	now        func() time.Time
}

func NewVault(cfg VaultConfig) (*Vault, error) {
	cfgErr := &apperrors.ConfigError{}
	if cfg.MerchantID == "" {
		cfgErr.Add("merchant id is required")
	}
	if len(cfg.HashKey) != keyLength {
		cfgErr.Add(fmt.Sprintf("hash key must be %d bytes, got %d", keyLength, len(cfg.HashKey)))
	}
	if len(cfg.HashIV) != ivLength {
		cfgErr.Add(fmt.Sprintf("hash iv must be %d bytes, got %d", ivLength, len(cfg.HashIV)))
	}
	if err := cfgErr.OrNil(); err != nil {
		return nil, err
	}

	block, err := aes.NewCipher([]byte(cfg.HashKey))
	if err != nil {
		return nil, &apperrors.ConfigError{Problems: []string{err.Error()}}
	}

	version := cfg.Version
	if version == "" {
		version = DefaultVersion
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Vault{
		merchantID: cfg.MerchantID,
		hashKey:    cfg.HashKey,
		hashIV:     cfg.HashIV,
		version:    version,
		block:      block,
		now:        now,
	}, nil
}

func (v *Vault) MerchantID() string {
	return v.merchantID
}

func (v *Vault) String() string {
	return "Vault(" + v.merchantID + ")"
}

func (v *Vault) GoString() string {
	return v.String()
}

// Encrypt is AES-256-CBC over PKCS#7-padded plaintext, lowercase hex out.
func (v *Vault) Encrypt(plaintext string) string {
	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(v.block, []byte(v.hashIV)).CryptBlocks(out, padded)
	return hex.EncodeToString(out)
}

func (v *Vault) Decrypt(cipherHex string) (string, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(cipherHex))
	if err != nil {
		return "", fmt.Errorf("decode cipher hex: %w", err)
	}
	if len(raw) == 0 || len(raw)%aes.BlockSize != 0 {
		return "", ErrCipherLength
	}

	out := make([]byte, len(raw))
	cipher.NewCBCDecrypter(v.block, []byte(v.hashIV)).CryptBlocks(out, raw)
	return string(pkcs7Unpad(out, aes.BlockSize)), nil
}

// Sign produces TradeSha. The literal layout is the processor's contract.
func (v *Vault) Sign(cipherHex string) string {
	return sha256Upper("HashKey=" + v.hashKey + "&" + cipherHex + "&HashIV=" + v.hashIV)
}

// QueryCheckValue signs a QueryTradeInfo request.
func (v *Vault) QueryCheckValue(orderNo string, amount int64) string {
	return sha256Upper("IV=" + v.hashIV +
		"&Amt=" + strconv.FormatInt(amount, 10) +
		"&MerchantID=" + v.merchantID +
		"&MerchantOrderNo=" + orderNo +
		"&Key=" + v.hashKey)
}

// TradeCheckCode is the signature the processor attaches to QueryTradeInfo results.
func (v *Vault) TradeCheckCode(orderNo string, amount int64, tradeNo string) string {
	return sha256Upper("HashIV=" + v.hashIV +
		"&Amt=" + strconv.FormatInt(amount, 10) +
		"&MerchantID=" + v.merchantID +
		"&MerchantOrderNo=" + orderNo +
		"&TradeNo=" + tradeNo +
		"&HashKey=" + v.hashKey)
}

func sha256Upper(s string) string {
	sum := sha256.Sum256([]byte(s))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}
