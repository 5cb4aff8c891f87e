package newebpay

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

var (
	ErrMissingField     = errors.New("payload is missing TradeInfo or TradeSha")
	ErrMerchantMismatch = errors.New("merchant id does not match")
	ErrSignatureInvalid = errors.New("trade sha does not match")
	ErrDecryptFailed    = errors.New("trade info could not be decrypted")
	ErrUnparseable      = errors.New("decrypted trade info is neither JSON nor a query string")
)

type EncryptedPayload struct {
	MerchantID string `json:"MerchantID"`
	TradeInfo  string `json:"TradeInfo"`
	TradeSha   string `json:"TradeSha"`
	Version    string `json:"Version"`
}

func (p EncryptedPayload) Values() url.Values {
	return url.Values{
		"MerchantID": {p.MerchantID},
		"TradeInfo":  {p.TradeInfo},
		"TradeSha":   {p.TradeSha},
		"Version":    {p.Version},
	}
}

type InboundPayload struct {
	Status     string `json:"Status" form:"Status"`
	MerchantID string `json:"MerchantID" form:"MerchantID"`
	TradeInfo  string `json:"TradeInfo" form:"TradeInfo"`
	TradeSha   string `json:"TradeSha" form:"TradeSha"`
	Version    string `json:"Version,omitempty" form:"Version"`
}

func (p InboundPayload) Values() url.Values {
	v := url.Values{
		"Status":     {p.Status},
		"MerchantID": {p.MerchantID},
		"TradeInfo":  {p.TradeInfo},
		"TradeSha":   {p.TradeSha},
	}
	if p.Version != "" {
		v.Set("Version", p.Version)
	}
	return v
}

// Notification is a decrypted processor message with every result value as a string.
type Notification struct {
	Status  string            `json:"Status"`
	Message string            `json:"Message"`
	Result  map[string]string `json:"Result"`
}

func (n *Notification) Get(key string) string {
	return n.Result[key]
}

func (n *Notification) Succeeded() bool {
	return n.Status == "SUCCESS"
}

type InboundResult struct {
	Valid        bool
	Notification *Notification
	Err          error
}

func (v *Vault) BuildOutboundForm(kind Kind, fields *Form) (*EncryptedPayload, error) {
	if fields == nil || fields.Len() == 0 {
		return nil, errors.New("envelope has no fields")
	}

	version := v.version
	if kind == KindPeriod {
		version = PeriodVersion
	}

	merged := NewForm().
		Set("MerchantID", v.merchantID).
		Set("RespondType", "JSON").
		SetInt("TimeStamp", v.now().Unix()).
		Set("Version", version)
	for _, f := range fields.Fields() {
		if f.Key == "MerchantID" {
			continue
		}
		merged.Set(f.Key, f.Value)
	}

	cipherHex := v.Encrypt(merged.Encode())
	return &EncryptedPayload{
		MerchantID: v.merchantID,
		TradeInfo:  cipherHex,
		TradeSha:   v.Sign(cipherHex),
		Version:    version,
	}, nil
}

// ValidateInbound never panics or returns an error; failures are reported in the result.
func (v *Vault) ValidateInbound(p InboundPayload) InboundResult {
	if p.TradeInfo == "" || p.TradeSha == "" {
		return InboundResult{Err: ErrMissingField}
	}
	if p.MerchantID != v.merchantID {
		return InboundResult{Err: ErrMerchantMismatch}
	}

	expected := v.Sign(p.TradeInfo)
	got := strings.ToUpper(strings.TrimSpace(p.TradeSha))
	if subtle.ConstantTimeCompare([]byte(expected), []byte(got)) != 1 {
		return InboundResult{Err: ErrSignatureInvalid}
	}

	plain, err := v.Decrypt(p.TradeInfo)
	if err != nil {
		return InboundResult{Err: fmt.Errorf("%w: %v", ErrDecryptFailed, err)}
	}

	n, err := parseNotification(plain)
	if err != nil {
		return InboundResult{Err: err}
	}
	if n.Status == "" {
		n.Status = p.Status
	}
	return InboundResult{Valid: true, Notification: n}
}

func parseNotification(plain string) (*Notification, error) {
	trimmed := strings.TrimSpace(plain)

	if strings.HasPrefix(trimmed, "{") {
		if n, err := parseJSONNotification(trimmed); err == nil {
			return n, nil
		}
	}

	form, err := ParseForm(trimmed)
	if err != nil || form.Len() == 0 {
		return nil, ErrUnparseable
	}
	return &Notification{
		Status:  form.Get("Status"),
		Message: form.Get("Message"),
		Result:  form.Map(),
	}, nil
}

func parseJSONNotification(s string) (*Notification, error) {
	top, err := decodeObject(s)
	if err != nil {
		return nil, err
	}

	n := &Notification{
		Status:  stringify(top["Status"]),
		Message: stringify(top["Message"]),
		Result:  map[string]string{},
	}

	raw, hasResult := top["Result"]
	switch r := raw.(type) {
	case map[string]any:
		flatten(n.Result, r)
	case string:
		if nested, err := decodeObject(r); err == nil {
			flatten(n.Result, nested)
		}
	}
	if !hasResult {
		for k, val := range top {
			if k != "Status" && k != "Message" {
				n.Result[k] = stringify(val)
			}
		}
	}
	return n, nil
}

func decodeObject(s string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, ErrUnparseable
	}
	return out, nil
}

func flatten(dst map[string]string, src map[string]any) {
	for k, val := range src {
		dst[k] = stringify(val)
	}
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(t); err != nil {
			return fmt.Sprint(t)
		}
		return strings.TrimSpace(buf.String())
	}
}
