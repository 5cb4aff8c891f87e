package fingerprint

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"fmt"
)

// Compute hashes the canonical JSON form of v: object keys sorted, numbers kept verbatim.
func Compute(v any) string {
	hash := sha256.Sum256(Canonical(v))
	return fmt.Sprintf("%x", hash)
}

func Canonical(v any) []byte {
	raw, err := json.Marshal(v)
	if err != nil {
		return []byte(fmt.Sprintf("%v", v))
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return raw
	}

	out, err := json.Marshal(generic)
	if err != nil {
		return raw
	}
	return out
}

// DedupKey identifies one logical money-moving operation.
func DedupKey(merchantID, orderNo string, amount int64, body any) string {
	return fmt.Sprintf("%s:%s:%d:%s", merchantID, orderNo, amount, Compute(body)[:16])
}
