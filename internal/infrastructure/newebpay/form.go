package newebpay

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

type Field struct {
	Key   string
	Value string
}

// Form is an insertion-ordered key/value list. Encode skips empty values.
type Form struct {
	fields []Field
	index  map[string]int
}

func NewForm() *Form {
	return &Form{index: map[string]int{}}
}

func (f *Form) Set(key, value string) *Form {
	if i, ok := f.index[key]; ok {
		f.fields[i].Value = value
		return f
	}
	f.index[key] = len(f.fields)
	f.fields = append(f.fields, Field{Key: key, Value: value})
	return f
}

func (f *Form) SetInt(key string, value int64) *Form {
	return f.Set(key, strconv.FormatInt(value, 10))
}

func (f *Form) Get(key string) string {
	if i, ok := f.index[key]; ok {
		return f.fields[i].Value
	}
	return ""
}

func (f *Form) Has(key string) bool {
	_, ok := f.index[key]
	return ok
}

func (f *Form) Len() int {
	return len(f.fields)
}

func (f *Form) Fields() []Field {
	out := make([]Field, len(f.fields))
	copy(out, f.fields)
	return out
}

func (f *Form) Map() map[string]string {
	out := make(map[string]string, len(f.fields))
	for _, field := range f.fields {
		out[field.Key] = field.Value
	}
	return out
}

func (f *Form) Encode() string {
	var sb strings.Builder
	for _, field := range f.fields {
		if field.Value == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(field.Key))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(field.Value))
	}
	return sb.String()
}

func ParseForm(s string) (*Form, error) {
	f := NewForm()
	for _, pair := range strings.Split(s, "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		k, err := url.QueryUnescape(key)
		if err != nil {
			return nil, fmt.Errorf("unescape key %q: %w", key, err)
		}
		v, err := url.QueryUnescape(value)
		if err != nil {
			return nil, fmt.Errorf("unescape value of %q: %w", k, err)
		}
		if k == "" {
			continue
		}
		f.Set(k, v)
	}
	return f, nil
}
