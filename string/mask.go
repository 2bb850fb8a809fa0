package string

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Mask will mask a string by replacing the second half with asterisks.
func Mask(s string) string {
	l := len(s)
	if l == 0 {
		return s
	}
	if l == 1 {
		return "*"
	}
	h := l / 2
	return s[0:h] + strings.Repeat("*", l-h)
}

// MaskURL returns the URL with its credentials, path and query values masked.
// Scheme and host stay readable.
func MaskURL(urlString string) (string, error) {
	u, err := url.Parse(urlString)
	if err != nil {
		return "", fmt.Errorf("failed to parse URL: %w", err)
	}
	var str strings.Builder
	str.WriteString(u.Scheme)
	str.WriteString("://")
	if u.User != nil {
		str.WriteString(Mask(u.User.Username()))
		if pass, ok := u.User.Password(); ok {
			str.WriteString(":")
			str.WriteString(Mask(pass))
		}
		str.WriteString("@")
	}
	str.WriteString(u.Host)
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		str.WriteString("/")
		str.WriteString(Mask(p))
	}
	var qs []string
	for k, v := range u.Query() {
		qs = append(qs, k+"="+Mask(strings.Join(v, ",")))
	}
	sort.Strings(qs)
	if len(qs) > 0 {
		str.WriteString("?")
		str.WriteString(strings.Join(qs, "&"))
	}
	return str.String(), nil
}

// MaskedString is a secret that prints masked through fmt and text marshaling.
// Text returns the real value.
type MaskedString string

func (ms MaskedString) Text() string {
	return string(ms)
}

// String implements fmt.Stringer
func (ms MaskedString) String() string {
	return Mask(string(ms))
}

// GoString implements fmt.GoStringer so %#v also prints masked.
func (ms MaskedString) GoString() string {
	return ms.String()
}

func (ms MaskedString) MarshalText() ([]byte, error) {
	return []byte(ms.String()), nil
}

// MarshalJSON writes the masked value
func (ms MaskedString) MarshalJSON() ([]byte, error) {
	return json.Marshal(ms.String())
}
