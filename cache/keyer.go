package cache

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
)

// ErrEncoding is matched by every *EncodingError.
var ErrEncoding = errors.New("cache: argument is not encodable")

// EncodingError reports an argument that has no canonical JSON form.
type EncodingError struct {
	// Name is the memoized function name.
	Name string
	// Arg identifies the argument, args[i] or kwargs["k"].
	Arg string
	Err error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("cache: %s: %s is not encodable: %v", e.Name, e.Arg, e.Err)
}

func (e *EncodingError) Unwrap() []error {
	return []error{ErrEncoding, e.Err}
}

// marshal is json.Marshal without HTML escaping, so URLs stay readable in keys.
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}

// KeyFunc maps a call's argument value to the positional and keyword arguments
// that identify it for caching.
type KeyFunc[A any] func(args A) (positional []any, keyword map[string]any)

// Key derives a deterministic cache key as name:json(positional):json(keyword).
// Positional order is significant; keyword keys are sorted, as are the keys of any
// nested maps. Values that cannot be encoded (functions, channels, complex numbers,
// NaN or infinite floats) fail with an *EncodingError naming the argument.
func Key(name string, positional []any, keyword map[string]any) (string, error) {
	buf := make([]byte, 0, len(name)+32)
	buf = append(buf, name...)
	buf = append(buf, ':', '[')
	for i, v := range positional {
		b, err := marshal(v)
		if err != nil {
			return "", &EncodingError{Name: name, Arg: "args[" + strconv.Itoa(i) + "]", Err: err}
		}
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = append(buf, b...)
	}
	buf = append(buf, ']', ':', '{')

	keys := make([]string, 0, len(keyword))
	for k := range keyword {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for i, k := range keys {
		b, err := marshal(keyword[k])
		if err != nil {
			return "", &EncodingError{Name: name, Arg: "kwargs[" + strconv.Quote(k) + "]", Err: err}
		}
		kb, _ := marshal(k)
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = append(buf, kb...)
		buf = append(buf, ':')
		buf = append(buf, b...)
	}
	buf = append(buf, '}')
	return string(buf), nil
}
