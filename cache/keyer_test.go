package cache

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyFormat(t *testing.T) {
	key, err := Key("fetch_content", []any{"https://example.com"}, nil)
	require.NoError(t, err)
	assert.Equal(t, `fetch_content:["https://example.com"]:{}`, key)

	key, err = Key("search_web", nil, map[string]any{"query": "go", "limit": 5})
	require.NoError(t, err)
	assert.Equal(t, `search_web:[]:{"limit":5,"query":"go"}`, key)
}

func TestKeyDeterministic(t *testing.T) {
	args := []any{"a", 1, true, nil, []any{1.5, "x"}}
	kwargs := map[string]any{"z": 1, "a": map[string]any{"y": 2, "b": 3}}
	first, err := Key("fn", args, kwargs)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := Key("fn", args, kwargs)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Contains(t, first, `"a":{"b":3,"y":2}`)
}

func TestKeyKeywordOrderInsensitive(t *testing.T) {
	a := map[string]any{}
	a["x"] = 1
	a["y"] = "two"
	b := map[string]any{}
	b["y"] = "two"
	b["x"] = 1
	ka, err := Key("fn", nil, a)
	require.NoError(t, err)
	kb, err := Key("fn", nil, b)
	require.NoError(t, err)
	assert.Equal(t, ka, kb)
}

func TestKeyPositionalOrderSensitive(t *testing.T) {
	k1, err := Key("fn", []any{1, 2}, nil)
	require.NoError(t, err)
	k2, err := Key("fn", []any{2, 1}, nil)
	require.NoError(t, err)
	assert.NotEqual(t, k1, k2)

	k3, err := Key("fn", []any{7, 7}, nil)
	require.NoError(t, err)
	k4, err := Key("fn", []any{7, 7}, nil)
	require.NoError(t, err)
	assert.Equal(t, k3, k4)
}

func TestKeyDistinguishesNamesAndArgs(t *testing.T) {
	keys := map[string]bool{}
	for _, tc := range []struct {
		name   string
		args   []any
		kwargs map[string]any
	}{
		{"fetch", []any{"a"}, nil},
		{"search", []any{"a"}, nil},
		{"fetch", []any{"b"}, nil},
		{"fetch", nil, map[string]any{"url": "a"}},
		{"fetch", []any{"1"}, nil},
		{"fetch", []any{1}, nil},
	} {
		k, err := Key(tc.name, tc.args, tc.kwargs)
		require.NoError(t, err)
		assert.False(t, keys[k], "collision on %s", k)
		keys[k] = true
	}
}

func TestKeyEncodingFailure(t *testing.T) {
	_, err := Key("fn", []any{"ok", func() {}}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEncoding))
	var encErr *EncodingError
	require.True(t, errors.As(err, &encErr))
	assert.Equal(t, "fn", encErr.Name)
	assert.Equal(t, "args[1]", encErr.Arg)

	_, err = Key("fn", nil, map[string]any{"ratio": math.NaN()})
	require.ErrorAs(t, err, &encErr)
	assert.Equal(t, `kwargs["ratio"]`, encErr.Arg)
	assert.Contains(t, err.Error(), `kwargs["ratio"]`)

	_, err = Key("fn", []any{make(chan int)}, nil)
	assert.ErrorIs(t, err, ErrEncoding)
}

func TestKeyKeepsURLsReadable(t *testing.T) {
	key, err := Key("fetch_content", []any{"https://example.com/?a=1&b=<2>"}, nil)
	require.NoError(t, err)
	assert.Equal(t, `fetch_content:["https://example.com/?a=1&b=<2>"]:{}`, key)
}
