package share

import (
	"bytes"
	"context"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	cases := map[string]string{
		"empty":   "",
		"long":    strings.Repeat("a", 10000),
		"unicode": "π§€ unicode 🎉",
		"hash":    "text#withhash",
		"program": "func fib(n int) int {\n\tif n < 2 {\n\t\treturn n\n\t}\n\treturn fib(n-1) + fib(n-2)\n}\n",
	}
	for name, text := range cases {
		t.Run(name, func(t *testing.T) {
			token, err := Encode(ctx, text)
			require.NoError(t, err)
			assert.NotContains(t, token, "#")
			assert.NotContains(t, token, "=")
			assert.Equal(t, token, fragmentSafe(token))

			got, err := Decode(ctx, token)
			require.NoError(t, err)
			assert.Equal(t, text, got)
		})
	}
}

// fragmentSafe keeps only characters that never need escaping in a
// fragment.
func fragmentSafe(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return -1
	}, s)
}

func legacyToken(t *testing.T, payload string) string {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(payload))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestDecode_LegacyStdAlphabet(t *testing.T) {
	token := legacyToken(t, `"let x = 1;\nputs(x);"`)

	got, err := Decode(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "let x = 1;\nputs(x);", got)
}

func TestDecode_Failures(t *testing.T) {
	ctx := context.Background()
	cases := map[string]string{
		"empty":        "",
		"bad alphabet": "!!!not-base64!!!",
		"not gzip":     base64.RawURLEncoding.EncodeToString([]byte("plain text")),
		"not json":     legacyToken(t, "not a json string"),
		"json number":  legacyToken(t, "42"),
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := Decode(ctx, token)
			assert.ErrorIs(t, err, ErrDecode)
			assert.Empty(t, got)
		})
	}
}

func TestDecode_SizeCap(t *testing.T) {
	ctx := context.Background()
	c := &Codec{MaxDecodedBytes: 1024}

	token, err := c.Encode(ctx, strings.Repeat("z", 4096))
	require.NoError(t, err)

	_, err = c.Decode(ctx, token)
	assert.ErrorIs(t, err, ErrDecode)
}

func TestCancelled(t *testing.T) {
	token, err := Encode(context.Background(), "hello")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = Encode(ctx, "hello")
	assert.ErrorIs(t, err, context.Canceled)

	_, err = Decode(ctx, token)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLinks(t *testing.T) {
	token, err := Encode(context.Background(), "x := 1")
	require.NoError(t, err)

	link, err := Link("https://gopad.dev/play#old", token)
	require.NoError(t, err)
	assert.Equal(t, "https://gopad.dev/play#"+token, link)

	assert.Equal(t, token, TokenFromLink(link))
	assert.Equal(t, token, TokenFromLink("#"+token))
	assert.Equal(t, token, TokenFromLink("  "+token+"\n"))
	assert.Equal(t, "", TokenFromLink("https://gopad.dev/play"))
}
