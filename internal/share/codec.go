// Package share encodes editor text into URL-fragment tokens and back.
//
// A token is the JSON string encoding of the text, gzip compressed, in
// unpadded base64url. Tokens produced by the browser playground use the
// standard base64 alphabet with padding and are accepted on decode.
package share

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/klauspost/compress/gzip"

	"gopad/internal/logging"
)

// ErrDecode is wrapped by every Decode failure.
var ErrDecode = errors.New("share: cannot decode token")

// DefaultMaxDecodedBytes bounds the decompressed payload.
const DefaultMaxDecodedBytes = 4 << 20

// Codec converts text to and from share tokens.
type Codec struct {
	// MaxDecodedBytes caps the decompressed JSON payload. Zero means
	// DefaultMaxDecodedBytes.
	MaxDecodedBytes int64

	// Level is the gzip compression level. Zero means gzip.BestCompression.
	Level int
}

var defaultCodec = &Codec{}

// Encode uses the default codec.
func Encode(ctx context.Context, text string) (string, error) {
	return defaultCodec.Encode(ctx, text)
}

// Decode uses the default codec.
func Decode(ctx context.Context, token string) (string, error) {
	return defaultCodec.Decode(ctx, token)
}

func (c *Codec) maxDecoded() int64 {
	if c == nil || c.MaxDecodedBytes <= 0 {
		return DefaultMaxDecodedBytes
	}
	return c.MaxDecodedBytes
}

func (c *Codec) level() int {
	if c == nil || c.Level == 0 {
		return gzip.BestCompression
	}
	return c.Level
}

// Encode returns the share token for text.
func (c *Codec) Encode(ctx context.Context, text string) (string, error) {
	payload, err := json.Marshal(text)
	if err != nil {
		return "", fmt.Errorf("marshal text: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, c.level())
	if err != nil {
		return "", fmt.Errorf("create gzip writer: %w", err)
	}
	if _, err := io.Copy(zw, &ctxReader{ctx: ctx, r: bytes.NewReader(payload)}); err != nil {
		zw.Close()
		return "", fmt.Errorf("compress: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("compress: %w", err)
	}

	token := base64.RawURLEncoding.EncodeToString(buf.Bytes())
	logging.ShareDebug("encoded %d bytes into %d-char token", len(text), len(token))
	return token, nil
}

// Decode returns the text for token. Any failure wraps ErrDecode and returns
// no text. Context cancellation is returned as is.
func (c *Codec) Decode(ctx context.Context, token string) (string, error) {
	raw, err := decodeBase64(strings.TrimSpace(token))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	defer zr.Close()

	limit := c.maxDecoded()
	var out bytes.Buffer
	n, err := io.Copy(&out, io.LimitReader(&ctxReader{ctx: ctx, r: zr}, limit+1))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if n > limit {
		return "", fmt.Errorf("%w: payload exceeds %d bytes", ErrDecode, limit)
	}

	var text string
	if err := json.Unmarshal(out.Bytes(), &text); err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	logging.ShareDebug("decoded %d-char token into %d bytes", len(token), len(text))
	return text, nil
}

// decodeBase64 accepts unpadded base64url as well as legacy standard
// base64 tokens.
func decodeBase64(token string) ([]byte, error) {
	if token == "" {
		return nil, errors.New("empty token")
	}
	if strings.ContainsAny(token, "+/=") {
		if data, err := base64.StdEncoding.DecodeString(token); err == nil {
			return data, nil
		}
		return base64.RawStdEncoding.DecodeString(strings.TrimRight(token, "="))
	}
	return base64.RawURLEncoding.DecodeString(token)
}

// ctxReader stops streaming once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *ctxReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}

// Link places token in the fragment of base.
func Link(base, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u.String() + "#" + token, nil
}

// TokenFromLink extracts the token from a full link, a "#token" fragment or
// a bare token. It returns "" when there is none.
func TokenFromLink(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '#'); i >= 0 {
		return s[i+1:]
	}
	if strings.Contains(s, "://") {
		return ""
	}
	return s
}
