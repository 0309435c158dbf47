package token

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"math"
	"strings"
	"time"
)

// ExpiryFromToken returns the exp claim (seconds since epoch) carried in the
// payload segment of a header.payload.signature bearer token. The second
// result is false when the token cannot be decoded: missing segment, invalid
// base64url, invalid JSON, or an exp that is absent or not a JSON number.
// It never panics.
func ExpiryFromToken(raw string) (int64, bool) {
	claims, ok := decodePayload(raw)
	if !ok {
		return 0, false
	}

	// Only a JSON number is accepted; "123" as a string is not an expiry.
	n, ok := claims["exp"].(json.Number)
	if !ok {
		return 0, false
	}
	if i, err := n.Int64(); err == nil {
		return i, true
	}
	f, err := n.Float64()
	if err != nil || f >= math.MaxInt64 || f <= math.MinInt64 {
		return 0, false
	}
	// Fractional seconds round up so logout never happens early.
	return int64(math.Ceil(f)), true
}

// StringClaim returns a string claim from the payload segment without
// verifying the token.
func StringClaim(raw, name string) (string, bool) {
	claims, ok := decodePayload(raw)
	if !ok {
		return "", false
	}
	v, ok := claims[name].(string)
	return v, ok
}

func decodePayload(raw string) (map[string]any, bool) {
	parts := strings.Split(raw, ".")
	if len(parts) < 2 || parts[1] == "" {
		return nil, false
	}

	segment := strings.NewReplacer("-", "+", "_", "/").Replace(parts[1])
	switch len(segment) % 4 {
	case 2:
		segment += "=="
	case 3:
		segment += "="
	case 1:
		return nil, false
	}

	payload, err := base64.StdEncoding.DecodeString(segment)
	if err != nil {
		return nil, false
	}

	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var claims map[string]any
	if err := dec.Decode(&claims); err != nil {
		return nil, false
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, false
	}
	return claims, true
}

// ExpiresAt is ExpiryFromToken as an absolute time.
func ExpiresAt(raw string) (time.Time, bool) {
	exp, ok := ExpiryFromToken(raw)
	if !ok {
		return time.Time{}, false
	}
	return time.Unix(exp, 0), true
}

// Expired reports whether the token is undecodable or its expiry is not after now.
func Expired(raw string, now time.Time) bool {
	exp, ok := ExpiresAt(raw)
	return !ok || !exp.After(now)
}

// StripBearer removes an optional case-insensitive "Bearer " prefix.
func StripBearer(value string) string {
	value = strings.TrimSpace(value)
	if len(value) >= 7 && strings.EqualFold(value[:7], "bearer ") {
		return strings.TrimSpace(value[7:])
	}
	return value
}
