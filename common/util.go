package common

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// EncodePayload base64-encodes the payload with standard padding, the encoding
// the custody API expects in b64DataToSign.
func EncodePayload(data string) string {
	return base64.StdEncoding.EncodeToString([]byte(data))
}

// DecodeBase64 accepts standard, URL-safe, padded and unpadded base64.
func DecodeBase64(src string) ([]byte, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, fmt.Errorf("empty base64 input")
	}
	encodings := []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	}
	var lastErr error
	for _, enc := range encodings {
		out, err := enc.DecodeString(src)
		if err == nil {
			return out, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("fail to decode base64: %w", lastErr)
}
