package crawler

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

// EncodeScanToken builds the opaque continuation token pointing just after (channelID, messageID).
func EncodeScanToken(channelID string, messageID int64) string {
	return base64.RawURLEncoding.EncodeToString([]byte(DocID(channelID, messageID)))
}

// DecodeScanToken reverses EncodeScanToken.
func DecodeScanToken(token string) (string, int64, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", 0, fmt.Errorf("decode scan token: %w", err)
	}
	key := string(raw)
	idx := strings.LastIndex(key, ":")
	if idx <= 0 {
		return "", 0, fmt.Errorf("malformed scan token %q", key)
	}
	messageID, err := strconv.ParseInt(key[idx+1:], 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("parse scan token message id: %w", err)
	}
	return key[:idx], messageID, nil
}
