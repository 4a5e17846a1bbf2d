package capture

import (
	"crypto/sha256"
	"encoding/hex"
	"unicode/utf8"
)

// truncatePayload cuts payload to at most maxBytes, backing off to a rune
// boundary so the kept prefix stays valid UTF-8. When it cuts, it also returns the
// SHA-256 of the full payload so archived frames can be matched later.
func truncatePayload(payload string, maxBytes int) (out string, truncated bool, originalSize int, sum string) {
	if maxBytes <= 0 || len(payload) <= maxBytes {
		return payload, false, len(payload), ""
	}
	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(payload[cut]) {
		cut--
	}
	h := sha256.Sum256([]byte(payload))
	return payload[:cut], true, len(payload), hex.EncodeToString(h[:])
}
