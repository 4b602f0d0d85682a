package util

import (
	"crypto/rand"
	"encoding/hex"
)

const idBytes = 16

// NewID returns a random identifier, prefixed per entity kind
// (usr_, prf_, chn_, thr_, msg_, att_). An empty prefix yields the
// bare hex string, used for refresh-token secrets.
func NewID(prefix string) string {
	buf := make([]byte, idBytes)
	_, _ = rand.Read(buf)
	id := hex.EncodeToString(buf)
	if prefix == "" {
		return id
	}
	return prefix + "_" + id
}
