package checkout

import (
	"crypto/rand"
	"encoding/base32"
	"strconv"
	"strings"
	"time"
)

var suffixEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NewOrderNumber returns ORD-<base36 unix millis>-<6 random chars>. Two
// numbers minted in the same millisecond collide with probability 2^-30.
func NewOrderNumber(now time.Time) string {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	stamp := strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36))
	return "ORD-" + stamp + "-" + suffixEncoding.EncodeToString(b[:])[:6]
}
