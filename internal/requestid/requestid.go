package requestid

import (
	crand "crypto/rand"
	"math/big"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const DefaultHeaderKey = "X-Request-Id"

// ResolveHeaderKey falls back to DefaultHeaderKey for a blank key.
func ResolveHeaderKey(headerKey string) string {
	if v := strings.TrimSpace(headerKey); v != "" {
		return v
	}
	return DefaultHeaderKey
}

// Gen returns yyyymmddHHMMSSuuuuuu followed by 8 random digits.
func Gen() string {
	return timeString(time.Now()) + randomDigits(8)
}

// Middleware echoes the caller's request id or generates one, and stores it
// in the gin context under the header key.
func Middleware(headerKey string) gin.HandlerFunc {
	headerKey = ResolveHeaderKey(headerKey)
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(headerKey))
		if id == "" || len(id) > 128 {
			id = Gen()
		}
		c.Header(headerKey, id)
		c.Set(headerKey, id)
		c.Next()
	}
}

func timeString(ts time.Time) string {
	return strings.ReplaceAll(ts.Format("20060102150405.000000"), ".", "")
}

func randomDigits(n int) string {
	if n <= 0 {
		return ""
	}
	const digits = "0123456789"
	b := make([]byte, n)
	for i := range b {
		b[i] = digits[cryptoRandIntn(len(digits))]
	}
	return string(b)
}

func cryptoRandIntn(max int) int {
	if max <= 0 {
		return 0
	}
	n, err := crand.Int(crand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0
	}
	return int(n.Int64())
}
