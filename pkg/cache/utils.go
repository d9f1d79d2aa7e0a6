package cache

import (
	"fmt"
	"strings"
)

// GenerateKey joins a prefix and id into a colon separated cache key.
func GenerateKey(prefix, id string) string {
	return prefix + ":" + id
}

// GenerateKeyWithParams builds a colon separated key from a prefix and any
// number of parameters, for example market:AAPL:2024-01-01:2024-06-01.
func GenerateKeyWithParams(prefix string, params ...interface{}) string {
	var b strings.Builder
	b.WriteString(prefix)
	for _, p := range params {
		fmt.Fprintf(&b, ":%v", p)
	}
	return b.String()
}
