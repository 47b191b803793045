package api

import (
	"net/http"
	"strconv"
)

// queryInt64 parses a query parameter as int64, falling back to
// defaultVal when absent or malformed.
func queryInt64(r *http.Request, key string, defaultVal int64) int64 {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return n
}
